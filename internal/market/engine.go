// Package market implements the post-lottery slot market: a price-ordered
// two-sided limit order book where winners sell their slot (asks) and losers
// buy one (bids).
//
// Matching is price-then-time priority on both sides. Settlement is
// all-or-nothing: the karma movement and the slot transfer either both happen
// or neither does, with an explicit rollback when the slot transfer fails
// after karma has moved.
package market

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lunchroulette/lunchroulette/internal/karma"
	"github.com/lunchroulette/lunchroulette/internal/logger"
	"github.com/lunchroulette/lunchroulette/internal/models"
	"github.com/lunchroulette/lunchroulette/internal/roster"
)

// Engine is the limit order book plus its settlement collaborators.
type Engine struct {
	mu     sync.RWMutex
	ledger *karma.Ledger
	roster *roster.Manager

	orders       map[string]models.Order // by order ID
	transactions []models.Transaction

	now func() time.Time
}

// NewEngine creates an empty order book settling through the given ledger
// and roster.
func NewEngine(ledger *karma.Ledger, rosterManager *roster.Manager) *Engine {
	return &Engine{
		ledger: ledger,
		roster: rosterManager,
		orders: make(map[string]models.Order),
		now:    time.Now,
	}
}

// PlaceOrder opens a limit order for the user. The price must be at least 1
// and the user must not already have an open order on either side. Any price
// ceiling tied to the user's balance is caller policy; settlement feasibility
// is re-checked at execution time regardless.
func (e *Engine) PlaceOrder(user models.UserID, side models.Side, price int) (models.Order, error) {
	if price < 1 {
		return models.Order{}, fmt.Errorf("%w: price must be at least 1, got %d", models.ErrValidation, price)
	}
	if !side.Valid() {
		return models.Order{}, fmt.Errorf("%w: unknown order side %q", models.ErrValidation, side)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, order := range e.orders {
		if order.User == user {
			return models.Order{}, fmt.Errorf("%w: %q has order %s open", models.ErrDuplicateOrder, user, order.ID)
		}
	}

	order := models.Order{
		ID:        uuid.New().String(),
		User:      user,
		Side:      side,
		Price:     price,
		CreatedAt: e.now(),
	}
	e.orders[order.ID] = order
	return order, nil
}

// CancelOrder removes the order with the given ID from the book. Returns
// false if no such order is open; treating that as an error is up to the
// caller.
func (e *Engine) CancelOrder(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.orders[id]; !ok {
		return false
	}
	delete(e.orders, id)
	return true
}

// Asks returns the open sell orders, cheapest then oldest first.
func (e *Engine) Asks() []models.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.asksLocked()
}

// Bids returns the open buy orders, richest then oldest first.
func (e *Engine) Bids() []models.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bidsLocked()
}

// Orders returns a snapshot of the whole book, oldest first.
func (e *Engine) Orders() []models.Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders := make([]models.Order, 0, len(e.orders))
	for _, order := range e.orders {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders
}

func (e *Engine) asksLocked() []models.Order {
	var asks []models.Order
	for _, order := range e.orders {
		if order.Side == models.SideAsk {
			asks = append(asks, order)
		}
	}
	sort.Slice(asks, func(i, j int) bool {
		if asks[i].Price != asks[j].Price {
			return asks[i].Price < asks[j].Price
		}
		return asks[i].CreatedAt.Before(asks[j].CreatedAt)
	})
	return asks
}

func (e *Engine) bidsLocked() []models.Order {
	var bids []models.Order
	for _, order := range e.orders {
		if order.Side == models.SideBid {
			bids = append(bids, order)
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].Price != bids[j].Price {
			return bids[i].Price > bids[j].Price
		}
		return bids[i].CreatedAt.Before(bids[j].CreatedAt)
	})
	return bids
}

// BestMatch returns the highest-priority crossing pair, or nils when no ask
// price is covered by any bid. Asks are scanned cheapest-first against bids
// richest-first, which yields price-then-time priority on both sides.
func (e *Engine) BestMatch() (ask, bid *models.Order) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bestMatchLocked()
}

func (e *Engine) bestMatchLocked() (ask, bid *models.Order) {
	asks := e.asksLocked()
	bids := e.bidsLocked()
	for i := range asks {
		for j := range bids {
			if asks[i].Price <= bids[j].Price {
				return &asks[i], &bids[j]
			}
		}
	}
	return nil, nil
}

// Execute settles the best crossing pair, if any, at the ask's price.
//
// Before anything mutates, the buyer must not already hold a slot and the
// buyer's balance must cover the ask price; an infeasible match leaves the
// book untouched so the orders stay available for a later attempt. A feasible
// match is settled atomically: both orders leave the book, karma moves from
// buyer to seller through an uncapped transfer, and the slot moves through
// the roster. If the slot transfer fails the karma movement is reversed and
// no transaction is reported.
//
// A nil return means no transaction, a normal outcome.
func (e *Engine) Execute() *models.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()

	ask, bid := e.bestMatchLocked()
	if ask == nil {
		return nil
	}

	buyer, seller := bid.User, ask.User
	if e.roster.HasWon(buyer) {
		logger.Debug("match %s/%s declined: buyer %q already holds a slot", ask.ID, bid.ID, buyer)
		return nil
	}
	if balance := e.ledger.Balance(buyer); balance < ask.Price {
		logger.Debug("match %s/%s declined: buyer %q has %d karma, needs %d", ask.ID, bid.ID, buyer, balance, ask.Price)
		return nil
	}

	delete(e.orders, ask.ID)
	delete(e.orders, bid.ID)

	// Settlement ignores the daily gift cap: this is a paid trade.
	e.ledger.Transfer(buyer, seller, ask.Price, false)

	if err := e.roster.GiftTransfer(seller, buyer); err != nil {
		e.ledger.Transfer(seller, buyer, ask.Price, false)
		e.orders[ask.ID] = *ask
		e.orders[bid.ID] = *bid
		logger.Warn("match %s/%s rolled back: %v", ask.ID, bid.ID, err)
		return nil
	}

	tx := models.Transaction{
		Buyer:      buyer,
		Seller:     seller,
		Price:      ask.Price,
		Ask:        *ask,
		Bid:        *bid,
		ExecutedAt: e.now(),
	}
	e.transactions = append(e.transactions, tx)
	return &tx
}

// Transactions returns the settled trades, oldest first.
func (e *Engine) Transactions() []models.Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	transactions := make([]models.Transaction, len(e.transactions))
	copy(transactions, e.transactions)
	return transactions
}

// Reset clears the order book at the start of a cycle. Settled transactions
// are kept for reporting.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders = make(map[string]models.Order)
}

// Snapshot returns the open orders and settled transactions for persistence.
func (e *Engine) Snapshot() ([]models.Order, []models.Transaction) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders := make([]models.Order, 0, len(e.orders))
	for _, order := range e.orders {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	transactions := make([]models.Transaction, len(e.transactions))
	copy(transactions, e.transactions)
	return orders, transactions
}

// Restore replaces the book state with a previously saved snapshot.
func (e *Engine) Restore(orders []models.Order, transactions []models.Transaction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.orders = make(map[string]models.Order, len(orders))
	for _, order := range orders {
		e.orders[order.ID] = order
	}
	e.transactions = make([]models.Transaction, len(transactions))
	copy(e.transactions, transactions)
}
