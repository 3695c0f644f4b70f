// Package karma implements the karma ledger: per-user integer balances with a
// rate-limited peer-to-peer transfer primitive. Balances may go negative
// (debt is allowed); debits for lottery stakes and trade settlements are
// unconditional.
//
// The daily transfer counter tracks only cap-enforced peer gifts. Settlement
// and emission transfers bypass both the cap check and the counter, so a slot
// sale never consumes the seller's gift allowance.
package karma

import (
	"fmt"
	"sync"

	"github.com/lunchroulette/lunchroulette/internal/models"
)

// Ledger holds karma balances and per-cycle transfer counters.
type Ledger struct {
	mu               sync.RWMutex
	balances         map[models.UserID]int
	dailyTransferred map[models.UserID]int
	dailyCap         int
}

// NewLedger creates an empty ledger. dailyCap bounds the total karma a user
// may gift per cycle through cap-enforced transfers.
func NewLedger(dailyCap int) *Ledger {
	return &Ledger{
		balances:         make(map[models.UserID]int),
		dailyTransferred: make(map[models.UserID]int),
		dailyCap:         dailyCap,
	}
}

// Balance returns the user's karma balance, 0 if unset.
func (l *Ledger) Balance(user models.UserID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[user]
}

// SetBalance sets the user's karma balance.
func (l *Ledger) SetBalance(user models.UserID, balance int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[user] = balance
}

// Credit adds amount to the user's balance. Amount must be positive.
func (l *Ledger) Credit(user models.UserID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive, got %d", models.ErrValidation, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[user] += amount
	return nil
}

// Debit subtracts amount from the user's balance. Amount must be positive.
// The debit is unconditional and may drive the balance negative.
func (l *Ledger) Debit(user models.UserID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit amount must be positive, got %d", models.ErrValidation, amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[user] -= amount
	return nil
}

// Transfer moves amount from giver to receiver. When enforceDailyLimit is
// true the transfer succeeds only if the giver's balance covers the amount,
// the giver has not hit the per-cycle cap, and the amount fits under the cap;
// a successful capped transfer counts against the giver's daily allowance.
// When enforceDailyLimit is false the transfer is unconditional and does not
// touch the daily counter.
//
// A false return is a normal declined-transfer outcome, not an error; the
// ledger is left unchanged.
func (l *Ledger) Transfer(giver, receiver models.UserID, amount int, enforceDailyLimit bool) bool {
	if amount <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if enforceDailyLimit {
		if l.balances[giver] < amount {
			return false
		}
		if l.dailyTransferred[giver] >= l.dailyCap {
			return false
		}
		if amount+l.dailyTransferred[giver] > l.dailyCap {
			return false
		}
		l.dailyTransferred[giver] += amount
	}

	l.balances[giver] -= amount
	l.balances[receiver] += amount
	return true
}

// DailyTransferred returns how much karma the user has gifted this cycle.
func (l *Ledger) DailyTransferred(user models.UserID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dailyTransferred[user]
}

// ResetDailyCounters zeroes the daily transfer counters for the given users.
func (l *Ledger) ResetDailyCounters(users []models.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, user := range users {
		delete(l.dailyTransferred, user)
	}
}

// WeightMap converts raw balances into strictly positive lottery weights:
// each user maps to balance - min(balances) + 1, so the minimum-balance user
// always weighs 1 even when balances are negative, zero, or tied.
func (l *Ledger) WeightMap(users []models.UserID) map[models.UserID]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	weights := make(map[models.UserID]int, len(users))
	if len(users) == 0 {
		return weights
	}

	minBalance := l.balances[users[0]]
	for _, user := range users[1:] {
		if b := l.balances[user]; b < minBalance {
			minBalance = b
		}
	}
	for _, user := range users {
		weights[user] = l.balances[user] - minBalance + 1
	}
	return weights
}

// AverageKarma returns the integer mean balance over the given users. Used by
// callers to seed newcomers at the roster's current average.
func (l *Ledger) AverageKarma(users []models.UserID) (int, error) {
	if len(users) == 0 {
		return 0, fmt.Errorf("%w: cannot average over zero users", models.ErrValidation)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, user := range users {
		total += l.balances[user]
	}
	return total / len(users), nil
}

// Snapshot returns copies of the balance and daily-transfer maps for
// persistence.
func (l *Ledger) Snapshot() (balances, dailyTransferred map[models.UserID]int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balances = make(map[models.UserID]int, len(l.balances))
	for user, b := range l.balances {
		balances[user] = b
	}
	dailyTransferred = make(map[models.UserID]int, len(l.dailyTransferred))
	for user, d := range l.dailyTransferred {
		dailyTransferred[user] = d
	}
	return balances, dailyTransferred
}

// Restore replaces the ledger state with a previously saved snapshot.
func (l *Ledger) Restore(balances, dailyTransferred map[models.UserID]int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[models.UserID]int, len(balances))
	for user, b := range balances {
		l.balances[user] = b
	}
	l.dailyTransferred = make(map[models.UserID]int, len(dailyTransferred))
	for user, d := range dailyTransferred {
		l.dailyTransferred[user] = d
	}
}
