// Package models defines the core domain entities for the lunchroulette engine:
// user identity, limit orders over lunch slots, executed transactions, and the
// engine error taxonomy. Entities carry built-in validation so invalid values
// are caught at the boundary instead of deep inside a settlement.
package models

import (
	"errors"
	"fmt"
	"time"
)

// UserID is an opaque stable identifier for a person. The engine never
// interprets it; resolving handles to IDs is the caller's responsibility.
type UserID string

// Side is the side of a limit order in the slot market.
type Side string

const (
	// SideAsk offers a won lunch slot for sale.
	SideAsk Side = "ask"
	// SideBid wants to buy a lunch slot.
	SideBid Side = "bid"
)

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideAsk || s == SideBid
}

// Order is an open limit order in the slot market. A user holds at most one
// open order at a time, on either side.
type Order struct {
	ID        string    `json:"id"`
	User      UserID    `json:"user"`
	Side      Side      `json:"side"`
	Price     int       `json:"price"` // karma, minimum 1
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that all order fields are valid.
func (o *Order) Validate() error {
	if o.ID == "" {
		return errors.New("order ID must not be empty")
	}
	if o.User == "" {
		return errors.New("order user must not be empty")
	}
	if !o.Side.Valid() {
		return fmt.Errorf("order side must be %q or %q", SideAsk, SideBid)
	}
	if o.Price < 1 {
		return errors.New("order price must be at least 1")
	}
	if o.CreatedAt.IsZero() {
		return errors.New("order created at must be set")
	}
	return nil
}

// Transaction records a settled match between an ask and a bid. The executed
// price is always the ask's price.
type Transaction struct {
	Buyer      UserID    `json:"buyer"`
	Seller     UserID    `json:"seller"`
	Price      int       `json:"price"`
	Ask        Order     `json:"ask"`
	Bid        Order     `json:"bid"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Validate checks that all transaction fields are consistent.
func (t *Transaction) Validate() error {
	if t.Buyer == "" {
		return errors.New("transaction buyer must not be empty")
	}
	if t.Seller == "" {
		return errors.New("transaction seller must not be empty")
	}
	if t.Buyer == t.Seller {
		return errors.New("transaction buyer and seller must differ")
	}
	if t.Price < 1 {
		return errors.New("transaction price must be at least 1")
	}
	if t.Price != t.Ask.Price {
		return errors.New("transaction price must equal the ask price")
	}
	if t.Ask.Price > t.Bid.Price {
		return errors.New("ask price must not exceed bid price")
	}
	if t.ExecutedAt.IsZero() {
		return errors.New("transaction executed at must be set")
	}
	return nil
}
