package models

import (
	"errors"
	"testing"
	"time"
)

func validOrder(side Side) Order {
	return Order{
		ID:        "order-1",
		User:      "alice",
		Side:      side,
		Price:     3,
		CreatedAt: time.Now(),
	}
}

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Order)
		wantErr bool
	}{
		{
			name:    "valid ask",
			mutate:  func(o *Order) {},
			wantErr: false,
		},
		{
			name:    "empty ID",
			mutate:  func(o *Order) { o.ID = "" },
			wantErr: true,
		},
		{
			name:    "empty user",
			mutate:  func(o *Order) { o.User = "" },
			wantErr: true,
		},
		{
			name:    "unknown side",
			mutate:  func(o *Order) { o.Side = "short" },
			wantErr: true,
		},
		{
			name:    "zero price",
			mutate:  func(o *Order) { o.Price = 0 },
			wantErr: true,
		},
		{
			name:    "negative price",
			mutate:  func(o *Order) { o.Price = -2 },
			wantErr: true,
		},
		{
			name:    "zero created at",
			mutate:  func(o *Order) { o.CreatedAt = time.Time{} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder(SideAsk)
			tt.mutate(&order)
			err := order.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Order.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	ask := validOrder(SideAsk)
	bid := validOrder(SideBid)
	bid.ID = "order-2"
	bid.User = "bob"
	bid.Price = 4

	valid := Transaction{
		Buyer:      "bob",
		Seller:     "alice",
		Price:      ask.Price,
		Ask:        ask,
		Bid:        bid,
		ExecutedAt: time.Now(),
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{
			name:    "valid transaction",
			mutate:  func(tx *Transaction) {},
			wantErr: false,
		},
		{
			name:    "empty buyer",
			mutate:  func(tx *Transaction) { tx.Buyer = "" },
			wantErr: true,
		},
		{
			name:    "buyer equals seller",
			mutate:  func(tx *Transaction) { tx.Buyer = "alice" },
			wantErr: true,
		},
		{
			name:    "price differs from ask",
			mutate:  func(tx *Transaction) { tx.Price = tx.Ask.Price + 1 },
			wantErr: true,
		},
		{
			name: "ask above bid",
			mutate: func(tx *Transaction) {
				tx.Ask.Price = 9
				tx.Price = 9
			},
			wantErr: true,
		},
		{
			name:    "zero executed at",
			mutate:  func(tx *Transaction) { tx.ExecutedAt = time.Time{} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Transaction.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSideValid(t *testing.T) {
	if !SideAsk.Valid() || !SideBid.Valid() {
		t.Error("expected ask and bid to be valid sides")
	}
	if Side("hold").Valid() {
		t.Error("expected unknown side to be invalid")
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrValidation,
		ErrCapacityExceeded,
		ErrInsufficientBalance,
		ErrDailyLimitExceeded,
		ErrDuplicateOrder,
		ErrAlreadyAssigned,
		ErrNotEligible,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %d matches sentinel %d", i, j)
			}
		}
	}
}
