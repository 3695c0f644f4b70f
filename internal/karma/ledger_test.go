package karma

import (
	"errors"
	"testing"

	"github.com/lunchroulette/lunchroulette/internal/models"
)

const testDailyCap = 5

func TestBalanceDefaultsToZero(t *testing.T) {
	l := NewLedger(testDailyCap)
	if got := l.Balance("alice"); got != 0 {
		t.Errorf("Balance of unset user = %d, want 0", got)
	}
}

func TestCreditAndDebit(t *testing.T) {
	l := NewLedger(testDailyCap)

	if err := l.Credit("alice", 10); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := l.Debit("alice", 3); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if got := l.Balance("alice"); got != 7 {
		t.Errorf("Balance = %d, want 7", got)
	}
}

func TestDebitMayDriveBalanceNegative(t *testing.T) {
	l := NewLedger(testDailyCap)
	l.SetBalance("alice", 2)

	if err := l.Debit("alice", 5); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if got := l.Balance("alice"); got != -3 {
		t.Errorf("Balance = %d, want -3", got)
	}
}

func TestCreditDebitRejectNonPositiveAmounts(t *testing.T) {
	l := NewLedger(testDailyCap)

	for _, amount := range []int{0, -1} {
		if err := l.Credit("alice", amount); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Credit(%d) error = %v, want ErrValidation", amount, err)
		}
		if err := l.Debit("alice", amount); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Debit(%d) error = %v, want ErrValidation", amount, err)
		}
	}
}

func TestTransferMovesKarmaAndConservesTotal(t *testing.T) {
	l := NewLedger(testDailyCap)
	l.SetBalance("alice", 10)
	l.SetBalance("bob", 1)

	if !l.Transfer("alice", "bob", 3, true) {
		t.Fatal("Transfer declined, want success")
	}
	if got := l.Balance("alice"); got != 7 {
		t.Errorf("giver balance = %d, want 7", got)
	}
	if got := l.Balance("bob"); got != 4 {
		t.Errorf("receiver balance = %d, want 4", got)
	}
	if total := l.Balance("alice") + l.Balance("bob"); total != 11 {
		t.Errorf("total karma = %d, want 11", total)
	}
}

func TestTransferDeclines(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Ledger)
		giver   models.UserID
		amount  int
		enforce bool
		want    bool
	}{
		{
			name:    "insufficient balance",
			setup:   func(l *Ledger) { l.SetBalance("alice", 2) },
			giver:   "alice",
			amount:  3,
			enforce: true,
			want:    false,
		},
		{
			name: "daily cap already reached",
			setup: func(l *Ledger) {
				l.SetBalance("alice", 100)
				l.Transfer("alice", "bob", testDailyCap, true)
			},
			giver:   "alice",
			amount:  1,
			enforce: true,
			want:    false,
		},
		{
			name: "amount would exceed daily cap",
			setup: func(l *Ledger) {
				l.SetBalance("alice", 100)
				l.Transfer("alice", "bob", 3, true)
			},
			giver:   "alice",
			amount:  3,
			enforce: true,
			want:    false,
		},
		{
			name:    "non-positive amount",
			setup:   func(l *Ledger) { l.SetBalance("alice", 100) },
			giver:   "alice",
			amount:  0,
			enforce: false,
			want:    false,
		},
		{
			name:    "uncapped transfer ignores balance",
			setup:   func(l *Ledger) { l.SetBalance("alice", 1) },
			giver:   "alice",
			amount:  10,
			enforce: false,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(testDailyCap)
			tt.setup(l)
			before := l.Balance(tt.giver) + l.Balance("carol")
			got := l.Transfer(tt.giver, "carol", tt.amount, tt.enforce)
			if got != tt.want {
				t.Errorf("Transfer = %v, want %v", got, tt.want)
			}
			if after := l.Balance(tt.giver) + l.Balance("carol"); after != before {
				t.Errorf("declined or settled transfer changed pair total: %d -> %d", before, after)
			}
		})
	}
}

func TestDeclinedTransferLeavesStateUnchanged(t *testing.T) {
	l := NewLedger(testDailyCap)
	l.SetBalance("alice", 2)

	if l.Transfer("alice", "bob", 3, true) {
		t.Fatal("Transfer succeeded, want decline")
	}
	if got := l.Balance("alice"); got != 2 {
		t.Errorf("giver balance = %d, want 2", got)
	}
	if got := l.Balance("bob"); got != 0 {
		t.Errorf("receiver balance = %d, want 0", got)
	}
	if got := l.DailyTransferred("alice"); got != 0 {
		t.Errorf("DailyTransferred = %d, want 0", got)
	}
}

func TestUncappedTransferDoesNotCountAgainstDailyLimit(t *testing.T) {
	l := NewLedger(testDailyCap)
	l.SetBalance("alice", 100)

	if !l.Transfer("alice", "bob", 50, false) {
		t.Fatal("uncapped transfer declined")
	}
	if got := l.DailyTransferred("alice"); got != 0 {
		t.Errorf("DailyTransferred after uncapped transfer = %d, want 0", got)
	}
	// The whole capped allowance must still be available.
	if !l.Transfer("alice", "bob", testDailyCap, true) {
		t.Error("capped transfer declined after uncapped transfer, want success")
	}
}

func TestResetDailyCounters(t *testing.T) {
	l := NewLedger(testDailyCap)
	l.SetBalance("alice", 100)

	if !l.Transfer("alice", "bob", testDailyCap, true) {
		t.Fatal("Transfer declined, want success")
	}
	if l.Transfer("alice", "bob", 1, true) {
		t.Fatal("Transfer succeeded past daily cap")
	}

	l.ResetDailyCounters([]models.UserID{"alice"})
	if got := l.DailyTransferred("alice"); got != 0 {
		t.Errorf("DailyTransferred after reset = %d, want 0", got)
	}
	if !l.Transfer("alice", "bob", 1, true) {
		t.Error("Transfer declined after counter reset, want success")
	}
}

func TestWeightMap(t *testing.T) {
	tests := []struct {
		name     string
		balances map[models.UserID]int
		want     map[models.UserID]int
	}{
		{
			name:     "positive balances",
			balances: map[models.UserID]int{"alice": 10, "bob": 1},
			want:     map[models.UserID]int{"alice": 10, "bob": 1},
		},
		{
			name:     "negative balances",
			balances: map[models.UserID]int{"alice": -5, "bob": -2, "carol": 0},
			want:     map[models.UserID]int{"alice": 1, "bob": 4, "carol": 6},
		},
		{
			name:     "all tied",
			balances: map[models.UserID]int{"alice": 7, "bob": 7},
			want:     map[models.UserID]int{"alice": 1, "bob": 1},
		},
		{
			name:     "single user",
			balances: map[models.UserID]int{"alice": -100},
			want:     map[models.UserID]int{"alice": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(testDailyCap)
			users := make([]models.UserID, 0, len(tt.balances))
			for user, balance := range tt.balances {
				l.SetBalance(user, balance)
				users = append(users, user)
			}

			got := l.WeightMap(users)
			if len(got) != len(tt.want) {
				t.Fatalf("WeightMap returned %d entries, want %d", len(got), len(tt.want))
			}
			for user, weight := range tt.want {
				if got[user] != weight {
					t.Errorf("weight[%s] = %d, want %d", user, got[user], weight)
				}
				if got[user] <= 0 {
					t.Errorf("weight[%s] = %d, want positive", user, got[user])
				}
			}
		})
	}
}

func TestWeightMapEmpty(t *testing.T) {
	l := NewLedger(testDailyCap)
	if got := l.WeightMap(nil); len(got) != 0 {
		t.Errorf("WeightMap(nil) returned %d entries, want 0", len(got))
	}
}

func TestAverageKarma(t *testing.T) {
	l := NewLedger(testDailyCap)
	l.SetBalance("alice", 10)
	l.SetBalance("bob", 5)
	l.SetBalance("carol", 1)

	avg, err := l.AverageKarma([]models.UserID{"alice", "bob", "carol"})
	if err != nil {
		t.Fatalf("AverageKarma failed: %v", err)
	}
	if avg != 5 {
		t.Errorf("AverageKarma = %d, want 5", avg)
	}

	if _, err := l.AverageKarma(nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("AverageKarma(nil) error = %v, want ErrValidation", err)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	l := NewLedger(testDailyCap)
	l.SetBalance("alice", 12)
	l.SetBalance("bob", -3)
	l.Transfer("alice", "bob", 2, true)

	balances, daily := l.Snapshot()

	restored := NewLedger(testDailyCap)
	restored.Restore(balances, daily)

	if got := restored.Balance("alice"); got != 10 {
		t.Errorf("restored alice balance = %d, want 10", got)
	}
	if got := restored.Balance("bob"); got != -1 {
		t.Errorf("restored bob balance = %d, want -1", got)
	}
	if got := restored.DailyTransferred("alice"); got != 2 {
		t.Errorf("restored DailyTransferred = %d, want 2", got)
	}
}
