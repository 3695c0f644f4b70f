// Package emitter implements the periodic karma redistribution job: karma
// accumulated by a pool holder is recycled to eligible users under a per-user
// cap, in repeated equal shares so leftover karma flows to whoever is still
// below the cap.
package emitter

import (
	"sync"
	"time"

	"github.com/lunchroulette/lunchroulette/internal/karma"
	"github.com/lunchroulette/lunchroulette/internal/models"
)

// Emitter redistributes pool karma, gated by a minimum interval between runs.
type Emitter struct {
	mu           sync.Mutex
	ledger       *karma.Ledger
	minInterval  time.Duration
	lastEmission time.Time

	now func() time.Time
}

// New creates an emitter over the given ledger. minInterval is the minimum
// time between emissions.
func New(ledger *karma.Ledger, minInterval time.Duration) *Emitter {
	return &Emitter{
		ledger:      ledger,
		minInterval: minInterval,
		now:         time.Now,
	}
}

// ShouldEmit reports whether the minimum interval since the last emission has
// elapsed. An emitter that has never emitted is always due.
func (e *Emitter) ShouldEmit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.lastEmission.IsZero() {
		return true
	}
	return e.now().Sub(e.lastEmission) >= e.minInterval
}

// Emit distributes the pool holder's balance among the eligible users whose
// balance is below cap, in integer shares, looping until the pool is drained,
// no user remains below the cap, or the share rounds to zero. Users that
// reach the cap drop out of later passes so the leftover flows to the rest.
// Transfers are uncapped; the daily gift limit does not apply to emissions.
//
// Returns the total karma emitted. The emission date is recorded only when
// something was actually emitted.
func (e *Emitter) Emit(pool models.UserID, eligible []models.UserID, limit int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	remaining := e.belowCap(eligible, limit)

	for len(remaining) > 0 {
		poolBalance := e.ledger.Balance(pool)
		if poolBalance <= 0 {
			break
		}
		share := poolBalance / len(remaining)
		if share == 0 {
			break
		}

		for _, user := range remaining {
			amount := share
			if headroom := limit - e.ledger.Balance(user); amount > headroom {
				amount = headroom
			}
			if amount <= 0 {
				continue
			}
			e.ledger.Transfer(pool, user, amount, false)
			total += amount
		}

		remaining = e.belowCap(remaining, limit)
	}

	if total > 0 {
		e.lastEmission = e.now()
	}
	return total
}

func (e *Emitter) belowCap(users []models.UserID, limit int) []models.UserID {
	var below []models.UserID
	for _, user := range users {
		if e.ledger.Balance(user) < limit {
			below = append(below, user)
		}
	}
	return below
}

// LastEmission returns when the emitter last distributed karma; zero if never.
func (e *Emitter) LastEmission() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEmission
}

// SetLastEmission restores the emission date from persisted state.
func (e *Emitter) SetLastEmission(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastEmission = t
}
