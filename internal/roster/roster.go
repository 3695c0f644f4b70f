// Package roster implements the daily allocation state machine. Each user
// moves through NotConsidered → Considered → OptedIn → Won or Lost within a
// cycle; Considered membership persists across cycles while the rest is
// cleared by ResetCycle.
//
// The nesting invariant won ⊆ opted_in ⊆ considered holds after every
// mutation, and the winners set never exceeds the lottery capacity.
package roster

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/lunchroulette/lunchroulette/internal/karma"
	"github.com/lunchroulette/lunchroulette/internal/lottery"
	"github.com/lunchroulette/lunchroulette/internal/models"
)

// defaultWager is the stake used for opted-in users who never set one.
const defaultWager = 1

// Manager tracks candidates, daily opt-ins, wagers, and lottery results.
type Manager struct {
	mu       sync.RWMutex
	ledger   *karma.Ledger
	rng      *rand.Rand
	assigned bool

	considered map[models.UserID]struct{}
	optedIn    map[models.UserID]struct{}
	won        map[models.UserID]struct{}
	wagers     map[models.UserID]int
}

// NewManager creates a roster backed by the given ledger. rng drives the
// lottery tie-break sampling; pass nil to seed from the current time.
func NewManager(ledger *karma.Ledger, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Manager{
		ledger:     ledger,
		rng:        rng,
		considered: make(map[models.UserID]struct{}),
		optedIn:    make(map[models.UserID]struct{}),
		won:        make(map[models.UserID]struct{}),
		wagers:     make(map[models.UserID]int),
	}
}

// AddCandidate makes the user eligible long-term. Idempotent.
func (m *Manager) AddCandidate(user models.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.considered[user] = struct{}{}
}

// RemoveCandidate removes the user from the roster entirely, including any
// current-cycle opt-in, win, or wager, so the nesting invariant survives.
func (m *Manager) RemoveCandidate(user models.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.considered, user)
	delete(m.optedIn, user)
	delete(m.won, user)
	delete(m.wagers, user)
}

// OptIn registers the user for today's lottery. The user must already be a
// candidate, and the cycle must not have been assigned yet.
func (m *Manager) OptIn(user models.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.considered[user]; !ok {
		return fmt.Errorf("%w: %q is not a candidate", models.ErrNotEligible, user)
	}
	if m.assigned {
		return fmt.Errorf("%w: cannot opt in until the next reset", models.ErrAlreadyAssigned)
	}
	m.optedIn[user] = struct{}{}
	return nil
}

// SetWager stores the user's stake for today's lottery. The amount must be
// positive and covered by the user's current balance; karma is not debited
// here — committing to a wager costs only if the user wins.
func (m *Manager) SetWager(user models.UserID, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("%w: wager must be positive, got %d", models.ErrValidation, amount)
	}
	if _, ok := m.optedIn[user]; !ok {
		return fmt.Errorf("%w: %q has not opted in", models.ErrNotEligible, user)
	}
	if balance := m.ledger.Balance(user); amount > balance {
		return fmt.Errorf("%w: wager %d exceeds balance %d", models.ErrInsufficientBalance, amount, balance)
	}
	m.wagers[user] = amount
	return nil
}

// Wager returns the user's current stake, defaulting to 1 while opted in and
// 0 otherwise.
func (m *Manager) Wager(user models.UserID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wagerLocked(user)
}

func (m *Manager) wagerLocked(user models.UserID) int {
	if _, ok := m.optedIn[user]; !ok {
		return 0
	}
	if wager, ok := m.wagers[user]; ok {
		return wager
	}
	return defaultWager
}

// RunLottery draws up to capacity winners from the opted-in users, weighting
// the tie-break by karma. Each winner's wager is debited here, the only point
// where wager karma actually leaves an account. A second run without an
// intervening reset is rejected with ErrAlreadyAssigned.
func (m *Manager) RunLottery(capacity int) ([]models.UserID, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative, got %d", models.ErrValidation, capacity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.assigned {
		return nil, fmt.Errorf("%w: reset the cycle before drawing again", models.ErrAlreadyAssigned)
	}

	entrants := make([]models.UserID, 0, len(m.optedIn))
	wagers := make(map[models.UserID]int, len(m.optedIn))
	for user := range m.optedIn {
		entrants = append(entrants, user)
		wagers[user] = m.wagerLocked(user)
	}

	winners, err := lottery.Choose(m.rng, capacity, wagers, m.ledger.WeightMap(entrants))
	if err != nil {
		return nil, err
	}
	if len(winners) > capacity {
		return nil, fmt.Errorf("%w: %d winners for %d slots", models.ErrCapacityExceeded, len(winners), capacity)
	}

	for _, winner := range winners {
		if err := m.ledger.Debit(winner, wagers[winner]); err != nil {
			return nil, err
		}
		m.won[winner] = struct{}{}
	}
	m.assigned = true
	return winners, nil
}

// GiftTransfer moves won status from one user to another with no karma
// movement. The giver must currently hold a slot and the recipient must not.
// The recipient is pulled into the opted-in and considered sets if absent so
// the nesting invariant keeps holding.
func (m *Manager) GiftTransfer(from, to models.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.won[from]; !ok {
		return fmt.Errorf("%w: %q does not hold a slot", models.ErrNotEligible, from)
	}
	if _, ok := m.won[to]; ok {
		return fmt.Errorf("%w: %q already holds a slot", models.ErrNotEligible, to)
	}

	delete(m.won, from)
	m.considered[to] = struct{}{}
	m.optedIn[to] = struct{}{}
	m.won[to] = struct{}{}
	return nil
}

// ResetCycle opens a new cycle: opt-ins, wins, and wagers are cleared and the
// candidates' daily transfer counters are zeroed. Candidate membership is
// untouched.
func (m *Manager) ResetCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.optedIn = make(map[models.UserID]struct{})
	m.won = make(map[models.UserID]struct{})
	m.wagers = make(map[models.UserID]int)
	m.assigned = false
	m.ledger.ResetDailyCounters(sortedKeys(m.considered))
}

// Assigned reports whether the lottery already ran this cycle.
func (m *Manager) Assigned() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assigned
}

// HasWon reports whether the user currently holds a slot.
func (m *Manager) HasWon(user models.UserID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.won[user]
	return ok
}

// Considered returns the long-term candidates, sorted.
func (m *Manager) Considered() []models.UserID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.considered)
}

// OptedIn returns today's entrants, sorted.
func (m *Manager) OptedIn() []models.UserID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.optedIn)
}

// Winners returns today's slot holders, sorted.
func (m *Manager) Winners() []models.UserID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.won)
}

// Losers returns the entrants who did not win. Empty until the lottery has
// run, since nobody has lost before the draw.
func (m *Manager) Losers() []models.UserID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.assigned {
		return nil
	}
	var losers []models.UserID
	for user := range m.optedIn {
		if _, ok := m.won[user]; !ok {
			losers = append(losers, user)
		}
	}
	sort.Slice(losers, func(i, j int) bool { return losers[i] < losers[j] })
	return losers
}

// OptedOut returns the candidates who did not opt in this cycle, sorted.
func (m *Manager) OptedOut() []models.UserID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.UserID
	for user := range m.considered {
		if _, ok := m.optedIn[user]; !ok {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns the roster state for persistence.
func (m *Manager) Snapshot() (considered, optedIn, won []models.UserID, wagers map[models.UserID]int, assigned bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wagers = make(map[models.UserID]int, len(m.wagers))
	for user, wager := range m.wagers {
		wagers[user] = wager
	}
	return sortedKeys(m.considered), sortedKeys(m.optedIn), sortedKeys(m.won), wagers, m.assigned
}

// Restore replaces the roster state with a previously saved snapshot.
func (m *Manager) Restore(considered, optedIn, won []models.UserID, wagers map[models.UserID]int, assigned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.considered = toSet(considered)
	m.optedIn = toSet(optedIn)
	m.won = toSet(won)
	m.wagers = make(map[models.UserID]int, len(wagers))
	for user, wager := range wagers {
		m.wagers[user] = wager
	}
	m.assigned = assigned
}

func sortedKeys(set map[models.UserID]struct{}) []models.UserID {
	keys := make([]models.UserID, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func toSet(users []models.UserID) map[models.UserID]struct{} {
	set := make(map[models.UserID]struct{}, len(users))
	for _, user := range users {
		set[user] = struct{}{}
	}
	return set
}
