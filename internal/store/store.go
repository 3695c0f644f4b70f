// Package store persists the engine state as a JSON snapshot file.
//
// Writes are atomic: the snapshot is written to a temporary file and renamed
// over the previous one, so a crash mid-write never corrupts the last good
// state. A missing file on load is not an error; the engine starts fresh.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lunchroulette/lunchroulette/internal/models"
)

const stateVersion = "1"

// State is the full persisted engine state: ledger balances and daily
// counters, the roster sets and wagers, the open order book, settled
// transactions, and the emission record.
type State struct {
	Version string    `json:"version"`
	SavedAt time.Time `json:"saved_at"`

	Balances         map[models.UserID]int `json:"balances"`
	DailyTransferred map[models.UserID]int `json:"daily_transferred"`

	Considered []models.UserID       `json:"considered"`
	OptedIn    []models.UserID       `json:"opted_in"`
	Won        []models.UserID       `json:"won"`
	Wagers     map[models.UserID]int `json:"wagers"`
	Assigned   bool                  `json:"assigned"`

	Orders       []models.Order       `json:"orders"`
	Transactions []models.Transaction `json:"transactions"`

	LastEmission time.Time `json:"last_emission"`
}

// Store reads and writes engine snapshots at a fixed path.
type Store struct {
	mu       sync.Mutex
	filePath string
	filePerm os.FileMode
	dirPerm  os.FileMode
}

// New creates a store persisting to filePath. If filePath is empty an
// OS-appropriate tmp location is used.
func New(filePath string) *Store {
	if filePath == "" {
		filePath = filepath.Join(os.TempDir(), "lunchroulette", "state.json")
	}
	return &Store{
		filePath: filePath,
		filePerm: 0o600,
		dirPerm:  0o700,
	}
}

// Save writes the state atomically.
func (s *Store) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.Version = stateVersion
	state.SavedAt = time.Now()

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, s.filePerm); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempPath, s.filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Load reads the last saved state. Returns (nil, nil) when no snapshot
// exists yet. Stale temp files from interrupted saves are cleaned up.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempPath := s.filePath + ".tmp"
	if _, err := os.Stat(tempPath); err == nil {
		_ = os.Remove(tempPath)
	}

	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return nil, nil
	}

	jsonData, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	if state.Balances == nil {
		state.Balances = make(map[models.UserID]int)
	}
	if state.DailyTransferred == nil {
		state.DailyTransferred = make(map[models.UserID]int)
	}
	if state.Wagers == nil {
		state.Wagers = make(map[models.UserID]int)
	}
	return &state, nil
}
