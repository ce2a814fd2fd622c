// Package queue provides queue persistence functionality.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/matiaszanolli/auralis/core/internal/types"
)

// PersistentState represents the queue state that gets persisted to disk.
type PersistentState struct {
	Items        []types.TrackRef `json:"items"`
	Index        int              `json:"index"`
	Shuffle      bool             `json:"shuffle"`
	ShuffleOrder []int            `json:"shuffleOrder,omitempty"`
	Repeat       string           `json:"repeat"` // "off", "one", "all"
}

// Store handles queue persistence to disk.
type Store struct {
	mu       sync.Mutex
	filePath string
	manager  *Manager
}

// NewStore creates a new queue store.
func NewStore(configDir string, manager *Manager) *Store {
	return &Store{
		filePath: filepath.Join(configDir, "queue.json"),
		manager:  manager,
	}
}

// Load loads the queue state from disk.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read queue file: %w", err)
	}

	var state PersistentState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse queue file: %w", err)
	}

	s.manager.mu.Lock()
	defer s.manager.mu.Unlock()

	s.manager.items = state.Items
	s.manager.index = state.Index
	s.manager.shuffle = state.Shuffle
	s.manager.shuffleOrder = state.ShuffleOrder
	s.manager.repeat = types.ParseRepeatMode(state.Repeat)

	return nil
}

// Save saves the current queue state to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manager.mu.RLock()
	state := PersistentState{
		Items:        make([]types.TrackRef, len(s.manager.items)),
		Index:        s.manager.index,
		Shuffle:      s.manager.shuffle,
		ShuffleOrder: s.manager.shuffleOrder,
		Repeat:       s.manager.repeat.String(),
	}
	copy(state.Items, s.manager.items)
	s.manager.mu.RUnlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue state: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}

	return nil
}

// GetFilePath returns the path to the queue file.
func (s *Store) GetFilePath() string {
	return s.filePath
}
