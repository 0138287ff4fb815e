package booking

import (
	"context"
	"sync"
)

// StateStore holds per-user conversation state. Implementations must return
// a fresh idle state for unknown users rather than an error; conversation
// state is ephemeral and carries no durability guarantee.
type StateStore interface {
	Get(ctx context.Context, chatID int64) (*State, error)
	Put(ctx context.Context, chatID int64, state *State) error
	Reset(ctx context.Context, chatID int64) error
}

// MemoryStateStore keeps conversation state in a process-local map.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[int64]State)}
}

// Get returns a copy of the user's state, or a fresh idle state.
func (s *MemoryStateStore) Get(ctx context.Context, chatID int64) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[chatID]; ok {
		return &state, nil
	}
	return NewState(), nil
}

// Put stores the user's state.
func (s *MemoryStateStore) Put(ctx context.Context, chatID int64, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = *state
	return nil
}

// Reset drops the user's state back to idle, clearing accumulated fields.
func (s *MemoryStateStore) Reset(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
	return nil
}
