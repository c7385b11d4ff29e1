package inmem

import (
	"context"
	"sync"

	"github.com/rudi77/taskreactor/session"
)

// StateStore is an in-memory implementation of session.StateStore with
// optimistic-concurrency versioning and a per-session lock.
type StateStore struct {
	mu     sync.Mutex
	states map[string]*session.State
	locks  *keyedLock
}

// NewStateStore returns an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{states: map[string]*session.State{}, locks: newKeyedLock()}
}

func (s *StateStore) Load(_ context.Context, sessionID string) (*session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		return session.NewState(sessionID), nil
	}
	return st.Clone(), nil
}

func (s *StateStore) Save(_ context.Context, state *session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.states[state.SessionID]
	if ok && existing.Version != state.Version {
		return session.ErrVersionConflict
	}
	cp := state.Clone()
	cp.Version++
	s.states[cp.SessionID] = cp
	return nil
}

func (s *StateStore) Lock(ctx context.Context, id string) (func(), error) {
	return s.locks.acquire(ctx, id)
}

func (s *StateStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}
