package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rudi77/taskreactor/session"
)

// StateStore persists each session's State as its own JSON file under Dir,
// with optimistic-concurrency versioning enforced on Save, and an
// in-process per-session lock (sufficient for a single-process deployment;
// store/redisstore provides a cross-process equivalent).
type StateStore struct {
	Dir   string
	mu    sync.Mutex
	locks *keyedLock
}

// NewStateStore returns a StateStore rooted at dir, creating it if
// necessary.
func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &StateStore{Dir: dir, locks: newKeyedLock()}, nil
}

func (s *StateStore) path(sessionID string) string {
	return filepath.Join(s.Dir, sessionID+".state.json")
}

func (s *StateStore) Load(_ context.Context, sessionID string) (*session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return session.NewState(sessionID), nil
		}
		return nil, err
	}
	var st session.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *StateStore) Save(_ context.Context, state *session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.path(state.SessionID)
	if data, err := os.ReadFile(path); err == nil {
		var existing session.State
		if err := json.Unmarshal(data, &existing); err == nil && existing.Version != state.Version {
			return session.ErrVersionConflict
		}
	}
	cp := state.Clone()
	cp.Version++
	return writeAtomic(path, cp)
}

func (s *StateStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	return s.locks.acquire(ctx, sessionID)
}

func (s *StateStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
