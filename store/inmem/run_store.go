package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/rudi77/taskreactor/run"
)

// RunStore is an in-memory implementation of run.Store.
type RunStore struct {
	mu      sync.RWMutex
	records map[string]run.Record
}

// NewRunStore returns an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{records: map[string]run.Record{}}
}

func (s *RunStore) Upsert(_ context.Context, r run.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[r.RunID]
	if ok && r.StartedAt.IsZero() {
		r.StartedAt = existing.StartedAt
	} else if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	s.records[r.RunID] = r
	return nil
}

func (s *RunStore) Load(_ context.Context, runID string) (run.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[runID]
	if !ok {
		return run.Record{}, run.ErrNotFound
	}
	return r, nil
}

func (s *RunStore) ListBySession(_ context.Context, sessionID string) ([]run.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []run.Record
	for _, r := range s.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}
