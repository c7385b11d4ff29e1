package inmem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rudi77/taskreactor/event"
	"github.com/rudi77/taskreactor/runlog"
)

// RunLogStore is an in-memory implementation of runlog.Store. Entries are
// kept in per-run slices with a 1-based sequence number used as the cursor.
type RunLogStore struct {
	mu      sync.Mutex
	nextSeq map[string]int64
	entries map[string][]runlog.Entry
}

// NewRunLogStore returns an empty RunLogStore.
func NewRunLogStore() *RunLogStore {
	return &RunLogStore{nextSeq: map[string]int64{}, entries: map[string][]runlog.Entry{}}
}

func (s *RunLogStore) Append(_ context.Context, runID, sessionID string, e event.Event) error {
	if runID == "" {
		return fmt.Errorf("inmem: run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq[runID] + 1
	s.nextSeq[runID] = seq
	s.entries[runID] = append(s.entries[runID], runlog.Entry{
		ID: strconv.FormatInt(seq, 10), RunID: runID, SessionID: sessionID, Event: e, Timestamp: e.Timestamp,
	})
	return nil
}

func (s *RunLogStore) List(_ context.Context, runID string, cursor string, limit int) (runlog.Page, error) {
	if limit <= 0 {
		return runlog.Page{}, fmt.Errorf("inmem: limit must be > 0")
	}
	var after int64
	if cursor != "" {
		id, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return runlog.Page{}, fmt.Errorf("inmem: invalid cursor %q: %w", cursor, err)
		}
		after = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.entries[runID]
	if len(all) == 0 {
		return runlog.Page{}, nil
	}
	start := 0
	if after > 0 {
		start = int(after)
		if start >= len(all) {
			return runlog.Page{}, nil
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := append([]runlog.Entry(nil), all[start:end]...)
	var next string
	if end < len(all) {
		next = page[len(page)-1].ID
	}
	return runlog.Page{Entries: page, NextCursor: next}, nil
}
