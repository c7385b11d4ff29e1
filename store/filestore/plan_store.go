// Package filestore provides file-backed implementations of plan.Store and
// session.StateStore. Every write goes through a temp-file-then-rename
// sequence so a reader never observes a partially written file, even if the
// process is killed mid-write.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rudi77/taskreactor/plan"
)

// PlanStore persists each Plan as its own JSON file under Dir, named
// "<id>.json".
type PlanStore struct {
	Dir string
	mu  sync.Mutex
}

// NewPlanStore returns a PlanStore rooted at dir, creating it if necessary.
func NewPlanStore(dir string) (*PlanStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &PlanStore{Dir: dir}, nil
}

func (s *PlanStore) Path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

func (s *PlanStore) Create(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.Path(p.ID)
	if _, err := os.Stat(path); err == nil {
		return errors.New("filestore: plan already exists")
	}
	return writeAtomic(path, p)
}

func (s *PlanStore) Load(_ context.Context, id string) (*plan.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plan.ErrNotFound
		}
		return nil, err
	}
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlanStore) Update(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.Path(p.ID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return plan.ErrNotFound
		}
		return err
	}
	return writeAtomic(path, p)
}

func (s *PlanStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.Path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// writeAtomic marshals v to a temp file in the target directory and renames
// it into place, so concurrent readers only ever see a complete file.
// os.Rename is atomic within a single filesystem on every platform this
// engine targets.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
