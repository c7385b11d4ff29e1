package inmem

import (
	"context"
	"errors"
	"sync"

	"github.com/rudi77/taskreactor/plan"
)

// PlanStore is an in-memory implementation of plan.Store.
type PlanStore struct {
	mu    sync.RWMutex
	plans map[string]*plan.Plan
}

// NewPlanStore returns an empty PlanStore.
func NewPlanStore() *PlanStore {
	return &PlanStore{plans: map[string]*plan.Plan{}}
}

func (s *PlanStore) Create(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.plans[p.ID]; exists {
		return errors.New("inmem: plan already exists")
	}
	s.plans[p.ID] = p.Clone()
	return nil
}

func (s *PlanStore) Load(_ context.Context, id string) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, plan.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *PlanStore) Update(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.plans[p.ID]; !exists {
		return plan.ErrNotFound
	}
	s.plans[p.ID] = p.Clone()
	return nil
}

func (s *PlanStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, id)
	return nil
}

func (s *PlanStore) Path(string) string { return "" }
