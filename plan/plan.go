// Package plan defines the Plan/Step data model: an ordered list of steps
// addressed by dense 1-based position, their dependency graph, and the
// invariants a valid plan must satisfy at rest.
package plan

import (
	"context"
	"errors"
	"time"

	"github.com/rudi77/taskreactor/toolerrors"
)

// Status is the lifecycle state of a Step.
type Status string

const (
	// StatusPending indicates the step has not executed (or is eligible to
	// execute again after a retry/replan).
	StatusPending Status = "PENDING"
	// StatusInProgress is transient: it is never durably observed as the
	// terminal state of a step.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted indicates the step's acceptance criteria were satisfied.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates attempts were exhausted without success.
	StatusFailed Status = "FAILED"
	// StatusSkipped indicates the step was abandoned (replan skip, a rejected
	// replan, or mission completed early).
	StatusSkipped Status = "SKIPPED"
)

// DefaultMaxAttempts is the default per-step retry cap.
const DefaultMaxAttempts = 3

// MaxReplanCount is the hard cap on structural mutations applied to a single
// step across its lifetime.
const MaxReplanCount = 2

// ExecutionAttempt summarizes a single tool invocation against a step.
type ExecutionAttempt struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Attempt int    `json:"attempt"`
}

// ExecutionResult is the last tool result object recorded against a step.
type ExecutionResult struct {
	Success bool             `json:"success"`
	Error   string           `json:"error,omitempty"`
	Type    toolerrors.Class `json:"type,omitempty"`
	Hints   []string         `json:"hints,omitempty"`
	Data    map[string]any   `json:"data,omitempty"`
}

// Step is one actionable unit of a Plan.
type Step struct {
	Position            int               `json:"position"`
	Description         string            `json:"description"`
	AcceptanceCriteria  string            `json:"acceptance_criteria"`
	Dependencies        []int             `json:"dependencies"`
	ChosenTool          string            `json:"chosen_tool,omitempty"`
	ToolInput           map[string]any    `json:"tool_input,omitempty"`
	Status              Status            `json:"status"`
	Attempts            int               `json:"attempts"`
	MaxAttempts         int               `json:"max_attempts"`
	ExecutionResult     *ExecutionResult  `json:"execution_result,omitempty"`
	ExecutionHistory    []ExecutionAttempt `json:"execution_history,omitempty"`
	ReplanCount         int               `json:"replan_count"`
}

// Plan is an ordered set of steps that collectively satisfy a mission.
type Plan struct {
	ID             string    `json:"id"`
	Mission        string    `json:"mission"`
	Steps          []*Step   `json:"steps"`
	OpenQuestions  []string  `json:"open_questions"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StepByPosition returns the step at the given position, or nil if absent.
func (p *Plan) StepByPosition(pos int) *Step {
	for _, s := range p.Steps {
		if s.Position == pos {
			return s
		}
	}
	return nil
}

// DependenciesSatisfied reports whether every dependency of s is COMPLETED.
func (p *Plan) DependenciesSatisfied(s *Step) bool {
	for _, dep := range s.Dependencies {
		d := p.StepByPosition(dep)
		if d == nil || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Actionable reports whether s is PENDING with all dependencies COMPLETED.
func (p *Plan) Actionable(s *Step) bool {
	return s.Status == StatusPending && p.DependenciesSatisfied(s)
}

// NextActionable returns the lowest-position actionable step, or nil if none
// exists. Scanning in position order gives deterministic, reproducible
// scheduling across otherwise-tied steps.
func (p *Plan) NextActionable() *Step {
	for _, s := range p.Steps {
		if p.Actionable(s) {
			return s
		}
	}
	return nil
}

// Complete reports whether every step is COMPLETED or SKIPPED.
func (p *Plan) Complete() bool {
	for _, s := range p.Steps {
		if s.Status != StatusCompleted && s.Status != StatusSkipped {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the plan so mutators can operate on a working
// copy and only replace the stored plan after validation succeeds.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Steps = make([]*Step, len(p.Steps))
	for i, s := range p.Steps {
		sc := *s
		sc.Dependencies = append([]int(nil), s.Dependencies...)
		if s.ToolInput != nil {
			sc.ToolInput = make(map[string]any, len(s.ToolInput))
			for k, v := range s.ToolInput {
				sc.ToolInput[k] = v
			}
		}
		sc.ExecutionHistory = append([]ExecutionAttempt(nil), s.ExecutionHistory...)
		if s.ExecutionResult != nil {
			er := *s.ExecutionResult
			sc.ExecutionResult = &er
		}
		cp.Steps[i] = &sc
	}
	cp.OpenQuestions = append([]string(nil), p.OpenQuestions...)
	return &cp
}

// ErrNotFound indicates the requested plan does not exist in the store.
var ErrNotFound = errors.New("plan: not found")

// Store persists Plans keyed by ID with atomic whole-plan writes: a reader
// never observes a partially-written plan.
type Store interface {
	// Create persists a brand-new plan. Returns an error if p.ID already
	// exists.
	Create(ctx context.Context, p *Plan) error
	// Load returns the plan with the given id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Plan, error)
	// Update overwrites the stored plan for p.ID, which must already exist.
	Update(ctx context.Context, p *Plan) error
	// Delete removes the plan with the given id. Deleting a missing plan is
	// not an error.
	Delete(ctx context.Context, id string) error
	// Path returns the storage location backing id, for diagnostics. Stores
	// with no filesystem concept (e.g. an in-memory store) may return "".
	Path(id string) string
}
