// Package planmutate applies structural mutations to a plan.Plan: modifying
// a step's description or acceptance criteria, decomposing a step into a run
// of replacement steps, or replacing a step's chosen tool while leaving the
// rest of the plan untouched. Every mutation is validated against a cloned
// working copy before being committed, so a rejected mutation never leaves
// the stored plan half-applied.
package planmutate

import (
	"fmt"

	"github.com/rudi77/taskreactor/plan"
)

// ErrKind distinguishes why a mutation request was rejected, so callers
// (notably the replanner) can decide whether to retry with a corrected
// request or give up and skip the step.
type ErrKind string

const (
	ErrUnknownStep       ErrKind = "unknown_step"
	ErrReplanCapExceeded ErrKind = "replan_cap_exceeded"
	ErrEmptySubtasks     ErrKind = "empty_subtasks"
	ErrCycle             ErrKind = "dependency_cycle"
	ErrBadDependency     ErrKind = "bad_dependency"
	ErrSelfDependency    ErrKind = "self_dependency"
)

// MutationError reports a rejected mutation along with the reason.
type MutationError struct {
	Kind ErrKind
	Msg  string
}

func (e *MutationError) Error() string { return e.Msg }

func fail(kind ErrKind, format string, args ...any) *MutationError {
	return &MutationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ModifyStepRequest updates the description/acceptance criteria/tool
// selection of an existing step without changing the shape of the plan.
type ModifyStepRequest struct {
	Position           int
	Description        string
	AcceptanceCriteria string
	ChosenTool         string
	ToolInput          map[string]any
}

// Subtask describes one replacement step created by DecomposeStep. Positions
// are assigned by the mutator; DependsOnSubtasks names earlier subtasks by
// their index in the Subtasks slice (0-based), and indexes that are negative
// or do not name an earlier subtask are ignored. A subtask with an empty
// DependsOnSubtasks depends on the subtask before it. Only the first subtask
// inherits the parent step's dependencies.
type Subtask struct {
	Description        string
	AcceptanceCriteria string
	DependsOnSubtasks  []int
}

// DecomposeStepRequest replaces a single step with an ordered chain of
// subtasks that inherit the parent's dependents and dependencies.
type DecomposeStepRequest struct {
	Position int
	Subtasks []Subtask
}

// ReplaceStepRequest substitutes a new description/tool plan for an existing
// step while preserving its position and dependency edges.
type ReplaceStepRequest struct {
	Position           int
	Description        string
	AcceptanceCriteria string
	ChosenTool         string
	ToolInput          map[string]any
}

// Mutator applies validated structural changes to a Plan. It never mutates
// the caller's Plan in place on failure: callers get back either a new,
// validated Plan or an error describing why the mutation was rejected.
type Mutator struct{}

// New constructs a Mutator. Mutator holds no state; it exists as a named
// type so future versions can carry policy (e.g. an injected clock) without
// changing call sites.
func New() *Mutator { return &Mutator{} }

// ModifyStep updates an existing step's narrative fields in place and bumps
// its replan_count, rejecting the request once the step has already been
// mutated plan.MaxReplanCount times.
func (m *Mutator) ModifyStep(p *plan.Plan, req ModifyStepRequest) (*plan.Plan, error) {
	working := p.Clone()
	step := working.StepByPosition(req.Position)
	if step == nil {
		return nil, fail(ErrUnknownStep, "no step at position %d", req.Position)
	}
	if step.ReplanCount >= plan.MaxReplanCount {
		return nil, fail(ErrReplanCapExceeded, "step %d has reached max replan count (%d)", req.Position, plan.MaxReplanCount)
	}
	if req.Description != "" {
		step.Description = req.Description
	}
	if req.AcceptanceCriteria != "" {
		step.AcceptanceCriteria = req.AcceptanceCriteria
	}
	if req.ChosenTool != "" {
		step.ChosenTool = req.ChosenTool
	}
	if req.ToolInput != nil {
		step.ToolInput = req.ToolInput
	}
	step.ReplanCount++
	step.Status = plan.StatusPending
	step.Attempts = 0

	if err := validate(working); err != nil {
		return nil, err
	}
	return working, nil
}

// ReplaceStep swaps out the narrative/tool plan of a step while keeping its
// position and dependency edges untouched. Like ModifyStep it is capped by
// plan.MaxReplanCount.
func (m *Mutator) ReplaceStep(p *plan.Plan, req ReplaceStepRequest) (*plan.Plan, error) {
	working := p.Clone()
	step := working.StepByPosition(req.Position)
	if step == nil {
		return nil, fail(ErrUnknownStep, "no step at position %d", req.Position)
	}
	if step.ReplanCount >= plan.MaxReplanCount {
		return nil, fail(ErrReplanCapExceeded, "step %d has reached max replan count (%d)", req.Position, plan.MaxReplanCount)
	}
	step.Description = req.Description
	step.AcceptanceCriteria = req.AcceptanceCriteria
	step.ChosenTool = req.ChosenTool
	step.ToolInput = req.ToolInput
	step.Status = plan.StatusPending
	step.Attempts = 0
	step.ReplanCount++

	if err := validate(working); err != nil {
		return nil, err
	}
	return working, nil
}

// DecomposeStep replaces a single step with an ordered chain of subtasks.
// Subtasks inherit the parent step's dependencies as the first subtask's
// dependencies, and any step that depended on the parent is retargeted to
// depend on the last subtask. Positions downstream of the parent are
// renumbered densely to make room for the new subtasks.
func (m *Mutator) DecomposeStep(p *plan.Plan, req DecomposeStepRequest) (*plan.Plan, error) {
	if len(req.Subtasks) == 0 {
		return nil, fail(ErrEmptySubtasks, "decompose_step requires at least one subtask")
	}
	working := p.Clone()
	parent := working.StepByPosition(req.Position)
	if parent == nil {
		return nil, fail(ErrUnknownStep, "no step at position %d", req.Position)
	}
	if parent.ReplanCount >= plan.MaxReplanCount {
		return nil, fail(ErrReplanCapExceeded, "step %d has reached max replan count (%d)", req.Position, plan.MaxReplanCount)
	}

	newSteps := make([]*plan.Step, 0, len(working.Steps)+len(req.Subtasks))
	var created []*plan.Step
	for _, s := range working.Steps {
		if s.Position != parent.Position {
			newSteps = append(newSteps, s)
			continue
		}
		for i, sub := range req.Subtasks {
			ns := &plan.Step{
				// Position is a unique placeholder distinct from every real
				// position and from every other subtask's placeholder, so
				// renumber's remap (keyed by current Position) never
				// collides two subtasks onto the same step.
				Position:           -(i + 1),
				Description:        sub.Description,
				AcceptanceCriteria: sub.AcceptanceCriteria,
				Status:             plan.StatusPending,
				MaxAttempts:        plan.DefaultMaxAttempts,
				ReplanCount:        parent.ReplanCount + 1,
			}
			if i == 0 {
				ns.Dependencies = append(ns.Dependencies, parent.Dependencies...)
			}
			for _, rel := range sub.DependsOnSubtasks {
				if rel < 0 || rel >= len(created) {
					continue
				}
				ns.Dependencies = append(ns.Dependencies, created[rel].Position)
			}
			if len(sub.DependsOnSubtasks) == 0 && i > 0 {
				ns.Dependencies = append(ns.Dependencies, created[i-1].Position)
			}
			created = append(created, ns)
			newSteps = append(newSteps, ns)
		}
	}

	// Retarget any step that depended on the parent to depend on the last
	// created subtask instead.
	last := created[len(created)-1]
	for _, s := range newSteps {
		if s == last || sliceContains(created, s) {
			continue
		}
		for i, dep := range s.Dependencies {
			if dep == parent.Position {
				s.Dependencies[i] = last.Position
			}
		}
	}

	working.Steps = newSteps
	renumber(working)

	if err := validate(working); err != nil {
		return nil, err
	}
	return working, nil
}

func sliceContains(steps []*plan.Step, s *plan.Step) bool {
	for _, c := range steps {
		if c == s {
			return true
		}
	}
	return false
}

// renumber assigns dense 1-based positions in the plan's current order and
// rewrites every Dependencies list to follow the remapped positions.
func renumber(p *plan.Plan) {
	remap := make(map[int]int, len(p.Steps))
	for i, s := range p.Steps {
		remap[s.Position] = i + 1
	}
	for _, s := range p.Steps {
		s.Position = remap[s.Position]
		for i, dep := range s.Dependencies {
			s.Dependencies[i] = remap[dep]
		}
	}
}

// validate checks the structural invariants every stored plan must satisfy:
// dense unique positions, dependencies that reference existing non-self
// steps, and an acyclic dependency graph.
func validate(p *plan.Plan) error {
	seen := make(map[int]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.Position != i+1 {
			return fail(ErrBadDependency, "positions must be dense and 1-based, got %d at index %d", s.Position, i)
		}
		if seen[s.Position] {
			return fail(ErrBadDependency, "duplicate position %d", s.Position)
		}
		seen[s.Position] = true
	}
	for _, s := range p.Steps {
		for _, dep := range s.Dependencies {
			if dep == s.Position {
				return fail(ErrSelfDependency, "step %d depends on itself", s.Position)
			}
			if !seen[dep] {
				return fail(ErrBadDependency, "step %d depends on non-existent step %d", s.Position, dep)
			}
		}
	}
	return detectCycle(p)
}

// detectCycle runs a three-color DFS over the dependency graph (white =
// unvisited, gray = on the current recursion path, black = finished) and
// reports the first cycle it finds.
func detectCycle(p *plan.Plan) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(p.Steps))
	byPos := make(map[int]*plan.Step, len(p.Steps))
	for _, s := range p.Steps {
		byPos[s.Position] = s
	}

	var visit func(pos int) error
	visit = func(pos int) error {
		color[pos] = gray
		s := byPos[pos]
		for _, dep := range s.Dependencies {
			switch color[dep] {
			case gray:
				return fail(ErrCycle, "dependency cycle detected at step %d", dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[pos] = black
		return nil
	}

	for _, s := range p.Steps {
		if color[s.Position] == white {
			if err := visit(s.Position); err != nil {
				return err
			}
		}
	}
	return nil
}
