package planmutate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskreactor/plan"
)

func linearPlan() *plan.Plan {
	return &plan.Plan{
		ID: "p1",
		Steps: []*plan.Step{
			{Position: 1, Description: "one", Status: plan.StatusPending, MaxAttempts: plan.DefaultMaxAttempts},
			{Position: 2, Description: "two", Status: plan.StatusPending, Dependencies: []int{1}, MaxAttempts: plan.DefaultMaxAttempts},
			{Position: 3, Description: "three", Status: plan.StatusPending, Dependencies: []int{2}, MaxAttempts: plan.DefaultMaxAttempts},
		},
	}
}

func TestModifyStepUpdatesFieldsAndBumpsReplanCount(t *testing.T) {
	m := New()
	p := linearPlan()

	out, err := m.ModifyStep(p, ModifyStepRequest{Position: 2, Description: "two revised"})
	require.NoError(t, err)

	step := out.StepByPosition(2)
	require.Equal(t, "two revised", step.Description)
	require.Equal(t, 1, step.ReplanCount)
	require.Equal(t, plan.StatusPending, step.Status)

	// original untouched
	require.Equal(t, "two", p.StepByPosition(2).Description)
}

func TestModifyStepRejectsUnknownPosition(t *testing.T) {
	m := New()
	p := linearPlan()

	_, err := m.ModifyStep(p, ModifyStepRequest{Position: 99, Description: "x"})
	require.Error(t, err)
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, ErrUnknownStep, merr.Kind)
}

func TestModifyStepRejectsOverReplanCap(t *testing.T) {
	m := New()
	p := linearPlan()
	p.StepByPosition(2).ReplanCount = plan.MaxReplanCount

	_, err := m.ModifyStep(p, ModifyStepRequest{Position: 2, Description: "x"})
	require.Error(t, err)
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, ErrReplanCapExceeded, merr.Kind)
}

func TestDecomposeStepRejectsEmptySubtasks(t *testing.T) {
	m := New()
	p := linearPlan()

	_, err := m.DecomposeStep(p, DecomposeStepRequest{Position: 2})
	require.Error(t, err)
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, ErrEmptySubtasks, merr.Kind)
}

func TestDecomposeStepSplitsAndRenumbers(t *testing.T) {
	m := New()
	p := linearPlan()

	out, err := m.DecomposeStep(p, DecomposeStepRequest{
		Position: 2,
		Subtasks: []Subtask{
			{Description: "two-a"},
			{Description: "two-b"},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Steps, 4)

	// step 1, then two-a, two-b, then the renumbered original step 3
	require.Equal(t, "one", out.Steps[0].Description)
	require.Equal(t, "two-a", out.Steps[1].Description)
	require.Equal(t, "two-b", out.Steps[2].Description)
	require.Equal(t, "three", out.Steps[3].Description)

	// two-a inherits the parent's dependency on step 1
	require.Equal(t, []int{1}, out.Steps[1].Dependencies)
	// two-b chains onto two-a by default
	require.Equal(t, []int{2}, out.Steps[2].Dependencies)
	// the retargeted original step 3 now depends on the last subtask (two-b)
	require.Equal(t, []int{3}, out.Steps[3].Dependencies)
}

func TestDecomposeStepRejectsOverReplanCap(t *testing.T) {
	m := New()
	p := linearPlan()
	p.StepByPosition(2).ReplanCount = plan.MaxReplanCount

	_, err := m.DecomposeStep(p, DecomposeStepRequest{
		Position: 2,
		Subtasks: []Subtask{{Description: "x"}},
	})
	require.Error(t, err)
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, ErrReplanCapExceeded, merr.Kind)
}

func TestReplaceStepPreservesPositionAndDependencies(t *testing.T) {
	m := New()
	p := linearPlan()

	out, err := m.ReplaceStep(p, ReplaceStepRequest{Position: 2, Description: "two replaced", ChosenTool: "file_read"})
	require.NoError(t, err)

	step := out.StepByPosition(2)
	require.Equal(t, "two replaced", step.Description)
	require.Equal(t, "file_read", step.ChosenTool)
	require.Equal(t, []int{1}, step.Dependencies)
}

func TestValidateRejectsSelfDependency(t *testing.T) {
	p := linearPlan()
	p.Steps[0].Dependencies = []int{1}

	err := validate(p)
	require.Error(t, err)
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, ErrSelfDependency, merr.Kind)
}

func TestDetectCycleFindsCycle(t *testing.T) {
	p := linearPlan()
	// introduce a cycle: 1 -> 3, 3 -> 2 -> 1
	p.Steps[0].Dependencies = []int{3}

	err := detectCycle(p)
	require.Error(t, err)
	var merr *MutationError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, ErrCycle, merr.Kind)
}
