package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPlan() *Plan {
	return &Plan{
		ID:      "plan-1",
		Mission: "do the thing",
		Steps: []*Step{
			{Position: 1, Description: "first", Status: StatusCompleted},
			{Position: 2, Description: "second", Status: StatusPending, Dependencies: []int{1}},
			{Position: 3, Description: "third", Status: StatusPending, Dependencies: []int{2}},
		},
	}
}

func TestDependenciesSatisfied(t *testing.T) {
	p := newTestPlan()
	step2 := p.StepByPosition(2)
	require.True(t, p.DependenciesSatisfied(step2))

	step3 := p.StepByPosition(3)
	require.False(t, p.DependenciesSatisfied(step3))
}

func TestNextActionable(t *testing.T) {
	p := newTestPlan()
	next := p.NextActionable()
	require.NotNil(t, next)
	require.Equal(t, 2, next.Position)

	p.StepByPosition(2).Status = StatusCompleted
	next = p.NextActionable()
	require.NotNil(t, next)
	require.Equal(t, 3, next.Position)
}

func TestNextActionableReturnsNilWhenNoneActionable(t *testing.T) {
	p := newTestPlan()
	p.StepByPosition(2).Status = StatusInProgress
	require.Nil(t, p.NextActionable())
}

func TestComplete(t *testing.T) {
	p := newTestPlan()
	require.False(t, p.Complete())

	p.StepByPosition(2).Status = StatusCompleted
	p.StepByPosition(3).Status = StatusSkipped
	require.True(t, p.Complete())
}

func TestCloneIsIndependent(t *testing.T) {
	p := newTestPlan()
	cp := p.Clone()

	cp.Steps[1].Status = StatusFailed
	cp.Steps[1].Dependencies[0] = 99

	require.Equal(t, StatusPending, p.Steps[1].Status)
	require.Equal(t, 1, p.Steps[1].Dependencies[0])
}

func TestCloneDeepCopiesToolInputAndExecutionResult(t *testing.T) {
	p := newTestPlan()
	step := p.StepByPosition(1)
	step.ToolInput = map[string]any{"path": "a.txt"}
	step.ExecutionResult = &ExecutionResult{Success: true, Data: map[string]any{"k": "v"}}

	cp := p.Clone()
	cpStep := cp.StepByPosition(1)
	cpStep.ToolInput["path"] = "b.txt"
	cpStep.ExecutionResult.Success = false

	require.Equal(t, "a.txt", step.ToolInput["path"])
	require.True(t, step.ExecutionResult.Success)
}
