package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskreactor/approval"
	"github.com/rudi77/taskreactor/event"
	"github.com/rudi77/taskreactor/llmcap"
	"github.com/rudi77/taskreactor/plan"
	"github.com/rudi77/taskreactor/planner"
	"github.com/rudi77/taskreactor/replanner"
	"github.com/rudi77/taskreactor/store/inmem"
	"github.com/rudi77/taskreactor/tool"
)

// scriptedProvider returns queued responses in call order, regardless of
// which model alias asked for them, so a test can script an entire
// planner+thought sequence as a flat list.
type scriptedProvider struct {
	calls   int
	results []llmcap.Result
	errs    []error
}

func (p *scriptedProvider) Complete(_ context.Context, _ string, _ llmcap.Request) (llmcap.Result, error) {
	i := p.calls
	p.calls++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	var res llmcap.Result
	if i < len(p.results) {
		res = p.results[i]
	}
	return res, err
}

// noopTool is a fixture tool whose approval requirement and Execute error
// are set per test.
type noopTool struct {
	name     string
	approval bool
	execErr  error
}

func (t *noopTool) Name() string                        { return t.name }
func (t *noopTool) Description() string                  { return "test fixture tool" }
func (t *noopTool) Parameters() json.RawMessage          { return json.RawMessage(`{}`) }
func (t *noopTool) RequiresApproval() bool               { return t.approval }
func (t *noopTool) ApprovalRiskLevel() tool.RiskLevel    { return tool.RiskHigh }
func (t *noopTool) Execute(context.Context, map[string]any) (tool.Result, error) {
	if t.execErr != nil {
		return tool.Result{}, t.execErr
	}
	return tool.Result{Success: true, Data: map[string]any{"result": "done"}}, nil
}

func newTestScheduler(t *testing.T, fp *scriptedProvider, tools ...tool.Tool) *Scheduler {
	t.Helper()
	cap := llmcap.New(fp, llmcap.AliasTable{llmcap.AliasFast: "fast-model", llmcap.AliasMain: "main-model"})
	registry := tool.NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}
	return New(
		planner.New(cap),
		replanner.New(cap, registry),
		registry,
		cap,
		approval.New(),
		inmem.NewSessionStore(),
		inmem.NewStateStore(),
		inmem.NewPlanStore(),
		inmem.NewRunStore(),
		inmem.NewRunLogStore(),
		nil, nil,
	)
}

const planJSON = `{"items":[{"position":1,"description":"do the thing","acceptance_criteria":"it is done"}]}`

func TestExecuteHappyPathToolCallThenFinish(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: planJSON},
		{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"tool_call","tool":"noop_tool","tool_input":{}}}`},
		{Content: `{"step_ref":1,"rationale":"r2","expected_outcome":"e2","action":{"type":"finish_step"}}`},
	}}
	s := newTestScheduler(t, fp, &noopTool{name: "noop_tool"})

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, outcome.Status)
	require.Len(t, outcome.ExecutionHistory, 1)
	require.True(t, outcome.ExecutionHistory[0].Success)
}

func TestExecuteCompleteActionSkipsRemainingSteps(t *testing.T) {
	twoStepPlan := `{"items":[{"position":1,"description":"a"},{"position":2,"description":"b","dependencies":[1]}]}`
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: twoStepPlan},
		{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"complete","summary":"all done"}}`},
	}}
	s := newTestScheduler(t, fp)

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, outcome.Status)
	require.Equal(t, "all done", outcome.FinalMessage)
}

func TestExecuteAskUserSuspendsAndResumeContinues(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: planJSON},
		{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"ask_user","question":"what path?","answer_key":"path"}}`},
		{Content: `{"step_ref":1,"rationale":"r2","expected_outcome":"e2","action":{"type":"finish_step"}}`},
	}}
	s := newTestScheduler(t, fp)

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusPaused, outcome.Status)
	require.NotNil(t, outcome.PendingQuestion)
	require.Equal(t, "question", outcome.PendingQuestion.Kind)

	resumed, err := s.ResumeWithAnswer(context.Background(), "sess1", "/tmp/x", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, resumed.Status)
}

func TestExecuteApprovalRequiredSuspendsAndApproveResumes(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: planJSON},
		{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"tool_call","tool":"risky_tool","tool_input":{}}}`},
		{Content: `{"step_ref":1,"rationale":"r2","expected_outcome":"e2","action":{"type":"finish_step"}}`},
	}}
	s := newTestScheduler(t, fp, &noopTool{name: "risky_tool", approval: true})

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusPaused, outcome.Status)
	require.Equal(t, "approval", outcome.PendingQuestion.Kind)

	resumed, err := s.ResumeWithApproval(context.Background(), "sess1", true, false, &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, resumed.Status)
	require.Len(t, resumed.ExecutionHistory, 1, "approving a one-time decision must execute the pending tool call directly")
	require.True(t, resumed.ExecutionHistory[0].Success)
	require.Equal(t, "risky_tool", resumed.ExecutionHistory[0].Tool)
}

func TestExecuteApprovalDeniedRecordsFailureAndContinues(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: planJSON},
		{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"tool_call","tool":"risky_tool","tool_input":{}}}`},
		{Content: `{"step_ref":1,"rationale":"r2","expected_outcome":"e2","action":{"type":"finish_step"}}`},
	}}
	s := newTestScheduler(t, fp, &noopTool{name: "risky_tool", approval: true})

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusPaused, outcome.Status)

	resumed, err := s.ResumeWithApproval(context.Background(), "sess1", false, false, &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, resumed.Status)
	require.Len(t, resumed.ExecutionHistory, 1)
	require.False(t, resumed.ExecutionHistory[0].Success)
}

func TestExecuteMaxIterationsGuardStopsRunawayLoop(t *testing.T) {
	results := make([]llmcap.Result, 0, MaxIterations+1)
	results = append(results, llmcap.Result{Content: planJSON})
	for i := 0; i < MaxIterations; i++ {
		results = append(results, llmcap.Result{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"tool_call","tool":"noop_tool","tool_input":{}}}`})
	}
	fp := &scriptedProvider{results: results}
	s := newTestScheduler(t, fp, &noopTool{name: "noop_tool"})

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, outcome.Status)
	require.Equal(t, "max_iterations", outcome.FailureReason)
}

func TestExecuteUnknownToolRecordsFailedAttemptWithoutAborting(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: planJSON},
		{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"tool_call","tool":"does_not_exist","tool_input":{}}}`},
		{Content: `{"step_ref":1,"rationale":"r2","expected_outcome":"e2","action":{"type":"finish_step"}}`},
	}}
	s := newTestScheduler(t, fp)

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, outcome.Status)
	require.False(t, outcome.ExecutionHistory[0].Success)
}

func TestExecuteInvalidThoughtJSONRecordsFailureAndContinues(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: planJSON},
		{Content: `not valid json`},
		{Content: `{"step_ref":1,"rationale":"r2","expected_outcome":"e2","action":{"type":"finish_step"}}`},
	}}
	s := newTestScheduler(t, fp)

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, outcome.Status)
	require.False(t, outcome.ExecutionHistory[0].Success)
	require.Equal(t, "think", outcome.ExecutionHistory[0].Tool)
}

func TestExecuteUnknownActionTypeRecordsFailureAndContinues(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: planJSON},
		{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"levitate"}}`},
		{Content: `{"step_ref":1,"rationale":"r2","expected_outcome":"e2","action":{"type":"finish_step"}}`},
	}}
	s := newTestScheduler(t, fp)

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, outcome.Status)
	require.False(t, outcome.ExecutionHistory[0].Success)
	require.Equal(t, "dispatch", outcome.ExecutionHistory[0].Tool)
}

func TestExecuteReplanSkipsStepWhenStrategyIsSkip(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{
		{Content: planJSON},
		{Content: `{"step_ref":1,"rationale":"r","expected_outcome":"e","action":{"type":"replan"}}`},
		{Content: `{"strategy_type":"skip","rationale":"give up","confidence":0.9}`},
	}}
	s := newTestScheduler(t, fp)

	outcome, err := s.Execute(context.Background(), "sess1", "do it", &event.Collector{})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, outcome.Status)
}

func TestLoadOrCreatePlanReusesBoundIncompletePlan(t *testing.T) {
	fp := &scriptedProvider{results: []llmcap.Result{{Content: planJSON}}}
	s := newTestScheduler(t, fp)
	ctx := context.Background()

	state, err := s.States.Load(ctx, "sess1")
	require.NoError(t, err)

	p1, err := s.loadOrCreatePlan(ctx, state, "mission")
	require.NoError(t, err)
	require.Equal(t, 1, fp.calls)

	p2, err := s.loadOrCreatePlan(ctx, state, "mission")
	require.NoError(t, err)
	require.Equal(t, p1.ID, p2.ID)
	require.Equal(t, 1, fp.calls, "second call should reuse the bound plan without re-planning")
}

func TestPlanStatusCompleteDoesNotBlockNextActionable(t *testing.T) {
	p := &plan.Plan{Steps: []*plan.Step{
		{Position: 1, Status: plan.StatusCompleted},
		{Position: 2, Status: plan.StatusPending, Dependencies: []int{1}},
	}}
	require.Equal(t, 2, p.NextActionable().Position)
}
