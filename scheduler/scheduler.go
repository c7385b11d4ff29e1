// Package scheduler drives the reason-act-observe loop: on each iteration
// it selects the next actionable step, asks the LLM capability for a
// Thought, and dispatches on the Thought's chosen action until the plan
// completes, fails, or suspends for human input.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rudi77/taskreactor/approval"
	"github.com/rudi77/taskreactor/event"
	"github.com/rudi77/taskreactor/llmcap"
	"github.com/rudi77/taskreactor/plan"
	"github.com/rudi77/taskreactor/planner"
	"github.com/rudi77/taskreactor/replanner"
	"github.com/rudi77/taskreactor/run"
	"github.com/rudi77/taskreactor/runlog"
	"github.com/rudi77/taskreactor/session"
	"github.com/rudi77/taskreactor/telemetry"
	"github.com/rudi77/taskreactor/tool"
)

// MaxIterations bounds the reasoning loop so a misbehaving model or a stuck
// plan cannot run forever.
const MaxIterations = 50

// Status is the terminal (or suspended) disposition of an execute call.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
	StatusFailed    Status = "failed"
)

// HistoryEntry is one flattened tool-execution attempt surfaced in Outcome.
type HistoryEntry struct {
	StepPosition int
	Tool         string
	Success      bool
	Error        string
	Attempt      int
}

// Outcome is the envelope returned when an execute call returns control to
// the caller, whether because the mission finished, failed, or suspended
// waiting for a question or approval.
type Outcome struct {
	Status           Status
	FinalMessage     string
	ExecutionHistory []HistoryEntry
	PlanID           string
	PendingQuestion  *session.PendingQuestion
	FailureReason    string
}

// Scheduler wires together the planner, replanner, tool registry, LLM
// capability, approval gate, and the durable stores into the executable
// reasoning loop.
type Scheduler struct {
	Planner   *planner.Planner
	Replanner *replanner.Replanner
	Tools     *tool.Registry
	Cap       *llmcap.Capability
	Gate      *approval.Gate

	Sessions session.Store
	States   session.StateStore
	Plans    plan.Store
	Runs     run.Store
	RunLog   runlog.Store

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// New constructs a Scheduler from its dependencies.
func New(
	p *planner.Planner,
	r *replanner.Replanner,
	tools *tool.Registry,
	cap *llmcap.Capability,
	gate *approval.Gate,
	sessions session.Store,
	states session.StateStore,
	plans plan.Store,
	runs run.Store,
	runLog runlog.Store,
	logger telemetry.Logger,
	metrics telemetry.Metrics,
) *Scheduler {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}
	return &Scheduler{
		Planner: p, Replanner: r, Tools: tools, Cap: cap, Gate: gate,
		Sessions: sessions, States: states, Plans: plans, Runs: runs, RunLog: runLog,
		Logger: logger, Metrics: metrics,
	}
}

// Execute starts a mission under sessionID, or continues the session's bound
// plan if it is not yet complete or a question is still pending, emitting
// events to sink as it goes. It returns an error wrapping session.ErrEnded
// if the session has ended.
func (s *Scheduler) Execute(ctx context.Context, sessionID, mission string, sink event.Sink) (Outcome, error) {
	now := time.Now().UTC()
	if _, err := s.Sessions.CreateSession(ctx, sessionID, now); err != nil {
		return Outcome{}, fmt.Errorf("scheduler: create session: %w", err)
	}

	release, err := s.States.Lock(ctx, sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: lock session: %w", err)
	}
	defer release()

	state, err := s.States.Load(ctx, sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: load session state: %w", err)
	}

	p, err := s.loadOrCreatePlan(ctx, state, mission)
	if err != nil {
		return Outcome{}, err
	}
	return s.runLoop(ctx, sessionID, state, p, sink)
}

// ResumeWithAnswer supplies an answer to a pending ask_user question and
// continues the loop.
func (s *Scheduler) ResumeWithAnswer(ctx context.Context, sessionID, answer string, sink event.Sink) (Outcome, error) {
	release, err := s.States.Lock(ctx, sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: lock session: %w", err)
	}
	defer release()

	state, err := s.States.Load(ctx, sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: load session state: %w", err)
	}
	if state.PendingQuestion == nil || state.PendingQuestion.Kind != "question" {
		return Outcome{}, fmt.Errorf("scheduler: no pending question for session %q", sessionID)
	}
	if state.Answers == nil {
		state.Answers = map[string]string{}
	}
	state.Answers[state.PendingQuestion.ToolName] = answer
	state.PendingQuestion = nil

	p, err := s.Plans.Load(ctx, state.BoundPlanID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: load bound plan: %w", err)
	}
	return s.runLoop(ctx, sessionID, state, p, sink)
}

// ResumeWithApproval records a human's approval decision for the tool call
// that suspended the run, then continues the loop.
func (s *Scheduler) ResumeWithApproval(ctx context.Context, sessionID string, approved, remember bool, sink event.Sink) (Outcome, error) {
	release, err := s.States.Lock(ctx, sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: lock session: %w", err)
	}
	defer release()

	state, err := s.States.Load(ctx, sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: load session state: %w", err)
	}
	pq := state.PendingQuestion
	if pq == nil || pq.Kind != "approval" {
		return Outcome{}, fmt.Errorf("scheduler: no pending approval for session %q", sessionID)
	}
	state.PendingQuestion = nil
	approval.Resolve(state, *pq, approved, remember, session.ApprovalRecord{
		ToolName: pq.ToolName,
		StepPos:  pq.StepPos,
		At:       time.Now().UTC(),
	})

	p, err := s.Plans.Load(ctx, state.BoundPlanID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: load bound plan: %w", err)
	}
	if !approved {
		return s.recordDeniedAndContinue(ctx, sessionID, state, p, pq, sink)
	}
	return s.recordApprovedAndContinue(ctx, sessionID, state, p, pq, sink)
}

func (s *Scheduler) recordDeniedAndContinue(ctx context.Context, sessionID string, state *session.State, p *plan.Plan, pq *session.PendingQuestion, sink event.Sink) (Outcome, error) {
	step := p.StepByPosition(pq.StepPos)
	if step != nil {
		result := approval.DeniedResult(pq.ToolName)
		recordAttempt(step, pq.ToolName, result)
	}
	return s.runLoop(ctx, sessionID, state, p, sink)
}

// recordApprovedAndContinue executes the tool call that was suspended for
// approval directly, rather than returning to think(), since the LLM
// already chose this action and only the approval decision was pending.
func (s *Scheduler) recordApprovedAndContinue(ctx context.Context, sessionID string, state *session.State, p *plan.Plan, pq *session.PendingQuestion, sink event.Sink) (Outcome, error) {
	step := p.StepByPosition(pq.StepPos)
	if step == nil {
		return s.runLoop(ctx, sessionID, state, p, sink)
	}
	t, ok := s.Tools.Get(pq.ToolName)
	if !ok {
		recordAttempt(step, pq.ToolName, tool.Result{Success: false, Error: fmt.Sprintf("unknown tool %q", pq.ToolName)})
		return s.runLoop(ctx, sessionID, state, p, sink)
	}
	result, err := s.Tools.Dispatch(ctx, t.Name(), pq.ToolInput)
	if err != nil {
		return Outcome{}, fmt.Errorf("scheduler: dispatch tool %q: %w", t.Name(), err)
	}
	recordAttempt(step, t.Name(), result)
	return s.runLoop(ctx, sessionID, state, p, sink)
}

func (s *Scheduler) loadOrCreatePlan(ctx context.Context, state *session.State, mission string) (*plan.Plan, error) {
	if state.BoundPlanID != "" {
		p, err := s.Plans.Load(ctx, state.BoundPlanID)
		if err == nil {
			if p.Complete() && state.PendingQuestion == nil {
				state.BoundPlanID = ""
			} else {
				return p, nil
			}
		} else if err != plan.ErrNotFound {
			return nil, fmt.Errorf("scheduler: load bound plan: %w", err)
		}
	}

	p, err := s.Planner.Plan(ctx, mission, s.Tools.List(), state.Answers)
	if err != nil {
		return nil, fmt.Errorf("scheduler: plan mission: %w", err)
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.Plans.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("scheduler: persist plan: %w", err)
	}
	state.BoundPlanID = p.ID
	return p, nil
}

func (s *Scheduler) runLoop(ctx context.Context, sessionID string, state *session.State, p *plan.Plan, sink event.Sink) (Outcome, error) {
	runID := uuid.NewString()
	logSink := runlog.Sink(ctx, s.RunLog, runID, sessionID)
	emit := event.MultiSink(logSink, sink)

	if s.Runs != nil {
		_ = s.Runs.Upsert(ctx, run.Record{
			RunID: runID, SessionID: sessionID, PlanID: p.ID,
			Status: run.StatusRunning, StartedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		})
	}

	for iteration := 0; iteration < MaxIterations; iteration++ {
		step := p.NextActionable()
		if step == nil {
			return s.finish(ctx, sessionID, state, p, runID, emit)
		}

		var outcome Outcome
		var suspend bool

		thought, err := s.think(ctx, p, step, state)
		if err != nil {
			// Malformed or unreachable LLM output is a structural failure of
			// this attempt, not a fatal error for the whole run: record it
			// against the step and let the loop retry or hit MaxIterations.
			recordAttempt(step, "think", tool.Result{Success: false, Error: err.Error()})
			s.emitError(emit, sessionID, err)
		} else {
			s.send(emit, event.New(event.Thought, sessionID, map[string]any{
				"step_ref":         thought.StepRef,
				"rationale":        thought.Rationale,
				"expected_outcome": thought.ExpectedOutcome,
				"action":           thought.Action.Type,
			}))

			outcome, suspend, err = s.dispatch(ctx, sessionID, state, p, step, thought, emit)
			if err != nil {
				s.emitError(emit, sessionID, err)
				return Outcome{}, err
			}
		}
		p.UpdatedAt = time.Now().UTC()
		if err := s.Plans.Update(ctx, p); err != nil {
			return Outcome{}, fmt.Errorf("scheduler: persist plan: %w", err)
		}
		state.UpdatedAt = time.Now().UTC()
		prevVersion := state.Version
		if err := s.States.Save(ctx, state); err != nil {
			return Outcome{}, fmt.Errorf("scheduler: persist session state: %w", err)
		}
		// Not every StateStore writes the bumped version back into state, so
		// set it here for the next iteration's Save.
		state.Version = prevVersion + 1
		s.send(emit, event.New(event.StateUpdated, sessionID, map[string]any{"plan_id": p.ID}))

		if (suspend || outcome.Status != "") && s.Runs != nil {
			_ = s.Runs.Upsert(ctx, run.Record{RunID: runID, SessionID: sessionID, PlanID: p.ID, Status: run.Status(outcome.Status), UpdatedAt: time.Now().UTC()})
		}
		if suspend {
			return outcome, nil
		}
		if outcome.Status != "" {
			return outcome, nil
		}
	}

	if s.Runs != nil {
		_ = s.Runs.Upsert(ctx, run.Record{RunID: runID, SessionID: sessionID, PlanID: p.ID, Status: run.StatusFailed, UpdatedAt: time.Now().UTC()})
	}
	return Outcome{
		Status:           StatusFailed,
		FinalMessage:     "execution stopped: maximum iterations reached",
		ExecutionHistory: flattenHistory(p),
		PlanID:           p.ID,
		FailureReason:    "max_iterations",
	}, nil
}

// thoughtAction mirrors the action object nested in the LLM's Thought JSON.
type thoughtAction struct {
	Type         string         `json:"type"`
	Tool         string         `json:"tool,omitempty"`
	ToolInput    map[string]any `json:"tool_input,omitempty"`
	Question     string         `json:"question,omitempty"`
	AnswerKey    string         `json:"answer_key,omitempty"`
	Summary      string         `json:"summary,omitempty"`
	ReplanReason string         `json:"replan_reason,omitempty"`
}

// thoughtDocument mirrors the top-level Thought JSON the LLM returns for
// each iteration of the loop.
type thoughtDocument struct {
	StepRef         int           `json:"step_ref"`
	Rationale       string        `json:"rationale"`
	ExpectedOutcome string        `json:"expected_outcome"`
	Confidence      float64       `json:"confidence,omitempty"`
	Action          thoughtAction `json:"action"`
}

func (s *Scheduler) think(ctx context.Context, p *plan.Plan, step *plan.Step, state *session.State) (thoughtDocument, error) {
	req := llmcap.Request{
		Messages: []llmcap.Message{
			{Role: "system", Content: thoughtSystemPrompt()},
			{Role: "user", Content: thoughtUserPrompt(p, step, state)},
		},
		ModelAlias:     llmcap.AliasMain,
		ResponseFormat: "json_object",
		Temperature:    0.2,
	}
	result, err := s.Cap.Complete(ctx, req)
	if err != nil {
		return thoughtDocument{}, fmt.Errorf("scheduler: think: %w", err)
	}
	var doc thoughtDocument
	if err := json.Unmarshal([]byte(result.Content), &doc); err != nil {
		return thoughtDocument{}, fmt.Errorf("scheduler: invalid thought JSON: %w", err)
	}
	return doc, nil
}

func thoughtSystemPrompt() string {
	return "You drive a single step of a task execution loop. Respond with a single strict " +
		`JSON object matching {"step_ref":int,"rationale":string,"expected_outcome":string,"confidence":float,` +
		`"action":{"type":"tool_call|ask_user|complete|replan|finish_step","tool":string,"tool_input":{},` +
		`"question":string,"answer_key":string,"summary":string,"replan_reason":string}}. ` +
		"Only include the action fields relevant to the chosen type. Do not include any text outside the JSON object."
}

func thoughtUserPrompt(p *plan.Plan, step *plan.Step, state *session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mission: %s\n\n", p.Mission)
	fmt.Fprintf(&b, "Current step %d: %s\n", step.Position, step.Description)
	fmt.Fprintf(&b, "Acceptance criteria: %s\n", step.AcceptanceCriteria)
	fmt.Fprintf(&b, "Attempts so far: %d/%d\n", step.Attempts, step.MaxAttempts)
	if step.ExecutionResult != nil && !step.ExecutionResult.Success {
		fmt.Fprintf(&b, "Last failure: %s\n", step.ExecutionResult.Error)
	}
	tail := step.ExecutionHistory
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	if len(tail) > 0 {
		b.WriteString("Recent attempts:\n")
		for _, a := range tail {
			fmt.Fprintf(&b, "- tool=%s success=%v error=%q\n", a.Tool, a.Success, a.Error)
		}
	}
	if len(state.Answers) > 0 {
		b.WriteString("User-provided answers:\n")
		for k, v := range state.Answers {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	return b.String()
}

// dispatch applies a single Thought's action, returning a non-zero Outcome
// and suspend=true when the loop must return control to the caller.
func (s *Scheduler) dispatch(ctx context.Context, sessionID string, state *session.State, p *plan.Plan, step *plan.Step, thought thoughtDocument, emit event.Sink) (Outcome, bool, error) {
	switch thought.Action.Type {
	case "tool_call":
		return s.dispatchToolCall(ctx, sessionID, state, p, step, thought.Action, emit)
	case "ask_user":
		return s.dispatchAskUser(sessionID, state, step, thought.Action, emit)
	case "complete":
		return s.dispatchComplete(sessionID, p, step, thought.Action, emit)
	case "replan":
		return s.dispatchReplan(ctx, p, step)
	case "finish_step":
		step.Status = plan.StatusCompleted
		return Outcome{}, false, nil
	default:
		recordAttempt(step, "dispatch", tool.Result{Success: false, Error: fmt.Sprintf("unknown action type %q", thought.Action.Type)})
		return Outcome{}, false, nil
	}
}

func (s *Scheduler) dispatchToolCall(ctx context.Context, sessionID string, state *session.State, p *plan.Plan, step *plan.Step, action thoughtAction, emit event.Sink) (Outcome, bool, error) {
	t, ok := s.Tools.Get(action.Tool)
	if !ok {
		recordAttempt(step, action.Tool, tool.Result{Success: false, Error: fmt.Sprintf("unknown tool %q", action.Tool)})
		return Outcome{}, false, nil
	}

	decision, proceed := s.Gate.Check(state, t, step.Position)
	if decision == approval.DecisionDenied {
		recordAttempt(step, t.Name(), approval.DeniedResult(t.Name()))
		return Outcome{}, false, nil
	}
	if !proceed {
		pq := approval.AskPrompt(t, action.ToolInput, step.Position)
		pq.AskedAt = time.Now().UTC()
		state.PendingQuestion = &pq
		s.send(emit, event.New(event.AskUser, sessionID, map[string]any{"kind": "approval", "tool": t.Name()}))
		return Outcome{
			Status:           StatusPaused,
			PlanID:           p.ID,
			PendingQuestion:  &pq,
			ExecutionHistory: flattenHistory(p),
		}, true, nil
	}

	s.send(emit, event.New(event.ToolStarted, sessionID, map[string]any{"tool": t.Name(), "step": step.Position}))
	result, err := s.Tools.Dispatch(ctx, t.Name(), action.ToolInput)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("scheduler: dispatch tool %q: %w", t.Name(), err)
	}
	s.send(emit, event.New(event.ToolResult, sessionID, map[string]any{
		"tool": t.Name(), "step": step.Position, "success": result.Success,
	}))
	recordAttempt(step, t.Name(), result)
	return Outcome{}, false, nil
}

func (s *Scheduler) dispatchAskUser(sessionID string, state *session.State, step *plan.Step, action thoughtAction, emit event.Sink) (Outcome, bool, error) {
	pq := session.PendingQuestion{
		Kind:     "question",
		Prompt:   action.Question,
		StepPos:  step.Position,
		ToolName: action.AnswerKey,
		AskedAt:  time.Now().UTC(),
	}
	state.PendingQuestion = &pq
	s.send(emit, event.New(event.AskUser, sessionID, map[string]any{"kind": "question", "question": action.Question}))
	return Outcome{
		Status:          StatusPaused,
		PendingQuestion: &pq,
	}, true, nil
}

func (s *Scheduler) dispatchComplete(sessionID string, p *plan.Plan, step *plan.Step, action thoughtAction, emit event.Sink) (Outcome, bool, error) {
	step.Status = plan.StatusCompleted
	for _, other := range p.Steps {
		if other.Status == plan.StatusPending {
			other.Status = plan.StatusSkipped
		}
	}
	msg := action.Summary
	if msg == "" {
		msg = extractFinalMessage(p)
	}
	s.send(emit, event.New(event.Complete, sessionID, map[string]any{"plan_id": p.ID}))
	return Outcome{
		Status:           StatusCompleted,
		FinalMessage:     msg,
		ExecutionHistory: flattenHistory(p),
		PlanID:           p.ID,
	}, true, nil
}

func (s *Scheduler) dispatchReplan(ctx context.Context, p *plan.Plan, step *plan.Step) (Outcome, bool, error) {
	outcome, err := s.Replanner.Recover(ctx, p, step.Position)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("scheduler: replan step %d: %w", step.Position, err)
	}
	if outcome.Applied {
		*p = *outcome.Plan
		return Outcome{}, false, nil
	}
	step.Status = plan.StatusSkipped
	return Outcome{}, false, nil
}

func (s *Scheduler) finish(ctx context.Context, sessionID string, state *session.State, p *plan.Plan, runID string, emit event.Sink) (Outcome, error) {
	if p.Complete() {
		msg := extractFinalMessage(p)
		s.send(emit, event.New(event.Complete, sessionID, map[string]any{"plan_id": p.ID}))
		if s.Runs != nil {
			_ = s.Runs.Upsert(ctx, run.Record{RunID: runID, SessionID: sessionID, PlanID: p.ID, Status: run.StatusCompleted, UpdatedAt: time.Now().UTC()})
		}
		return Outcome{Status: StatusCompleted, FinalMessage: msg, ExecutionHistory: flattenHistory(p), PlanID: p.ID}, nil
	}
	if s.Runs != nil {
		_ = s.Runs.Upsert(ctx, run.Record{RunID: runID, SessionID: sessionID, PlanID: p.ID, Status: run.StatusFailed, UpdatedAt: time.Now().UTC()})
	}
	return Outcome{
		Status:           StatusFailed,
		FinalMessage:     "no further steps are actionable but the mission did not complete",
		ExecutionHistory: flattenHistory(p),
		PlanID:           p.ID,
		FailureReason:    "blocked",
	}, nil
}

func (s *Scheduler) send(sink event.Sink, e event.Event) {
	if sink == nil {
		return
	}
	if err := sink.Send(e); err != nil {
		s.Logger.Warn(context.Background(), "event sink send failed", "error", err)
	}
}

func (s *Scheduler) emitError(sink event.Sink, sessionID string, err error) {
	s.send(sink, event.New(event.Error, sessionID, map[string]any{"error": err.Error()}))
}

func recordAttempt(step *plan.Step, toolName string, result tool.Result) {
	step.Attempts++
	step.ExecutionHistory = append(step.ExecutionHistory, plan.ExecutionAttempt{
		Tool: toolName, Success: result.Success, Error: result.Error, Attempt: step.Attempts,
	})
	step.ExecutionResult = &plan.ExecutionResult{
		Success: result.Success, Error: result.Error, Type: result.Type, Hints: result.Hints, Data: result.Data,
	}
	if !result.Success && step.Attempts >= step.MaxAttempts {
		step.Status = plan.StatusFailed
	}
}

func flattenHistory(p *plan.Plan) []HistoryEntry {
	var out []HistoryEntry
	for _, step := range p.Steps {
		for _, a := range step.ExecutionHistory {
			out = append(out, HistoryEntry{
				StepPosition: step.Position, Tool: a.Tool, Success: a.Success, Error: a.Error, Attempt: a.Attempt,
			})
		}
	}
	return out
}

var finalMessageFields = []string{"generated_text", "response", "content", "result"}

func extractFinalMessage(p *plan.Plan) string {
	for i := len(p.Steps) - 1; i >= 0; i-- {
		step := p.Steps[i]
		if step.Status != plan.StatusCompleted || step.ExecutionResult == nil {
			continue
		}
		if msg := textFromData(step.ExecutionResult.Data); msg != "" {
			return msg
		}
	}
	return "Mission completed."
}

func textFromData(data map[string]any) string {
	for _, key := range finalMessageFields {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	if nested, ok := data["data"].(map[string]any); ok {
		return textFromData(nested)
	}
	return ""
}
