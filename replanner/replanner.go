// Package replanner asks the LLM for a recovery strategy when a step has
// exhausted its retry budget, validates the proposed strategy, and applies
// it via planmutate.
package replanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rudi77/taskreactor/llmcap"
	"github.com/rudi77/taskreactor/plan"
	"github.com/rudi77/taskreactor/planmutate"
	"github.com/rudi77/taskreactor/tool"
)

// StrategyType enumerates the recovery strategies the replanner may choose.
type StrategyType string

const (
	StrategyRetryWithParams StrategyType = "retry_with_params"
	StrategySwapTool        StrategyType = "swap_tool"
	StrategyDecomposeTask   StrategyType = "decompose_task"
	StrategySkip            StrategyType = "skip"
)

// MinConfidence is the minimum confidence the replanner will act on; below
// this, the caller should fall back to marking the step SKIPPED.
const MinConfidence = 0.6

// strategyDocument mirrors the LLM's JSON replan response.
type strategyDocument struct {
	StrategyType  StrategyType   `json:"strategy_type"`
	Rationale     string         `json:"rationale"`
	Modifications map[string]any `json:"modifications"`
	Confidence    float64        `json:"confidence"`
}

// Outcome reports what the replanner decided and, when it mutated the plan,
// the updated plan.
type Outcome struct {
	Applied      bool
	StrategyType StrategyType
	Rationale    string
	Plan         *plan.Plan
	// RejectReason is set when Applied is false, explaining why the
	// strategy was not used (caller should fall back to marking the step
	// SKIPPED).
	RejectReason string
}

// Replanner drives the failure-recovery decision for a single step.
type Replanner struct {
	cap      *llmcap.Capability
	mutator  *planmutate.Mutator
	registry *tool.Registry
}

// New constructs a Replanner.
func New(cap *llmcap.Capability, registry *tool.Registry) *Replanner {
	return &Replanner{cap: cap, mutator: planmutate.New(), registry: registry}
}

// Recover asks the LLM for a recovery strategy for the failed step at
// position and, if valid, applies it to p.
func (r *Replanner) Recover(ctx context.Context, p *plan.Plan, position int) (Outcome, error) {
	step := p.StepByPosition(position)
	if step == nil {
		return Outcome{}, fmt.Errorf("replanner: no step at position %d", position)
	}

	req := llmcap.Request{
		Messages: []llmcap.Message{
			{Role: "system", Content: systemPrompt()},
			{Role: "user", Content: failureContext(p, step, r.registry)},
		},
		ModelAlias:     llmcap.AliasMain,
		ResponseFormat: "json_object",
		Temperature:    0.1,
	}
	result, err := r.cap.Complete(ctx, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("replanner: llm completion failed: %w", err)
	}

	var doc strategyDocument
	if err := json.Unmarshal([]byte(result.Content), &doc); err != nil {
		return Outcome{Applied: false, RejectReason: "invalid replan JSON"}, nil
	}
	return r.apply(p, step, doc), nil
}

func (r *Replanner) apply(p *plan.Plan, step *plan.Step, doc strategyDocument) Outcome {
	if doc.Confidence < MinConfidence {
		return Outcome{Applied: false, RejectReason: "confidence below threshold"}
	}

	switch doc.StrategyType {
	case StrategyRetryWithParams:
		params, ok := doc.Modifications["new_parameters"].(map[string]any)
		if !ok {
			return Outcome{Applied: false, RejectReason: "missing new_parameters"}
		}
		updated, err := r.mutator.ModifyStep(p, planmutate.ModifyStepRequest{
			Position:  step.Position,
			ToolInput: params,
		})
		if err != nil {
			return Outcome{Applied: false, RejectReason: err.Error()}
		}
		return Outcome{Applied: true, StrategyType: doc.StrategyType, Rationale: doc.Rationale, Plan: updated}

	case StrategySwapTool:
		newTool, _ := doc.Modifications["new_tool"].(string)
		if newTool == "" {
			return Outcome{Applied: false, RejectReason: "missing new_tool"}
		}
		if r.registry != nil {
			if _, ok := r.registry.Get(newTool); !ok {
				return Outcome{Applied: false, RejectReason: fmt.Sprintf("unknown tool %q", newTool)}
			}
		}
		params, _ := doc.Modifications["new_parameters"].(map[string]any)
		updated, err := r.mutator.ReplaceStep(p, planmutate.ReplaceStepRequest{
			Position:           step.Position,
			Description:        step.Description,
			AcceptanceCriteria: step.AcceptanceCriteria,
			ChosenTool:         newTool,
			ToolInput:          params,
		})
		if err != nil {
			return Outcome{Applied: false, RejectReason: err.Error()}
		}
		return Outcome{Applied: true, StrategyType: doc.StrategyType, Rationale: doc.Rationale, Plan: updated}

	case StrategyDecomposeTask:
		raw, ok := doc.Modifications["subtasks"].([]any)
		if !ok || len(raw) == 0 {
			return Outcome{Applied: false, RejectReason: "missing or empty subtasks"}
		}
		subtasks := make([]planmutate.Subtask, 0, len(raw))
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return Outcome{Applied: false, RejectReason: "malformed subtask entry"}
			}
			desc, _ := m["description"].(string)
			crit, _ := m["acceptance_criteria"].(string)
			subtasks = append(subtasks, planmutate.Subtask{Description: desc, AcceptanceCriteria: crit})
		}
		updated, err := r.mutator.DecomposeStep(p, planmutate.DecomposeStepRequest{
			Position: step.Position,
			Subtasks: subtasks,
		})
		if err != nil {
			return Outcome{Applied: false, RejectReason: err.Error()}
		}
		return Outcome{Applied: true, StrategyType: doc.StrategyType, Rationale: doc.Rationale, Plan: updated}

	case StrategySkip:
		working := p.Clone()
		s := working.StepByPosition(step.Position)
		s.Status = plan.StatusSkipped
		return Outcome{Applied: true, StrategyType: doc.StrategyType, Rationale: doc.Rationale, Plan: working}

	default:
		return Outcome{Applied: false, RejectReason: fmt.Sprintf("unknown strategy_type %q", doc.StrategyType)}
	}
}

func systemPrompt() string {
	return "You are a recovery planner. Respond with a single strict JSON object matching " +
		`{"strategy_type":"retry_with_params|swap_tool|decompose_task|skip","rationale":string,"modifications":{},"confidence":float}. ` +
		"Do not include any text outside the JSON object."
}

func failureContext(p *plan.Plan, step *plan.Step, registry *tool.Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d: %s\n", step.Position, step.Description)
	fmt.Fprintf(&b, "Acceptance criteria: %s\n", step.AcceptanceCriteria)
	fmt.Fprintf(&b, "Chosen tool: %s\n", step.ChosenTool)
	fmt.Fprintf(&b, "Attempts: %d/%d\n", step.Attempts, step.MaxAttempts)
	if step.ExecutionResult != nil {
		fmt.Fprintf(&b, "Last error: %s (type=%s)\n", step.ExecutionResult.Error, step.ExecutionResult.Type)
	}
	b.WriteString("Available tools:\n")
	if registry != nil {
		for _, t := range registry.List() {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		}
	}
	return b.String()
}
