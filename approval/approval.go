// Package approval implements the approval gate a tool call passes through
// before execution: trust-mode bypass, per-session approval caching, and
// the denied-result shape returned to the scheduler when a human declines.
package approval

import (
	"context"
	"fmt"

	"github.com/rudi77/taskreactor/session"
	"github.com/rudi77/taskreactor/tool"
	"github.com/rudi77/taskreactor/toolerrors"
)

// Decision records how a tool call's approval requirement was resolved.
type Decision string

const (
	DecisionApproved    Decision = "approved"
	DecisionDenied      Decision = "denied"
	DecisionTrusted     Decision = "trusted"
	DecisionAutoApproved Decision = "auto_approved"
	DecisionAutoDenied  Decision = "auto_denied"
)

// Gate decides whether a tool call may proceed, consulting trust-mode and
// the session's approval cache before falling back to asking a human.
type Gate struct{}

// New constructs a Gate.
func New() *Gate {
	return &Gate{}
}

// cacheKey identifies a cached approval decision within a session. It keys
// purely on tool name, so a remembered decision covers every later call to
// that tool whatever its input.
func cacheKey(toolName string) string {
	return toolName
}

// Check resolves whether t may execute for step without requiring human
// input, consulting trust-mode and the approval cache in that order. ok is
// true when the call may proceed immediately. A cached denial returns
// DecisionDenied with ok false, and the caller records the denial without
// asking again; otherwise, when ok is false, the caller must suspend the run
// and ask a human via a PendingQuestion.
func (g *Gate) Check(state *session.State, t tool.Tool, stepPos int) (decision Decision, ok bool) {
	if !t.RequiresApproval() {
		return DecisionAutoApproved, true
	}
	if state.TrustMode {
		return DecisionTrusted, true
	}
	if cached, found := state.ApprovalCache[cacheKey(t.Name())]; found {
		if cached {
			return DecisionApproved, true
		}
		return DecisionDenied, false
	}
	return "", false
}

// AskPrompt builds the PendingQuestion a scheduler should record and emit
// as an ASK_USER event when Check reports the call needs human input.
func AskPrompt(t tool.Tool, input map[string]any, stepPos int) session.PendingQuestion {
	preview := tool.Preview(t, input)
	return session.PendingQuestion{
		Kind:      "approval",
		Prompt:    fmt.Sprintf("Approve %s (%s risk)?", preview.ToolName, preview.RiskLevel),
		StepPos:   stepPos,
		ToolName:  t.Name(),
		ToolInput: input,
	}
}

// Resolve records a human's approval decision on the session state,
// updating the approval cache and history, and returns the Decision to
// attach to the resumed execution.
func Resolve(state *session.State, q session.PendingQuestion, approved, remember bool, at session.ApprovalRecord) Decision {
	decision := DecisionDenied
	if approved {
		decision = DecisionApproved
	}
	if remember {
		if state.ApprovalCache == nil {
			state.ApprovalCache = map[string]bool{}
		}
		state.ApprovalCache[cacheKey(q.ToolName)] = approved
	}
	at.Decision = string(decision)
	state.ApprovalHistory = append(state.ApprovalHistory, at)
	return decision
}

// DeniedResult builds the tool.Result returned to the plan step when a
// human denies an approval request, so the scheduler can record it as an
// observation rather than treating the step as having produced no output.
func DeniedResult(toolName string) tool.Result {
	return tool.Result{
		Success: false,
		Error:   fmt.Sprintf("%s: denied by user", toolName),
		Type:    toolerrors.ClassDenied,
	}
}

// ctxKey avoids collisions when approval metadata is threaded through a
// context for audit logging by callers that need it.
type ctxKey struct{}

// WithDecision attaches a resolved Decision to ctx for downstream logging.
func WithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// DecisionFromContext retrieves a Decision previously attached with
// WithDecision.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(ctxKey{}).(Decision)
	return d, ok
}
