// Package planner produces the initial Plan for a mission by prompting the
// LLM capability for a strict JSON plan and validating/parsing the result.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rudi77/taskreactor/llmcap"
	"github.com/rudi77/taskreactor/plan"
	"github.com/rudi77/taskreactor/tool"
)

// planItem mirrors the planner-output JSON item shape.
type planItem struct {
	Position           int    `json:"position"`
	Description        string `json:"description"`
	AcceptanceCriteria string `json:"acceptance_criteria"`
	Dependencies       []int  `json:"dependencies"`
	Status             string `json:"status"`
}

// planDocument mirrors the top-level planner-output JSON object.
type planDocument struct {
	Items         []planItem `json:"items"`
	OpenQuestions []string   `json:"open_questions"`
	Notes         string     `json:"notes"`
}

// Planner composes a deterministic prompt from the mission, the tool
// catalog, and prior answers, then parses the LLM's JSON response into a
// Plan.
type Planner struct {
	cap *llmcap.Capability
}

// New constructs a Planner backed by cap.
func New(cap *llmcap.Capability) *Planner {
	return &Planner{cap: cap}
}

// Plan produces a fresh Plan for mission using the given tool catalog and
// any answers already accumulated for the session.
func (p *Planner) Plan(ctx context.Context, mission string, tools []tool.Tool, answers map[string]string) (*plan.Plan, error) {
	req := llmcap.Request{
		Messages: []llmcap.Message{
			{Role: "system", Content: systemPrompt()},
			{Role: "user", Content: userPrompt(mission, tools, answers)},
		},
		ModelAlias:     llmcap.AliasFast,
		ResponseFormat: "json_object",
		Temperature:    0,
	}
	result, err := p.cap.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("planner: llm completion failed: %w", err)
	}

	var doc planDocument
	if err := json.Unmarshal([]byte(result.Content), &doc); err != nil {
		return nil, fmt.Errorf("planner: invalid plan JSON: %w", err)
	}
	return buildPlan(mission, doc)
}

func buildPlan(mission string, doc planDocument) (*plan.Plan, error) {
	steps := make([]*plan.Step, 0, len(doc.Items))
	for i, item := range doc.Items {
		pos := item.Position
		if pos == 0 {
			pos = i + 1
		}
		status := plan.StatusPending
		if item.Status != "" {
			status = plan.Status(item.Status)
		}
		steps = append(steps, &plan.Step{
			Position:           pos,
			Description:        item.Description,
			AcceptanceCriteria: item.AcceptanceCriteria,
			Dependencies:       item.Dependencies,
			Status:             status,
			MaxAttempts:        plan.DefaultMaxAttempts,
		})
	}
	p := &plan.Plan{
		ID:            uuid.NewString(),
		Mission:       mission,
		Steps:         steps,
		OpenQuestions: doc.OpenQuestions,
		Notes:         doc.Notes,
	}
	return p, nil
}

func systemPrompt() string {
	return "You are a planning assistant. Respond with a single strict JSON object " +
		`matching {"items":[{"position":int,"description":string,"acceptance_criteria":string,"dependencies":[int]}],"open_questions":[string],"notes":string}. ` +
		"Do not include any text outside the JSON object."
}

func userPrompt(mission string, tools []tool.Tool, answers map[string]string) string {
	var b strings.Builder
	b.WriteString("Mission: ")
	b.WriteString(mission)
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
	}
	if len(answers) > 0 {
		b.WriteString("\nPrior answers:\n")
		for k, v := range answers {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	return b.String()
}
