// Package tool defines the Tool interface the scheduler dispatches against,
// its JSON-schema-validated parameter contract, and the approval-risk
// metadata that drives the approval state machine.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rudi77/taskreactor/toolerrors"
)

// RiskLevel classifies how dangerous a tool invocation is, independent of
// whether the tool happens to require approval in a given trust mode.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Result is the outcome of a single tool invocation, mirroring the
// success/error/type/hints shape callers need to decide whether to retry,
// replan, or surface the failure.
type Result struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Type    toolerrors.Class `json:"type,omitempty"`
	Hints   []string       `json:"hints,omitempty"`
}

// FromToolError builds a failed Result from a structured tool error.
func FromToolError(err *toolerrors.ToolError) Result {
	if err == nil {
		return Result{Success: true}
	}
	return Result{Success: false, Error: err.Message, Type: err.Type, Hints: err.Hints}
}

// Tool is the contract every executable action implements. Parameters is a
// raw JSON Schema document describing the shape of tool_input; the registry
// compiles and caches it once at registration time.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	RequiresApproval() bool
	ApprovalRiskLevel() RiskLevel
	Execute(ctx context.Context, input map[string]any) (Result, error)
}

// ApprovalPreview renders a deterministic, human-readable summary of a
// pending tool call for the approval prompt.
type ApprovalPreview struct {
	ToolName    string
	RiskLevel   RiskLevel
	Description string
	Input       map[string]any
}

// Preview builds an ApprovalPreview for t given the proposed input.
func Preview(t Tool, input map[string]any) ApprovalPreview {
	return ApprovalPreview{
		ToolName:    t.Name(),
		RiskLevel:   t.ApprovalRiskLevel(),
		Description: t.Description(),
		Input:       input,
	}
}

// Registry holds the set of tools available to a scheduler run and validates
// tool_input against each tool's compiled JSON schema before dispatch.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}, schemas: map[string]*jsonschema.Schema{}}
}

// Register compiles t's parameter schema and adds it to the registry.
// Registering a tool with a name already present replaces the prior entry.
func (r *Registry) Register(t Tool) error {
	var schema *jsonschema.Schema
	if raw := t.Parameters(); len(raw) > 0 {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("tool %q: unmarshal parameter schema: %w", t.Name(), err)
		}
		c := jsonschema.NewCompiler()
		resourceID := "tool://" + t.Name() + "/schema.json"
		if err := c.AddResource(resourceID, doc); err != nil {
			return fmt.Errorf("tool %q: add schema resource: %w", t.Name(), err)
		}
		compiled, err := c.Compile(resourceID)
		if err != nil {
			return fmt.Errorf("tool %q: compile parameter schema: %w", t.Name(), err)
		}
		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	if schema != nil {
		r.schemas[t.Name()] = schema
	} else {
		delete(r.schemas, t.Name())
	}
	return nil
}

// Get returns the named tool, or (nil, false) if not registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools in unspecified order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Validate checks input against the named tool's compiled parameter schema.
// Tools registered without a schema accept any input.
func (r *Registry) Validate(name string, input map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := schema.Validate(input); err != nil {
		return toolerrors.New(err.Error()).WithType(toolerrors.ClassInvalidArguments)
	}
	return nil
}

// Dispatch validates input and executes the named tool, normalizing any
// returned error into a failed Result via toolerrors.FromError.
func (r *Registry) Dispatch(ctx context.Context, name string, input map[string]any) (Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return FromToolError(toolerrors.Newf("unknown tool %q", name).WithType(toolerrors.ClassNotFound)), nil
	}
	if err := r.Validate(name, input); err != nil {
		return FromToolError(toolerrors.FromError(err)), nil
	}
	res, err := t.Execute(ctx, input)
	if err != nil {
		te := toolerrors.FromError(err)
		return FromToolError(te), nil
	}
	return res, nil
}
