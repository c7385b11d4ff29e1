package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/rudi77/taskreactor/tool"
	"github.com/rudi77/taskreactor/toolerrors"
)

// ShellExec runs a shell command and captures its combined output. It is
// the highest-risk built-in tool and always requires approval, which
// approval.Gate.Check grants without asking only in trust mode or from a
// cached decision.
type ShellExec struct {
	// Timeout bounds command execution; zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout is applied when ShellExec.Timeout is unset.
const DefaultTimeout = 60 * time.Second

func (t *ShellExec) Name() string        { return "shell_exec" }
func (t *ShellExec) Description() string { return "Runs a shell command and returns its combined stdout/stderr." }
func (t *ShellExec) RequiresApproval() bool      { return true }
func (t *ShellExec) ApprovalRiskLevel() tool.RiskLevel { return tool.RiskHigh }

func (t *ShellExec) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"command": {"type": "string"}},
		"required": ["command"]
	}`)
}

func (t *ShellExec) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	command, _ := input["command"].(string)
	if command == "" {
		return tool.Result{}, toolerrors.New("command is required").WithType(toolerrors.ClassInvalidArguments)
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := out.String()
	if runCtx.Err() != nil {
		return tool.Result{}, toolerrors.New("command timed out").WithType(toolerrors.ClassTimeout).WithHints("increase the tool's timeout or break the command into smaller steps")
	}
	if err != nil {
		return tool.Result{Success: false, Error: err.Error(), Data: map[string]any{"output": output}}, nil
	}
	return tool.Result{Success: true, Data: map[string]any{"output": output}}, nil
}
