// Package builtin provides the reference tool set bundled with the engine:
// file read/write and shell execution.
package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rudi77/taskreactor/tool"
	"github.com/rudi77/taskreactor/toolerrors"
)

// ReadFile reads a UTF-8 text file from disk and returns its contents.
type ReadFile struct {
	// BasePath, if set, is the root relative paths are joined to; absolute
	// paths and paths that climb out with ".." are not confined to it.
	BasePath string
}

func (t *ReadFile) Name() string        { return "file_read" }
func (t *ReadFile) Description() string { return "Reads a UTF-8 text file from disk." }
func (t *ReadFile) RequiresApproval() bool      { return false }
func (t *ReadFile) ApprovalRiskLevel() tool.RiskLevel { return tool.RiskLow }

func (t *ReadFile) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"required": ["path"]
	}`)
}

func (t *ReadFile) Execute(_ context.Context, input map[string]any) (tool.Result, error) {
	path, _ := input["path"].(string)
	if path == "" {
		return tool.Result{}, toolerrors.New("path is required").WithType(toolerrors.ClassInvalidArguments)
	}
	full := resolvePath(t.BasePath, path)
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return tool.Result{}, toolerrors.NewWithCause("file not found", err).WithType(toolerrors.ClassNotFound)
		}
		return tool.Result{}, toolerrors.NewWithCause("read file", err)
	}
	return tool.Result{Success: true, Data: map[string]any{"content": string(data), "size": len(data)}}, nil
}

// WriteFile writes content to a file, creating parent directories as needed.
type WriteFile struct {
	BasePath string
}

func (t *WriteFile) Name() string        { return "file_write" }
func (t *WriteFile) Description() string { return "Writes content to a file on disk, creating parent directories as needed." }
func (t *WriteFile) RequiresApproval() bool      { return false }
func (t *WriteFile) ApprovalRiskLevel() tool.RiskLevel { return tool.RiskLow }

func (t *WriteFile) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"content": {"type": "string"}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFile) Execute(_ context.Context, input map[string]any) (tool.Result, error) {
	path, _ := input["path"].(string)
	content, _ := input["content"].(string)
	if path == "" {
		return tool.Result{}, toolerrors.New("path is required").WithType(toolerrors.ClassInvalidArguments)
	}
	full := resolvePath(t.BasePath, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return tool.Result{}, toolerrors.NewWithCause("create parent directory", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return tool.Result{}, toolerrors.NewWithCause("write file", err)
	}
	return tool.Result{Success: true, Data: map[string]any{"path": full, "bytes_written": len(content)}}, nil
}

func resolvePath(base, path string) string {
	if base == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
