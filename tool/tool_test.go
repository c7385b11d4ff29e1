package tool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskreactor/tool"
	"github.com/rudi77/taskreactor/tool/builtin"
	"github.com/rudi77/taskreactor/toolerrors"
)

func TestRegistryDispatchValidatesInput(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Register(&builtin.ReadFile{}))

	res, err := r.Dispatch(context.Background(), "file_read", map[string]any{})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.NotEmpty(t, res.Error)
}

func TestRegistryDispatchUnknownTool(t *testing.T) {
	r := tool.NewRegistry()
	res, err := r.Dispatch(context.Background(), "nope", map[string]any{})
	require.NoError(t, err)
	require.False(t, res.Success)
}

func TestRegistryDispatchExecutesRegisteredTool(t *testing.T) {
	r := tool.NewRegistry()
	require.NoError(t, r.Register(&builtin.WriteFile{BasePath: t.TempDir()}))

	res, err := r.Dispatch(context.Background(), "file_write", map[string]any{
		"path":    "out.txt",
		"content": "hello",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestPreviewReflectsToolMetadata(t *testing.T) {
	shell := &builtin.ShellExec{}
	preview := tool.Preview(shell, map[string]any{"command": "ls"})
	require.Equal(t, "shell_exec", preview.ToolName)
	require.Equal(t, tool.RiskHigh, preview.RiskLevel)
}

func TestFromToolErrorBuildsFailedResult(t *testing.T) {
	res := tool.FromToolError(nil)
	require.True(t, res.Success)

	res = tool.FromToolError(toolerrors.New("boom").WithType(toolerrors.ClassTimeout))
	require.False(t, res.Success)
	require.Equal(t, "boom", res.Error)
	require.Equal(t, toolerrors.ClassTimeout, res.Type)
}
