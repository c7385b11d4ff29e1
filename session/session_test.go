package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStateInitializesMaps(t *testing.T) {
	s := NewState("sess-1")
	require.Equal(t, "sess-1", s.SessionID)
	require.NotNil(t, s.Answers)
	require.NotNil(t, s.ApprovalCache)
	require.Equal(t, 0, s.Version)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewState("sess-1")
	s.Answers["q"] = "a"
	s.ApprovalCache["shell_exec"] = true
	s.PendingQuestion = &PendingQuestion{Kind: "question", Prompt: "which file?"}

	cp := s.Clone()
	cp.Answers["q"] = "changed"
	cp.ApprovalCache["shell_exec"] = false
	cp.PendingQuestion.Prompt = "changed"

	require.Equal(t, "a", s.Answers["q"])
	require.True(t, s.ApprovalCache["shell_exec"])
	require.Equal(t, "which file?", s.PendingQuestion.Prompt)
}

func TestCloneCopiesApprovalHistorySlice(t *testing.T) {
	s := NewState("sess-1")
	s.ApprovalHistory = append(s.ApprovalHistory, ApprovalRecord{ToolName: "shell_exec"})

	cp := s.Clone()
	cp.ApprovalHistory[0].ToolName = "changed"

	require.Equal(t, "shell_exec", s.ApprovalHistory[0].ToolName)
}
