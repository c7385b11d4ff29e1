package toolerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultsMessageWhenEmpty(t *testing.T) {
	err := New("")
	require.Equal(t, "tool error", err.Message)
	require.Equal(t, ClassUnknown, err.Type)
}

func TestWithTypeAndWithHintsChain(t *testing.T) {
	err := New("boom").WithType(ClassDenied).WithHints("ask for approval")
	require.Equal(t, ClassDenied, err.Type)
	require.Equal(t, []string{"ask for approval"}, err.Hints)
}

func TestWithTypeOnNilReturnsNil(t *testing.T) {
	var err *ToolError
	require.Nil(t, err.WithType(ClassDenied))
}

func TestNewWithCauseWrapsPlainError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewWithCause("write failed", cause)
	require.Equal(t, "write failed", err.Message)
	require.NotNil(t, err.Cause)
	require.Equal(t, "disk full", err.Cause.Message)
	require.ErrorIs(t, err, err.Cause)
}

func TestFromErrorPreservesExistingToolError(t *testing.T) {
	original := New("already typed").WithType(ClassTimeout)
	require.Same(t, original, FromError(original))
}

func TestFromErrorReturnsNilForNil(t *testing.T) {
	require.Nil(t, FromError(nil))
}

func TestErrorStringIsMessage(t *testing.T) {
	err := New("human readable")
	require.Equal(t, "human readable", err.Error())
}
