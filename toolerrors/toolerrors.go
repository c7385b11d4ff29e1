// Package toolerrors provides a structured error type for tool invocation
// failures. ToolError preserves an error chain (via Cause) and supports
// errors.Is/errors.As through Unwrap, while remaining easy to serialize into
// the execution_result/execution_history records a Step carries.
package toolerrors

import (
	"errors"
	"fmt"
)

// Class categorizes a tool failure so schedulers and replanners can reason
// about it without string matching on Message.
type Class string

const (
	// ClassUnknown is used when the tool did not classify its own failure.
	ClassUnknown Class = "unknown"
	// ClassInvalidArguments indicates the supplied tool_input failed schema
	// validation or otherwise could not be understood by the tool.
	ClassInvalidArguments Class = "invalid_arguments"
	// ClassNotFound indicates the tool's target resource does not exist.
	ClassNotFound Class = "not_found"
	// ClassTimeout indicates the tool exceeded its own execution deadline.
	ClassTimeout Class = "timeout"
	// ClassDenied indicates the operation was refused (permissions, policy).
	ClassDenied Class = "denied"
	// ClassUnavailable indicates the tool or a dependency it needs is down.
	ClassUnavailable Class = "unavailable"
)

// ToolError represents a structured tool failure that preserves message and
// causal context while still implementing the standard error interface. Tool
// errors may nest via Cause to retain diagnostics across retries.
type ToolError struct {
	// Message is the human-readable summary of the failure.
	Message string
	// Type classifies the failure for programmatic handling and is surfaced
	// directly on the tool Result's type field.
	Type Class
	// Hints carries free-form remediation suggestions surfaced to the planner.
	Hints []string
	// Cause links to the underlying tool error, enabling chains via errors.Is/As.
	Cause *ToolError
}

// New constructs a ToolError with the provided message and ClassUnknown.
func New(message string) *ToolError {
	if message == "" {
		message = "tool error"
	}
	return &ToolError{Message: message, Type: ClassUnknown}
}

// Newf formats according to a format specifier and returns the result as a ToolError.
func Newf(format string, args ...any) *ToolError {
	return New(fmt.Sprintf(format, args...))
}

// WithType sets the Type field and returns the receiver for chaining.
func (e *ToolError) WithType(t Class) *ToolError {
	if e == nil {
		return nil
	}
	e.Type = t
	return e
}

// WithHints sets the Hints field and returns the receiver for chaining.
func (e *ToolError) WithHints(hints ...string) *ToolError {
	if e == nil {
		return nil
	}
	e.Hints = hints
	return e
}

// NewWithCause constructs a ToolError that wraps an underlying error. The
// cause is converted into a ToolError chain so metadata survives
// serialization while still supporting errors.Is/As through Unwrap.
func NewWithCause(message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{Message: message, Type: ClassUnknown, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into a ToolError chain. This is the
// last-resort wrapping boundary: a bare error a tool returns is normalized
// into a ToolError here, which tool.Registry.Dispatch turns into a failed
// Result.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Message: err.Error(), Type: ClassUnknown, Cause: FromError(errors.Unwrap(err))}
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying tool error to support errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
