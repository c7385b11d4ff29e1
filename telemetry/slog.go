package telemetry

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the Logger interface, matching the
// structured-logging convention used by the CLI layer (see cmd/taskreactor).
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. If l is nil, slog.Default() is used.
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{l: l}
}

// Debug emits a debug-level log message with structured key-value pairs.
func (s SlogLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	s.l.DebugContext(ctx, msg, keyvals...)
}

// Info emits an info-level log message with structured key-value pairs.
func (s SlogLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	s.l.InfoContext(ctx, msg, keyvals...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (s SlogLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	s.l.WarnContext(ctx, msg, keyvals...)
}

// Error emits an error-level log message with structured key-value pairs.
func (s SlogLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	s.l.ErrorContext(ctx, msg, keyvals...)
}
