// Package run tracks lightweight metadata for a single execute call, distinct
// from the session it belongs to and from the plan it is driving. A run
// record exists mainly for observability: listing in-flight or historical
// executions without replaying the full runlog.
package run

import (
	"context"
	"errors"
	"time"
)

// Status is the coarse lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrNotFound indicates no run record exists for the given identifier.
var ErrNotFound = errors.New("run: not found")

// Record is the durable metadata captured for one execute call.
type Record struct {
	RunID     string         `json:"run_id"`
	SessionID string         `json:"session_id"`
	PlanID    string         `json:"plan_id"`
	Status    Status         `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Labels    map[string]string `json:"labels,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
}

// Store persists run metadata for lookup and listing.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Load(ctx context.Context, runID string) (Record, error)
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
}
