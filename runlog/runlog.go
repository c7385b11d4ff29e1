// Package runlog provides a durable, append-only event log for task runs.
// Unlike the event.Sink observability side-channel, the runlog is the
// canonical record callers use to replay or audit a run's history, keyed by
// opaque store-assigned cursors.
package runlog

import (
	"context"
	"time"

	"github.com/rudi77/taskreactor/event"
)

// Entry is a single immutable record appended to a run's log.
type Entry struct {
	// ID is the store-assigned opaque identifier, monotonically ordered
	// within a run.
	ID        string
	RunID     string
	SessionID string
	Event     event.Event
	Timestamp time.Time
}

// Page is a forward page of log entries.
type Page struct {
	Entries    []Entry
	NextCursor string
}

// Store is an append-only event log with cursor-based forward pagination.
// Implementations must provide stable ordering within a run; Append must be
// durable since the runlog is the canonical record of what happened, not
// just an observability stream.
type Store interface {
	// Append stores e in the run's log, assigning it an opaque ID.
	Append(ctx context.Context, runID, sessionID string, e event.Event) error
	// List returns the next forward page starting after cursor (empty cursor
	// starts from the beginning). Limit must be greater than zero.
	List(ctx context.Context, runID string, cursor string, limit int) (Page, error)
}

// Sink adapts a Store into an event.Sink bound to one run/session pair, so
// the scheduler can hand the store to the same fan-out used for live
// observers (event.MultiSink) without a special case.
func Sink(ctx context.Context, store Store, runID, sessionID string) event.Sink {
	return event.SinkFunc(func(e event.Event) error {
		return store.Append(ctx, runID, sessionID, e)
	})
}
