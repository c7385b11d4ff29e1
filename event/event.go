// Package event defines the typed event stream emitted by the scheduler
// during an execute call.
package event

import "time"

// Type enumerates the well-known event categories a scheduler emits.
// Observers should treat unknown types as ignorable for forward
// compatibility, so Type is an open string type rather than a closed enum.
type Type string

const (
	// Thought fires when the scheduler receives a Thought from the LLM capability.
	Thought Type = "THOUGHT"
	// ToolStarted fires immediately before a tool's execute method is invoked.
	ToolStarted Type = "TOOL_STARTED"
	// ToolResult fires after a tool call returns (success or failure).
	ToolResult Type = "TOOL_RESULT"
	// StateUpdated fires after the scheduler persists session state.
	StateUpdated Type = "STATE_UPDATED"
	// AskUser fires when the loop suspends for user input (question or approval).
	AskUser Type = "ASK_USER"
	// Complete fires when the run reaches a terminal completed state.
	Complete Type = "COMPLETE"
	// Error fires when an iteration fails to obtain a valid Thought (the loop
	// then continues) and for dispatch errors that terminate an execute call.
	Error Type = "ERROR"
)

// Event is an immutable record emitted in strict happens-before order within
// a single execute call.
type Event struct {
	Type      Type
	Data      map[string]any
	SessionID string
	Timestamp time.Time
}

// New constructs an Event stamped with the current time.
func New(typ Type, sessionID string, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	return Event{Type: typ, Data: data, SessionID: sessionID, Timestamp: time.Now().UTC()}
}

// Sink receives events as the scheduler produces them. Implementations must
// not block indefinitely; the scheduler treats Send errors as non-fatal
// (logged, not propagated) since the event stream is an observability
// side-channel, not part of the durable record (runlog.Store is).
type Sink interface {
	Send(e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event) error

// Send implements Sink.
func (f SinkFunc) Send(e Event) error { return f(e) }

// Collector is an in-memory Sink that simply appends events, useful for
// tests and for the CLI's synchronous rendering of a single execute call.
type Collector struct {
	Events []Event
}

// Send implements Sink.
func (c *Collector) Send(e Event) error {
	c.Events = append(c.Events, e)
	return nil
}

// MultiSink fans out to multiple sinks, continuing past individual errors.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) error {
		var firstErr error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Send(e); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})
}
