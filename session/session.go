// Package session defines durable session lifecycle and the per-session
// state store the scheduler reads and writes between iterations of the
// reasoning loop.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	// StatusActive indicates the session accepts new runs.
	StatusActive Status = "active"
	// StatusEnded indicates the session is terminal; no new runs may start.
	StatusEnded Status = "ended"
)

// Session is the durable conversational container a run belongs to.
type Session struct {
	ID        string
	Status    Status
	CreatedAt time.Time
	EndedAt   *time.Time
}

var (
	// ErrNotFound indicates the session does not exist in the store.
	ErrNotFound = errors.New("session: not found")
	// ErrEnded indicates the session exists but is terminal.
	ErrEnded = errors.New("session: ended")
)

// Store persists Session lifecycle records, independent of plan/state
// storage (see StateStore for the mutable per-session scheduler state).
type Store interface {
	// CreateSession creates (or idempotently returns) an active session.
	// Returns ErrEnded if the session exists but has already ended.
	CreateSession(ctx context.Context, id string, createdAt time.Time) (Session, error)
	// LoadSession returns the session, or ErrNotFound.
	LoadSession(ctx context.Context, id string) (Session, error)
	// EndSession marks the session ended. Idempotent.
	EndSession(ctx context.Context, id string, endedAt time.Time) (Session, error)
}

// PendingQuestion records a suspended ask_user or approval request awaiting
// a caller-supplied answer before the scheduler can resume.
type PendingQuestion struct {
	Kind      string         `json:"kind"` // "question" or "approval"
	Prompt    string         `json:"prompt"`
	StepPos   int            `json:"step_position,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	AskedAt   time.Time      `json:"asked_at"`
}

// ApprovalRecord is one entry in the append-only approval_history carried on
// session state.
type ApprovalRecord struct {
	ToolName string    `json:"tool_name"`
	StepPos  int       `json:"step_position"`
	Decision string    `json:"decision"` // approved/denied/trusted/auto_approved/auto_denied
	At       time.Time `json:"at"`
}

// State is the mutable scheduler-owned state attached to a session: answers
// accumulated across ask_user cycles, the currently pending question (if
// the run is suspended), the approval cache and trust mode, and an
// append-only approval history. Every successful Save bumps Version, giving
// an optimistic-concurrency guard against concurrent execute calls racing on
// the same session.
type State struct {
	SessionID       string             `json:"session_id"`
	Version         int                `json:"_version"`
	UpdatedAt       time.Time          `json:"_updated_at"`
	BoundPlanID     string             `json:"bound_plan_id,omitempty"`
	Answers         map[string]string  `json:"answers"`
	PendingQuestion *PendingQuestion   `json:"pending_question,omitempty"`
	ApprovalCache   map[string]bool    `json:"approval_cache"`
	TrustMode       bool               `json:"trust_mode"`
	ApprovalHistory []ApprovalRecord   `json:"approval_history"`
}

// NewState returns a zero-value State for a freshly created session.
func NewState(sessionID string) *State {
	return &State{
		SessionID:     sessionID,
		Answers:       map[string]string{},
		ApprovalCache: map[string]bool{},
	}
}

// Clone returns a deep copy, used so callers holding a loaded State can
// mutate a working copy without racing a concurrent Save.
func (s *State) Clone() *State {
	cp := *s
	cp.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	cp.ApprovalCache = make(map[string]bool, len(s.ApprovalCache))
	for k, v := range s.ApprovalCache {
		cp.ApprovalCache[k] = v
	}
	cp.ApprovalHistory = append([]ApprovalRecord(nil), s.ApprovalHistory...)
	if s.PendingQuestion != nil {
		pq := *s.PendingQuestion
		cp.PendingQuestion = &pq
	}
	return &cp
}

// ErrVersionConflict indicates a StateStore.Save call raced a concurrent
// writer: the caller should reload and retry.
var ErrVersionConflict = errors.New("session: state version conflict")

// StateStore persists per-session scheduler State with optimistic
// concurrency control and a per-session exclusive lock used to serialize
// concurrent execute calls against the same session.
type StateStore interface {
	// Load returns the current state for sessionID, creating a fresh one if
	// none exists yet.
	Load(ctx context.Context, sessionID string) (*State, error)
	// Save persists state if state.Version still matches the stored version,
	// then increments it. Returns ErrVersionConflict otherwise.
	Save(ctx context.Context, state *State) error
	// Lock acquires the per-session exclusive lock, returning a release
	// function. Implementations may block until the lock is available or
	// return an error if ctx is canceled first.
	Lock(ctx context.Context, sessionID string) (release func(), err error)
	// Delete removes all state associated with sessionID.
	Delete(ctx context.Context, sessionID string) error
}

// sessionLock is a simple reentrant-free mutex keyed by session ID. No
// StateStore in this module uses it; each store package has its own
// keyedLock.
type sessionLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLock() *sessionLock {
	return &sessionLock{locks: map[string]*sync.Mutex{}}
}

func (l *sessionLock) acquire(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		close(done)
	}()
	select {
	case <-done:
		return m.Unlock, nil
	case <-ctx.Done():
		go func() { <-done; m.Unlock() }()
		return nil, ctx.Err()
	}
}
