// Package inmem provides in-memory implementations of every store
// interface in the engine (session, state, plan, run, runlog), intended
// for tests and local development. Production deployments should use a
// durable backend (store/mongostore, store/filestore, store/redisstore).
package inmem

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rudi77/taskreactor/session"
)

// SessionStore is an in-memory implementation of session.Store. Safe for
// concurrent use.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]session.Session{}}
}

func (s *SessionStore) CreateSession(_ context.Context, id string, createdAt time.Time) (session.Session, error) {
	if id == "" {
		return session.Session{}, errors.New("inmem: session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		if existing.Status == session.StatusEnded {
			return session.Session{}, session.ErrEnded
		}
		return existing, nil
	}
	out := session.Session{ID: id, Status: session.StatusActive, CreatedAt: createdAt.UTC()}
	s.sessions[id] = out
	return out, nil
}

func (s *SessionStore) LoadSession(_ context.Context, id string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return out, nil
}

func (s *SessionStore) EndSession(_ context.Context, id string, endedAt time.Time) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if out.Status == session.StatusEnded {
		return out, nil
	}
	at := endedAt.UTC()
	out.Status = session.StatusEnded
	out.EndedAt = &at
	s.sessions[id] = out
	return out, nil
}
