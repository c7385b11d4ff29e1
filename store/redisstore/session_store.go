package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rudi77/taskreactor/session"
)

// SessionStore is a Redis-backed session.Store, storing each Session as a
// JSON string value with an idempotent SETNX create.
type SessionStore struct {
	client *redis.Client
	opts   Options
}

// NewSessionStore returns a SessionStore backed by the given Redis client.
func NewSessionStore(client *redis.Client, opts Options) *SessionStore {
	return &SessionStore{client: client, opts: opts}
}

func (s *SessionStore) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.opts.keyPrefix(), id)
}

func (s *SessionStore) CreateSession(ctx context.Context, id string, createdAt time.Time) (session.Session, error) {
	if id == "" {
		return session.Session{}, errors.New("redisstore: session id is required")
	}
	sess := session.Session{ID: id, Status: session.StatusActive, CreatedAt: createdAt.UTC()}
	data, err := json.Marshal(sess)
	if err != nil {
		return session.Session{}, err
	}

	set, err := s.client.SetNX(ctx, s.key(id), data, s.opts.stateTTL()).Result()
	if err != nil {
		return session.Session{}, err
	}
	if set {
		return sess, nil
	}
	existing, err := s.LoadSession(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if existing.Status == session.StatusEnded {
		return session.Session{}, session.ErrEnded
	}
	return existing, nil
}

func (s *SessionStore) LoadSession(ctx context.Context, id string) (session.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, err
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *SessionStore) EndSession(ctx context.Context, id string, endedAt time.Time) (session.Session, error) {
	existing, err := s.LoadSession(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if existing.Status == session.StatusEnded {
		return existing, nil
	}
	at := endedAt.UTC()
	existing.Status = session.StatusEnded
	existing.EndedAt = &at

	data, err := json.Marshal(existing)
	if err != nil {
		return session.Session{}, err
	}
	if err := s.client.Set(ctx, s.key(id), data, s.opts.stateTTL()).Err(); err != nil {
		return session.Session{}, err
	}
	return existing, nil
}
