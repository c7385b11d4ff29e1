package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rudi77/taskreactor/session"
)

// SessionStore is a MongoDB-backed session.Store.
type SessionStore struct {
	coll    collection
	timeout time.Duration
}

// NewSessionStore returns a SessionStore backed by opts.Client, creating the
// unique session_id index if it does not already exist.
func NewSessionStore(ctx context.Context, opts Options) (*SessionStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	names := opts.Collections.withDefaults()
	coll := wrap(opts.Client.Database(opts.Database).Collection(names.Sessions))
	ictx, cancel := withTimeout(ctx, opts.timeout())
	defer cancel()
	idx := mongodriver.IndexModel{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := coll.Indexes().CreateOne(ictx, idx); err != nil {
		return nil, err
	}
	return &SessionStore{coll: coll, timeout: opts.timeout()}, nil
}

type sessionDocument struct {
	SessionID string         `bson:"session_id"`
	Status    session.Status `bson:"status"`
	CreatedAt time.Time      `bson:"created_at"`
	EndedAt   *time.Time     `bson:"ended_at,omitempty"`
}

func (d sessionDocument) toSession() session.Session {
	return session.Session{ID: d.SessionID, Status: d.Status, CreatedAt: d.CreatedAt.UTC(), EndedAt: d.EndedAt}
}

func (s *SessionStore) CreateSession(ctx context.Context, id string, createdAt time.Time) (session.Session, error) {
	if id == "" {
		return session.Session{}, errors.New("mongostore: session id is required")
	}
	existing, err := s.LoadSession(ctx, id)
	if err == nil {
		if existing.Status == session.StatusEnded {
			return session.Session{}, session.ErrEnded
		}
		return existing, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return session.Session{}, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	filter := bson.M{"session_id": id}
	update := bson.M{
		"$setOnInsert": bson.M{
			"session_id": id,
			"status":     session.StatusActive,
			"created_at": createdAt.UTC(),
		},
	}
	if _, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return session.Session{}, err
	}
	return s.LoadSession(ctx, id)
}

func (s *SessionStore) LoadSession(ctx context.Context, id string) (session.Session, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	var doc sessionDocument
	if err := s.coll.FindOne(ctx, bson.M{"session_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, errNoDocuments) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, err
	}
	return doc.toSession(), nil
}

func (s *SessionStore) EndSession(ctx context.Context, id string, endedAt time.Time) (session.Session, error) {
	existing, err := s.LoadSession(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if existing.Status == session.StatusEnded {
		return existing, nil
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	update := bson.M{"$set": bson.M{"status": session.StatusEnded, "ended_at": endedAt.UTC()}}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"session_id": id}, update); err != nil {
		return session.Session{}, err
	}
	return s.LoadSession(ctx, id)
}
