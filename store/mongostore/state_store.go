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

// StateStore is a MongoDB-backed session.StateStore. Mongo gives us
// durability and optimistic-concurrency filtering in a single round trip via
// a version-matched UpdateOne; cross-process mutual exclusion for the
// Lock method still needs a real distributed lock, provided by
// store/redisstore rather than duplicated here.
type StateStore struct {
	coll    collection
	timeout time.Duration
	locks   *keyedLock
}

// NewStateStore returns a StateStore backed by opts.Client.
func NewStateStore(ctx context.Context, opts Options) (*StateStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	names := opts.Collections.withDefaults()
	coll := wrap(opts.Client.Database(opts.Database).Collection(names.States))
	ictx, cancel := withTimeout(ctx, opts.timeout())
	defer cancel()
	idx := mongodriver.IndexModel{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := coll.Indexes().CreateOne(ictx, idx); err != nil {
		return nil, err
	}
	return &StateStore{coll: coll, timeout: opts.timeout(), locks: newKeyedLock()}, nil
}

// stateDocument mirrors session.State with explicit bson tags; session.State
// itself only carries json tags and its default (tag-less) bson encoding
// would collapse "session_id" to "sessionid", breaking the filters below.
type stateDocument struct {
	SessionID       string                   `bson:"session_id"`
	Version         int                      `bson:"version"`
	UpdatedAt       time.Time                `bson:"updated_at"`
	BoundPlanID     string                   `bson:"bound_plan_id,omitempty"`
	Answers         map[string]string        `bson:"answers"`
	PendingQuestion *session.PendingQuestion `bson:"pending_question,omitempty"`
	ApprovalCache   map[string]bool          `bson:"approval_cache"`
	TrustMode       bool                     `bson:"trust_mode"`
	ApprovalHistory []session.ApprovalRecord `bson:"approval_history"`
}

func fromState(s *session.State) stateDocument {
	return stateDocument{
		SessionID:       s.SessionID,
		Version:         s.Version,
		UpdatedAt:       s.UpdatedAt,
		BoundPlanID:     s.BoundPlanID,
		Answers:         s.Answers,
		PendingQuestion: s.PendingQuestion,
		ApprovalCache:   s.ApprovalCache,
		TrustMode:       s.TrustMode,
		ApprovalHistory: s.ApprovalHistory,
	}
}

func (d stateDocument) toState() *session.State {
	return &session.State{
		SessionID:       d.SessionID,
		Version:         d.Version,
		UpdatedAt:       d.UpdatedAt,
		BoundPlanID:     d.BoundPlanID,
		Answers:         d.Answers,
		PendingQuestion: d.PendingQuestion,
		ApprovalCache:   d.ApprovalCache,
		TrustMode:       d.TrustMode,
		ApprovalHistory: d.ApprovalHistory,
	}
}

func (s *StateStore) Load(ctx context.Context, sessionID string) (*session.State, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	var doc stateDocument
	err := s.coll.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err == nil {
		return doc.toState(), nil
	}
	if errors.Is(err, errNoDocuments) {
		return session.NewState(sessionID), nil
	}
	return nil, err
}

func (s *StateStore) Save(ctx context.Context, state *session.State) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	cp := state.Clone()
	cp.UpdatedAt = time.Now().UTC()
	nextVersion := cp.Version + 1

	if cp.Version == 0 {
		cp.Version = nextVersion
		update := bson.M{"$setOnInsert": fromState(cp)}
		if _, err := s.coll.UpdateOne(ctx, bson.M{"session_id": cp.SessionID}, update, options.Update().SetUpsert(true)); err != nil {
			if isDuplicateKey(err) {
				return session.ErrVersionConflict
			}
			return err
		}
		stored, err := s.Load(ctx, cp.SessionID)
		if err != nil {
			return err
		}
		if stored.Version != nextVersion {
			return session.ErrVersionConflict
		}
		*state = *stored
		return nil
	}

	filter := bson.M{"session_id": cp.SessionID, "version": state.Version}
	cp.Version = nextVersion
	matched, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": fromState(cp)})
	if err != nil {
		return err
	}
	if matched == 0 {
		return session.ErrVersionConflict
	}
	*state = *cp
	return nil
}

func (s *StateStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	return s.locks.acquire(ctx, sessionID)
}

func (s *StateStore) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.coll.DeleteOne(ctx, bson.M{"session_id": sessionID})
}
