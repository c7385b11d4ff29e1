package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rudi77/taskreactor/run"
)

// RunStore is a MongoDB-backed run.Store.
type RunStore struct {
	coll    collection
	timeout time.Duration
}

// NewRunStore returns a RunStore backed by opts.Client.
func NewRunStore(ctx context.Context, opts Options) (*RunStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	names := opts.Collections.withDefaults()
	coll := wrap(opts.Client.Database(opts.Database).Collection(names.Runs))
	ictx, cancel := withTimeout(ctx, opts.timeout())
	defer cancel()
	runIdx := mongodriver.IndexModel{Keys: bson.D{{Key: "run_id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := coll.Indexes().CreateOne(ictx, runIdx); err != nil {
		return nil, err
	}
	sessionIdx := mongodriver.IndexModel{Keys: bson.D{{Key: "session_id", Value: 1}}}
	if _, err := coll.Indexes().CreateOne(ictx, sessionIdx); err != nil {
		return nil, err
	}
	return &RunStore{coll: coll, timeout: opts.timeout()}, nil
}

type runDocument struct {
	RunID     string            `bson:"run_id"`
	SessionID string            `bson:"session_id"`
	PlanID    string            `bson:"plan_id"`
	Status    run.Status        `bson:"status"`
	StartedAt time.Time         `bson:"started_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
	Labels    map[string]string `bson:"labels,omitempty"`
	Metadata  map[string]any    `bson:"metadata,omitempty"`
}

func fromRecord(r run.Record) runDocument {
	return runDocument{
		RunID: r.RunID, SessionID: r.SessionID, PlanID: r.PlanID, Status: r.Status,
		StartedAt: r.StartedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC(), Labels: r.Labels, Metadata: r.Metadata,
	}
}

func (d runDocument) toRecord() run.Record {
	return run.Record{
		RunID: d.RunID, SessionID: d.SessionID, PlanID: d.PlanID, Status: d.Status,
		StartedAt: d.StartedAt, UpdatedAt: d.UpdatedAt, Labels: d.Labels, Metadata: d.Metadata,
	}
}

func (s *RunStore) Upsert(ctx context.Context, rec run.Record) error {
	if rec.RunID == "" {
		return errors.New("mongostore: run id is required")
	}
	now := time.Now().UTC()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	rec.UpdatedAt = now
	doc := fromRecord(rec)

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	update := bson.M{
		"$set": bson.M{
			"run_id": doc.RunID, "session_id": doc.SessionID, "plan_id": doc.PlanID,
			"status": doc.Status, "updated_at": doc.UpdatedAt, "labels": doc.Labels, "metadata": doc.Metadata,
		},
		"$setOnInsert": bson.M{"started_at": doc.StartedAt},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"run_id": rec.RunID}, update, options.Update().SetUpsert(true))
	return err
}

func (s *RunStore) Load(ctx context.Context, runID string) (run.Record, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	var doc runDocument
	if err := s.coll.FindOne(ctx, bson.M{"run_id": runID}).Decode(&doc); err != nil {
		if errors.Is(err, errNoDocuments) {
			return run.Record{}, run.ErrNotFound
		}
		return run.Record{}, err
	}
	return doc.toRecord(), nil
}

func (s *RunStore) ListBySession(ctx context.Context, sessionID string) ([]run.Record, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{"session_id": sessionID}, options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []run.Record
	for cur.Next(ctx) {
		var doc runDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toRecord())
	}
	return out, cur.Err()
}
