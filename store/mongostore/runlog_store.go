package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rudi77/taskreactor/event"
	"github.com/rudi77/taskreactor/runlog"
)

// RunLogStore is a MongoDB-backed runlog.Store. Cursors are the hex encoding
// of the entry's ObjectID: Mongo's default ObjectID embeds a timestamp and a
// per-process counter, so sorting by _id gives a stable insertion order
// without a separate sequence counter.
type RunLogStore struct {
	coll    collection
	timeout time.Duration
}

// NewRunLogStore returns a RunLogStore backed by opts.Client.
func NewRunLogStore(ctx context.Context, opts Options) (*RunLogStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	names := opts.Collections.withDefaults()
	coll := wrap(opts.Client.Database(opts.Database).Collection(names.RunLog))
	ictx, cancel := withTimeout(ctx, opts.timeout())
	defer cancel()
	idx := mongodriver.IndexModel{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "_id", Value: 1}}}
	if _, err := coll.Indexes().CreateOne(ictx, idx); err != nil {
		return nil, err
	}
	return &RunLogStore{coll: coll, timeout: opts.timeout()}, nil
}

type runlogDocument struct {
	ID        bson.ObjectID  `bson:"_id,omitempty"`
	RunID     string         `bson:"run_id"`
	SessionID string         `bson:"session_id"`
	Type      event.Type     `bson:"type"`
	Data      map[string]any `bson:"data,omitempty"`
	Timestamp time.Time      `bson:"timestamp"`
}

func (s *RunLogStore) Append(ctx context.Context, runID, sessionID string, e event.Event) error {
	if runID == "" {
		return fmt.Errorf("mongostore: run id is required")
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	doc := runlogDocument{
		ID: bson.NewObjectID(), RunID: runID, SessionID: sessionID,
		Type: e.Type, Data: e.Data, Timestamp: e.Timestamp,
	}
	return s.coll.InsertOne(ctx, doc)
}

func (s *RunLogStore) List(ctx context.Context, runID string, cursor string, limit int) (runlog.Page, error) {
	if limit <= 0 {
		return runlog.Page{}, fmt.Errorf("mongostore: limit must be > 0")
	}
	filter := bson.M{"run_id": runID}
	if cursor != "" {
		oid, err := bson.ObjectIDFromHex(cursor)
		if err != nil {
			return runlog.Page{}, fmt.Errorf("mongostore: invalid cursor %q: %w", cursor, err)
		}
		filter["_id"] = bson.M{"$gt": oid}
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit)))
	if err != nil {
		return runlog.Page{}, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var entries []runlog.Entry
	for cur.Next(ctx) {
		var doc runlogDocument
		if err := cur.Decode(&doc); err != nil {
			return runlog.Page{}, err
		}
		entries = append(entries, runlog.Entry{
			ID:        doc.ID.Hex(),
			RunID:     doc.RunID,
			SessionID: doc.SessionID,
			Event:     event.Event{Type: doc.Type, Data: doc.Data, SessionID: doc.SessionID, Timestamp: doc.Timestamp},
			Timestamp: doc.Timestamp,
		})
	}
	if err := cur.Err(); err != nil {
		return runlog.Page{}, err
	}
	page := runlog.Page{Entries: entries}
	if len(entries) == limit {
		page.NextCursor = entries[len(entries)-1].ID
	}
	return page, nil
}
