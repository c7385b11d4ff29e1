// Package mongostore provides MongoDB-backed implementations of every
// storage seam the scheduler depends on: session.Store, session.StateStore,
// plan.Store, run.Store and runlog.Store. Each store is a thin type that
// delegates to a narrow collection interface rather than the concrete
// mongo-driver types, so tests can substitute a fake without standing up a
// real database.
package mongostore

import (
	"context"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// collection is the narrow surface every store needs from a
// *mongodriver.Collection. Declaring it here instead of importing the driver
// type directly into each store keeps the stores testable against a fake.
type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	InsertOne(ctx context.Context, doc any) error
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOptions]) (matched int64, err error)
	DeleteOne(ctx context.Context, filter any) error
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	Close(ctx context.Context) error
	Decode(val any) error
	Err() error
	Next(ctx context.Context) bool
}

// mongoCollection adapts a *mongodriver.Collection to the collection
// interface above.
type mongoCollection struct {
	coll *mongodriver.Collection
}

func wrap(coll *mongodriver.Collection) mongoCollection {
	return mongoCollection{coll: coll}
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return mongoSingleResult{res: c.coll.FindOne(ctx, filter, opts...)}
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return mongoCursor{cur: cur}, nil
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any) error {
	_, err := c.coll.InsertOne(ctx, doc)
	return err
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOptions]) (int64, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter any) error {
	_, err := c.coll.DeleteOne(ctx, filter)
	return err
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoSingleResult struct {
	res *mongodriver.SingleResult
}

func (r mongoSingleResult) Decode(val any) error { return r.res.Decode(val) }

type mongoCursor struct {
	cur *mongodriver.Cursor
}

func (c mongoCursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
func (c mongoCursor) Decode(val any) error            { return c.cur.Decode(val) }
func (c mongoCursor) Err() error                      { return c.cur.Err() }
func (c mongoCursor) Next(ctx context.Context) bool   { return c.cur.Next(ctx) }

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}

var errNoDocuments = mongodriver.ErrNoDocuments

func isDuplicateKey(err error) bool {
	return mongodriver.IsDuplicateKeyError(err)
}
