package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rudi77/taskreactor/plan"
)

// PlanStore is a MongoDB-backed plan.Store. Each plan is stored as a single
// document keyed by its ID; steps live embedded in the document since a
// plan's steps are always read and written as a whole.
type PlanStore struct {
	coll    collection
	timeout time.Duration
}

// NewPlanStore returns a PlanStore backed by opts.Client.
func NewPlanStore(ctx context.Context, opts Options) (*PlanStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	names := opts.Collections.withDefaults()
	coll := wrap(opts.Client.Database(opts.Database).Collection(names.Plans))
	ictx, cancel := withTimeout(ctx, opts.timeout())
	defer cancel()
	idx := mongodriver.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := coll.Indexes().CreateOne(ictx, idx); err != nil {
		return nil, err
	}
	return &PlanStore{coll: coll, timeout: opts.timeout()}, nil
}

// planDocument mirrors plan.Plan for storage; it exists separately so the
// wire/storage shape can evolve without touching the domain type.
type planDocument struct {
	*plan.Plan `bson:",inline"`
}

func (s *PlanStore) Create(ctx context.Context, p *plan.Plan) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.coll.InsertOne(ctx, planDocument{p}); err != nil {
		if isDuplicateKey(err) {
			return errors.New("mongostore: plan already exists")
		}
		return err
	}
	return nil
}

func (s *PlanStore) Load(ctx context.Context, id string) (*plan.Plan, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	var p plan.Plan
	if err := s.coll.FindOne(ctx, bson.M{"id": id}).Decode(&p); err != nil {
		if errors.Is(err, errNoDocuments) {
			return nil, plan.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PlanStore) Update(ctx context.Context, p *plan.Plan) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	matched, err := s.coll.UpdateOne(ctx, bson.M{"id": p.ID}, bson.M{"$set": planDocument{p}})
	if err != nil {
		return err
	}
	if matched == 0 {
		return plan.ErrNotFound
	}
	return nil
}

func (s *PlanStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.coll.DeleteOne(ctx, bson.M{"id": id})
}

func (s *PlanStore) Path(string) string { return "" }
