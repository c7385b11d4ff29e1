package mongostore

import (
	"context"
	"errors"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
)

const defaultOpTimeout = 5 * time.Second

// Options configures the shared Mongo connection and collection names used
// by every store in this package. Pass the same Options to each New*
// constructor to have them share one underlying *mongo.Client.
type Options struct {
	Client      *mongodriver.Client
	Database    string
	Collections CollectionNames
	Timeout     time.Duration
}

// CollectionNames overrides the default collection name for each store.
// Zero values fall back to the defaults below.
type CollectionNames struct {
	Sessions string
	States   string
	Plans    string
	Runs     string
	RunLog   string
}

const (
	defaultSessionsCollection = "reactor_sessions"
	defaultStatesCollection   = "reactor_states"
	defaultPlansCollection    = "reactor_plans"
	defaultRunsCollection     = "reactor_runs"
	defaultRunLogCollection   = "reactor_runlog"
)

func (n CollectionNames) withDefaults() CollectionNames {
	if n.Sessions == "" {
		n.Sessions = defaultSessionsCollection
	}
	if n.States == "" {
		n.States = defaultStatesCollection
	}
	if n.Plans == "" {
		n.Plans = defaultPlansCollection
	}
	if n.Runs == "" {
		n.Runs = defaultRunsCollection
	}
	if n.RunLog == "" {
		n.RunLog = defaultRunLogCollection
	}
	return n
}

func (o Options) validate() error {
	if o.Client == nil {
		return errors.New("mongostore: client is required")
	}
	if o.Database == "" {
		return errors.New("mongostore: database name is required")
	}
	return nil
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultOpTimeout
	}
	return o.Timeout
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
