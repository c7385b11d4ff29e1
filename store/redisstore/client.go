// Package redisstore provides Redis-backed session.Store and
// session.StateStore implementations, intended as the low-latency tier of a
// production deployment: session lifecycle and per-session scheduler state
// are read and written on every execute/resume call, while plan, run and
// runlog records (larger, less frequently hot) are better served by
// store/mongostore. StateStore.Lock here is a real cross-process
// distributed lock, unlike the in-process keyedLock duplicated across the
// other store packages.
package redisstore

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "taskreactor"
	defaultStateTTL  = 24 * time.Hour
	defaultLockTTL   = 30 * time.Second
)

// Options configures the shared Redis connection and key namespacing used by
// every store in this package.
type Options struct {
	Client    *redis.Client
	KeyPrefix string
	// StateTTL bounds how long session state and session records survive
	// without being touched; zero uses defaultStateTTL.
	StateTTL time.Duration
	// LockTTL bounds how long a claimed session lock survives without
	// renewal before another caller may steal it; zero uses defaultLockTTL.
	LockTTL time.Duration
}

func (o Options) keyPrefix() string {
	if o.KeyPrefix == "" {
		return defaultKeyPrefix
	}
	return o.KeyPrefix
}

func (o Options) stateTTL() time.Duration {
	if o.StateTTL <= 0 {
		return defaultStateTTL
	}
	return o.StateTTL
}

func (o Options) lockTTL() time.Duration {
	if o.LockTTL <= 0 {
		return defaultLockTTL
	}
	return o.LockTTL
}
