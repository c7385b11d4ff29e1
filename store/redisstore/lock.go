package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// releaseScript deletes the lock key only if it still holds the token this
// holder set, so a caller can never release a lock it no longer owns (e.g.
// one whose lease already expired and was claimed by someone else).
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// renewScript extends the lock's TTL only if the caller still holds it.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// ErrLocked indicates another holder currently owns the lock for this key.
var ErrLocked = errors.New("redisstore: lock held by another caller")

// acquireLock claims key via SETNX with a TTL lease, then renews the lease on a
// background ticker for as long as the caller holds it, so a single
// execute/resume call spanning many scheduler iterations never loses the
// lock mid-run. Release stops the ticker and deletes the key if this
// holder's token still matches.
func (s *StateStore) acquireLock(ctx context.Context, sessionID string) (func(), error) {
	key := s.lockKey(sessionID)
	token := uuid.NewString()
	ttl := s.opts.lockTTL()

	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-renewCtx.Done():
				return
			case <-ticker.C:
				s.client.Eval(renewCtx, renewScript, []string{key}, token, ttl.Milliseconds())
			}
		}
	}()

	release := func() {
		cancel()
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer releaseCancel()
		s.client.Eval(releaseCtx, releaseScript, []string{key}, token)
	}
	return release, nil
}

// waitForLock polls acquireLock every 50ms until it succeeds, fails with an
// error other than ErrLocked, or ctx is canceled; the wait has no other
// bound.
func (s *StateStore) waitForLock(ctx context.Context, sessionID string) (func(), error) {
	const pollInterval = 50 * time.Millisecond
	for {
		release, err := s.acquireLock(ctx, sessionID)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, ErrLocked) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
