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

// casScript atomically compares the stored document's _version against the
// expected version before writing, so two concurrent Save calls on the same
// session can never both succeed: the loser observes a version mismatch and
// returns session.ErrVersionConflict. Unlike store/mongostore's
// version-matched UpdateOne filter, Redis has no native document field
// query, so the compare happens inside the script via cjson.
const casScript = `
local current = redis.call("GET", KEYS[1])
local expected = tonumber(ARGV[2])
if current then
	local obj = cjson.decode(current)
	if obj["_version"] ~= expected then
		return -1
	end
else
	if expected ~= 0 then
		return -1
	end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`

// StateStore is a Redis-backed session.StateStore, storing each session's
// State as a single JSON string value.
type StateStore struct {
	client *redis.Client
	opts   Options
}

// NewStateStore returns a StateStore backed by the given Redis client.
func NewStateStore(client *redis.Client, opts Options) *StateStore {
	return &StateStore{client: client, opts: opts}
}

func (s *StateStore) stateKey(sessionID string) string {
	return fmt.Sprintf("%s:state:%s", s.opts.keyPrefix(), sessionID)
}

func (s *StateStore) lockKey(sessionID string) string {
	return fmt.Sprintf("%s:lock:%s", s.opts.keyPrefix(), sessionID)
}

func (s *StateStore) Load(ctx context.Context, sessionID string) (*session.State, error) {
	data, err := s.client.Get(ctx, s.stateKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.NewState(sessionID), nil
		}
		return nil, err
	}
	var st session.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *StateStore) Save(ctx context.Context, state *session.State) error {
	cp := state.Clone()
	expected := cp.Version
	cp.Version++
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	key := s.stateKey(cp.SessionID)
	ttlMS := s.opts.stateTTL().Milliseconds()
	res, err := s.client.Eval(ctx, casScript, []string{key}, string(data), expected, ttlMS).Result()
	if err != nil {
		return err
	}
	applied, _ := res.(int64)
	if applied != 1 {
		return session.ErrVersionConflict
	}
	*state = *cp
	return nil
}

func (s *StateStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	return s.waitForLock(ctx, sessionID)
}

func (s *StateStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.stateKey(sessionID)).Err()
}
