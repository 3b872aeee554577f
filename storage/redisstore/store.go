package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

const deleteStateScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteStateLua = redis.NewScript(deleteStateScript)

// Store is a Redis-backed goVerify.Persister.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ goVerify.Persister = (*Store)(nil)

// NewStore returns a store writing under prefix ("gv" when empty).
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "gv"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(identity string) string {
	return s.prefix + ":id:" + identity
}

func (s *Store) indexKey() string {
	return s.prefix + ":ids"
}

// SaveStates replaces the persisted set with states. Identities missing from
// states are removed in the same transaction.
//
//	Performance: 1 SMEMBERS + one MULTI/EXEC of len(states)+stale commands.
func (s *Store) SaveStates(ctx context.Context, states []goVerify.IdentityState) error {
	blobs := make(map[string][]byte, len(states))
	for _, st := range states {
		data, err := Encode(st)
		if err != nil {
			return err
		}
		blobs[st.Identity] = data
	}

	existing, err := s.redis.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range existing {
			if _, keep := blobs[id]; !keep {
				pipe.Del(ctx, s.key(id))
				pipe.SRem(ctx, s.indexKey(), id)
			}
		}
		for id, data := range blobs {
			pipe.Set(ctx, s.key(id), data, 0)
			pipe.SAdd(ctx, s.indexKey(), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// LoadStates returns every indexed state ordered by identity. Index entries
// whose blob vanished are skipped.
//
//	Performance: 1 SMEMBERS + 1 MGET.
func (s *Store) LoadStates(ctx context.Context) ([]goVerify.IdentityState, error) {
	ids, err := s.redis.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]goVerify.IdentityState, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		st, err := Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("identity %q: %w", ids[i], err)
		}
		out = append(out, st)
	}
	return out, nil
}

// DeleteState removes one identity. It reports whether a blob existed and is
// idempotent.
func (s *Store) DeleteState(ctx context.Context, identity string) (bool, error) {
	n, err := deleteStateLua.Run(ctx, s.redis, []string{s.key(identity), s.indexKey()}, identity).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

// Count returns the number of indexed identities.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.redis.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Ping measures one Redis round trip.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
