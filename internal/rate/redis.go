package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds fixed-window tuning parameters.
type RedisConfig struct {
	MaxPerIdentity int
	MaxPerIP       int
	Window         time.Duration
}

// Redis enforces per-identity and per-IP admission budgets using Redis counters.
type Redis struct {
	redis  redis.UniversalClient
	config RedisConfig
}

// NewRedis creates a [Redis] limiter backed by the given client.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Redis{redis: client, config: cfg}
}

// Admit counts one attempt for identity and clientIP. A zero budget disables
// that dimension.
func (l *Redis) Admit(ctx context.Context, identity, clientIP string) error {
	if l.config.MaxPerIdentity > 0 {
		if err := l.hit(ctx, identityKey(identity), l.config.MaxPerIdentity); err != nil {
			return err
		}
	}
	if l.config.MaxPerIP > 0 && clientIP != "" {
		if err := l.hit(ctx, ipKey(clientIP), l.config.MaxPerIP); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the identity counter, typically after a successful verification.
func (l *Redis) Reset(ctx context.Context, identity string) error {
	if err := l.redis.Del(ctx, identityKey(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Redis) hit(ctx context.Context, key string, limit int) error {
	count, err := l.incrementWithTTL(ctx, key, l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Redis) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func identityKey(identity string) string { return "gva:" + identity }
func ipKey(ip string) string             { return "gvi:" + ip }
