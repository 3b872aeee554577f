package rate

import "errors"

var (
	// ErrRateLimited is returned when a key has exhausted its admission budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend failures of the Redis limiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
