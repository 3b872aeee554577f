package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local admits at most Burst attempts at once per key and refills at
// PerSecond tokens per second.
type Local struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewLocal builds an in-process limiter. A non-positive burst is raised to 1.
func NewLocal(perSecond float64, burst int) *Local {
	if burst <= 0 {
		burst = 1
	}
	return &Local{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Admit consumes one token for identity and, when set, for clientIP.
func (l *Local) Admit(_ context.Context, identity, clientIP string) error {
	now := l.now()
	if !l.get("id:"+identity, now).AllowN(now, 1) {
		return ErrRateLimited
	}
	if clientIP != "" && !l.get("ip:"+clientIP, now).AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// Sweep drops buckets idle since before cutoff and returns how many were removed.
func (l *Local) Sweep(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

func (l *Local) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.visitors[key] = &visitor{limiter: limiter, lastSeen: now}
	return limiter
}
