// Package rate provides admission limiters that bound how often an identity
// or client address may enter the verification pipeline.
//
// # Backends
//
//   - Local: in-process token buckets (golang.org/x/time/rate), one per key.
//   - Redis: fixed-window counters shared across instances. INCR plus a
//     conditional EXPIRE on the first hit. Key prefixes:
//   - gva: per identity
//   - gvi: per client IP
//
// # What this package must NOT do
//
//   - Decide pipeline outcomes (the engine maps ErrRateLimited to a rejection).
//   - Be imported outside the goVerify module.
package rate
