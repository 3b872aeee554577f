// Package goVerify provides a staged identity-verification engine. An attempt
// passes five ordered stages (credential, second factor, biometric, key-layer
// proof, risk gate) and is granted only when all of them pass.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Attempts for distinct identities run in parallel; attempts
// for the same identity are serialized.
//
// # Architecture boundaries
//
// goVerify is the public surface. It exposes [Engine], [Builder], [Config] and
// value types ([PipelineResult], [Report], [MetricsSnapshot]). Each stage lives
// in its own sub-package (credential, otp, biometric, keylayer, risk) and is
// consumed through a small interface so callers can swap implementations.
// Coordination helpers (per-identity locks, admission limiting) live under
// internal/.
//
// # Outcomes
//
// A rejection is a value: [PipelineResult] with Authenticated false and a
// failure stage and reason. Only setup defects ([ConfigurationFault]) and
// cancellation ([ErrAttemptAbandoned]) are returned as errors.
//
// # What this package must NOT do
//
//   - Reveal whether an identity exists: unknown identities and wrong secrets
//     are rejected identically.
//   - Put secrets, codes, key material or biometric vectors in results, logs
//     or audit events.
//   - Import any sub-package that re-imports goVerify (no import cycles).
package goVerify
