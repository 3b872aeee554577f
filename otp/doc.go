// Package otp issues and verifies second-factor codes for the verification
// pipeline.
//
// Three proof kinds are supported:
//
//   - Issued codes: random fixed-width numeric codes handed to an
//     out-of-band [Delivery] channel. Single use, bounded lifetime and
//     attempt count, at most one outstanding per identity.
//   - Derived codes: RFC 6238 time-based codes recomputed from a shared
//     secret. Stateless and repeatable within a time step.
//   - Backup codes: pre-generated single-use recovery codes.
//
// # Architecture boundaries
//
// Only digests of issued and backup codes are retained. Derived secrets are
// held in memory for the lifetime of the [Issuer] and surfaced through
// [Issuer.Export] for an external persister.
//
// # What this package must NOT do
//
//   - Send codes itself; delivery is the caller's collaborator.
//   - Log codes or secrets.
package otp
