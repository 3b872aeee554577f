// Package credential holds per-identity secret digests and the consecutive
// failure counters that drive credential lockout.
//
// # Lockout
//
// Once an identity accumulates Threshold consecutive failures and the most
// recent failure is younger than Window, [Store.Check] answers [LockedOut]
// without comparing secrets and without advancing the counter. A successful
// comparison clears the state.
//
// # Architecture boundaries
//
// Digest derivation is delegated to a [Hasher] (the password package in
// production). Unknown identities are answered with the same [Rejected]
// decision as a wrong secret and never acquire lockout state.
//
// # What this package must NOT do
//
//   - Reveal whether an identity exists.
//   - Log secrets or digests.
package credential
