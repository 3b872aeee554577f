// Package password derives and verifies one-way digests of identity secrets
// with Argon2id.
//
// # Output format
//
// Digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports digests produced with weaker parameters so an
// enrollment flow can re-hash them.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Lockout accounting and
// identity lookup belong to the credential package.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets.
//   - Import any other goVerify package.
//   - Log plaintext secrets or digests.
package password
