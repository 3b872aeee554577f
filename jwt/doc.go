// Package jwt issues and verifies grant tokens: short-lived signed statements
// that an identity completed the verification pipeline.
//
// Tokens are signed with Ed25519 (default) or HS256 via golang-jwt. The
// subject is the identity and the token ID is the pipeline attempt ID, so a
// grant can be correlated with the access log entry that produced it.
package jwt
