// Package middleware exposes HTTP guards that admit requests carrying a grant
// token issued by a successful goVerify pipeline run.
//
// # Guards
//
//   - [Guard]: verifies the bearer grant and applies a caller predicate.
//   - [RequireGrant]: any valid grant, optionally restricted to an identity set.
//   - [RequireNormalResponse]: valid grant whose adaptive response was NORMAL.
//
// Each guard reads the Authorization header, calls ParseGrant on the engine and
// injects the verified claims into the request context.
//
// # What this package must NOT do
//
//   - Sign grant tokens.
//   - Run pipeline stages.
//   - Leak the verification error to the client.
package middleware
