// Package redisstore persists goVerify identity state in Redis.
//
// [Store] implements goVerify.Persister. Each identity is one string key
// holding a versioned blob; a set indexes the identities written by the last
// save so loads never need SCAN.
//
// # Key layout
//
//	<prefix>:id:<identity>   versioned state blob
//	<prefix>:ids             set of persisted identities
//
// # What this package must NOT do
//
//   - Interpret state beyond the identity field.
//   - Hold identity locks. Callers snapshot the engine before saving.
package redisstore
