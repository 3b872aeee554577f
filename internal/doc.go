// Package internal holds helpers private to goVerify.
//
// # Sub-packages
//
//   - keyedlock: per-identity mutual exclusion with context-aware waits
//   - rate: admission limiters (in-process token buckets, Redis fixed windows)
//   - seed: TOML enrollment seeds applied at server startup
//   - settings: dotenv and environment configuration for the server binary
//
// # What this package must NOT do
//
//   - Export types that appear in the public goVerify API.
//   - Be imported by any package outside the goVerify module.
package internal
