// Package sqlitestore is a durable goVerify.AuditSink backed by SQLite.
//
// Events are appended to a single table and can be read back with
// [Sink.Query] for incident review. The pure-Go modernc driver is used so
// the binary stays cgo free.
//
// The sink is called from the engine's audit dispatcher goroutine. Write
// failures are logged and counted, never returned to the pipeline.
package sqlitestore
