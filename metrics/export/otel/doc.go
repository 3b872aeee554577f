// Package otel binds goVerify pipeline metrics to OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per pipeline counter,
// one stage-attributed counter for per-stage rejections, and an
// Int64ObservableGauge per histogram bucket. A single callback reads
// [goVerify.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
