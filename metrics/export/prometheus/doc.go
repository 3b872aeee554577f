// Package prometheus renders goVerify pipeline metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [goVerify.Engine] and exposes an
// [http.Handler]. Counter names are prefixed goverify_*_total, per-stage
// rejections share the goverify_stage_rejections_total family with a stage
// label, and the single histogram is goverify_pipeline_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
