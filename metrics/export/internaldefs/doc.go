// Package internaldefs names every goVerify metric once so the Prometheus
// and OTel exporters publish the same series.
//
// Counters map engine [goVerify.MetricID] values to goverify_* names. Stage
// rejections are a single labelled family keyed by stage name. The pipeline
// latency histogram shares its bucket bounds with the engine's fixed
// eight-bucket layout.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
