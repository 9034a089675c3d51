// Package metrics provides Prometheus metrics for the capture pipeline.
//
// # Metrics
//
// Capture (recorded by the transport tap):
//
//   - calls_captured_total{mode}: Intercepted LLM calls (stream, buffered,
//     transport_error)
//   - capture_errors_total{kind}: Internal failures that left a call
//     uncaptured or partially decoded
//   - dropped_records_total{reason}: Records never persisted (canceled,
//     read_error, unconfigured, write_error, ...)
//
// Export (recorded by the exporter):
//
//   - records_emitted_total: Records handed to the buffer
//   - flushes_total{trigger}: Successful flushes (batch, interval, manual,
//     shutdown)
//   - flush_records{trigger}: Records per flush
//   - flush_duration_seconds{trigger}: Storage write latency
//   - buffer_records: Records currently buffered
//
// All names carry the configured namespace and subsystem, trainloop_capture_
// by default.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Metrics, nil)
//	rt := tap.New(nil, sink, tap.Options{Metrics: collector})
//	exp := exporter.New(writer, exporter.DefaultConfig(), collector)
//	mux.Handle("/metrics", collector.Handler())
//
// Each collector uses its own registry, so sessions never collide on the
// global Prometheus registry.
package metrics
