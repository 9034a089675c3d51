// Package telemetry groups the observability used by capture sessions.
//
// # Components
//
//   - logging: slog handler with a runtime-adjustable level and secret redaction
//   - metrics: Prometheus capture and flush metrics on a per-session registry
//   - tracing: one OpenTelemetry span per captured call
//   - health: liveness and readiness probes for the admin endpoint
//
// None of the components register themselves globally. A session builds one
// of each from its configuration and wires them into the tap, the exporter
// and the admin handler.
package telemetry
