package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trainloop/capture/pkg/config"
)

// CaptureMetrics tracks what the transport tap sees.
//
// Metrics:
//   - trainloop_capture_calls_captured_total: Captured calls by mode
//   - trainloop_capture_capture_errors_total: Internal capture failures by kind
//   - trainloop_capture_dropped_records_total: Records lost by reason
type CaptureMetrics struct {
	callsCaptured  *prometheus.CounterVec
	captureErrors  *prometheus.CounterVec
	droppedRecords *prometheus.CounterVec
}

// NewCaptureMetrics creates and registers capture metrics with the provided registry.
func NewCaptureMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CaptureMetrics {
	cm := &CaptureMetrics{
		callsCaptured: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "calls_captured_total",
				Help:      "Total number of LLM calls intercepted, by capture mode",
			},
			[]string{"mode"},
		),

		captureErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "capture_errors_total",
				Help:      "Total number of internal capture failures, by stage",
			},
			[]string{"kind"},
		),

		droppedRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dropped_records_total",
				Help:      "Total number of call records that were never persisted, by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		cm.callsCaptured,
		cm.captureErrors,
		cm.droppedRecords,
	)

	return cm
}

// RecordCall increments the captured-call counter for mode.
func (cm *CaptureMetrics) RecordCall(mode string) {
	cm.callsCaptured.WithLabelValues(mode).Inc()
}

// RecordError increments the capture-error counter for kind.
func (cm *CaptureMetrics) RecordError(kind string) {
	cm.captureErrors.WithLabelValues(kind).Inc()
}

// RecordDropped adds n to the dropped-record counter for reason.
func (cm *CaptureMetrics) RecordDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	cm.droppedRecords.WithLabelValues(reason).Add(float64(n))
}
