package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trainloop/capture/pkg/config"
)

// FlushMetrics tracks the exporter buffer and its writes to storage.
//
// Metrics:
//   - trainloop_capture_records_emitted_total: Records handed to the exporter
//   - trainloop_capture_flushes_total: Successful flushes by trigger
//   - trainloop_capture_flush_records: Records per successful flush
//   - trainloop_capture_flush_duration_seconds: Storage write latency
//   - trainloop_capture_buffer_records: Records waiting in the buffer
type FlushMetrics struct {
	recordsEmitted prometheus.Counter
	flushesTotal   *prometheus.CounterVec
	flushRecords   *prometheus.HistogramVec
	flushDuration  *prometheus.HistogramVec
	bufferRecords  prometheus.Gauge
}

// NewFlushMetrics creates and registers flush metrics with the provided registry.
func NewFlushMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *FlushMetrics {
	fm := &FlushMetrics{
		recordsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "records_emitted_total",
				Help:      "Total number of call records buffered for export",
			},
		),

		flushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "flushes_total",
				Help:      "Total number of successful buffer flushes, by trigger",
			},
			[]string{"trigger"},
		),

		flushRecords: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "flush_records",
				Help:      "Number of records written per flush",
				Buckets:   cfg.FlushRecordsBuckets,
			},
			[]string{"trigger"},
		),

		flushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "flush_duration_seconds",
				Help:      "Duration of storage writes in seconds",
				Buckets:   cfg.FlushDurationBuckets,
			},
			[]string{"trigger"},
		),

		bufferRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "buffer_records",
				Help:      "Number of records waiting in the exporter buffer",
			},
		),
	}

	registry.MustRegister(
		fm.recordsEmitted,
		fm.flushesTotal,
		fm.flushRecords,
		fm.flushDuration,
		fm.bufferRecords,
	)

	return fm
}

// RecordEmitted counts one buffered record.
func (fm *FlushMetrics) RecordEmitted() {
	fm.recordsEmitted.Inc()
}

// RecordFlush records a successful flush.
func (fm *FlushMetrics) RecordFlush(trigger string, records int, took time.Duration) {
	fm.flushesTotal.WithLabelValues(trigger).Inc()
	fm.flushRecords.WithLabelValues(trigger).Observe(float64(records))
	fm.flushDuration.WithLabelValues(trigger).Observe(took.Seconds())
}

// SetBufferSize updates the buffer gauge.
func (fm *FlushMetrics) SetBufferSize(n int) {
	fm.bufferRecords.Set(float64(n))
}
