package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trainloop/capture/pkg/capture/exporter"
	"github.com/trainloop/capture/pkg/capture/tap"
	"github.com/trainloop/capture/pkg/config"
)

var (
	_ tap.Metrics      = (*Collector)(nil)
	_ exporter.Metrics = (*Collector)(nil)
)

// Collector owns every capture metric and the registry they live in. It
// satisfies both tap.Metrics and exporter.Metrics, so one collector is shared
// by a session's transport and exporter.
//
// When metrics are disabled every method is a no-op and the registry stays
// empty.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	captureMetrics *CaptureMetrics
	flushMetrics   *FlushMetrics
}

// NewCollector creates a collector with the specified configuration. If
// registry is nil, a fresh registry is created; the global Prometheus
// registry is never touched, so several sessions can coexist.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "trainloop",
//		Subsystem: "capture",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.FlushDurationBuckets) == 0 {
		cfg.FlushDurationBuckets = config.DefaultFlushDurationBuckets
	}
	if len(cfg.FlushRecordsBuckets) == 0 {
		cfg.FlushRecordsBuckets = config.DefaultFlushRecordsBuckets
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}
	if cfg.Enabled {
		c.captureMetrics = NewCaptureMetrics(cfg, registry)
		c.flushMetrics = NewFlushMetrics(cfg, registry)
	}

	return c
}

// Enabled reports whether metrics are being recorded.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// CallCaptured records an intercepted LLM call. mode is one of the tap
// capture modes: stream, buffered or transport_error.
func (c *Collector) CallCaptured(mode string) {
	if !c.config.Enabled {
		return
	}
	c.captureMetrics.RecordCall(mode)
}

// CaptureError records an internal capture failure at the named stage.
func (c *Collector) CaptureError(kind string) {
	if !c.config.Enabled {
		return
	}
	c.captureMetrics.RecordError(kind)
}

// RecordsDropped records n call records lost for reason.
func (c *Collector) RecordsDropped(reason string, n int) {
	if !c.config.Enabled {
		return
	}
	c.captureMetrics.RecordDropped(reason, n)
}

// RecordEmitted records a call record entering the export buffer.
func (c *Collector) RecordEmitted() {
	if !c.config.Enabled {
		return
	}
	c.flushMetrics.RecordEmitted()
}

// Flushed records a successful flush of records after trigger.
func (c *Collector) Flushed(trigger string, records int, took time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.flushMetrics.RecordFlush(trigger, records, took)
}

// BufferSize updates the current export buffer length.
func (c *Collector) BufferSize(n int) {
	if !c.config.Enabled {
		return
	}
	c.flushMetrics.SetBufferSize(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
