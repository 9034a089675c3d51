package config

import (
	"strings"
	"time"
)

// File is the on-disk shape of trainloop.config.yaml. All capture settings
// live under the top-level "trainloop" key so the file can be shared with
// other tools.
type File struct {
	Trainloop Config `yaml:"trainloop"`
}

// Config is the complete capture configuration.
type Config struct {
	// DataFolder is where event files and the registry are written. A plain
	// path uses the local filesystem; file://, mem://, s3://, gs:// and
	// sqlite:// targets select other backends. Empty disables persistence:
	// records are still captured but every flush is dropped with a warning.
	DataFolder string `yaml:"data_folder"`

	// HostAllowlist lists provider hostnames whose calls are captured.
	// Default: api.openai.com, api.anthropic.com
	HostAllowlist []string `yaml:"host_allowlist"`

	// LogLevel is the minimum log level: debug, info, warn, error.
	// Default: "warn"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "json" or "text".
	// Default: "json"
	LogFormat string `yaml:"log_format"`

	// FlushImmediately writes every record as soon as it is captured.
	FlushImmediately bool `yaml:"flush_immediately"`

	// BatchLen is the number of buffered records that triggers a flush.
	// Default: 5
	BatchLen int `yaml:"batch_len"`

	// FlushInterval is the period of the background flush timer.
	// Default: 10s
	FlushInterval time.Duration `yaml:"flush_interval"`

	// MaxBodyBytes caps how much of each request and response body is kept.
	// Default: 2 MiB
	MaxBodyBytes int `yaml:"max_body_bytes"`

	// Buffered reads response bodies fully before returning them to the
	// caller, so the record is emitted inside the round trip.
	Buffered bool `yaml:"buffered"`

	// CallsiteSkipPrefixes lists import-path prefixes of client libraries
	// skipped when resolving the calling source location.
	CallsiteSkipPrefixes []string `yaml:"callsite_skip_prefixes"`

	// Retention controls pruning of old event files.
	Retention RetentionConfig `yaml:"retention"`

	// Metrics controls the Prometheus collector.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing controls per-call OpenTelemetry spans.
	Tracing TracingConfig `yaml:"tracing"`

	// Watch reloads log level and host allowlist when the file changes.
	Watch bool `yaml:"watch"`

	// Path is the file the configuration was loaded from. Empty when no file
	// was found.
	Path string `yaml:"-"`
}

// RetentionConfig contains event file retention settings.
type RetentionConfig struct {
	// Days is the number of days event files are kept. 0 keeps them forever.
	Days int `yaml:"days"`

	// MaxFiles caps the number of event files kept. 0 means no cap.
	MaxFiles int `yaml:"max_files"`

	// PruneSchedule is a standard 5-field cron expression.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// Enabled reports whether any retention limit is configured.
func (r RetentionConfig) Enabled() bool {
	return r.Days > 0 || r.MaxFiles > 0
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether capture metrics are registered.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "trainloop"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "capture"
	Subsystem string `yaml:"subsystem"`

	// FlushDurationBuckets defines histogram buckets for flush latency (seconds).
	FlushDurationBuckets []float64 `yaml:"flush_duration_buckets"`

	// FlushRecordsBuckets defines histogram buckets for records per flush.
	FlushRecordsBuckets []float64 `yaml:"flush_records_buckets"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether capture spans are exported.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector address.
	// Default: "localhost:4318"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of calls traced (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service name in traces.
	// Default: "trainloop-capture"
	ServiceName string `yaml:"service_name"`
}

// EffectiveBatchLen returns the flush threshold, honoring FlushImmediately.
func (c *Config) EffectiveBatchLen() int {
	if c.FlushImmediately {
		return 1
	}
	return c.BatchLen
}

// Persistent reports whether captured records are written anywhere.
func (c *Config) Persistent() bool {
	return strings.TrimSpace(c.DataFolder) != ""
}
