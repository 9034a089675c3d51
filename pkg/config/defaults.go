package config

import (
	"time"

	"github.com/trainloop/capture/pkg/capture/decode"
)

// Default values for configuration fields.
const (
	// Capture defaults
	DefaultLogLevel      = "warn"
	DefaultLogFormat     = "json"
	DefaultBatchLen      = 5
	DefaultFlushInterval = 10 * time.Second
	DefaultMaxBodyBytes  = decode.DefaultMaxBodyBytes

	// Retention defaults
	DefaultPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultMetricsNamespace   = "trainloop"
	DefaultMetricsSubsystem   = "capture"
	DefaultTracingEndpoint    = "localhost:4318"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingService     = "trainloop-capture"

	// File discovery
	DefaultFileName  = "trainloop.config.yaml"
	DefaultDirName   = "trainloop"
	DefaultEnvFile   = ".env"
	EnvConfigPath    = "TRAINLOOP_CONFIG_PATH"
	EnvDataFolder    = "TRAINLOOP_DATA_FOLDER"
	EnvHostAllowlist = "TRAINLOOP_HOST_ALLOWLIST"
	EnvLogLevel      = "TRAINLOOP_LOG_LEVEL"
)

var (
	// DefaultFlushDurationBuckets spans local disk appends to slow object stores.
	DefaultFlushDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

	// DefaultFlushRecordsBuckets covers single-record flushes to large backlogs.
	DefaultFlushRecordsBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 500}
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if len(cfg.HostAllowlist) == 0 {
		cfg.HostAllowlist = append([]string(nil), decode.DefaultHostAllowlist...)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.BatchLen == 0 {
		cfg.BatchLen = DefaultBatchLen
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.CallsiteSkipPrefixes) == 0 {
		cfg.CallsiteSkipPrefixes = append([]string(nil), decode.DefaultSkipPrefixes...)
	}

	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultPruneSchedule
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Metrics.FlushDurationBuckets) == 0 {
		cfg.Metrics.FlushDurationBuckets = DefaultFlushDurationBuckets
	}
	if len(cfg.Metrics.FlushRecordsBuckets) == 0 {
		cfg.Metrics.FlushRecordsBuckets = DefaultFlushRecordsBuckets
	}

	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingService
	}
}
