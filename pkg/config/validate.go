package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "retention.days").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"json", "text", "console"}
	validSchemes    = []string{"file", "mem", "s3", "gs", "sqlite"}

	metricNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateCapture(cfg)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateTracing(&cfg.Tracing)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateCapture(cfg *Config) []FieldError {
	var errs []FieldError

	if folder := strings.TrimSpace(cfg.DataFolder); strings.Contains(folder, "://") {
		u, err := url.Parse(folder)
		switch {
		case err != nil:
			errs = append(errs, FieldError{
				Field:   "data_folder",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		case !contains(validSchemes, u.Scheme):
			errs = append(errs, FieldError{
				Field:   "data_folder",
				Message: fmt.Sprintf("unsupported scheme %q (must be one of: %s)", u.Scheme, strings.Join(validSchemes, ", ")),
			})
		}
	}

	for i, host := range cfg.HostAllowlist {
		host = strings.TrimSpace(host)
		switch {
		case host == "":
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("host_allowlist[%d]", i),
				Message: "host must not be empty",
			})
		case strings.ContainsAny(host, "/:@ "):
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("host_allowlist[%d]", i),
				Message: fmt.Sprintf("%q must be a bare hostname without scheme, port or path", host),
			})
		}
	}

	if !contains(validLogLevels, strings.ToLower(cfg.LogLevel)) {
		errs = append(errs, FieldError{
			Field:   "log_level",
			Message: fmt.Sprintf("invalid log level %q (must be one of: %s)", cfg.LogLevel, strings.Join(validLogLevels, ", ")),
		})
	}
	if !contains(validLogFormats, strings.ToLower(cfg.LogFormat)) {
		errs = append(errs, FieldError{
			Field:   "log_format",
			Message: fmt.Sprintf("invalid log format %q (must be one of: %s)", cfg.LogFormat, strings.Join(validLogFormats, ", ")),
		})
	}

	if cfg.BatchLen < 1 {
		errs = append(errs, FieldError{
			Field:   "batch_len",
			Message: "must be at least 1",
		})
	}
	if cfg.FlushInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "flush_interval",
			Message: "must not be negative",
		})
	}
	if cfg.MaxBodyBytes < 1 {
		errs = append(errs, FieldError{
			Field:   "max_body_bytes",
			Message: "must be at least 1",
		})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.days",
			Message: "must not be negative",
		})
	}
	if cfg.MaxFiles < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.max_files",
			Message: "must not be negative",
		})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if !metricNameRe.MatchString(cfg.Namespace) {
		errs = append(errs, FieldError{
			Field:   "metrics.namespace",
			Message: fmt.Sprintf("%q is not a valid metric name component", cfg.Namespace),
		})
	}
	if !metricNameRe.MatchString(cfg.Subsystem) {
		errs = append(errs, FieldError{
			Field:   "metrics.subsystem",
			Message: fmt.Sprintf("%q is not a valid metric name component", cfg.Subsystem),
		})
	}
	if !increasing(cfg.FlushDurationBuckets) {
		errs = append(errs, FieldError{
			Field:   "metrics.flush_duration_buckets",
			Message: "buckets must be strictly increasing",
		})
	}
	if !increasing(cfg.FlushRecordsBuckets) {
		errs = append(errs, FieldError{
			Field:   "metrics.flush_records_buckets",
			Message: "buckets must be strictly increasing",
		})
	}

	return errs
}

func validateTracing(cfg *TracingConfig) []FieldError {
	var errs []FieldError

	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		errs = append(errs, FieldError{
			Field:   "tracing.sample_ratio",
			Message: "must be between 0.0 and 1.0",
		})
	}
	if cfg.Enabled && strings.TrimSpace(cfg.Endpoint) == "" {
		errs = append(errs, FieldError{
			Field:   "tracing.endpoint",
			Message: "endpoint is required when tracing is enabled",
		})
	}

	return errs
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func increasing(buckets []float64) bool {
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			return false
		}
	}
	return true
}
