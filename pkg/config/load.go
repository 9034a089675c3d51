package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LookupFunc resolves an environment variable. It matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load discovers, reads and validates the configuration.
//
// path may name a config file, a directory holding one, or be empty. Values
// are layered with the following precedence (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. The trainloop section of the YAML file
//  3. TRAINLOOP_* variables from a .env file next to the config
//  4. TRAINLOOP_* variables from the process environment
//
// A missing config file is not an error; defaults and environment still
// apply. The .env file is read without modifying the process environment.
func Load(path string) (*Config, error) {
	return LoadWithLookup(path, os.LookupEnv)
}

// LoadWithLookup is Load with an injectable process environment.
func LoadWithLookup(path string, lookup LookupFunc) (*Config, error) {
	file, err := discover(path, lookup)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	baseDir := "."
	if file != "" {
		if cfg, err = readFile(file); err != nil {
			return nil, err
		}
		baseDir = filepath.Dir(file)
		cfg.DataFolder = resolveDataFolder(cfg.DataFolder, baseDir)
	}

	dotenv, err := readDotEnv(baseDir)
	if err != nil {
		return nil, err
	}

	env := &envReader{lookup: layered(lookup, dotenv)}
	applyEnvOverrides(cfg, env)

	ApplyDefaults(cfg)

	verr := Validate(cfg)
	if len(env.errs) > 0 {
		var all []FieldError
		all = append(all, env.errs...)
		var ve ValidationError
		if errors.As(verr, &ve) {
			all = append(all, ve.Errors...)
		}
		verr = ValidationError{Errors: all}
	}
	if verr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", verr)
	}

	return cfg, nil
}

// LoadFile reads a single config file without environment overrides. It
// applies defaults and validates.
func LoadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	cfg.DataFolder = resolveDataFolder(cfg.DataFolder, filepath.Dir(cfg.Path))
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover returns the config file Load would read, or "" when none exists.
//
// The search order is: the explicit path (a file, or a directory holding
// trainloop.config.yaml directly or under trainloop/), TRAINLOOP_CONFIG_PATH,
// ./trainloop/trainloop.config.yaml, then ./trainloop.config.yaml.
func Discover(path string) (string, error) {
	return discover(path, os.LookupEnv)
}

func discover(path string, lookup LookupFunc) (string, error) {
	if path == "" {
		if v, ok := lookup(EnvConfigPath); ok {
			path = strings.TrimSpace(v)
		}
	}

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("config path %q: %w", path, err)
		}
		if !info.IsDir() {
			return filepath.Abs(path)
		}
		if found := firstFile(
			filepath.Join(path, DefaultFileName),
			filepath.Join(path, DefaultDirName, DefaultFileName),
		); found != "" {
			return filepath.Abs(found)
		}
		return "", fmt.Errorf("no %s in %q: %w", DefaultFileName, path, fs.ErrNotExist)
	}

	if found := firstFile(
		filepath.Join(DefaultDirName, DefaultFileName),
		DefaultFileName,
	); found != "" {
		return filepath.Abs(found)
	}
	return "", nil
}

func firstFile(candidates ...string) string {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	cfg := f.Trainloop
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cfg.Path = path
	return &cfg, nil
}

func readDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, DefaultEnvFile)
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return values, nil
}

// layered prefers the process environment over .env values.
func layered(lookup LookupFunc, dotenv map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// resolveDataFolder makes a relative local path absolute against dir. URLs
// are left untouched.
func resolveDataFolder(folder, dir string) string {
	folder = strings.TrimSpace(folder)
	if folder == "" || strings.Contains(folder, "://") || filepath.IsAbs(folder) {
		return folder
	}
	return filepath.Join(dir, folder)
}

// applyEnvOverrides applies TRAINLOOP_* overrides to the configuration.
func applyEnvOverrides(cfg *Config, env *envReader) {
	if val, ok := env.string(EnvDataFolder); ok {
		if abs, err := filepath.Abs(val); err == nil && !strings.Contains(val, "://") {
			val = abs
		}
		cfg.DataFolder = val
	}
	if val, ok := env.string(EnvHostAllowlist); ok {
		cfg.HostAllowlist = splitList(val)
	}
	if val, ok := env.string(EnvLogLevel); ok {
		cfg.LogLevel = val
	}
	if val, ok := env.string("TRAINLOOP_LOG_FORMAT"); ok {
		cfg.LogFormat = val
	}
	env.bool("TRAINLOOP_FLUSH_IMMEDIATELY", &cfg.FlushImmediately)
	env.int("TRAINLOOP_BATCH_LEN", &cfg.BatchLen)
	env.duration("TRAINLOOP_FLUSH_INTERVAL", &cfg.FlushInterval)
	env.int("TRAINLOOP_MAX_BODY_BYTES", &cfg.MaxBodyBytes)
	env.bool("TRAINLOOP_BUFFERED", &cfg.Buffered)
	if val, ok := env.string("TRAINLOOP_CALLSITE_SKIP_PREFIXES"); ok {
		cfg.CallsiteSkipPrefixes = splitList(val)
	}
	env.bool("TRAINLOOP_WATCH", &cfg.Watch)

	// Retention overrides
	env.int("TRAINLOOP_RETENTION_DAYS", &cfg.Retention.Days)
	env.int("TRAINLOOP_RETENTION_MAX_FILES", &cfg.Retention.MaxFiles)
	if val, ok := env.string("TRAINLOOP_RETENTION_PRUNE_SCHEDULE"); ok {
		cfg.Retention.PruneSchedule = val
	}

	// Telemetry overrides
	env.bool("TRAINLOOP_METRICS_ENABLED", &cfg.Metrics.Enabled)
	env.bool("TRAINLOOP_TRACING_ENABLED", &cfg.Tracing.Enabled)
	if val, ok := env.string("TRAINLOOP_TRACING_ENDPOINT"); ok {
		cfg.Tracing.Endpoint = val
	}
	env.bool("TRAINLOOP_TRACING_INSECURE", &cfg.Tracing.Insecure)
	env.float("TRAINLOOP_TRACING_SAMPLE_RATIO", &cfg.Tracing.SampleRatio)
}

// envReader parses typed overrides and records the ones that do not parse.
type envReader struct {
	lookup LookupFunc
	errs   []FieldError
}

func (e *envReader) string(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) invalid(key, val, want string) {
	e.errs = append(e.errs, FieldError{
		Field:   key,
		Message: fmt.Sprintf("%q is not a valid %s", val, want),
	})
}

func (e *envReader) bool(key string, dst *bool) {
	if val, ok := e.string(key); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			e.invalid(key, val, "boolean")
			return
		}
		*dst = b
	}
}

func (e *envReader) int(key string, dst *int) {
	if val, ok := e.string(key); ok {
		i, err := strconv.Atoi(val)
		if err != nil {
			e.invalid(key, val, "integer")
			return
		}
		*dst = i
	}
}

func (e *envReader) float(key string, dst *float64) {
	if val, ok := e.string(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			e.invalid(key, val, "number")
			return
		}
		*dst = f
	}
}

// duration accepts Go duration syntax or a bare number of seconds.
func (e *envReader) duration(key string, dst *time.Duration) {
	val, ok := e.string(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(val); err == nil {
		*dst = d
		return
	}
	if secs, err := strconv.Atoi(val); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	e.invalid(key, val, "duration")
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
