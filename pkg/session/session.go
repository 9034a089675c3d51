package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/trainloop/capture/pkg/admin"
	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/decode"
	"github.com/trainloop/capture/pkg/capture/exporter"
	"github.com/trainloop/capture/pkg/capture/retention"
	"github.com/trainloop/capture/pkg/capture/storage"
	"github.com/trainloop/capture/pkg/capture/store"
	"github.com/trainloop/capture/pkg/capture/tap"
	"github.com/trainloop/capture/pkg/config"
	"github.com/trainloop/capture/pkg/telemetry/health"
	"github.com/trainloop/capture/pkg/telemetry/logging"
	"github.com/trainloop/capture/pkg/telemetry/metrics"
	"github.com/trainloop/capture/pkg/telemetry/tracing"
)

// Session owns one capture pipeline: the classifier, exporter, store,
// metrics and tracer that every transport it hands out shares.
type Session struct {
	id     string
	cfg    *config.Config
	logger *logging.Logger
	log    *slog.Logger

	classifier *decode.Classifier
	collector  *metrics.Collector
	tracer     *tracing.Tracer
	store      *store.Store
	exporter   *exporter.Exporter
	pruner     *retention.Pruner
	health     *health.Checker
	watcher    *config.Watcher

	base      http.RoundTripper
	transport *tap.Transport
	client    *http.Client

	cancel       context.CancelFunc
	shutdownOnce sync.Once
	shutdownErr  error
}

// Option customizes New.
type Option func(*options)

type options struct {
	base       http.RoundTripper
	logWriter  io.Writer
	tracingOps []tracing.Option
}

// WithBaseTransport sets the transport that captured calls are sent
// through. Default: http.DefaultTransport at the time New runs.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithLogWriter sends session logs to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// WithTracingOptions passes options to the session's tracer.
func WithTracingOptions(opts ...tracing.Option) Option {
	return func(o *options) { o.tracingOps = append(o.tracingOps, opts...) }
}

// New builds a session from cfg. A nil cfg uses config.Default().
//
// ctx bounds opening the storage backend only; background work (flush
// timer, retention scheduler, config watcher) runs until Shutdown.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger, err := logging.New(logging.Config{
		Level:         cfg.LogLevel,
		Format:        cfg.LogFormat,
		RedactSecrets: true,
		Writer:        o.logWriter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		logger:     logger,
		classifier: decode.NewClassifier(cfg.HostAllowlist),
		collector:  metrics.NewCollector(&cfg.Metrics, nil),
	}
	s.log = logger.Slog().With("session_id", s.id)

	if s.tracer, err = tracing.New(&cfg.Tracing, o.tracingOps...); err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	var writer exporter.Writer
	if cfg.Persistent() {
		backend, err := storage.Open(ctx, cfg.DataFolder)
		if err != nil {
			_ = s.tracer.Shutdown(ctx)
			return nil, fmt.Errorf("failed to open data folder: %w", err)
		}
		s.store = store.New(backend, store.WithLogger(s.log))
		writer = s.store
	} else {
		s.log.Warn("no data folder configured; captured calls will not be persisted")
	}

	s.exporter = exporter.New(writer, &exporter.Config{
		BatchLen:      cfg.EffectiveBatchLen(),
		FlushInterval: cfg.FlushInterval,
		Logger:        s.log,
	}, s.collector)

	s.base = o.base
	if s.base == nil {
		s.base = http.DefaultTransport
	}
	s.transport = s.newTransport(s.base)
	s.client = &http.Client{Transport: s.transport}

	s.health = health.New(s.id, 0)
	s.health.RegisterCheck("exporter", func(context.Context) error {
		if s.exporter.Closed() {
			return errors.New("exporter is shut down")
		}
		return nil
	})

	bg, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.store != nil {
		s.health.RegisterCheck("storage", func(ctx context.Context) error {
			_, err := s.store.ReadRegistry(ctx)
			return err
		})

		s.pruner = retention.NewPruner(s.store, &retention.Config{
			RetentionDays: cfg.Retention.Days,
			MaxFiles:      cfg.Retention.MaxFiles,
			PruneSchedule: cfg.Retention.PruneSchedule,
			Logger:        s.log,
		})
		if err := s.pruner.Start(bg); err != nil {
			s.log.Warn("retention scheduler not started", "error", err)
		}
	}

	if cfg.Watch && cfg.Path != "" {
		s.startWatcher(bg)
	}

	s.log.Info("capture session started",
		"data_folder", cfg.DataFolder,
		"hosts", cfg.HostAllowlist,
		"batch_len", cfg.EffectiveBatchLen(),
		"buffered", cfg.Buffered,
	)
	return s, nil
}

func (s *Session) newTransport(base http.RoundTripper) *tap.Transport {
	return tap.New(base, s.exporter, tap.Options{
		Classifier:   s.classifier,
		MaxBodyBytes: s.cfg.MaxBodyBytes,
		Buffered:     s.cfg.Buffered,
		SkipPrefixes: s.cfg.CallsiteSkipPrefixes,
		Logger:       s.log,
		Metrics:      s.collector,
		Tracer:       s.tracer.Tracer(),
	})
}

func (s *Session) startWatcher(ctx context.Context) {
	w, err := config.NewWatcher(s.cfg.Path, s.log)
	if err != nil {
		s.log.Warn("config watcher not started", "error", err)
		return
	}
	s.watcher = w
	go func() {
		if err := w.Watch(ctx, s.applyReload); err != nil {
			s.log.Warn("config watcher stopped", "error", err)
		}
	}()
}

// applyReload applies the settings that can change on a live session: the
// log level and the host allowlist.
func (s *Session) applyReload(cfg *config.Config) {
	if err := s.logger.SetLevel(cfg.LogLevel); err != nil {
		s.log.Warn("ignoring reloaded log level", "error", err)
	}
	s.classifier.SetAllowlist(cfg.HostAllowlist)
	s.log.Info("configuration reloaded", "log_level", cfg.LogLevel, "hosts", cfg.HostAllowlist)
}

// ID returns the session's unique ID.
func (s *Session) ID() string {
	return s.id
}

// Config returns the configuration the session was built from.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.log
}

// Store returns the durable store, or nil when no data folder is configured.
func (s *Session) Store() *store.Store {
	return s.store
}

// Metrics returns the session's metrics collector.
func (s *Session) Metrics() *metrics.Collector {
	return s.collector
}

// Health returns the session's health checker.
func (s *Session) Health() *health.Checker {
	return s.health
}

// Transport wraps base with the capture tap. A nil base uses the session's
// base transport.
func (s *Session) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		return s.transport
	}
	return s.newTransport(base)
}

// HTTPClient returns a client whose calls are captured.
func (s *Session) HTTPClient() *http.Client {
	return s.client
}

// InstrumentClient makes c's calls captured by this session. Calling it again
// on the same client is a no-op.
func (s *Session) InstrumentClient(c *http.Client) {
	if c == nil {
		return
	}
	if t, ok := c.Transport.(*tap.Transport); ok && s.owns(t) {
		return
	}
	c.Transport = s.Transport(orDefault(c.Transport))
}

// owns reports whether t records into this session.
func (s *Session) owns(t *tap.Transport) bool {
	return t == s.transport || t.Sink() == tap.Sink(s.exporter)
}

// InstallDefaultTransport replaces http.DefaultTransport so that every
// client without its own transport is captured. The returned function
// restores the previous transport.
func (s *Session) InstallDefaultTransport() (restore func()) {
	prev := http.DefaultTransport
	if t, ok := prev.(*tap.Transport); ok && s.owns(t) {
		return func() {}
	}
	http.DefaultTransport = s.Transport(prev)
	return func() { http.DefaultTransport = prev }
}

// AdminHandler serves health, metrics, registry and event endpoints for
// this session.
func (s *Session) AdminHandler() http.Handler {
	var st admin.Store
	if s.store != nil {
		st = s.store
	}
	return admin.New(admin.Options{
		SessionID: s.id,
		Store:     st,
		Health:    s.health,
		Metrics:   s.collector.Handler(),
		Logger:    s.log,
	})
}

// Flush writes buffered records now.
func (s *Session) Flush(ctx context.Context) error {
	return s.exporter.Flush(ctx)
}

// Shutdown flushes buffered records and releases every resource the session
// holds. It is safe to call more than once.
func (s *Session) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		var errs []error

		s.cancel()
		if s.watcher != nil {
			errs = append(errs, s.watcher.Stop())
		}
		if s.pruner != nil {
			s.pruner.Stop()
		}
		if err := s.exporter.Shutdown(ctx); !errors.Is(err, capture.ErrStorageUnconfigured) {
			errs = append(errs, err)
		}
		errs = append(errs, s.tracer.Shutdown(ctx))
		if s.store != nil {
			errs = append(errs, s.store.Close())
		}

		s.shutdownErr = errors.Join(errs...)
		s.log.Info("capture session stopped", "error", s.shutdownErr)
	})
	return s.shutdownErr
}

func orDefault(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
