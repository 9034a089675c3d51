package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/store"
	"github.com/trainloop/capture/pkg/telemetry/health"
	"github.com/trainloop/capture/pkg/telemetry/logging"
)

// Store is the read side of the durable store the admin API serves.
type Store interface {
	ReadRegistry(ctx context.Context) (*capture.Registry, error)
	ListEventFiles(ctx context.Context) ([]store.EventFile, error)
	ReadEvents(ctx context.Context, key string) ([]capture.CallRecord, int, error)
}

// Options configures the admin handler.
type Options struct {
	// SessionID is attached to every request context for logging.
	SessionID string

	// Store backs /registry and the event endpoints. When nil those
	// endpoints answer 503.
	Store Store

	// Health serves /healthz and /readyz. When nil both report ok.
	Health *health.Checker

	// Metrics serves /metrics. When nil the route is not mounted.
	Metrics http.Handler

	Logger *slog.Logger
}

// New returns the admin HTTP handler.
func New(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "admin")

	checker := opts.Health
	if checker == nil {
		checker = health.New(opts.SessionID, 0)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestContext(opts.SessionID, logger))

	r.Get("/healthz", checker.LivenessHandler())
	r.Head("/healthz", checker.LivenessHandler())
	r.Get("/readyz", checker.ReadinessHandler())
	r.Head("/readyz", checker.ReadinessHandler())

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Get("/registry", RegistryHandler(opts.Store))
	r.Route("/events", func(r chi.Router) {
		r.Get("/", EventFilesHandler(opts.Store))
		r.Get("/{name}", EventFileHandler(opts.Store))
	})
	r.Get("/calls", CallsHandler(opts.Store))

	return r
}

// requestContext tags the request context with the session ID and the
// requested call tag, then logs the request once it completes.
func requestContext(sessionID string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := logging.WithSessionID(r.Context(), sessionID)
			if tag := r.URL.Query().Get("tag"); tag != "" {
				ctx = logging.WithTag(ctx, tag)
			}
			r = r.WithContext(ctx)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.DebugContext(ctx, "admin request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
