// Package health provides liveness and readiness probes for a capture
// session.
//
// Components register named checks; the session registers "storage", which
// reads the registry from the backend, and "exporter", which fails once the
// exporter is shut down.
//
//	checker := health.New(sessionID, 0)
//	checker.RegisterCheck("storage", func(ctx context.Context) error {
//	    _, err := st.ReadRegistry(ctx)
//	    return err
//	})
//	r.Get("/healthz", checker.LivenessHandler())
//	r.Get("/readyz", checker.ReadinessHandler())
//
// Readiness runs checks concurrently, each bounded by its own timeout, and
// answers 503 when any check fails.
package health
