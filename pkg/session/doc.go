// Package session assembles the capture pipeline for an application.
//
// A Session owns everything one capture setup needs: the host classifier,
// the exporter and its durable store, the retention pruner, the metrics
// collector, the tracer and an optional config watcher. Nothing is kept in
// package-level state; two sessions with different data folders can run side
// by side.
//
// # Instrumenting HTTP Clients
//
// Capture is opt-in per client:
//
//	s, err := session.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer s.Shutdown(context.Background())
//
//	client := s.HTTPClient()            // a new captured client
//	s.InstrumentClient(existingClient)  // wrap an existing one in place
//
// InstallDefaultTransport replaces http.DefaultTransport for programs that
// cannot reach their clients, and returns a function restoring the previous
// transport.
//
// # One Session Per Data Folder
//
// Bootstrap.Collect returns the already running session for a data folder
// instead of starting a second one.
//
// # Hot Reload
//
// With watch enabled and a config file present, edits to the log level and
// host allowlist apply to the running session without a restart.
package session
