package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/trainloop/capture/pkg/cli"
	"github.com/trainloop/capture/pkg/session"
)

var serveFlags struct {
	listenAddress   string
	shutdownTimeout time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin API over the data folder",
	Long: `Start a capture session and serve its admin API:

  /healthz, /readyz     liveness and readiness
  /metrics              Prometheus metrics (when metrics.enabled)
  /registry             the call-site registry
  /events, /calls       event files and recent captured calls

While running, the session's retention schedule prunes old event files and,
with watch enabled, configuration edits are applied live.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "127.0.0.1:9464", "listen address")
	serveCmd.Flags().DurationVar(&serveFlags.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	s, err := session.New(ctx, cfg, session.WithLogWriter(cmd.ErrOrStderr()))
	if err != nil {
		return cli.NewCommandError("serve", err)
	}

	ln, err := net.Listen("tcp", serveFlags.listenAddress)
	if err != nil {
		_ = s.Shutdown(context.Background())
		return cli.NewCommandError("serve", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Session %s started\n", s.ID())
	fmt.Fprintf(w, "✓ Admin API listening on http://%s\n", ln.Addr())
	fmt.Fprintln(w, "\nPress Ctrl+C to stop")

	return serve(ctx, ln, s, serveFlags.shutdownTimeout)
}

// serve runs the admin server on ln until ctx is done, then shuts the
// server and the session down.
func serve(ctx context.Context, ln net.Listener, s *session.Session, timeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.AdminHandler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.Logger().Handler(), slog.LevelError),
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	var serveErr error
	select {
	case serveErr = <-errChan:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	errs := []error{serveErr}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return cli.NewCommandError("serve", err)
	}
	return nil
}
