package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/trainloop/capture/pkg/config"
)

// Bootstrap hands out at most one live session per data folder. Asking
// twice for the same folder returns the first session, so instrumenting a
// program from several entry points never double-captures or splits the
// registry between two writers.
//
// A Bootstrap is owned by the application; there is no package-level one.
type Bootstrap struct {
	opts []Option

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewBootstrap creates a Bootstrap whose sessions are built with opts.
func NewBootstrap(opts ...Option) *Bootstrap {
	return &Bootstrap{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Collect returns the live session for cfg's data folder, creating it on
// first use. A nil cfg is loaded with config.Load("").
func (b *Bootstrap) Collect(ctx context.Context, cfg *config.Config) (*Session, error) {
	if cfg == nil {
		loaded, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	key := folderKey(cfg.DataFolder)

	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[key]; ok && !s.exporter.Closed() {
		s.log.Debug("reusing capture session", "data_folder", cfg.DataFolder)
		return s, nil
	}

	s, err := New(ctx, cfg, b.opts...)
	if err != nil {
		return nil, err
	}
	b.sessions[key] = s
	return s, nil
}

// Sessions returns the number of live sessions.
func (b *Bootstrap) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, s := range b.sessions {
		if !s.exporter.Closed() {
			n++
		}
	}
	return n
}

// Shutdown shuts every session down and forgets them.
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[string]*Session)
	b.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// folderKey normalizes local paths so ./data and data map to one session.
func folderKey(folder string) string {
	if folder == "" || strings.Contains(folder, "://") {
		return folder
	}
	if abs, err := filepath.Abs(folder); err == nil {
		return abs
	}
	return filepath.Clean(folder)
}
