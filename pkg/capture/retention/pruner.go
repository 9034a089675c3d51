package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trainloop/capture/pkg/capture/store"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to keep event files.
	// 0 keeps them forever.
	RetentionDays int

	// MaxFiles is the maximum number of event files to keep, newest first.
	// 0 means unlimited.
	MaxFiles int

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// Logger receives pruning reports. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 0,
		MaxFiles:      0,
		PruneSchedule: "0 3 * * *",
	}
}

// EventStore is the part of the store the pruner needs.
type EventStore interface {
	ListEventFiles(ctx context.Context) ([]store.EventFile, error)
	DeleteEventFile(ctx context.Context, key string) error
}

// Pruner deletes event files that fall outside the retention policy.
type Pruner struct {
	store     EventStore
	config    *Config
	now       func() time.Time
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a new retention pruner.
func NewPruner(s EventStore, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pruner{
		store:  s,
		config: config,
		now:    time.Now,
		logger: logger.With("component", "capture.retention"),
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes event files older than the retention period, then the
// oldest files beyond MaxFiles. It returns the keys it deleted. A failed
// delete is reported but does not stop the rest of the pass.
func (p *Pruner) Prune(ctx context.Context) ([]string, error) {
	if p.config.RetentionDays <= 0 && p.config.MaxFiles <= 0 {
		p.logger.Debug("retention disabled, nothing to prune")
		return nil, nil
	}

	victims, total, err := p.plan(ctx)
	if err != nil {
		return nil, err
	}

	var (
		deleted []string
		errs    []error
	)
	for _, f := range victims {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.store.DeleteEventFile(ctx, f.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", f.Key, err))
			continue
		}
		deleted = append(deleted, f.Key)
	}

	if len(deleted) > 0 {
		p.logger.Info("event files pruned",
			"deleted_count", len(deleted),
			"retention_days", p.config.RetentionDays,
			"max_files", p.config.MaxFiles,
		)
	} else {
		p.logger.Debug("no event files pruned", "files", total)
	}
	return deleted, errors.Join(errs...)
}

// Plan returns the event files the next Prune would delete, oldest first.
func (p *Pruner) Plan(ctx context.Context) ([]store.EventFile, error) {
	if p.config.RetentionDays <= 0 && p.config.MaxFiles <= 0 {
		return nil, nil
	}
	victims, _, err := p.plan(ctx)
	return victims, err
}

func (p *Pruner) plan(ctx context.Context) (victims []store.EventFile, total int, err error) {
	files, err := p.store.ListEventFiles(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list event files: %w", err)
	}
	return p.selectVictims(files), len(files), nil
}

// selectVictims picks files to delete from a list ordered oldest first.
func (p *Pruner) selectVictims(files []store.EventFile) []store.EventFile {
	keep := files
	var victims []store.EventFile

	if p.config.RetentionDays > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays).UnixMilli()
		i := 0
		for i < len(keep) && keep[i].TimestampMs < cutoff {
			i++
		}
		victims = append(victims, keep[:i]...)
		keep = keep[i:]
	}

	if p.config.MaxFiles > 0 && len(keep) > p.config.MaxFiles {
		excess := len(keep) - p.config.MaxFiles
		victims = append(victims, keep[:excess]...)
	}
	return victims
}

// Start starts the pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
