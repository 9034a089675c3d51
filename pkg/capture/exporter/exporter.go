package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trainloop/capture/pkg/capture"
)

// Flush triggers reported to Metrics.Flushed.
const (
	TriggerBatch    = "batch"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
	TriggerShutdown = "shutdown"
)

// Writer persists a batch of records. The store implements it.
type Writer interface {
	WriteBatch(ctx context.Context, records []capture.CallRecord) error
}

// Metrics observes the exporter. A nil Metrics disables observation.
type Metrics interface {
	RecordEmitted()
	RecordsDropped(reason string, n int)
	Flushed(trigger string, records int, took time.Duration)
	BufferSize(n int)
}

// Config contains configuration for the exporter.
type Config struct {
	// BatchLen is the buffer size that triggers a synchronous flush.
	// Default: 5
	BatchLen int

	// FlushInterval is the period of the background flush timer.
	// Default: 10 seconds
	FlushInterval time.Duration

	// WriteTimeout bounds a single batch write.
	// Default: 30 seconds
	WriteTimeout time.Duration

	// Logger receives flush warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default exporter configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchLen:      5,
		FlushInterval: 10 * time.Second,
		WriteTimeout:  30 * time.Second,
	}
}

// Exporter accumulates call records and flushes them to a Writer.
type Exporter struct {
	writer  Writer
	config  *Config
	metrics Metrics
	logger  *slog.Logger

	// mu guards buf, closed and timer.
	mu     sync.Mutex
	buf    []capture.CallRecord
	closed bool
	timer  *time.Timer

	// flushMu serializes snapshot-and-write so batches land in order.
	flushMu sync.Mutex
}

// New creates an exporter writing to w and starts its flush timer. A nil w
// is allowed; batches are then dropped with a warning.
func New(w Writer, config *Config, metrics Metrics) *Exporter {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.BatchLen <= 0 {
		config.BatchLen = defaults.BatchLen
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = defaults.FlushInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exporter{
		writer:  w,
		config:  config,
		metrics: metrics,
		buf:     make([]capture.CallRecord, 0, config.BatchLen),
		logger:  logger.With("component", "capture.exporter"),
	}
	e.timer = time.AfterFunc(config.FlushInterval, e.onTimer)

	e.logger.Debug("exporter started",
		"batch_len", config.BatchLen,
		"flush_interval", config.FlushInterval,
		"writer_configured", w != nil,
	)
	return e
}

// Record appends rec to the buffer. When the buffer reaches the batch
// length, Record flushes before returning. After Shutdown it drops rec and
// returns capture.ErrExporterClosed.
func (e *Exporter) Record(rec capture.CallRecord) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn("exporter is shut down, dropping record", "url", rec.URL, "tag", rec.Tag)
		e.dropped("closed", 1)
		return capture.ErrExporterClosed
	}
	e.buf = append(e.buf, rec)
	n := len(e.buf)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordEmitted()
		e.metrics.BufferSize(n)
	}

	if n >= e.config.BatchLen {
		e.flush(context.Background(), TriggerBatch)
	}
	return nil
}

// Flush writes all buffered records now.
func (e *Exporter) Flush(ctx context.Context) error {
	return e.flush(ctx, TriggerManual)
}

// Shutdown stops the timer, refuses further records and flushes what is
// buffered. It is safe to call more than once.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.timer.Stop()
	e.mu.Unlock()

	err := e.flush(ctx, TriggerShutdown)
	e.logger.Debug("exporter shut down")
	return err
}

// Closed reports whether Shutdown has been called.
func (e *Exporter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Len returns the number of buffered records.
func (e *Exporter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buf)
}

func (e *Exporter) onTimer() {
	e.flush(context.Background(), TriggerInterval)
}

// flush snapshots the buffer and writes it. The returned error is for
// explicit callers; the capture path ignores it.
func (e *Exporter) flush(ctx context.Context, trigger string) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.mu.Lock()
	batch := e.buf
	e.buf = make([]capture.CallRecord, 0, e.config.BatchLen)
	if !e.closed {
		e.timer.Reset(e.config.FlushInterval)
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.BufferSize(0)
	}
	if len(batch) == 0 {
		return nil
	}

	if e.writer == nil {
		e.logger.Warn("no storage configured, dropping batch", "records", len(batch), "trigger", trigger)
		e.dropped("unconfigured", len(batch))
		return capture.ErrStorageUnconfigured
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	err := e.write(ctx, batch)
	took := time.Since(start)

	if err != nil {
		e.logger.Warn("failed to write batch, dropping it",
			"records", len(batch),
			"trigger", trigger,
			"error", err,
		)
		e.dropped("write_error", len(batch))
		return err
	}

	if e.metrics != nil {
		e.metrics.Flushed(trigger, len(batch), took)
	}
	e.logger.Debug("batch flushed", "records", len(batch), "trigger", trigger, "duration", took)
	return nil
}

// write calls the writer, turning a panic into an error.
func (e *Exporter) write(ctx context.Context, batch []capture.CallRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer panicked: %v", r)
		}
	}()
	return e.writer.WriteBatch(ctx, batch)
}

func (e *Exporter) dropped(reason string, n int) {
	if e.metrics != nil {
		e.metrics.RecordsDropped(reason, n)
	}
}
