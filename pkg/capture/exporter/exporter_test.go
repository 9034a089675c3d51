package exporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trainloop/capture/pkg/capture"
)

type batchWriter struct {
	mu      sync.Mutex
	batches [][]capture.CallRecord
	err     error
}

func (w *batchWriter) WriteBatch(_ context.Context, records []capture.CallRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, append([]capture.CallRecord(nil), records...))
	return nil
}

func (w *batchWriter) snapshot() [][]capture.CallRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]capture.CallRecord(nil), w.batches...)
}

type countingMetrics struct {
	mu      sync.Mutex
	emitted int
	dropped map[string]int
	flushes map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{dropped: map[string]int{}, flushes: map[string]int{}}
}

func (m *countingMetrics) RecordEmitted() {
	m.mu.Lock()
	m.emitted++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordsDropped(reason string, n int) {
	m.mu.Lock()
	m.dropped[reason] += n
	m.mu.Unlock()
}

func (m *countingMetrics) Flushed(trigger string, _ int, _ time.Duration) {
	m.mu.Lock()
	m.flushes[trigger]++
	m.mu.Unlock()
}

func (m *countingMetrics) BufferSize(int) {}

func call(i int) capture.CallRecord {
	return capture.CallRecord{
		URL:          fmt.Sprintf("https://api.openai.com/v1/chat/completions?i=%d", i),
		Location:     capture.Location{File: "main.go", LineNumber: "1"},
		IsLLMRequest: true,
	}
}

// quietConfig keeps the interval timer out of the way.
func quietConfig() *Config {
	return &Config{BatchLen: 5, FlushInterval: time.Hour}
}

func TestExporter_BatchLenTriggersOneFlush(t *testing.T) {
	w := &batchWriter{}
	e := New(w, quietConfig(), nil)
	defer e.Shutdown(context.Background())

	for i := range 5 {
		if err := e.Record(call(i)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	batches := w.snapshot()
	if len(batches) != 1 {
		t.Fatalf("got %d flushes, want 1", len(batches))
	}
	if len(batches[0]) != 5 {
		t.Errorf("flushed %d records, want 5", len(batches[0]))
	}
	for i, rec := range batches[0] {
		if rec.URL != call(i).URL {
			t.Errorf("batch[%d] out of order: %s", i, rec.URL)
		}
	}
	if e.Len() != 0 {
		t.Errorf("buffer holds %d records after flush", e.Len())
	}
}

func TestExporter_ManualFlush(t *testing.T) {
	w := &batchWriter{}
	e := New(w, quietConfig(), nil)
	defer e.Shutdown(context.Background())

	for i := range 4 {
		e.Record(call(i))
	}
	if n := len(w.snapshot()); n != 0 {
		t.Fatalf("flushed early: %d batches", n)
	}

	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	batches := w.snapshot()
	if len(batches) != 1 || len(batches[0]) != 4 {
		t.Fatalf("batches = %v, want one batch of 4", batches)
	}

	if err := e.Flush(context.Background()); err != nil {
		t.Fatalf("empty Flush() error = %v", err)
	}
	if n := len(w.snapshot()); n != 1 {
		t.Errorf("empty flush wrote a batch: %d batches", n)
	}
}

func TestExporter_IntervalFlush(t *testing.T) {
	w := &batchWriter{}
	e := New(w, &Config{BatchLen: 100, FlushInterval: 20 * time.Millisecond}, nil)
	defer e.Shutdown(context.Background())

	e.Record(call(1))

	deadline := time.Now().Add(2 * time.Second)
	for len(w.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(w.snapshot()) != 1 {
		t.Fatal("interval flush did not happen")
	}

	// The timer is rearmed after each flush.
	e.Record(call(2))
	deadline = time.Now().Add(2 * time.Second)
	for len(w.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(w.snapshot()) != 2 {
		t.Error("timer was not rearmed")
	}
}

func TestExporter_Shutdown(t *testing.T) {
	w := &batchWriter{}
	m := newCountingMetrics()
	e := New(w, quietConfig(), m)

	e.Record(call(1))
	e.Record(call(2))
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	batches := w.snapshot()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("final flush = %v", batches)
	}

	if err := e.Record(call(3)); !errors.Is(err, capture.ErrExporterClosed) {
		t.Errorf("Record() after shutdown = %v, want ErrExporterClosed", err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() = %v", err)
	}
	if len(w.snapshot()) != 1 {
		t.Error("record accepted after shutdown")
	}
	if m.dropped["closed"] != 1 {
		t.Errorf("dropped[closed] = %d, want 1", m.dropped["closed"])
	}
}

func TestExporter_NilWriterDropsBatch(t *testing.T) {
	m := newCountingMetrics()
	e := New(nil, quietConfig(), m)
	defer e.Shutdown(context.Background())

	for i := range 5 {
		if err := e.Record(call(i)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if e.Len() != 0 {
		t.Errorf("buffer holds %d records, want the batch dropped", e.Len())
	}
	if m.dropped["unconfigured"] != 5 {
		t.Errorf("dropped[unconfigured] = %d, want 5", m.dropped["unconfigured"])
	}
}

func TestExporter_WriteErrorDropsBatch(t *testing.T) {
	w := &batchWriter{err: capture.NewStorageError("local", "append", "events/1.jsonl", errors.New("disk full"))}
	m := newCountingMetrics()
	e := New(w, quietConfig(), m)
	defer e.Shutdown(context.Background())

	e.Record(call(1))
	err := e.Flush(context.Background())

	var se *capture.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("Flush() error = %v, want *capture.StorageError", err)
	}
	if e.Len() != 0 || m.dropped["write_error"] != 1 {
		t.Errorf("len=%d dropped=%v", e.Len(), m.dropped)
	}
}

func TestExporter_ConcurrentRecord(t *testing.T) {
	w := &batchWriter{}
	e := New(w, quietConfig(), nil)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				e.Record(call(g*100 + i))
			}
		}()
	}
	wg.Wait()
	e.Shutdown(context.Background())

	total := 0
	for _, b := range w.snapshot() {
		total += len(b)
	}
	if total != 200 {
		t.Errorf("persisted %d records, want 200", total)
	}
}

func BenchmarkExporter_Record(b *testing.B) {
	e := New(&batchWriter{}, &Config{BatchLen: 1000, FlushInterval: time.Hour}, nil)
	defer e.Shutdown(context.Background())
	rec := call(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Record(rec)
	}
}
