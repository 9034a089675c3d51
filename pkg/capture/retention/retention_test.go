package retention

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/storage"
	"github.com/trainloop/capture/pkg/capture/store"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// seedStore writes one event file per age, in days before now.
func seedStore(t *testing.T, ages ...int) *store.Store {
	t.Helper()
	ctx := context.Background()
	backend, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, days := range ages {
		ms := now.AddDate(0, 0, -days).UnixMilli()
		key := fmt.Sprintf("events/%d.jsonl", ms)
		if err := backend.Append(ctx, key, []byte("{}\n")); err != nil {
			t.Fatal(err)
		}
	}
	return store.New(backend)
}

func newTestPruner(s EventStore, cfg *Config) *Pruner {
	p := NewPruner(s, cfg)
	p.now = func() time.Time { return now }
	return p
}

func keysOf(t *testing.T, s *store.Store) []int64 {
	t.Helper()
	files, err := s.ListEventFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var out []int64
	for _, f := range files {
		out = append(out, f.TimestampMs)
	}
	return out
}

func TestPruner_Prune(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		ages        []int
		wantDeleted int
		wantKeptMin int // age in days of the oldest file left, -1 if none
	}{
		{
			name:        "by age",
			config:      &Config{RetentionDays: 30},
			ages:        []int{90, 45, 31, 29, 1},
			wantDeleted: 3,
			wantKeptMin: 29,
		},
		{
			name:        "by count",
			config:      &Config{MaxFiles: 2},
			ages:        []int{5, 4, 3, 2},
			wantDeleted: 2,
			wantKeptMin: 3,
		},
		{
			name:        "age then count",
			config:      &Config{RetentionDays: 10, MaxFiles: 1},
			ages:        []int{20, 9, 8},
			wantDeleted: 2,
			wantKeptMin: 8,
		},
		{
			name:        "disabled",
			config:      &Config{},
			ages:        []int{400, 1},
			wantDeleted: 0,
			wantKeptMin: 400,
		},
		{
			name:        "everything expired",
			config:      &Config{RetentionDays: 1},
			ages:        []int{7, 3},
			wantDeleted: 2,
			wantKeptMin: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seedStore(t, tt.ages...)
			p := newTestPruner(s, tt.config)

			deleted, err := p.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if len(deleted) != tt.wantDeleted {
				t.Errorf("deleted %d files (%v), want %d", len(deleted), deleted, tt.wantDeleted)
			}

			left := keysOf(t, s)
			if tt.wantKeptMin < 0 {
				if len(left) != 0 {
					t.Errorf("files left: %v", left)
				}
				return
			}
			if len(left) == 0 || left[0] != now.AddDate(0, 0, -tt.wantKeptMin).UnixMilli() {
				t.Errorf("oldest file left = %v, want age %d days", left, tt.wantKeptMin)
			}
		})
	}
}

func TestPruner_PlanDeletesNothing(t *testing.T) {
	s := seedStore(t, 90, 45, 1)
	p := newTestPruner(s, &Config{RetentionDays: 30})

	plan, err := p.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(plan) != 2 || plan[0].TimestampMs != now.AddDate(0, 0, -90).UnixMilli() {
		t.Errorf("unexpected plan %v", plan)
	}
	if got := keysOf(t, s); len(got) != 3 {
		t.Errorf("Plan() must not delete, %d files left", len(got))
	}

	disabled := newTestPruner(s, &Config{})
	if plan, err := disabled.Plan(context.Background()); err != nil || plan != nil {
		t.Errorf("disabled Plan() = %v, %v", plan, err)
	}
}

func TestPruner_KeepsRegistry(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t, 100)
	s.WriteBatch(ctx, []capture.CallRecord{{Location: capture.Location{File: "a.go", LineNumber: "1"}}})

	p := newTestPruner(s, &Config{RetentionDays: 1})
	p.now = func() time.Time { return time.Now().AddDate(1, 0, 0) }
	if _, err := p.Prune(ctx); err != nil {
		t.Fatal(err)
	}

	reg, err := s.ReadRegistry(ctx)
	if err != nil || reg.Files["a.go"]["1"].Count != 1 {
		t.Errorf("registry changed by pruning: %+v, %v", reg, err)
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		wantRunning bool
		wantError   bool
	}{
		{"valid daily schedule", &Config{RetentionDays: 30, PruneSchedule: "0 3 * * *"}, true, false},
		{"valid hourly schedule", &Config{MaxFiles: 100, PruneSchedule: "0 * * * *"}, true, false},
		{"empty schedule", &Config{RetentionDays: 30}, false, false},
		{"retention disabled", &Config{PruneSchedule: "0 3 * * *"}, false, false},
		{"invalid schedule", &Config{RetentionDays: 30, PruneSchedule: "invalid cron"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPruner(seedStore(t), tt.config)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := p.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if got := p.scheduler.IsRunning(); got != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", got, tt.wantRunning)
			}
			if tt.wantRunning && p.NextPruning() == nil {
				t.Error("NextPruning() = nil for a running scheduler")
			}
			p.Stop()
			if p.scheduler.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	p := newTestPruner(seedStore(t), &Config{RetentionDays: 1, PruneSchedule: "@every 1h"})
	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for p.scheduler.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.scheduler.IsRunning() {
		t.Error("scheduler did not stop after context cancellation")
	}
}

func TestSelectVictims_Order(t *testing.T) {
	p := newTestPruner(nil, &Config{MaxFiles: 1})
	files := []store.EventFile{{Key: "events/1.jsonl", TimestampMs: 1}, {Key: "events/2.jsonl", TimestampMs: 2}}
	got := p.selectVictims(files)
	if !reflect.DeepEqual(got, files[:1]) {
		t.Errorf("selectVictims() = %v", got)
	}
}
