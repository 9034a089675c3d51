package store

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := New(backend)
	s.now = func() time.Time { return time.UnixMilli(1_718_000_000_000) }
	return s
}

func sampleRecord(tag, line string, endMs int64) capture.CallRecord {
	model := "gpt-4o"
	return capture.CallRecord{
		DurationMs:   120,
		Tag:          tag,
		Input:        []capture.Message{{Role: "user", Content: "hi"}},
		Output:       &capture.Output{Content: "hello"},
		Model:        &model,
		ModelParams:  map[string]any{"temperature": 0.5},
		StartTimeMs:  endMs - 120,
		EndTimeMs:    endMs,
		URL:          "https://api.openai.com/v1/chat/completions",
		Location:     capture.Location{File: "/app/main.go", LineNumber: line},
		IsLLMRequest: true,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := []capture.CallRecord{
		sampleRecord("greeting", "10", 1_718_000_000_500),
		sampleRecord("", "20", 1_718_000_000_900),
	}
	in[1].Model = nil
	in[1].Output = nil

	if err := s.WriteBatch(ctx, in); err != nil {
		t.Fatalf("WriteBatch() error = %v", err)
	}

	files, err := s.ListEventFiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Key != "events/1718000000000.jsonl" {
		t.Fatalf("ListEventFiles() = %+v", files)
	}

	out, bad, err := s.ReadEvents(ctx, files[0].Key)
	if err != nil || bad != 0 {
		t.Fatalf("ReadEvents() = bad %d, err %v", bad, err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestStore_JSONFieldNames(t *testing.T) {
	b, err := json.Marshal(sampleRecord("t", "1", 1000))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(b, &m)

	for _, k := range []string{"durationMs", "tag", "input", "output", "model", "modelParams", "startTimeMs", "endTimeMs", "url", "location"} {
		if _, ok := m[k]; !ok {
			t.Errorf("serialized record is missing %q: %s", k, b)
		}
	}
	loc := m["location"].(map[string]any)
	if loc["lineNumber"] != "1" {
		t.Errorf("location = %v", loc)
	}
}

func TestStore_RegistryMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.WriteBatch(ctx, []capture.CallRecord{
		sampleRecord("first", "10", 1_718_000_000_000),
		sampleRecord("second", "10", 1_718_000_001_000),
	})
	s.WriteBatch(ctx, []capture.CallRecord{
		sampleRecord("", "10", 1_718_000_002_000),
		sampleRecord("other", "11", 1_718_000_003_000),
	})

	reg, err := s.ReadRegistry(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Schema != capture.RegistrySchema {
		t.Errorf("Schema = %d", reg.Schema)
	}

	entry := reg.Files["/app/main.go"]["10"]
	if entry.Count != 3 {
		t.Errorf("Count = %d, want 3", entry.Count)
	}
	if entry.FirstSeen != "2024-06-10T06:13:20.000Z" {
		t.Errorf("FirstSeen = %q", entry.FirstSeen)
	}
	if entry.LastSeen != "2024-06-10T06:13:22.000Z" {
		t.Errorf("LastSeen = %q", entry.LastSeen)
	}
	if entry.Tag != UntaggedTag {
		t.Errorf("Tag = %q, want the latest call's tag", entry.Tag)
	}
	if other := reg.Files["/app/main.go"]["11"]; other.Count != 1 || other.Tag != "other" {
		t.Errorf("line 11 = %+v", other)
	}

	files, _ := s.ListEventFiles(ctx)
	if len(files) != 1 {
		t.Fatalf("flushes in the same millisecond should share a file: %+v", files)
	}
	recs, skipped, err := s.ReadEvents(ctx, files[0].Key)
	if err != nil || skipped != 0 || len(recs) != 4 {
		t.Errorf("ReadEvents() = %d records, %d skipped, %v; want 4 appended records", len(recs), skipped, err)
	}
}

func TestStore_CorruptRegistry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Backend().Write(ctx, RegistryKey, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	reg, err := s.ReadRegistry(ctx)
	if err != nil {
		t.Fatalf("ReadRegistry() error = %v", err)
	}
	if len(reg.Files) != 0 {
		t.Errorf("corrupt registry should read as empty, got %+v", reg)
	}

	if err := s.WriteBatch(ctx, []capture.CallRecord{sampleRecord("t", "5", 1000)}); err != nil {
		t.Fatalf("WriteBatch() over corrupt registry error = %v", err)
	}
	reg, _ = s.ReadRegistry(ctx)
	if reg.Files["/app/main.go"]["5"].Count != 1 {
		t.Errorf("registry not rebuilt: %+v", reg)
	}
}

func TestDecodeEvents_SkipsBadLines(t *testing.T) {
	data := []byte("{\"tag\":\"a\",\"location\":{\"file\":\"f\",\"lineNumber\":\"1\"}}\n\nnot json\n{\"tag\":\"b\"}\n")
	recs, bad := DecodeEvents(data)
	if len(recs) != 2 || bad != 1 {
		t.Fatalf("DecodeEvents() = %d records, %d bad", len(recs), bad)
	}
	if !recs[0].IsLLMRequest || recs[1].Tag != "b" {
		t.Errorf("records = %+v", recs)
	}
}

func TestStore_DeleteEventFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.WriteBatch(ctx, []capture.CallRecord{sampleRecord("t", "1", 1)})

	files, _ := s.ListEventFiles(ctx)
	if err := s.DeleteEventFile(ctx, files[0].Key); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEventFile(ctx, RegistryKey); err == nil {
		t.Error("deleting the registry through DeleteEventFile should fail")
	}
	if files, _ := s.ListEventFiles(ctx); len(files) != 0 {
		t.Errorf("files left: %+v", files)
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(1_718_000_000_123); got != "2024-06-10T06:13:20.123Z" {
		t.Errorf("FormatTimestamp() = %q", got)
	}
}
