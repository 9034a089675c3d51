package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/storage"
)

const (
	// RegistryKey is the registry document key.
	RegistryKey = "_registry.json"

	// EventsPrefix is the key prefix of event files.
	EventsPrefix = "events/"

	// UntaggedTag is the registry tag of calls made without a tag.
	UntaggedTag = "untagged"

	eventExt = ".jsonl"
)

// timestampLayout is RFC 3339 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Store writes event files and the registry to a storage backend.
type Store struct {
	backend storage.Backend
	now     func() time.Time
	logger  *slog.Logger

	// mu serializes registry read-modify-write and event file appends.
	mu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger for registry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger.With("component", "capture.store")
		}
	}
}

// WithClock replaces time.Now for event file naming.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store over backend.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  slog.Default().With("component", "capture.store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the underlying storage backend.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// WriteBatch updates the registry for records and appends them to the event
// file of the current millisecond. An empty batch is a no-op.
func (s *Store) WriteBatch(ctx context.Context, records []capture.CallRecord) error {
	if len(records) == 0 {
		return nil
	}

	var lines bytes.Buffer
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record for %s: %w", rec.URL, err)
		}
		lines.Write(b)
		lines.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateRegistry(ctx, records); err != nil {
		return err
	}

	key := s.eventKey()
	if err := s.backend.Append(ctx, key, lines.Bytes()); err != nil {
		return err
	}

	s.logger.Debug("batch persisted", "records", len(records), "key", key)
	return nil
}

// eventKey names the event file for a flush after the current millisecond.
// Flushes landing in the same millisecond append to the same file.
func (s *Store) eventKey() string {
	return EventsPrefix + strconv.FormatInt(s.now().UnixMilli(), 10) + eventExt
}

func (s *Store) updateRegistry(ctx context.Context, records []capture.CallRecord) error {
	reg, err := s.readRegistry(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		Touch(reg, rec)
	}

	b, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	return s.backend.Write(ctx, RegistryKey, b)
}

// Touch folds one record into reg: a new location is created with count 1,
// an existing one gets count+1, the latest tag and a new lastSeen.
func Touch(reg *capture.Registry, rec capture.CallRecord) {
	if reg.Files == nil {
		reg.Files = make(map[string]map[string]capture.RegistryEntry)
	}
	file, line := rec.Location.File, rec.Location.LineNumber
	if file == "" {
		file, line = capture.UnknownLocation.File, capture.UnknownLocation.LineNumber
	}
	tag := rec.Tag
	if tag == "" {
		tag = UntaggedTag
	}
	seen := FormatTimestamp(rec.EndTimeMs)

	lines, ok := reg.Files[file]
	if !ok {
		lines = make(map[string]capture.RegistryEntry)
		reg.Files[file] = lines
	}

	entry, ok := lines[line]
	if !ok {
		entry = capture.RegistryEntry{FirstSeen: seen}
	}
	entry.Tag = tag
	entry.LastSeen = seen
	entry.Count++
	lines[line] = entry
}

// FormatTimestamp renders unix milliseconds as RFC 3339 UTC with millisecond
// precision.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timestampLayout)
}

// ReadRegistry returns the persisted registry. A missing or corrupt document
// yields an empty registry.
func (s *Store) ReadRegistry(ctx context.Context) (*capture.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRegistry(ctx)
}

func (s *Store) readRegistry(ctx context.Context) (*capture.Registry, error) {
	b, err := s.backend.Read(ctx, RegistryKey)
	if errors.Is(err, capture.ErrNotExist) {
		return capture.NewRegistry(), nil
	}
	if err != nil {
		return nil, err
	}

	reg, err := DecodeRegistry(b)
	if err != nil {
		s.logger.Warn("registry is unreadable, starting from empty", "key", RegistryKey, "error", err)
		return capture.NewRegistry(), nil
	}
	return reg, nil
}

// DecodeRegistry parses a registry document. Errors wrap
// capture.ErrRegistryCorrupt.
func DecodeRegistry(b []byte) (*capture.Registry, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("%w: empty document", capture.ErrRegistryCorrupt)
	}
	var reg capture.Registry
	if err := json.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrRegistryCorrupt, err)
	}
	if reg.Schema == 0 {
		reg.Schema = capture.RegistrySchema
	}
	if reg.Files == nil {
		reg.Files = make(map[string]map[string]capture.RegistryEntry)
	}
	return &reg, nil
}

// EventFile describes one event file.
type EventFile struct {
	Key         string
	TimestampMs int64
}

// ListEventFiles returns event files ordered by their timestamp.
func (s *Store) ListEventFiles(ctx context.Context) ([]EventFile, error) {
	keys, err := s.backend.List(ctx, EventsPrefix)
	if err != nil {
		return nil, err
	}

	files := make([]EventFile, 0, len(keys))
	for _, k := range keys {
		name := path.Base(k)
		if !strings.HasSuffix(name, eventExt) {
			continue
		}
		ms, err := strconv.ParseInt(strings.TrimSuffix(name, eventExt), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, EventFile{Key: k, TimestampMs: ms})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].TimestampMs < files[j].TimestampMs })
	return files, nil
}

// ReadEvents decodes the records in one event file. A malformed line is
// skipped and reported in the returned count of bad lines.
func (s *Store) ReadEvents(ctx context.Context, key string) ([]capture.CallRecord, int, error) {
	b, err := s.backend.Read(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	records, bad := DecodeEvents(b)
	return records, bad, nil
}

// DecodeEvents parses JSONL event data. Records get IsLLMRequest restored.
func DecodeEvents(b []byte) (records []capture.CallRecord, bad int) {
	for _, line := range bytes.Split(b, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec capture.CallRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			bad++
			continue
		}
		rec.IsLLMRequest = true
		records = append(records, rec)
	}
	return records, bad
}

// DeleteEventFile removes one event file.
func (s *Store) DeleteEventFile(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, EventsPrefix) {
		return fmt.Errorf("not an event file: %s", key)
	}
	return s.backend.Delete(ctx, key)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
