package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/trainloop/capture/pkg/capture"
)

// SQLiteConfig contains configuration for the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path, or ":memory:".
	Path string

	// WALMode enables Write-Ahead Logging.
	// Default: true for file databases
	WALMode bool

	// BusyTimeout is how long a writer waits for a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS objects (
	key        TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLite stores blobs as rows of a single table. Appends concatenate in
// place, so event files stay append-only.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Backend = (*SQLite)(nil)

// NewSQLite opens (or creates) the database and its schema.
func NewSQLite(ctx context.Context, config *SQLiteConfig) (*SQLite, error) {
	if config == nil || config.Path == "" {
		return nil, errors.New("storage: sqlite path is required")
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}
	memory := config.Path == ":memory:"
	if !memory {
		config.WALMode = true
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, capture.NewStorageError("sqlite", "open", config.Path, err)
	}
	// A single connection keeps :memory: databases shared and serializes
	// writers without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	s := &SQLite{
		db:     db,
		path:   config.Path,
		logger: slog.Default().With("component", "capture.storage.sqlite"),
	}
	if err := s.initialize(ctx, config); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug("sqlite storage initialized", "path", config.Path, "wal_mode", config.WALMode)
	return s, nil
}

func (s *SQLite) initialize(ctx context.Context, config *SQLiteConfig) error {
	if config.WALMode {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return capture.NewStorageError("sqlite", "enable_wal", "", err)
		}
	}
	pragma := fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())
	if _, err := s.db.ExecContext(ctx, pragma); err != nil {
		return capture.NewStorageError("sqlite", "set_busy_timeout", "", err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return capture.NewStorageError("sqlite", "create_schema", "", err)
	}
	return nil
}

func (s *SQLite) String() string {
	return "sqlite://" + s.path
}

func (s *SQLite) Read(ctx context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	var data string
	err = s.db.QueryRowContext(ctx, `SELECT data FROM objects WHERE key = ?`, k).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, capture.ErrNotExist
	}
	if err != nil {
		return nil, capture.NewStorageError("sqlite", "read", key, err)
	}
	return []byte(data), nil
}

func (s *SQLite) Write(ctx context.Context, key string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO objects (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		k, string(data), time.Now().UnixMilli())
	if err != nil {
		return capture.NewStorageError("sqlite", "write", key, err)
	}
	return nil
}

func (s *SQLite) Append(ctx context.Context, key string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO objects (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = objects.data || excluded.data, updated_at = excluded.updated_at`,
		k, string(data), time.Now().UnixMilli())
	if err != nil {
		return capture.NewStorageError("sqlite", "append", key, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM objects WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, capture.NewStorageError("sqlite", "list", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, capture.NewStorageError("sqlite", "list", prefix, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, capture.NewStorageError("sqlite", "list", prefix, err)
	}
	return keys, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, k); err != nil {
		return capture.NewStorageError("sqlite", "delete", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return capture.NewStorageError("sqlite", "close", "", err)
	}
	return nil
}
