package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Backend stores opaque blobs under slash-separated keys.
type Backend interface {
	// Read returns the blob at key, or capture.ErrNotExist.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write replaces the blob at key.
	Write(ctx context.Context, key string, data []byte) error

	// Append adds data to the end of the blob at key, creating it if needed.
	Append(ctx context.Context, key string, data []byte) error

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the blob at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error

	// String describes the target for logs.
	String() string
}

// Open returns the backend for target. A target without a scheme, or with
// file://, is a local directory.
func Open(ctx context.Context, target string) (Backend, error) {
	if target == "" {
		return nil, fmt.Errorf("storage: empty target")
	}

	scheme, rest, ok := strings.Cut(target, "://")
	if !ok {
		return NewLocal(target)
	}

	switch strings.ToLower(scheme) {
	case "file":
		return NewLocal(rest)
	case "sqlite":
		return NewSQLite(ctx, &SQLiteConfig{Path: rest})
	case "mem", "s3", "gs":
		return OpenBucket(ctx, target)
	default:
		return nil, fmt.Errorf("storage: unsupported scheme %q", scheme)
	}
}

// cleanKey normalizes a key and rejects ones escaping the root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return k, nil
}
