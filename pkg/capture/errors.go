package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrNotExist is returned by storage backends when a key is missing.
	ErrNotExist = errors.New("capture: object does not exist")

	// ErrStorageUnconfigured is reported when a flush has no store to write to.
	ErrStorageUnconfigured = errors.New("capture: storage target not configured")

	// ErrExporterClosed is returned by Record after the exporter shut down.
	ErrExporterClosed = errors.New("capture: exporter is shut down")

	// ErrRegistryCorrupt marks a registry document that could not be decoded.
	ErrRegistryCorrupt = errors.New("capture: registry document is corrupt")
)

// StorageError represents an I/O failure from a storage backend.
type StorageError struct {
	Backend   string // "local", "blob", "sqlite"
	Operation string // "read", "write", "append", "list", "delete"
	Key       string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error [backend=%s, operation=%s, key=%s]: %v", e.Backend, e.Operation, e.Key, e.Cause)
	}
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation, key string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Key:       key,
		Cause:     cause,
	}
}

// DecodeError reports a body that looked like gzip or SSE but could not be
// reconstructed. Callers fall back to the raw bytes.
type DecodeError struct {
	Stage string // "gzip", "sse"
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error [stage=%s]: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}
