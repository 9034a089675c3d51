package decode

import "sync"

// DefaultMaxBodyBytes is the capture ceiling for a single request or
// response body.
const DefaultMaxBodyBytes = 2 * 1024 * 1024 // 2 MiB

// Cap truncates b to at most limit bytes. A non-positive limit uses
// DefaultMaxBodyBytes.
func Cap(b []byte, limit int) []byte {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	if len(b) > limit {
		return b[:limit]
	}
	return b
}

// CapBuffer accumulates bytes up to a fixed limit. Writes past the limit are
// discarded rather than buffered. It is safe for concurrent use.
type CapBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

// NewCapBuffer creates a buffer holding at most limit bytes. A non-positive
// limit uses DefaultMaxBodyBytes.
func NewCapBuffer(limit int) *CapBuffer {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return &CapBuffer{limit: limit}
}

// Write appends as much of p as fits. It always reports len(p) so it can sit
// behind an io.TeeReader without ever failing the caller's read.
func (b *CapBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.limit - len(b.buf)
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Bytes returns a copy of the captured bytes.
func (b *CapBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Len returns the number of captured bytes.
func (b *CapBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Truncated reports whether any bytes were dropped.
func (b *CapBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
