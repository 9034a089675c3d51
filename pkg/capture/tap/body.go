package tap

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// chunkSize is the read size used by Next.
const chunkSize = 32 * 1024

// CapturedResponse is the capability shared by the bodies the tap installs
// on captured responses. Next returns the next chunk of the body, or io.EOF
// once it is exhausted. Close releases the body; both drive the completion
// gate.
type CapturedResponse interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// streamBody tees the network body into the capture buffer as the caller
// reads it.
type streamBody struct {
	rc  io.ReadCloser
	ex  *exchange
	ctx context.Context
}

var (
	_ io.ReadCloser    = (*streamBody)(nil)
	_ CapturedResponse = (*streamBody)(nil)
)

func newStreamBody(rc io.ReadCloser, ex *exchange, ctx context.Context) *streamBody {
	if ctx == nil {
		ctx = context.Background()
	}
	return &streamBody{rc: rc, ex: ex, ctx: ctx}
}

// Read forwards to the network body. The caller sees its n and err
// unchanged.
func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.ex.resp.Write(p[:n])
	}
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		b.ex.complete()
	default:
		b.ex.abort("read_error")
	}
	return n, err
}

// Close closes the network body and fires the gate unless the request was
// cancelled.
func (b *streamBody) Close() error {
	err := b.rc.Close()
	if b.ctx.Err() != nil {
		b.ex.abort("canceled")
	} else {
		b.ex.complete()
	}
	return err
}

// Next reads one chunk.
func (b *streamBody) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		b.ex.abort("canceled")
		return nil, err
	}
	return nextChunk(b)
}

// bufferedBody serves a response that was read in full inside RoundTrip.
type bufferedBody struct {
	r *bytes.Reader
}

var (
	_ io.ReadCloser    = (*bufferedBody)(nil)
	_ CapturedResponse = (*bufferedBody)(nil)
)

// newBufferedBody drains rc, fires the gate and returns the replacement
// body. A read failure is replayed to the caller after the bytes that did
// arrive, and no record is emitted.
func newBufferedBody(rc io.ReadCloser, ex *exchange) io.ReadCloser {
	all, err := io.ReadAll(rc)
	rc.Close()
	ex.resp.Write(all)

	if err != nil {
		ex.abort("read_error")
		return io.NopCloser(io.MultiReader(bytes.NewReader(all), errReader{err}))
	}
	ex.complete()
	return &bufferedBody{r: bytes.NewReader(all)}
}

func (b *bufferedBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (b *bufferedBody) Close() error {
	return nil
}

func (b *bufferedBody) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nextChunk(b.r)
}

func nextChunk(r io.Reader) ([]byte, error) {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			// A final chunk may arrive together with io.EOF; report the
			// EOF on the following call.
			return buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}
