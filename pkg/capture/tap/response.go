package tap

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"sync"
)

// Chunk is one element delivered by Response.Chunks.
type Chunk struct {
	Data []byte
	Err  error
}

// Response wraps an *http.Response with convenience accessors. Every
// accessor drains or closes the body through the same path, so a captured
// call is recorded once no matter which accessor finishes it.
//
// Content, Text and JSON cache the body; calling any of them after another,
// or after All ran to completion, returns the cached bytes.
type Response struct {
	*http.Response

	body CapturedResponse

	mu      sync.Mutex
	content []byte
	err     error
	drained bool
}

// Wrap returns a Response for resp. Bodies not installed by the tap are
// adapted so the accessors work on any response.
func Wrap(resp *http.Response) *Response {
	r := &Response{Response: resp}
	switch b := resp.Body.(type) {
	case nil:
		r.body = &readerBody{rc: http.NoBody}
	case CapturedResponse:
		r.body = b
	default:
		r.body = &readerBody{rc: b}
	}
	return r
}

// Content reads the remaining body, closes it and returns the bytes.
func (r *Response) Content() ([]byte, error) {
	return r.ContentContext(context.Background())
}

// ContentContext is Content bounded by ctx.
func (r *Response) ContentContext(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drained {
		return r.content, r.err
	}

	var buf []byte
	var err error
	for {
		var chunk []byte
		chunk, err = r.body.Next(ctx)
		buf = append(buf, chunk...)
		if err != nil {
			break
		}
	}
	if errors.Is(err, io.EOF) {
		err = nil
	}
	r.content = append(r.content, buf...)
	r.err = err
	r.drained = true
	if closeErr := r.body.Close(); err == nil && closeErr != nil {
		r.err = closeErr
	}
	return r.content, r.err
}

// Text returns the body as a string.
func (r *Response) Text() (string, error) {
	b, err := r.Content()
	return string(b), err
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	b, err := r.Content()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// All iterates over the body chunk by chunk on the calling goroutine. The
// body is closed when the loop ends, whether by exhaustion, error or break.
// After the body was drained, All yields the cached content once.
//
// The loop holds the lock shared by every accessor: calling Content, Text,
// JSON, All or Chunks on the same Response from inside the loop deadlocks.
func (r *Response) All() iter.Seq2[[]byte, error] {
	return r.all(context.Background())
}

// all is All with every read bounded by ctx.
func (r *Response) all(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.drained {
			if len(r.content) > 0 || r.err != nil {
				yield(r.content, r.err)
			}
			return
		}

		var seen []byte
		defer func() {
			r.content = seen
			r.drained = true
			r.body.Close()
		}()

		for {
			chunk, err := r.body.Next(ctx)
			if len(chunk) > 0 {
				seen = append(seen, chunk...)
				if !yield(chunk, nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				r.err = err
				yield(nil, err)
				return
			}
		}
	}
}

// Chunks streams the body on a background goroutine for consumers that
// select over several sources. The channel is closed after the last chunk;
// a read error is delivered as a final Chunk with Err set. Cancelling ctx
// stops the pump and closes the body, which unblocks a pending read; the
// call is then not recorded.
func (r *Response) Chunks(ctx context.Context) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		stop := context.AfterFunc(ctx, func() {
			r.abortOnCancel()
			r.body.Close()
		})
		defer stop()

		for chunk, err := range r.all(ctx) {
			select {
			case out <- Chunk{Data: chunk, Err: err}:
			case <-ctx.Done():
				r.abortOnCancel()
				return
			}
		}
	}()
	return out
}

// abortOnCancel drops the record of a captured stream the consumer gave up
// on.
func (r *Response) abortOnCancel() {
	if sb, ok := r.body.(*streamBody); ok {
		sb.ex.abort("canceled")
	}
}

// Close closes the body.
func (r *Response) Close() error {
	return r.body.Close()
}

// readerBody adapts a plain body to CapturedResponse.
type readerBody struct {
	rc io.ReadCloser
}

func (b *readerBody) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nextChunk(b.rc)
}

func (b *readerBody) Close() error {
	return b.rc.Close()
}
