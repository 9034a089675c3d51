package tap

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/decode"
	"github.com/trainloop/capture/pkg/capture/record"
)

// exchange accumulates one captured call. Exactly one of complete, fail or
// abort takes effect; the rest are no-ops.
type exchange struct {
	t       *Transport
	url     string
	tag     string
	tagged  bool
	reqBody []byte
	resp    *decode.CapBuffer
	loc     capture.Location
	start   time.Time
	span    trace.Span

	done atomic.Bool
}

// complete emits the record built from everything captured so far.
func (ex *exchange) complete() {
	if !ex.done.CompareAndSwap(false, true) {
		return
	}
	ex.emit(nil)
}

// fail emits a record whose output is the transport error.
func (ex *exchange) fail(err error) {
	if !ex.done.CompareAndSwap(false, true) {
		return
	}
	ex.emit(err)
}

// abort closes the gate without emitting a record.
func (ex *exchange) abort(reason string) {
	if !ex.done.CompareAndSwap(false, true) {
		return
	}
	if ex.t.metrics != nil {
		ex.t.metrics.RecordsDropped(reason, 1)
	}
	ex.t.logger.Debug("call not recorded", "url", ex.url, "reason", reason)
	if ex.span != nil {
		ex.span.SetStatus(codes.Error, reason)
		ex.span.End()
	}
}

// completed reports whether the gate has fired.
func (ex *exchange) completed() bool {
	return ex.done.Load()
}

func (ex *exchange) emit(transportErr error) {
	defer func() {
		if r := recover(); r != nil {
			ex.t.captureFailed("build", fmt.Errorf("panic: %v", r))
		}
		if ex.span != nil {
			ex.span.End()
		}
	}()

	rec, err := record.Build(record.Exchange{
		URL:          ex.url,
		Tag:          ex.tag,
		RequestBody:  ex.reqBody,
		ResponseBody: ex.resp.Bytes(),
		StartTime:    ex.start,
		EndTime:      ex.t.now(),
		Location:     ex.loc,
		TransportErr: transportErr,
	})
	if err != nil {
		ex.t.logger.Warn("response decode failed, keeping raw bytes", "url", ex.url, "error", err)
		if ex.t.metrics != nil {
			ex.t.metrics.CaptureError("decode")
		}
	}

	if ex.span != nil {
		ex.span.SetAttributes(
			attribute.Int64("trainloop.duration_ms", rec.DurationMs),
			attribute.Int("trainloop.response_bytes", ex.resp.Len()),
			attribute.Bool("trainloop.response_truncated", ex.resp.Truncated()),
		)
		if rec.Model != nil {
			ex.span.SetAttributes(attribute.String("trainloop.model", *rec.Model))
		}
		if transportErr != nil {
			ex.span.RecordError(transportErr)
			ex.span.SetStatus(codes.Error, transportErr.Error())
		}
	}

	if ex.t.sink == nil {
		return
	}
	if err := ex.t.sink.Record(rec); err != nil {
		ex.t.logger.Debug("sink rejected record", "url", ex.url, "error", err)
	}
}
