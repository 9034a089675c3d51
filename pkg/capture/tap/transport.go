package tap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/trainloop/capture/pkg/capture"
	"github.com/trainloop/capture/pkg/capture/decode"
)

// Capture modes reported to Metrics.CallCaptured.
const (
	ModeStream   = "stream"
	ModeBuffered = "buffered"
	ModeError    = "transport_error"
)

// Sink receives finished call records. The exporter implements it.
type Sink interface {
	Record(rec capture.CallRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec capture.CallRecord) error

// Record calls f(rec).
func (f SinkFunc) Record(rec capture.CallRecord) error { return f(rec) }

// Metrics observes the tap. A nil Metrics in Options disables observation.
type Metrics interface {
	CallCaptured(mode string)
	CaptureError(kind string)
	RecordsDropped(reason string, n int)
}

// Options configures a Transport.
type Options struct {
	// Classifier decides which hosts are LLM providers. Nil uses the
	// default allowlist.
	Classifier *decode.Classifier

	// MaxBodyBytes caps the captured copy of each body. Zero uses
	// decode.DefaultMaxBodyBytes. The caller always sees the full body.
	MaxBodyBytes int

	// Buffered reads responses in full before RoundTrip returns.
	Buffered bool

	// SkipPrefixes lists function-name prefixes ignored by the call-site
	// walk. Nil uses decode.DefaultSkipPrefixes.
	SkipPrefixes []string

	Logger  *slog.Logger
	Metrics Metrics
	Tracer  trace.Tracer

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// Transport is an http.RoundTripper that captures LLM calls made through
// its base transport.
type Transport struct {
	base       http.RoundTripper
	sink       Sink
	classifier *decode.Classifier
	maxBody    int
	buffered   bool
	skip       []string
	logger     *slog.Logger
	metrics    Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// New wraps base. A nil base uses http.DefaultTransport; wrapping an
// existing *Transport reuses its base so calls are never captured twice.
func New(base http.RoundTripper, sink Sink, opts Options) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if inner, ok := base.(*Transport); ok {
		base = inner.base
	}
	if opts.Classifier == nil {
		opts.Classifier = decode.NewClassifier(nil)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = decode.DefaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Transport{
		base:       base,
		sink:       sink,
		classifier: opts.Classifier,
		maxBody:    opts.MaxBodyBytes,
		buffered:   opts.Buffered,
		skip:       opts.SkipPrefixes,
		logger:     opts.Logger.With("component", "capture.tap"),
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
		now:        opts.Now,
	}
}

// Sink returns where the transport sends its records.
func (t *Transport) Sink() Sink {
	return t.sink
}

// Base returns the wrapped transport.
func (t *Transport) Base() http.RoundTripper {
	return t.base
}

// CloseIdleConnections forwards to the base transport when it supports it.
func (t *Transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.base.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ex, out := t.prepare(req)
	if ex == nil {
		return t.base.RoundTrip(out)
	}

	ex.start = t.now()
	resp, err := t.base.RoundTrip(out)
	if err != nil {
		t.onTransportError(ex, err)
		return resp, err
	}

	t.attach(ex, resp, out.Context())
	return resp, nil
}

// prepare decides whether req is captured. For captured calls it returns a
// new exchange and a clone of req with the tag header removed and a
// replayable body. Otherwise it returns req unchanged.
func (t *Transport) prepare(req *http.Request) (ex *exchange, out *http.Request) {
	out = req
	defer func() {
		if r := recover(); r != nil {
			t.captureFailed("prepare", fmt.Errorf("panic: %v", r))
			ex = nil
		}
	}()

	hasTag := hasTagHeader(req.Header)
	if !hasTag && !t.classifier.IsLLMCall(req.URL) {
		return nil, req
	}

	// RoundTrippers must not modify the caller's request.
	out = req.Clone(req.Context())
	tag := decode.PopTag(out.Header)

	reqBody := t.captureRequestBody(out)

	loc, ok := CallSiteFromContext(req.Context())
	if !ok {
		loc = decode.CallerSite(1, t.skip)
	}

	ex = &exchange{
		t:       t,
		url:     req.URL.String(),
		tag:     tag,
		tagged:  hasTag,
		reqBody: reqBody,
		resp:    decode.NewCapBuffer(t.maxBody),
		loc:     loc,
	}
	_, ex.span = t.tracer.Start(req.Context(), "trainloop.capture",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("trainloop.url", ex.url),
			attribute.String("trainloop.tag", tag),
			attribute.String("trainloop.location.file", loc.File),
			attribute.String("trainloop.location.line", loc.LineNumber),
		),
	)
	return ex, out
}

// captureRequestBody copies up to maxBody bytes of the request body. The
// outgoing request keeps a complete, replayable body.
func (t *Transport) captureRequestBody(out *http.Request) []byte {
	if out.Body == nil || out.Body == http.NoBody {
		return nil
	}

	if out.GetBody != nil {
		if rc, err := out.GetBody(); err == nil {
			b, _ := io.ReadAll(io.LimitReader(rc, int64(t.maxBody)))
			rc.Close()
			return b
		}
	}

	all, err := io.ReadAll(out.Body)
	out.Body.Close()
	if err != nil {
		// Hand the transport the same failure the caller's body produced.
		out.Body = io.NopCloser(io.MultiReader(bytes.NewReader(all), errReader{err}))
		out.GetBody = nil
		return decode.Cap(all, t.maxBody)
	}
	out.Body = io.NopCloser(bytes.NewReader(all))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(all)), nil
	}
	return decode.Cap(all, t.maxBody)
}

// attach installs the capturing body on resp according to the mode.
func (t *Transport) attach(ex *exchange, resp *http.Response, ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.captureFailed("attach", fmt.Errorf("panic: %v", r))
			ex.abort("panic")
		}
	}()

	if resp.Body == nil || resp.Body == http.NoBody {
		t.observe(ModeStream)
		ex.complete()
		return
	}

	if t.buffered {
		t.observe(ModeBuffered)
		resp.Body = newBufferedBody(resp.Body, ex)
		return
	}

	t.observe(ModeStream)
	resp.Body = newStreamBody(resp.Body, ex, ctx)
}

// onTransportError records tagged calls that never produced a response.
func (t *Transport) onTransportError(ex *exchange, err error) {
	if !ex.tagged {
		ex.abort("transport_error")
		return
	}
	t.observe(ModeError)
	ex.fail(err)
}

func (t *Transport) observe(mode string) {
	if t.metrics != nil {
		t.metrics.CallCaptured(mode)
	}
}

func (t *Transport) captureFailed(kind string, err error) {
	t.logger.Warn("capture failed, call left untouched", "stage", kind, "error", err)
	if t.metrics != nil {
		t.metrics.CaptureError(kind)
	}
}

func hasTagHeader(h http.Header) bool {
	for k := range h {
		if strings.EqualFold(k, capture.TagHeader) {
			return true
		}
	}
	return false
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
