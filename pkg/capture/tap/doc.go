// Package tap intercepts outbound HTTP calls to LLM providers and records
// them without disturbing the caller.
//
// The tap is an http.RoundTripper. Wrap any client's transport with New and
// every call to an allowlisted host, or any call carrying the
// X-Trainloop-Tag header, is captured:
//
//	client := &http.Client{Transport: tap.New(http.DefaultTransport, exp, tap.Options{})}
//
// # Modes
//
// In streaming mode (the default) the response body is replaced by a tee
// that hands the caller exactly the bytes the network produced while copying
// them, up to a cap, into the capture buffer. The record is emitted when the
// body reaches EOF or is closed.
//
// In buffered mode (Options.Buffered) the response body is read in full
// right after the round trip and replaced by an in-memory reader. The record
// is emitted before RoundTrip returns.
//
// # Completion
//
// A call can be declared finished by several paths: the caller closing the
// body, the stream reaching EOF, or one of the Response accessors draining
// it. All of them funnel into a single compare-and-swap gate, so exactly one
// record is emitted per call. A body read that fails, or a body closed after
// its request context was cancelled, emits nothing.
//
// # Non-interference
//
// Capture failures are recovered and logged. The caller always observes the
// status, headers, bytes and errors of the underlying transport.
package tap
