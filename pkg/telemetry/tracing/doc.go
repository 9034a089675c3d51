// Package tracing builds the OpenTelemetry tracer used for capture spans.
//
// Every captured LLM call gets one "trainloop.capture" span, started by the
// transport tap when the request is sent and ended when the call record is
// emitted. Spans carry the URL, tag, call site, duration and response size.
// When the request context already holds an application span, the capture
// span becomes its child.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	rt := tap.New(nil, sink, tap.Options{Tracer: tracer.Tracer()})
//
// # Export
//
// Spans are batched to an OTLP/HTTP collector (default localhost:4318). The
// tracer is never registered globally.
//
// # Sampling
//
// tracing.sample_ratio selects the fraction of root spans kept. Child spans
// follow their parent's decision.
package tracing
