// Package capture defines the data model shared by the LLM-call capture
// pipeline: call records, call-site locations, the call-site registry, the
// tag header, and the error taxonomy.
//
// # Pipeline
//
// Capture runs inside the instrumented process:
//
//  1. The transport tap (package tap) intercepts an outbound HTTP call
//  2. The decode package classifies it and reconstructs streamed bodies
//  3. The record package normalizes the exchange into a CallRecord
//  4. The exporter package batches records in memory
//  5. The store package appends them to events/<epoch_ms>.jsonl and updates
//     _registry.json on a storage backend (package storage)
//
// # Tagging
//
// Callers classify a call by attaching the X-Trainloop-Tag header:
//
//	req.Header = capture.Tag("greeting")
//
// The tag is stripped before the request leaves the process.
//
// # Failure Policy
//
// Nothing in the capture path returns an error to the instrumented call. Parse
// failures produce records with null fields, decode failures fall back to raw
// bytes, and storage failures drop the batch with a warning.
package capture
