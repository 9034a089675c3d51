// Package decode holds the pure helpers of the capture pipeline: deciding
// whether a call targets an LLM provider, extracting the tag header, capping
// captured bodies, parsing request and response JSON, reconstructing
// compressed or streamed responses, and resolving the application call site.
//
// Nothing here performs I/O or keeps state beyond the Classifier's allowlist.
// Every function tolerates malformed input and reports failure through a nil
// result or an informational error rather than a panic.
package decode
