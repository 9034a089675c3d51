// Package exporter buffers captured call records in memory and hands them to
// a Writer in batches.
//
// A batch is flushed when the buffer reaches Config.BatchLen (synchronously,
// on the goroutine that recorded the last call), when the flush interval
// elapses, when Flush is called, or on Shutdown. Flushes are serialized, so
// batches reach the Writer in the order their records were recorded.
//
// The exporter never returns a storage failure to the capture path. A batch
// that cannot be written is logged and dropped.
package exporter
