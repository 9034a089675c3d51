// Package store persists batches of call records and maintains the call-site
// registry.
//
// Layout under the storage root:
//
//	events/<epoch_ms>.jsonl   one CallRecord per line, append-only
//	_registry.json            {"schema":1,"files":{file:{line:entry}}}
//
// A batch first updates the registry with a single read-modify-write, then
// appends every record to a new event file named after the flush time.
package store
