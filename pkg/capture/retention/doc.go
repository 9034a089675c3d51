// Package retention prunes old event files from a capture data folder,
// either on demand or on a cron schedule.
//
// Event files are named after the flush time, so age is read from the key
// rather than from file metadata. The registry is never pruned: it tracks
// call sites, not individual calls.
package retention
