// Package logging builds the structured logger used by capture sessions and
// the trainloop command.
//
// # Overview
//
// The logger is a log/slog logger whose level lives in a slog.LevelVar, so
// the level can change while the process runs (the config watcher does this
// on reload). When RedactSecrets is set, a handler wrapper masks provider API
// keys and bearer tokens in every string attribute before it is written.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "warn", Format: "json", RedactSecrets: true})
//	if err != nil {
//	    return err
//	}
//	logger.Warn("batch dropped", "target", "s3://bucket", "api_key", key) // api_key is masked
//
//	logger.SetLevel("debug")
//
// Context fields set with WithSessionID and WithTag are attached to records
// logged through the *Context methods.
package logging
