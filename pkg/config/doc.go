// Package config loads, validates and watches the capture configuration.
//
// # Configuration File
//
// Settings live under the trainloop key of trainloop.config.yaml:
//
//	trainloop:
//	  data_folder: ./data
//	  host_allowlist: [api.openai.com, api.anthropic.com]
//	  log_level: warn
//	  batch_len: 5
//	  flush_interval: 10s
//	  retention:
//	    days: 30
//	  metrics:
//	    enabled: true
//
// A relative data_folder resolves against the directory holding the file.
//
// # Discovery
//
// Load searches, in order: the explicit path argument (a file, or a
// directory holding the file directly or under trainloop/), the
// TRAINLOOP_CONFIG_PATH variable, ./trainloop/trainloop.config.yaml, and
// ./trainloop.config.yaml. No file at all is fine; defaults apply.
//
// # Configuration Precedence
//
// Later layers override earlier ones:
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file
//  3. TRAINLOOP_* variables in a .env file beside the config
//  4. TRAINLOOP_* variables in the process environment
//
// For example TRAINLOOP_DATA_FOLDER overrides data_folder and
// TRAINLOOP_HOST_ALLOWLIST (comma-separated) overrides host_allowlist.
//
// # Validation
//
// Validation collects every problem before failing:
//
//	configuration validation failed with 2 errors:
//	  - batch_len: must be at least 1
//	  - retention.prune_schedule: invalid cron expression: ...
//
// # Hot Reload
//
// Watcher observes the config file and its .env sibling with fsnotify and
// hands each successfully reloaded Config to a callback after a short
// debounce.
package config
