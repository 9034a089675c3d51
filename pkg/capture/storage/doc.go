// Package storage provides the uniform key/value backends the capture store
// writes through.
//
// Keys are slash-separated relative paths such as "_registry.json" or
// "events/1718000000000.jsonl". A backend is chosen from a target string:
//
//	./trainloop/data             local directory
//	file:///var/lib/trainloop    local directory
//	mem://                       in-memory bucket (tests)
//	s3://bucket/prefix?region=…  Amazon S3 bucket
//	gs://bucket/prefix           Google Cloud Storage bucket
//	sqlite:///path/capture.db    single-file SQLite database
//
// Directories and prefixes are created implicitly. Backends are safe for
// concurrent use; the store adds its own serialization on top.
package storage
