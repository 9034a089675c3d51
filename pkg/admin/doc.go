// Package admin serves a small read-only HTTP API over a capture session.
//
// Routes:
//
//	GET /healthz          liveness
//	GET /readyz           readiness (503 while a check fails)
//	GET /metrics          Prometheus exposition, when metrics are enabled
//	GET /registry         the call-site registry document
//	GET /events           event files, oldest first
//	GET /events/{name}    records of one event file, ?tag= filters
//	GET /calls            recent records across files, ?tag= and ?limit=
//
// The API never writes to the data folder.
package admin
