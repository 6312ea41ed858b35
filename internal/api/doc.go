// Package api implements the HTTP REST API for climdiff-server.
//
// New returns a Handler that serves:
//
//	GET  /api/v1/health               — run counts per state
//	GET  /api/v1/surface              — the model/variable selection surface
//	POST /api/v1/runs                 — submit {model, variable}; 202 {id, state}
//	GET  /api/v1/runs                 — all held runs, newest first
//	GET  /api/v1/runs/{id}            — one run with result summary and diagnostics
//	GET  /api/v1/runs/{id}/figure.png — rendered map (409 until completed)
//	GET  /api/v1/runs/{id}/field.nc   — difference field as NetCDF (409 until completed)
//	GET  /api/v1/history?limit=N      — up to N (>= 1, default 100) history rows, newest first
//
// Submitted runs execute in background goroutines bound to the context
// given to New; Wait blocks until they have all finished. Completed runs
// are recorded in the history store when one is configured.
//
// JSON cannot carry NaN or Inf, so non-finite statistics are sent as null.
// JSON types are defined in types.go. No external HTTP framework is used.
package api
