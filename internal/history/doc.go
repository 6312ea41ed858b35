// Package history persists a summary row for every completed run in a
// SQLite database (modernc.org/sqlite, no cgo).
//
// Rows hold the selection, scale and colour bounds, field statistics and
// wall time. Non-finite statistics are stored as NULL and read back as NaN.
// The server prunes rows older than history.retention on a ticker.
package history
