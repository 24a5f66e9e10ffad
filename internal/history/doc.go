// Package history keeps a SQLite ledger of pipeline runs.
//
// Every engine execution inserts one row when it starts and closes that row
// when it reaches a terminal state. The ledger is an audit trail only; run
// artifacts on disk remain the source of truth for reports. The database is
// opened in WAL mode and writes retry on SQLITE_BUSY so concurrently
// dispatched runs can record without serializing on a single process.
package history
