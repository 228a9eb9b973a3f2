// Package store implements the cellar storage engine: a SQLite database
// holding the materialized record state, fronted by a segmented transaction
// log that makes unclean shutdown visible on disk.
//
// Every mutation is appended to the active log segment before it touches
// SQLite, and replay is idempotent, so the engine can always be brought back
// to a consistent state by re-applying the log tail. A clean close checkpoints
// the database and truncates the active segment back to its header; a crash
// leaves entries past the header, which is exactly the evidence the recovery
// detector looks for.
//
// The engine holds a flock on the store directory for its whole lifetime.
// Opening a locked store fails rather than blocking.
package store
