// Package store provides the SQLite-backed run catalog.
//
// The catalog records one row per capture run and, when a trace is imported,
// one row per event. It is a secondary index for browsing and searching; the
// trace file stays the source of truth.
//
// # Critical Patterns
//
// Logical ordering
//   - Events are ordered by seq (the sequence index), NEVER by timestamps
//   - All event queries include ORDER BY seq ASC
//
// Idempotent import
//   - PRIMARY KEY(run_id, seq) with ON CONFLICT DO NOTHING
//   - Re-importing a trace is a no-op
//
// Exact values
//   - Values are stored as JSON carrying the raw bits of every primitive,
//     so floats (NaN included) survive a round trip
//
// # Database Configuration
//
// Set per connection through the go-sqlite3 DSN:
//
//   - WAL mode: the CLI can list runs while a pipeline finishes one
//   - synchronous=NORMAL: a lost run row is rebuilt by re-importing its trace
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: events cannot outlive their run
//   - _txlock=immediate: import transactions take the write lock at BEGIN
//
// Schema changes are numbered migrations tracked in PRAGMA user_version.
package store
