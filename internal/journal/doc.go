// Package journal persists stream lifecycle signals.
//
// A Journal drains a signal feed from the stream manager and writes batches
// to a Sink. Sinks:
//   - PostgresSink: pgx batch inserts into stream_signals
//   - SQLiteSink: gorm over a pure-Go SQLite file
//
// Journals are append-only.
package journal
