// Package stats provides the process-wide receive statistics shared by all
// connection workers.
//
// Counters are atomics. Receive rates come from a small ring of per-second
// buckets; Tick rolls peak values forward once per second.
package stats
