// Package stream holds the per-stream data model: lifecycle state machine,
// authoritative subscription set, lifecycle signals and buffered records.
//
// State machine:
//
//	created -> connecting -> running <-> reconnecting -> stopping -> stopped
//	connecting/running/reconnecting -> crashed -> stopping
package stream
