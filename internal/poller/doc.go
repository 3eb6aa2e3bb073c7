// Package poller implements the instrument poller.
//
// The poller:
//   - Polls the REST API for the trading symbols of each watched category
//   - Diffs them against the last known set
//   - Reports listings and delistings to a ChangeHandler
//
// streamd uses it to keep "all symbols" streams subscribed to every
// instrument as Bybit lists new ones.
package poller
