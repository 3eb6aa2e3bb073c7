// Package manager is the public entry point for creating and supervising
// Bybit websocket streams.
//
// A Manager splits oversized requests across streams, runs one connection
// worker per stream and exposes the shared data buffers, the signal buffer,
// the result and error rings and receive statistics. Delivery is pull-based:
// consumers pop from buffers and never block the workers.
package manager
