// Package buffer provides the bounded queues shared between connection
// workers and consumers.
//
// Three primitives:
//   - StreamBuffer: deque with optional maxlen, FIFO or LIFO serving and
//     eviction, byte-size accounting, non-blocking Pop and blocking PopWait
//   - RingBuffer: fixed-capacity keyed store that overwrites the oldest entry
//   - Set: lazily created named StreamBuffers
//
// Producers never block. All synchronization is internal.
package buffer
