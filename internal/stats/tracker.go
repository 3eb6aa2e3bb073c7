package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultKeepSeconds is how many completed seconds the receive window keeps.
const DefaultKeepSeconds = 5

// Tracker aggregates receive, transmit, reconnect and error counters across
// all connection workers. Producers only touch atomics.
type Tracker struct {
	keep int
	now  func() time.Time

	receives    atomic.Uint64
	bytes       atomic.Uint64
	transmitted atomic.Uint64
	reconnects  atomic.Uint64
	errors      atomic.Uint64

	window  *window
	streams sync.Map // stream id -> *streamCounters

	mostReceivesPerSecond atomic.Int64
	peakSpeed             atomic.Int64 // bytes per second
	peakSpeedAt           atomic.Int64 // unix seconds
	startedAt             atomic.Int64 // unix nanos
}

type streamCounters struct {
	receives    atomic.Uint64
	bytes       atomic.Uint64
	transmitted atomic.Uint64
	reconnects  atomic.Uint64
	errors      atomic.Uint64
	window      *window
}

// NewTracker creates a tracker keeping keepSeconds of per-second history.
func NewTracker(keepSeconds int) *Tracker {
	if keepSeconds < 1 {
		keepSeconds = DefaultKeepSeconds
	}
	t := &Tracker{
		keep:   keepSeconds,
		now:    time.Now,
		window: newWindow(keepSeconds),
	}
	t.startedAt.Store(t.now().UnixNano())
	return t
}

func (t *Tracker) stream(id string) *streamCounters {
	if c, ok := t.streams.Load(id); ok {
		return c.(*streamCounters)
	}
	c, _ := t.streams.LoadOrStore(id, &streamCounters{window: newWindow(t.keep)})
	return c.(*streamCounters)
}

// RecordReceive counts one received frame of size bytes.
func (t *Tracker) RecordReceive(streamID string, size int) {
	sec := t.now().Unix()

	t.receives.Add(1)
	t.bytes.Add(uint64(size))
	t.window.add(sec, size)

	c := t.stream(streamID)
	c.receives.Add(1)
	c.bytes.Add(uint64(size))
	c.window.add(sec, size)
}

// RecordTransmit counts one frame sent to the server.
func (t *Tracker) RecordTransmit(streamID string) {
	t.transmitted.Add(1)
	t.stream(streamID).transmitted.Add(1)
}

// RecordReconnect counts one reconnect.
func (t *Tracker) RecordReconnect(streamID string) {
	t.reconnects.Add(1)
	t.stream(streamID).reconnects.Add(1)
}

// RecordError counts one error frame or decode failure.
func (t *Tracker) RecordError(streamID string) {
	t.errors.Add(1)
	t.stream(streamID).errors.Add(1)
}

// Tick updates peak values from the last completed second. Called once per
// second by the manager.
func (t *Tracker) Tick() {
	last := t.now().Unix() - 1
	count, bytes := t.window.at(last)

	for {
		cur := t.mostReceivesPerSecond.Load()
		if count <= cur || t.mostReceivesPerSecond.CompareAndSwap(cur, count) {
			break
		}
	}
	for {
		cur := t.peakSpeed.Load()
		if bytes <= cur {
			break
		}
		if t.peakSpeed.CompareAndSwap(cur, bytes) {
			t.peakSpeedAt.Store(last)
			break
		}
	}
}

// ReceivesLastSecond returns receives counted in the last completed second.
func (t *Tracker) ReceivesLastSecond() int64 {
	count, _ := t.window.at(t.now().Unix() - 1)
	return count
}

// CurrentReceivingSpeed returns bytes received in the last completed second.
func (t *Tracker) CurrentReceivingSpeed() int64 {
	_, bytes := t.window.at(t.now().Unix() - 1)
	return bytes
}

// StreamReceivesLastSecond returns the stream's receives in the last
// completed second.
func (t *Tracker) StreamReceivesLastSecond(streamID string) int64 {
	c, ok := t.streams.Load(streamID)
	if !ok {
		return 0
	}
	count, _ := c.(*streamCounters).window.at(t.now().Unix() - 1)
	return count
}

// StreamReceivingSpeed returns the stream's bytes in the last completed second.
func (t *Tracker) StreamReceivingSpeed(streamID string) int64 {
	c, ok := t.streams.Load(streamID)
	if !ok {
		return 0
	}
	_, bytes := c.(*streamCounters).window.at(t.now().Unix() - 1)
	return bytes
}

// Stream returns the stream's counters.
func (t *Tracker) Stream(streamID string) (StreamSnapshot, bool) {
	v, ok := t.streams.Load(streamID)
	if !ok {
		return StreamSnapshot{}, false
	}
	c := v.(*streamCounters)
	now := t.now().Unix()
	count, bytes := c.window.at(now - 1)

	return StreamSnapshot{
		StreamID:           streamID,
		Receives:           c.receives.Load(),
		Bytes:              c.bytes.Load(),
		Transmitted:        c.transmitted.Load(),
		Reconnects:         c.reconnects.Load(),
		Errors:             c.errors.Load(),
		ReceivesLastSecond: count,
		ReceivingSpeed:     bytes,
		WindowEntries:      c.window.entries(now),
	}, true
}

// Forget drops a stream's counters. Global totals are kept.
func (t *Tracker) Forget(streamID string) {
	t.streams.Delete(streamID)
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.receives.Store(0)
	t.bytes.Store(0)
	t.transmitted.Store(0)
	t.reconnects.Store(0)
	t.errors.Store(0)
	t.mostReceivesPerSecond.Store(0)
	t.peakSpeed.Store(0)
	t.peakSpeedAt.Store(0)
	t.window.reset()
	t.streams.Clear()
	t.startedAt.Store(t.now().UnixNano())
}

// Snapshot is a point-in-time copy of the global counters.
type Snapshot struct {
	Receives              uint64
	Bytes                 uint64
	Transmitted           uint64
	Reconnects            uint64
	Errors                uint64
	ReceivesLastSecond    int64
	ReceivingSpeed        int64
	MostReceivesPerSecond int64
	PeakSpeed             int64
	PeakSpeedAt           time.Time
	StartedAt             time.Time
	Uptime                time.Duration
	Timestamp             time.Time
}

// StreamSnapshot is a point-in-time copy of one stream's counters.
type StreamSnapshot struct {
	StreamID           string
	Receives           uint64
	Bytes              uint64
	Transmitted        uint64
	Reconnects         uint64
	Errors             uint64
	ReceivesLastSecond int64
	ReceivingSpeed     int64
	WindowEntries      int
}

// Snapshot returns the global counters.
func (t *Tracker) Snapshot() Snapshot {
	now := t.now()
	count, bytes := t.window.at(now.Unix() - 1)
	started := time.Unix(0, t.startedAt.Load())

	var peakAt time.Time
	if sec := t.peakSpeedAt.Load(); sec > 0 {
		peakAt = time.Unix(sec, 0)
	}

	return Snapshot{
		Receives:              t.receives.Load(),
		Bytes:                 t.bytes.Load(),
		Transmitted:           t.transmitted.Load(),
		Reconnects:            t.reconnects.Load(),
		Errors:                t.errors.Load(),
		ReceivesLastSecond:    count,
		ReceivingSpeed:        bytes,
		MostReceivesPerSecond: t.mostReceivesPerSecond.Load(),
		PeakSpeed:             t.peakSpeed.Load(),
		PeakSpeedAt:           peakAt,
		StartedAt:             started,
		Uptime:                now.Sub(started),
		Timestamp:             now,
	}
}
