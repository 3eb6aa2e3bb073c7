package manager

import (
	"context"

	"github.com/rickgao/bybit-streams/internal/connection"
	"github.com/rickgao/bybit-streams/internal/stats"
	"github.com/rickgao/bybit-streams/internal/stream"
)

// SetStreamLabel sets the label of a stream.
func (m *Manager) SetStreamLabel(id, label string) error {
	e, ok := m.streams.get(id)
	if !ok {
		return ErrStreamNotFound
	}
	e.stream.SetLabel(label)
	return nil
}

// GetStreamIDByLabel returns the first stream created with label.
func (m *Manager) GetStreamIDByLabel(label string) (string, bool) {
	return m.streams.byLabel(label)
}

// GetStreamInfo returns a snapshot of one stream.
func (m *Manager) GetStreamInfo(id string) (stream.Info, error) {
	e, ok := m.streams.get(id)
	if !ok {
		return stream.Info{}, ErrStreamNotFound
	}
	return e.stream.Info(), nil
}

// GetStreamList returns all registered streams in creation order.
func (m *Manager) GetStreamList() []stream.Info {
	entries := m.streams.list()
	out := make([]stream.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.stream.Info())
	}
	return out
}

// GetActiveStreamList returns streams that are connecting, running or
// reconnecting.
func (m *Manager) GetActiveStreamList() []stream.Info {
	var out []stream.Info
	for _, e := range m.streams.list() {
		if isActive(e.stream.State()) {
			out = append(out, e.stream.Info())
		}
	}
	return out
}

func isActive(s stream.State) bool {
	switch s {
	case stream.StateCreated, stream.StateConnecting, stream.StateRunning, stream.StateReconnecting:
		return true
	}
	return false
}

// GetNumberOfStreams returns the number of registered streams.
func (m *Manager) GetNumberOfStreams() int {
	return m.streams.len()
}

// GetNumberOfSubscriptions returns the size of a stream's subscription set.
func (m *Manager) GetNumberOfSubscriptions(id string) (int, error) {
	e, ok := m.streams.get(id)
	if !ok {
		return 0, ErrStreamNotFound
	}
	return e.stream.NumSubscriptions(), nil
}

// GetNumberOfAllSubscriptions sums the subscription sets of active streams.
func (m *Manager) GetNumberOfAllSubscriptions() int {
	total := 0
	for _, e := range m.streams.list() {
		if isActive(e.stream.State()) {
			total += e.stream.NumSubscriptions()
		}
	}
	return total
}

// GetStats returns the global receive statistics.
func (m *Manager) GetStats() stats.Snapshot {
	return m.stats.Snapshot()
}

// GetStreamStats returns one stream's receive statistics.
func (m *Manager) GetStreamStats(id string) (stats.StreamSnapshot, bool) {
	return m.stats.Stream(id)
}

// GetErrorsFromEndpoints returns the error ring, oldest first.
func (m *Manager) GetErrorsFromEndpoints() []connection.EndpointError {
	return m.errors.Values()
}

// GetResultsFromEndpoints returns the result ring, oldest first.
func (m *Manager) GetResultsFromEndpoints() [][]byte {
	return m.results.Values()
}

// SetRingBufferErrorMaxSize resizes the error ring, keeping the newest entries.
func (m *Manager) SetRingBufferErrorMaxSize(size int) {
	m.errors.Resize(size)
}

// SetRingBufferResultMaxSize resizes the result ring, keeping the newest entries.
func (m *Manager) SetRingBufferResultMaxSize(size int) {
	m.results.Resize(size)
}

// PopStreamData pops one record from the named data buffer without blocking.
func (m *Manager) PopStreamData(name string) (stream.Record, bool) {
	b, ok := m.data.Lookup(name)
	if !ok {
		return stream.Record{}, false
	}
	return b.Pop()
}

// PopStreamDataWait pops one record, blocking until data arrives, ctx ends or
// the buffer is closed.
func (m *Manager) PopStreamDataWait(ctx context.Context, name string) (stream.Record, error) {
	return m.data.Get(name).PopWait(ctx)
}

// PopStreamDataBatch pops up to max records (0 = all) from the named buffer
// without blocking.
func (m *Manager) PopStreamDataBatch(name string, max int) []stream.Record {
	b, ok := m.data.Lookup(name)
	if !ok {
		return nil
	}
	return b.DrainTo(max)
}

// AddToStreamBuffer pushes a record into the named data buffer.
func (m *Manager) AddToStreamBuffer(name string, rec stream.Record) bool {
	return m.data.Get(name).Push(rec)
}

// ClearStreamBuffer empties the named data buffer.
func (m *Manager) ClearStreamBuffer(name string) {
	if b, ok := m.data.Lookup(name); ok {
		b.Clear()
	}
}

// GetStreamBufferLength returns the number of records in the named buffer.
func (m *Manager) GetStreamBufferLength(name string) int {
	if b, ok := m.data.Lookup(name); ok {
		return b.Len()
	}
	return 0
}

// GetStreamBufferByteSize returns the byte size of all data buffers.
func (m *Manager) GetStreamBufferByteSize() int64 {
	return m.data.Size()
}

// GetStreamBufferMaxlen returns the maxlen of the named buffer (0 = unbounded).
func (m *Manager) GetStreamBufferMaxlen(name string) int {
	if b, ok := m.data.Lookup(name); ok {
		return b.MaxLen()
	}
	return m.cfg.BufferMaxLen
}

// GetStreamBufferNames returns the names of all data buffers.
func (m *Manager) GetStreamBufferNames() []string {
	return m.data.Names()
}

// PopStreamSignal pops the oldest signal from the signal buffer.
func (m *Manager) PopStreamSignal() (stream.Signal, bool) {
	if m.signals == nil {
		return stream.Signal{}, false
	}
	return m.signals.Pop()
}

// AddToStreamSignalBuffer pushes a signal into the signal buffer.
func (m *Manager) AddToStreamSignalBuffer(sig stream.Signal) error {
	if m.signals == nil {
		return ErrSignalBufferDisabled
	}
	m.signals.Push(sig)
	return nil
}

// GetStreamSignalBufferLength returns the number of buffered signals.
func (m *Manager) GetStreamSignalBufferLength() int {
	if m.signals == nil {
		return 0
	}
	return m.signals.Len()
}
