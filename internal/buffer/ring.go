package buffer

import (
	"strconv"
	"sync"
)

// RingBuffer is a fixed-capacity keyed store. When full, Put overwrites the
// chronologically oldest entry; evicted keys are no longer retrievable.
type RingBuffer[V any] struct {
	mu       sync.RWMutex
	entries  []ringEntry[V]
	index    map[string]uint64 // key -> seq of its newest entry
	next     uint64            // seq of the next Put
	capacity int
}

type ringEntry[V any] struct {
	seq   uint64
	key   string
	value V
	used  bool
}

// NewRingBuffer creates a ring with the given capacity (minimum 1).
func NewRingBuffer[V any](capacity int) *RingBuffer[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[V]{
		entries:  make([]ringEntry[V], capacity),
		index:    make(map[string]uint64),
		capacity: capacity,
	}
}

// Put stores value under key, evicting the oldest entry if the ring is full.
func (r *RingBuffer[V]) Put(key string, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(key, value)
}

// Add stores value under an implicit sequence key and returns that key.
func (r *RingBuffer[V]) Add(value V) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strconv.FormatUint(r.next, 10)
	r.putLocked(key, value)
	return key
}

func (r *RingBuffer[V]) putLocked(key string, value V) {
	slot := &r.entries[r.next%uint64(r.capacity)]
	if slot.used {
		if seq, ok := r.index[slot.key]; ok && seq == slot.seq {
			delete(r.index, slot.key)
		}
	}

	*slot = ringEntry[V]{seq: r.next, key: key, value: value, used: true}
	r.index[key] = r.next
	r.next++
}

// Get returns the newest value stored under key.
func (r *RingBuffer[V]) Get(key string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seq, ok := r.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	return r.entries[seq%uint64(r.capacity)].value, true
}

// Len returns the number of stored entries.
func (r *RingBuffer[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.next < uint64(r.capacity) {
		return int(r.next)
	}
	return r.capacity
}

// Cap returns the ring capacity.
func (r *RingBuffer[V]) Cap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capacity
}

// Values returns the stored values oldest first.
func (r *RingBuffer[V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.valuesLocked()
}

func (r *RingBuffer[V]) valuesLocked() []V {
	n := uint64(r.capacity)
	if r.next < n {
		n = r.next
	}
	out := make([]V, 0, n)
	for seq := r.next - n; seq < r.next; seq++ {
		out = append(out, r.entries[seq%uint64(r.capacity)].value)
	}
	return out
}

// Resize changes the capacity, keeping the newest entries that still fit.
func (r *RingBuffer[V]) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if capacity == r.capacity {
		return
	}

	n := uint64(r.capacity)
	if r.next < n {
		n = r.next
	}
	old := make([]ringEntry[V], 0, n)
	for seq := r.next - n; seq < r.next; seq++ {
		old = append(old, r.entries[seq%uint64(r.capacity)])
	}
	if len(old) > capacity {
		old = old[len(old)-capacity:]
	}

	r.entries = make([]ringEntry[V], capacity)
	r.index = make(map[string]uint64, len(old))
	r.capacity = capacity
	r.next -= uint64(len(old))
	for _, e := range old {
		r.putLocked(e.key, e.value)
	}
}
