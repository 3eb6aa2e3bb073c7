package buffer

import (
	"context"
	"sync"
)

const defaultInitialCapacity = 64

// StreamBuffer is a thread-safe double-ended queue with optional maxlen.
// Push never blocks; when the buffer is full one existing entry is evicted
// from the configured end before the new item is stored.
type StreamBuffer[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	buf   []T
	head  int // index of the oldest entry
	count int

	policy   Policy
	maxLen   int
	popEnd   End
	evictEnd End
	sizeOf   func(T) int
	size     int64
	closed   bool

	// Stats
	totalPushed  int64
	totalPopped  int64
	totalEvicted int64
	resizeCount  int
}

// NewStreamBuffer creates a buffer with the given options.
func NewStreamBuffer[T any](opts Options[T]) *StreamBuffer[T] {
	capacity := opts.InitialCapacity
	if capacity < 1 {
		capacity = defaultInitialCapacity
	}
	if opts.MaxLen > 0 && capacity > opts.MaxLen {
		capacity = opts.MaxLen
	}

	b := &StreamBuffer[T]{
		buf:      make([]T, capacity),
		policy:   opts.Policy,
		maxLen:   opts.MaxLen,
		popEnd:   resolveEnd(opts.PopEnd, opts.Policy),
		evictEnd: resolveEnd(opts.EvictEnd, opts.Policy),
		sizeOf:   opts.SizeOf,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func resolveEnd(e End, p Policy) End {
	if e != EndDefault {
		return e
	}
	if p == LIFO {
		return EndNewest
	}
	return EndOldest
}

// Push adds an item. Returns false if the buffer is closed.
func (b *StreamBuffer[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if b.maxLen > 0 && b.count >= b.maxLen {
		b.removeLocked(b.evictEnd)
		b.totalEvicted++
	} else if b.count == len(b.buf) {
		b.grow()
	}

	b.buf[(b.head+b.count)%len(b.buf)] = item
	b.count++
	b.size += b.itemSize(item)
	b.totalPushed++

	b.cond.Signal()
	return true
}

// Pop removes and returns an item from the configured pop end.
// Returns the zero value and false when the buffer is empty.
func (b *StreamBuffer[T]) Pop() (T, bool) {
	return b.PopFrom(b.popEnd)
}

// PopFrom removes and returns an item from the given end, ignoring the
// configured pop end.
func (b *StreamBuffer[T]) PopFrom(end End) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	if end == EndDefault {
		end = b.popEnd
	}
	item := b.removeLocked(end)
	b.totalPopped++
	return item, true
}

// PopWait blocks until an item is available, ctx is done, or the buffer
// is closed and drained.
func (b *StreamBuffer[T]) PopWait(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed && ctx.Err() == nil {
		b.cond.Wait()
	}

	var zero T
	if b.count > 0 {
		item := b.removeLocked(b.popEnd)
		b.totalPopped++
		return item, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, ErrClosed
}

// DrainTo removes up to max items (0 = all) in pop order.
func (b *StreamBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = b.removeLocked(b.popEnd)
		b.totalPopped++
	}
	return result
}

// Clear drops every entry and resets the byte counter.
func (b *StreamBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.buf)
	b.head = 0
	b.count = 0
	b.size = 0
}

// Close closes the buffer. After closing, Push returns false; remaining
// items can still be popped.
func (b *StreamBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the current number of items.
func (b *StreamBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Size returns the summed byte size of the buffered items.
func (b *StreamBuffer[T]) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// MaxLen returns the configured maxlen (0 = unbounded).
func (b *StreamBuffer[T]) MaxLen() int {
	return b.maxLen
}

// Policy returns the buffer's policy.
func (b *StreamBuffer[T]) Policy() Policy {
	return b.policy
}

// Snapshot returns the buffered items oldest first without removing them.
func (b *StreamBuffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]T, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.buf[(b.head+i)%len(b.buf)]
	}
	return out
}

// Stats returns buffer statistics.
func (b *StreamBuffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:        b.count,
		Capacity:     len(b.buf),
		MaxLen:       b.maxLen,
		ByteSize:     b.size,
		TotalPushed:  b.totalPushed,
		TotalPopped:  b.totalPopped,
		TotalEvicted: b.totalEvicted,
		ResizeCount:  b.resizeCount,
	}
}

// removeLocked removes one entry from the given end. Must be called with
// lock held and count > 0.
func (b *StreamBuffer[T]) removeLocked(end End) T {
	var zero T
	var idx int
	if end == EndNewest {
		idx = (b.head + b.count - 1) % len(b.buf)
	} else {
		idx = b.head
		b.head = (b.head + 1) % len(b.buf)
	}

	item := b.buf[idx]
	b.buf[idx] = zero // Clear reference for GC
	b.count--
	b.size -= b.itemSize(item)
	return item
}

func (b *StreamBuffer[T]) itemSize(item T) int64 {
	if b.sizeOf == nil {
		return 0
	}
	return int64(b.sizeOf(item))
}

// grow doubles the ring capacity, capped at maxLen. Must be called with lock held.
func (b *StreamBuffer[T]) grow() {
	newCapacity := len(b.buf) * 2
	if b.maxLen > 0 && newCapacity > b.maxLen {
		newCapacity = b.maxLen
	}
	newBuf := make([]T, newCapacity)

	if b.count > 0 {
		tail := b.head + b.count
		if tail <= len(b.buf) {
			copy(newBuf, b.buf[b.head:tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:tail-len(b.buf)])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.resizeCount++
}
