package buffer

import (
	"sort"
	"sync"
)

// DefaultName is the name of the shared buffer used when no name is given.
const DefaultName = "default"

// Set is a registry of named StreamBuffers sharing default options.
// Buffers are created lazily on first use.
type Set[T any] struct {
	mu       sync.RWMutex
	buffers  map[string]*StreamBuffer[T]
	defaults Options[T]
	closed   bool
}

// NewSet creates an empty buffer set.
func NewSet[T any](defaults Options[T]) *Set[T] {
	return &Set[T]{
		buffers:  make(map[string]*StreamBuffer[T]),
		defaults: defaults,
	}
}

func normalizeName(name string) string {
	if name == "" {
		return DefaultName
	}
	return name
}

// Get returns the named buffer, creating it with the set defaults if needed.
func (s *Set[T]) Get(name string) *StreamBuffer[T] {
	return s.GetWithMaxLen(name, 0)
}

// GetWithMaxLen returns the named buffer, creating it with maxLen (0 = set
// default) if needed. An existing buffer keeps its original maxlen.
func (s *Set[T]) GetWithMaxLen(name string, maxLen int) *StreamBuffer[T] {
	name = normalizeName(name)

	s.mu.RLock()
	b, ok := s.buffers[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buffers[name]; ok {
		return b
	}

	opts := s.defaults
	if maxLen > 0 {
		opts.MaxLen = maxLen
	}
	b = NewStreamBuffer(opts)
	if s.closed {
		b.Close()
	}
	s.buffers[name] = b
	return b
}

// Lookup returns the named buffer without creating it.
func (s *Set[T]) Lookup(name string) (*StreamBuffer[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buffers[normalizeName(name)]
	return b, ok
}

// Remove closes and forgets the named buffer. The default buffer is cleared
// but kept.
func (s *Set[T]) Remove(name string) bool {
	name = normalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buffers[name]
	if !ok {
		return false
	}
	if name == DefaultName {
		b.Clear()
		return true
	}
	b.Close()
	delete(s.buffers, name)
	return true
}

// Names returns the sorted buffer names.
func (s *Set[T]) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.buffers))
	for name := range s.buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the summed byte size of all buffers.
func (s *Set[T]) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, b := range s.buffers {
		total += b.Size()
	}
	return total
}

// CloseAll closes every buffer; later Gets return closed buffers.
func (s *Set[T]) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, b := range s.buffers {
		b.Close()
	}
}
