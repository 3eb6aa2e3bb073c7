package manager

import (
	"sync"

	"github.com/rickgao/bybit-streams/internal/buffer"
	"github.com/rickgao/bybit-streams/internal/connection"
	"github.com/rickgao/bybit-streams/internal/stream"
)

// entry is one registered stream and its worker.
type entry struct {
	stream *stream.Stream
	worker *connection.Worker
}

// registry holds streams in creation order.
type registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

func (r *registry) add(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.stream.ID] = e
	r.order = append(r.order, e.stream.ID)
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

func (r *registry) remove(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return e, true
}

// list returns all entries in creation order.
func (r *registry) list() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// byLabel returns the first stream created with label.
func (r *registry) byLabel(label string) (string, bool) {
	for _, e := range r.list() {
		if e.stream.Label() == label {
			return e.stream.ID, true
		}
	}
	return "", false
}

// bufferInUse reports whether a stream other than exclude writes to name.
func (r *registry) bufferInUse(name, exclude string) bool {
	if name == "" {
		name = buffer.DefaultName
	}
	for _, e := range r.list() {
		if e.stream.ID == exclude {
			continue
		}
		other := e.stream.Config.BufferName
		if other == "" {
			other = buffer.DefaultName
		}
		if other == name {
			return true
		}
	}
	return false
}
