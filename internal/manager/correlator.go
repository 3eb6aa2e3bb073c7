package manager

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// correlator tracks requests awaiting retrieval from the result ring.
type correlator struct {
	mu      sync.Mutex
	pending map[string]PendingRequest
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]PendingRequest)}
}

// GenerateRequestID returns a new unique request id.
func GenerateRequestID() string {
	return uuid.NewString()
}

func (c *correlator) add(req PendingRequest) {
	c.mu.Lock()
	c.pending[req.ID] = req
	c.mu.Unlock()
}

func (c *correlator) take(id string) (PendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[id]
	delete(c.pending, id)
	return req, ok
}

func (c *correlator) get(id string) (PendingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[id]
	return req, ok
}

func (c *correlator) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// prune drops requests sent before cutoff or belonging to streamID.
func (c *correlator) prune(cutoff time.Time, streamID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, req := range c.pending {
		if req.SentAt.Before(cutoff) || (streamID != "" && req.StreamID == streamID) {
			delete(c.pending, id)
			n++
		}
	}
	return n
}
