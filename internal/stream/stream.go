package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rickgao/bybit-streams/internal/endpoint"
	"github.com/rickgao/bybit-streams/internal/splitter"
)

// Config is the immutable per-stream configuration.
type Config struct {
	Endpoint     endpoint.Endpoint
	BufferName   string
	BufferMaxLen int
	Output       Output

	// MaxSubscriptions caps the subscription set for the stream's lifetime.
	MaxSubscriptions int

	PingInterval time.Duration
	PingTimeout  time.Duration
	CloseTimeout time.Duration

	APIKey    string
	APISecret string
}

// Stream is one logical subscription group served by one socket.
type Stream struct {
	ID        string
	Config    Config
	CreatedAt time.Time

	mu            sync.RWMutex
	state         State
	changed       chan struct{} // closed and replaced on every state change
	label         string
	subs          []splitter.Subscription
	subIndex      map[splitter.Subscription]struct{}
	startedAt     time.Time
	stoppedAt     time.Time
	reconnects    int
	lastError     string
	listenKey     string
	lastHeartbeat time.Time
	firstData     bool
}

// New creates a stream in StateCreated holding subs as its authoritative set.
func New(id, label string, cfg Config, subs []splitter.Subscription) *Stream {
	s := &Stream{
		ID:        id,
		Config:    cfg,
		CreatedAt: time.Now(),
		state:     StateCreated,
		changed:   make(chan struct{}),
		label:     label,
		subIndex:  make(map[splitter.Subscription]struct{}, len(subs)),
	}
	s.addLocked(subs)
	return s
}

// State returns the current state.
func (s *Stream) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transition moves the stream to next if the state machine allows it.
func (s *Stream) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == next {
		return nil
	}
	if !s.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}

	s.state = next
	switch next {
	case StateRunning:
		if s.startedAt.IsZero() {
			s.startedAt = time.Now()
		}
	case StateStopped:
		s.stoppedAt = time.Now()
	}

	close(s.changed)
	s.changed = make(chan struct{})
	return nil
}

// WaitFor blocks until match(state) is true or ctx is done, returning the
// last observed state.
func (s *Stream) WaitFor(ctx context.Context, match func(State) bool) (State, error) {
	for {
		s.mu.RLock()
		state := s.state
		changed := s.changed
		s.mu.RUnlock()

		if match(state) {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-changed:
		}
	}
}

// Label returns the stream label.
func (s *Stream) Label() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.label
}

// SetLabel replaces the stream label.
func (s *Stream) SetLabel(label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
}

// Subscriptions returns a copy of the authoritative subscription set.
func (s *Stream) Subscriptions() []splitter.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]splitter.Subscription, len(s.subs))
	copy(out, s.subs)
	return out
}

// NumSubscriptions returns the size of the authoritative set.
func (s *Stream) NumSubscriptions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// AddSubscriptions appends subs not already present and returns those added.
func (s *Stream) AddSubscriptions(subs []splitter.Subscription) []splitter.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(subs)
}

func (s *Stream) addLocked(subs []splitter.Subscription) []splitter.Subscription {
	var added []splitter.Subscription
	for _, sub := range subs {
		if _, ok := s.subIndex[sub]; ok {
			continue
		}
		s.subIndex[sub] = struct{}{}
		s.subs = append(s.subs, sub)
		added = append(added, sub)
	}
	return added
}

// RemoveSubscriptions drops subs and returns those that were present.
func (s *Stream) RemoveSubscriptions(subs []splitter.Subscription) []splitter.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[splitter.Subscription]struct{}, len(subs))
	var removed []splitter.Subscription
	for _, sub := range subs {
		if _, ok := s.subIndex[sub]; !ok {
			continue
		}
		if _, dup := drop[sub]; dup {
			continue
		}
		drop[sub] = struct{}{}
		delete(s.subIndex, sub)
		removed = append(removed, sub)
	}
	if len(removed) == 0 {
		return nil
	}

	kept := s.subs[:0]
	for _, sub := range s.subs {
		if _, ok := drop[sub]; !ok {
			kept = append(kept, sub)
		}
	}
	clear(s.subs[len(kept):])
	s.subs = kept
	return removed
}

// RecordReconnect increments the reconnect counter and stores the cause.
func (s *Stream) RecordReconnect(cause error) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconnects++
	if cause != nil {
		s.lastError = cause.Error()
	}
	return s.reconnects
}

// SetError stores the last error message.
func (s *Stream) SetError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// MarkFirstData returns true exactly once, on the first received data frame.
func (s *Stream) MarkFirstData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.firstData {
		return false
	}
	s.firstData = true
	return true
}

// SetHeartbeat records the time of the last pong or data frame.
func (s *Stream) SetHeartbeat(t time.Time) {
	s.mu.Lock()
	s.lastHeartbeat = t
	s.mu.Unlock()
}

// ListenKey returns the current listen key, if any.
func (s *Stream) ListenKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenKey
}

// SetListenKey stores the listen key acquired for a private stream.
func (s *Stream) SetListenKey(key string) {
	s.mu.Lock()
	s.listenKey = key
	s.mu.Unlock()
}

// StoppedAt returns when the stream reached StateStopped (zero otherwise).
func (s *Stream) StoppedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stoppedAt
}

// Info is a point-in-time copy of a stream's bookkeeping.
type Info struct {
	ID               string
	Label            string
	Exchange         endpoint.Exchange
	Category         endpoint.Category
	URI              string
	State            State
	BufferName       string
	Output           Output
	Subscriptions    []string
	NumSubscriptions int
	MaxSubscriptions int
	Reconnects       int
	LastError        string
	HasListenKey     bool
	CreatedAt        time.Time
	StartedAt        time.Time
	StoppedAt        time.Time
	LastHeartbeat    time.Time
	PingInterval     time.Duration
	PingTimeout      time.Duration
	CloseTimeout     time.Duration
}

// Info returns a snapshot of the stream.
func (s *Stream) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Info{
		ID:               s.ID,
		Label:            s.label,
		Exchange:         s.Config.Endpoint.Exchange,
		Category:         s.Config.Endpoint.Category,
		URI:              s.Config.Endpoint.URI(),
		State:            s.state,
		BufferName:       s.Config.BufferName,
		Output:           s.Config.Output,
		Subscriptions:    splitter.Topics(s.subs),
		NumSubscriptions: len(s.subs),
		MaxSubscriptions: s.Config.MaxSubscriptions,
		Reconnects:       s.reconnects,
		LastError:        s.lastError,
		HasListenKey:     s.listenKey != "",
		CreatedAt:        s.CreatedAt,
		StartedAt:        s.startedAt,
		StoppedAt:        s.stoppedAt,
		LastHeartbeat:    s.lastHeartbeat,
		PingInterval:     s.Config.PingInterval,
		PingTimeout:      s.Config.PingTimeout,
		CloseTimeout:     s.Config.CloseTimeout,
	}
}
