package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/bybit-streams/internal/api"
)

// mockSource returns a settable symbol list per category.
type mockSource struct {
	mu      sync.Mutex
	symbols map[string][]string
	err     error
}

func (m *mockSource) GetSymbols(ctx context.Context, category string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.symbols[category], nil
}

func (m *mockSource) set(category string, symbols ...string) {
	m.mu.Lock()
	m.symbols[category] = symbols
	m.mu.Unlock()
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) HandleChange(ctx context.Context, c Change) error {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
	return nil
}

func (r *changeRecorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.changes)
}

func TestPoller_PollAll(t *testing.T) {
	source := &mockSource{symbols: map[string][]string{
		"spot":   {"BTCUSDT", "ETHUSDT"},
		"linear": {"BTCUSDT"},
	}}
	rec := &changeRecorder{}

	p := New(Config{Interval: time.Hour}, source, []string{"spot", "linear"}, rec, nil)
	ctx := context.Background()

	p.PollAll(ctx)

	changes := rec.all()
	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	for _, c := range changes {
		if !c.Initial {
			t.Errorf("%s: Initial = false on first poll", c.Category)
		}
	}
	if got := p.Symbols("spot"); !slices.Equal(got, []string{"BTCUSDT", "ETHUSDT"}) {
		t.Errorf("Symbols(spot) = %v", got)
	}

	// No change, no report
	p.PollAll(ctx)
	if got := len(rec.all()); got != 2 {
		t.Errorf("changes after unchanged poll = %d, want 2", got)
	}

	source.set("spot", "BTCUSDT", "SOLUSDT", "XRPUSDT")
	p.PollAll(ctx)

	changes = rec.all()
	if len(changes) != 3 {
		t.Fatalf("changes = %d, want 3", len(changes))
	}
	last := changes[2]
	if last.Category != "spot" || last.Initial {
		t.Errorf("last change = %+v", last)
	}
	if !slices.Equal(last.Added, []string{"SOLUSDT", "XRPUSDT"}) {
		t.Errorf("Added = %v, want [SOLUSDT XRPUSDT]", last.Added)
	}
	if !slices.Equal(last.Removed, []string{"ETHUSDT"}) {
		t.Errorf("Removed = %v, want [ETHUSDT]", last.Removed)
	}
}

func TestPoller_SourceError(t *testing.T) {
	source := &mockSource{err: errors.New("boom")}
	rec := &changeRecorder{}

	p := New(Config{}, source, []string{"spot"}, rec, nil)
	p.PollAll(context.Background())

	if got := len(rec.all()); got != 0 {
		t.Errorf("changes = %d, want 0", got)
	}
	if got := p.Symbols("spot"); len(got) != 0 {
		t.Errorf("Symbols(spot) = %v, want empty", got)
	}
}

func TestPoller_StartStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"BTCUSDT","status":"Trading"}]}}`))
	}))
	defer server.Close()

	client := api.NewClient(server.URL, api.WithTimeout(5*time.Second))

	var called atomic.Bool
	handler := ChangeHandlerFunc(func(ctx context.Context, c Change) error {
		called.Store(true)
		return nil
	})

	cfg := Config{
		Interval:    100 * time.Millisecond,
		Concurrency: 2,
		Timeout:     5 * time.Second,
	}

	p := New(cfg, client, []string{"spot"}, handler, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for at least one poll.
	time.Sleep(150 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !called.Load() {
		t.Error("handler was never called")
	}
	if got := p.Symbols("spot"); !slices.Equal(got, []string{"BTCUSDT"}) {
		t.Errorf("Symbols(spot) = %v, want [BTCUSDT]", got)
	}
}

type slowSource struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *slowSource) GetSymbols(ctx context.Context, category string) ([]string, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	for {
		old := s.maxInFlight.Load()
		if current <= old || s.maxInFlight.CompareAndSwap(old, current) {
			break
		}
	}

	time.Sleep(50 * time.Millisecond)
	return []string{category + "-SYM"}, nil
}

func TestPoller_Concurrency(t *testing.T) {
	source := &slowSource{}

	var categories []string
	for i := 0; i < 12; i++ {
		categories = append(categories, fmt.Sprintf("cat-%d", i))
	}

	p := New(Config{Interval: time.Hour, Concurrency: 3}, source, categories, nil, nil)
	p.PollAll(context.Background())

	if got := source.maxInFlight.Load(); got > 3 {
		t.Errorf("maxInFlight = %d, want <= 3", got)
	}
	for _, c := range categories {
		if got := p.Symbols(c); len(got) != 1 {
			t.Errorf("Symbols(%s) = %v", c, got)
		}
	}
}
