package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/rickgao/bybit-streams/internal/config"
	"github.com/rickgao/bybit-streams/internal/journal"
	"github.com/rickgao/bybit-streams/internal/manager"
	"github.com/rickgao/bybit-streams/internal/poller"
	"github.com/rickgao/bybit-streams/internal/stats"
	"github.com/rickgao/bybit-streams/internal/stream"
)

type unsubscribeCall struct {
	id      string
	symbols []string
}

type fakeCreator struct {
	mu       sync.Mutex
	requests []manager.StreamRequest
	unsubs   []unsubscribeCall
	next     int
	err      error
}

func (f *fakeCreator) CreateStream(ctx context.Context, req manager.StreamRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	f.next++
	return []string{req.Label + "-" + strconv.Itoa(f.next)}, nil
}

func (f *fakeCreator) UnsubscribeFromStream(ctx context.Context, id string, channels, symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, unsubscribeCall{id: id, symbols: symbols})
	return nil
}

func TestSymbolStreams_HandleChange(t *testing.T) {
	cfg := &config.Config{}
	creator := &fakeCreator{}
	tracker := newSymbolStreams(cfg, creator, nil)
	tracker.add(config.StreamConfig{Label: "spot-tickers", Category: "spot", Channels: []string{"tickers"}, AllSymbols: true})
	tracker.add(config.StreamConfig{Label: "linear-klines", Category: "linear", Channels: []string{"kline.1"}, AllSymbols: true})

	if got := tracker.categories(); !slices.Equal(got, []string{"linear", "spot"}) {
		t.Errorf("categories() = %v, want [linear spot]", got)
	}

	ctx := context.Background()
	err := tracker.HandleChange(ctx, poller.Change{Category: "spot", Added: []string{"BTCUSDT", "ETHUSDT"}, Initial: true})
	if err != nil {
		t.Fatalf("HandleChange failed: %v", err)
	}
	if len(creator.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(creator.requests))
	}
	req := creator.requests[0]
	if req.Category != "spot" || !slices.Equal(req.Symbols, []string{"BTCUSDT", "ETHUSDT"}) {
		t.Errorf("request = %+v", req)
	}

	err = tracker.HandleChange(ctx, poller.Change{Category: "spot", Added: []string{"SOLUSDT"}, Removed: []string{"ETHUSDT"}})
	if err != nil {
		t.Fatalf("HandleChange failed: %v", err)
	}
	if len(creator.requests) != 2 {
		t.Errorf("requests = %d, want 2", len(creator.requests))
	}
	if got := tracker.streamIDs("spot"); len(got) != 2 {
		t.Errorf("streamIDs(spot) = %v, want 2 ids", got)
	}
	if len(creator.unsubs) != 2 {
		t.Fatalf("unsubscribes = %d, want 2", len(creator.unsubs))
	}
	for _, u := range creator.unsubs {
		if !slices.Equal(u.symbols, []string{"ETHUSDT"}) {
			t.Errorf("unsubscribe %s symbols = %v, want [ETHUSDT]", u.id, u.symbols)
		}
	}

	// Unknown category is a no-op
	if err := tracker.HandleChange(ctx, poller.Change{Category: "option", Added: []string{"X"}}); err != nil {
		t.Errorf("HandleChange(option) = %v, want nil", err)
	}
}

func TestSymbolStreams_CreateError(t *testing.T) {
	creator := &fakeCreator{err: errors.New("boom")}
	tracker := newSymbolStreams(&config.Config{}, creator, nil)
	tracker.add(config.StreamConfig{Label: "t", Category: "spot", Channels: []string{"tickers"}, AllSymbols: true})

	err := tracker.HandleChange(context.Background(), poller.Change{Category: "spot", Added: []string{"BTCUSDT"}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("HandleChange error = %v, want boom", err)
	}
	if got := tracker.streamIDs("spot"); len(got) != 0 {
		t.Errorf("streamIDs(spot) = %v, want none", got)
	}
}

type fakeSource struct {
	stopping bool
	all      []stream.Info
	active   []stream.Info
}

func (f *fakeSource) IsStopping() bool                   { return f.stopping }
func (f *fakeSource) GetStreamList() []stream.Info       { return f.all }
func (f *fakeSource) GetActiveStreamList() []stream.Info { return f.active }
func (f *fakeSource) GetNumberOfAllSubscriptions() int   { return 3 * len(f.all) }
func (f *fakeSource) GetStats() stats.Snapshot           { return stats.Snapshot{Receives: 42} }

type fakeJournal struct{}

func (fakeJournal) Stats() journal.Metrics { return journal.Metrics{Inserts: 7, Flushes: 2} }

func TestHealthHandler(t *testing.T) {
	running := stream.Info{ID: "a", State: stream.StateRunning}
	crashed := stream.Info{ID: "b", State: stream.StateCrashed}

	tests := []struct {
		name       string
		source     *fakeSource
		wantStatus string
		wantCode   int
	}{
		{
			name:       "healthy",
			source:     &fakeSource{all: []stream.Info{running}, active: []stream.Info{running}},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name:       "degraded",
			source:     &fakeSource{all: []stream.Info{running, crashed}, active: []stream.Info{running}},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name:       "stopping",
			source:     &fakeSource{stopping: true},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newHealthMux(tt.source, fakeJournal{})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status     string                    `json:"status"`
				Components map[string]map[string]any `json:"components"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if _, ok := body.Components["journal"]; !ok {
				t.Error("journal component missing")
			}
		})
	}
}

func TestDebugEndpoints(t *testing.T) {
	source := &fakeSource{all: []stream.Info{{ID: "a"}, {ID: "b"}}}
	handler := newHealthMux(source, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/streams", nil))
	var streams struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &streams); err != nil {
		t.Fatalf("decode streams: %v", err)
	}
	if streams.Count != 2 {
		t.Errorf("count = %d, want 2", streams.Count)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/stats", nil))
	var snap stats.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if snap.Receives != 42 {
		t.Errorf("Receives = %d, want 42", snap.Receives)
	}
}

func TestHasPrivateStreams(t *testing.T) {
	cfg := &config.Config{Streams: []config.StreamConfig{{Category: "spot"}}}
	if hasPrivateStreams(cfg) {
		t.Error("hasPrivateStreams = true for spot only")
	}
	cfg.Streams = append(cfg.Streams, config.StreamConfig{Category: "private"})
	if !hasPrivateStreams(cfg) {
		t.Error("hasPrivateStreams = false with a private stream")
	}
}
