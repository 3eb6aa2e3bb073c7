package main

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/rickgao/bybit-streams/internal/journal"
	"github.com/rickgao/bybit-streams/internal/stats"
	"github.com/rickgao/bybit-streams/internal/stream"
)

// streamSource is the read side of the manager used by the health server.
type streamSource interface {
	IsStopping() bool
	GetStreamList() []stream.Info
	GetActiveStreamList() []stream.Info
	GetNumberOfAllSubscriptions() int
	GetStats() stats.Snapshot
}

// journalStats is satisfied by *journal.Journal.
type journalStats interface {
	Stats() journal.Metrics
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(mgr streamSource, jrnl *journal.Journal) http.Handler {
	var js journalStats
	if jrnl != nil {
		js = jrnl
	}
	return newHealthMux(mgr, js)
}

func newHealthMux(mgr streamSource, js journalStats) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		all := mgr.GetStreamList()
		active := mgr.GetActiveStreamList()
		snap := mgr.GetStats()

		health.Components["manager"] = map[string]any{
			"stopping":        mgr.IsStopping(),
			"streams":         len(all),
			"active_streams":  len(active),
			"subscriptions":   mgr.GetNumberOfAllSubscriptions(),
			"receives":        snap.Receives,
			"receiving_speed": snap.ReceivingSpeed,
			"reconnects":      snap.Reconnects,
		}
		if js != nil {
			m := js.Stats()
			health.Components["journal"] = map[string]any{
				"inserts": m.Inserts,
				"flushes": m.Flushes,
				"errors":  m.Errors,
			}
		}

		switch {
		case mgr.IsStopping():
			health.Status = "unhealthy"
		case len(active) < len(all):
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/streams", func(w http.ResponseWriter, r *http.Request) {
		streams := mgr.GetStreamList()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(streams),
			"streams": streams,
		})
	})

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mgr.GetStats())
	})

	return mux
}
