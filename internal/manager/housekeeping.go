package manager

import (
	"time"

	"github.com/rickgao/bybit-streams/internal/stream"
)

// Signals returns a new feed of lifecycle signals. Slow readers miss
// signals rather than block workers. The channel is closed by Stop.
func (m *Manager) Signals() <-chan stream.Signal {
	ch := make(chan stream.Signal, m.cfg.SignalFeedSize)

	m.feedMu.Lock()
	defer m.feedMu.Unlock()

	if m.feedsClosed {
		close(ch)
		return ch
	}
	m.feeds = append(m.feeds, ch)
	return ch
}

// emit is the workers' signal sink.
func (m *Manager) emit(sig stream.Signal) {
	attrs := []any{"stream_id", sig.StreamID, "signal", sig.Type}
	if sig.Error != "" {
		attrs = append(attrs, "error", sig.Error)
	}
	switch sig.Type {
	case stream.SignalDisconnect:
		m.logger.Warn("stream signal", attrs...)
	case stream.SignalStreamUnrepairable:
		m.logger.Error("stream signal", attrs...)
	default:
		m.logger.Info("stream signal", attrs...)
	}

	if m.signals != nil {
		m.signals.Push(sig)
	}

	// A stream that emitted its last signal will never answer
	if sig.Type.IsTerminal() {
		if n := m.pending.prune(time.Time{}, sig.StreamID); n > 0 {
			m.logger.Debug("dropped pending requests", "stream_id", sig.StreamID, "requests", n)
		}
	}

	m.feedMu.RLock()
	defer m.feedMu.RUnlock()
	for _, ch := range m.feeds {
		select {
		case ch <- sig:
		default:
			m.logger.Warn("signal feed full, dropping signal", "stream_id", sig.StreamID, "signal", sig.Type)
		}
	}
}

// frequentChecks rolls the statistics window and keeps listen keys alive.
func (m *Manager) frequentChecks() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.FrequentCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.stats.Tick()

			for _, e := range m.streams.list() {
				if !isActive(e.stream.State()) {
					continue
				}
				if err := e.worker.RefreshListenKey(m.ctx, now); err != nil {
					m.logger.Warn("listen key refresh failed",
						"stream_id", e.stream.ID,
						"error", err,
					)
				}
			}
		}
	}
}

// cleanupLoop stops crashed streams, removes streams that have been stopped
// for longer than CleanupAge and forgets stale pending requests.
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.cleanup(now)
		}
	}
}

func (m *Manager) cleanup(now time.Time) {
	cutoff := now.Add(-m.cfg.CleanupAge)

	removed, stopped := 0, 0
	for _, e := range m.streams.list() {
		switch e.stream.State() {
		case stream.StateCrashed:
			// Stopping starts the CleanupAge clock
			if err := m.StopStream(m.ctx, e.stream.ID); err != nil {
				m.logger.Warn("failed to stop crashed stream", "stream_id", e.stream.ID, "error", err)
				continue
			}
			stopped++
		case stream.StateStopped:
			if stoppedAt := e.stream.StoppedAt(); stoppedAt.Before(cutoff) {
				m.removeStream(e.stream.ID)
				removed++
			}
		}
	}
	pruned := m.pending.prune(cutoff, "")

	if removed > 0 || stopped > 0 || pruned > 0 {
		m.logger.Info("cleanup complete",
			"crashed_stopped", stopped,
			"streams_removed", removed,
			"requests_pruned", pruned,
		)
	}
}
