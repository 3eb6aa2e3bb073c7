package main

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/rickgao/bybit-streams/internal/config"
	"github.com/rickgao/bybit-streams/internal/manager"
	"github.com/rickgao/bybit-streams/internal/poller"
)

// streamCreator is the subset of the manager that symbol tracking needs.
type streamCreator interface {
	CreateStream(ctx context.Context, req manager.StreamRequest) ([]string, error)
	UnsubscribeFromStream(ctx context.Context, id string, channels, symbols []string) error
}

// symbolStreams keeps all_symbols streams in line with the instrument poller.
// New symbols get new streams, delisted symbols are unsubscribed everywhere.
type symbolStreams struct {
	cfg    *config.Config
	mgr    streamCreator
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string][]*symbolEntry // by category
}

type symbolEntry struct {
	conf config.StreamConfig
	ids  []string
}

func newSymbolStreams(cfg *config.Config, mgr streamCreator, logger *slog.Logger) *symbolStreams {
	if logger == nil {
		logger = slog.Default()
	}
	return &symbolStreams{
		cfg:     cfg,
		mgr:     mgr,
		logger:  logger,
		entries: make(map[string][]*symbolEntry),
	}
}

func (s *symbolStreams) add(conf config.StreamConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[conf.Category] = append(s.entries[conf.Category], &symbolEntry{conf: conf})
}

func (s *symbolStreams) categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for c := range s.entries {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

func (s *symbolStreams) streamIDs(category string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, e := range s.entries[category] {
		ids = append(ids, e.ids...)
	}
	return ids
}

// HandleChange implements poller.ChangeHandler.
func (s *symbolStreams) HandleChange(ctx context.Context, c poller.Change) error {
	s.mu.Lock()
	entries := slices.Clone(s.entries[c.Category])
	s.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if len(c.Added) > 0 {
			ids, err := s.mgr.CreateStream(ctx, s.cfg.StreamRequest(e.conf, c.Added, "", ""))
			if err != nil {
				errs = append(errs, err)
				s.logger.Error("failed to create stream for new symbols",
					"label", e.conf.Label,
					"category", c.Category,
					"symbols", len(c.Added),
					"error", err,
				)
			} else {
				s.mu.Lock()
				e.ids = append(e.ids, ids...)
				s.mu.Unlock()
				s.logger.Info("streams created",
					"label", e.conf.Label,
					"category", c.Category,
					"symbols", len(c.Added),
					"stream_ids", ids,
					"initial", c.Initial,
				)
			}
		}

		if len(c.Removed) == 0 {
			continue
		}
		s.mu.Lock()
		ids := slices.Clone(e.ids)
		s.mu.Unlock()
		for _, id := range ids {
			err := s.mgr.UnsubscribeFromStream(ctx, id, e.conf.Channels, c.Removed)
			if err != nil && !errors.Is(err, manager.ErrStreamNotFound) {
				errs = append(errs, err)
				s.logger.Warn("failed to unsubscribe delisted symbols",
					"stream_id", id,
					"symbols", c.Removed,
					"error", err,
				)
			}
		}
	}
	return errors.Join(errs...)
}
