package poller

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// SymbolSource lists the trading symbols of a category.
type SymbolSource interface {
	GetSymbols(ctx context.Context, category string) ([]string, error)
}

// Change is the difference between two polls of one category. The first
// successful poll reports every symbol as added with Initial set.
type Change struct {
	Category string
	Added    []string
	Removed  []string
	Initial  bool
}

// ChangeHandler receives symbol changes.
type ChangeHandler interface {
	HandleChange(ctx context.Context, change Change) error
}

// ChangeHandlerFunc is a function adapter for ChangeHandler.
type ChangeHandlerFunc func(context.Context, Change) error

func (f ChangeHandlerFunc) HandleChange(ctx context.Context, c Change) error {
	return f(ctx, c)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 15m)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-category timeout (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

// Poller periodically discovers instruments via the REST API.
type Poller struct {
	cfg        Config
	source     SymbolSource
	categories []string
	handler    ChangeHandler
	logger     *slog.Logger

	mu    sync.RWMutex
	known map[string]map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller watching categories.
func New(cfg Config, source SymbolSource, categories []string, handler ChangeHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:        cfg,
		source:     source,
		categories: categories,
		handler:    handler,
		logger:     logger,
		known:      make(map[string]map[string]struct{}),
	}
}

// Start polls once and then begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("instrument poller started",
		"interval", p.cfg.Interval,
		"categories", p.categories,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("instrument poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Symbols returns the last known symbols of a category, sorted.
func (p *Poller) Symbols(category string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.known[category]))
	for sym := range p.known[category] {
		out = append(out, sym)
	}
	slices.Sort(out)
	return out
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.PollAll(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.PollAll(p.ctx)
		}
	}
}

// PollAll polls every category concurrently.
func (p *Poller) PollAll(ctx context.Context) {
	start := time.Now()

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var changed, errors atomic.Int64

	for _, category := range p.categories {
		wg.Add(1)
		go func(category string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			ok, err := p.pollCategory(ctx, category)
			if err != nil {
				p.logger.Warn("failed to poll instruments",
					"category", category,
					"error", err,
				)
				errors.Add(1)
				return
			}
			if ok {
				changed.Add(1)
			}
		}(category)
	}

	wg.Wait()

	p.logger.Info("instrument poll complete",
		"categories", len(p.categories),
		"changed", changed.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// pollCategory fetches one category and reports the change, if any.
func (p *Poller) pollCategory(ctx context.Context, category string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	symbols, err := p.source.GetSymbols(ctx, category)
	if err != nil {
		return false, err
	}

	change := p.diff(category, symbols)
	if len(change.Added) == 0 && len(change.Removed) == 0 {
		return false, nil
	}

	p.logger.Info("instruments changed",
		"category", category,
		"added", len(change.Added),
		"removed", len(change.Removed),
		"initial", change.Initial,
	)

	if p.handler != nil {
		if err := p.handler.HandleChange(ctx, change); err != nil {
			return true, err
		}
	}
	return true, nil
}

// diff replaces the known set of category and returns the change.
func (p *Poller) diff(category string, symbols []string) Change {
	next := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		next[s] = struct{}{}
	}

	p.mu.Lock()
	prev, seen := p.known[category]
	p.known[category] = next
	p.mu.Unlock()

	change := Change{Category: category, Initial: !seen}
	for s := range next {
		if _, ok := prev[s]; !ok {
			change.Added = append(change.Added, s)
		}
	}
	for s := range prev {
		if _, ok := next[s]; !ok {
			change.Removed = append(change.Removed, s)
		}
	}
	slices.Sort(change.Added)
	slices.Sort(change.Removed)
	return change
}
