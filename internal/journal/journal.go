package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/bybit-streams/internal/stream"
)

// Journal consumes signals from a feed and writes them to a Sink in batches.
type Journal struct {
	cfg    Config
	logger *slog.Logger

	input <-chan stream.Signal
	sink  Sink

	batch   []stream.Signal
	batchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// New creates a Journal reading from input.
func New(cfg Config, input <-chan stream.Signal, sink Sink, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Journal{
		cfg:    cfg,
		input:  input,
		sink:   sink,
		logger: logger,
		batch:  make([]stream.Signal, 0, cfg.BatchSize),
	}
}

// Start begins consuming signals.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.consumeLoop()

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("signal journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop waits for the loops to exit, flushes what is left and closes the sink.
func (j *Journal) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		j.logger.Warn("signal journal stop timed out")
	}

	j.flush()

	if err := j.sink.Close(); err != nil {
		return err
	}
	j.logger.Info("signal journal stopped", "inserts", j.Stats().Inserts)
	return nil
}

// Stats returns current metrics.
func (j *Journal) Stats() Metrics {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.metrics
}

// consumeLoop ends when the context is cancelled or the feed is closed.
func (j *Journal) consumeLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case sig, ok := <-j.input:
			if !ok {
				return
			}
			j.add(sig)
		}
	}
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.flush()
		}
	}
}

func (j *Journal) add(sig stream.Signal) {
	j.batchMu.Lock()
	j.batch = append(j.batch, sig)
	shouldFlush := len(j.batch) >= j.cfg.BatchSize
	j.batchMu.Unlock()

	if shouldFlush {
		j.flush()
	}
}

// flush writes the current batch to the sink.
func (j *Journal) flush() {
	j.batchMu.Lock()
	if len(j.batch) == 0 {
		j.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := j.batch
	j.batch = make([]stream.Signal, 0, j.cfg.BatchSize)
	j.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := j.sink.Write(ctx, batch); err != nil {
		j.logger.Error("signal batch write failed", "error", err, "count", len(batch))
		j.batchMu.Lock()
		j.metrics.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.metrics.Inserts += int64(len(batch))
	j.metrics.Flushes++
	j.batchMu.Unlock()

	j.logger.Debug("flushed signals",
		"count", len(batch),
		"duration", time.Since(start),
	)
}
