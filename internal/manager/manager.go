package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bybit-streams/internal/buffer"
	"github.com/rickgao/bybit-streams/internal/connection"
	"github.com/rickgao/bybit-streams/internal/endpoint"
	"github.com/rickgao/bybit-streams/internal/splitter"
	"github.com/rickgao/bybit-streams/internal/stats"
	"github.com/rickgao/bybit-streams/internal/stream"
	"github.com/rickgao/bybit-streams/internal/wire"
)

// Manager creates, supervises and tears down streams. It owns the data
// buffers, the signal buffer, the result and error rings and the statistics
// tracker shared by all workers.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	streams *registry
	pending *correlator

	data    *buffer.Set[stream.Record]
	signals *buffer.StreamBuffer[stream.Signal] // nil unless enabled
	results *buffer.RingBuffer[[]byte]
	errors  *buffer.RingBuffer[connection.EndpointError]
	stats   *stats.Tracker

	feedMu      sync.RWMutex
	feeds       []chan stream.Signal
	feedsClosed bool

	started  atomic.Bool
	stopping atomic.Bool
}

// New creates a Manager. Start must be called before creating streams.
func New(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	m := &Manager{
		cfg:     cfg,
		logger:  logger,
		streams: newRegistry(),
		pending: newCorrelator(),
		data: buffer.NewSet(buffer.Options[stream.Record]{
			Policy:   cfg.BufferPolicy,
			MaxLen:   cfg.BufferMaxLen,
			EvictEnd: cfg.BufferEvictEnd,
			PopEnd:   cfg.BufferPopEnd,
			SizeOf:   stream.Record.Size,
		}),
		results: buffer.NewRingBuffer[[]byte](cfg.RingBufferResultMaxSize),
		errors:  buffer.NewRingBuffer[connection.EndpointError](cfg.RingBufferErrorMaxSize),
		stats:   stats.NewTracker(cfg.StatsKeepSeconds),
	}

	if cfg.EnableSignalBuffer {
		m.signals = buffer.NewStreamBuffer(buffer.Options[stream.Signal]{
			Policy: buffer.FIFO,
			MaxLen: cfg.SignalBufferMaxLen,
		})
	}

	return m
}

// Start launches the housekeeping loops.
func (m *Manager) Start(ctx context.Context) error {
	if m.stopping.Load() {
		return ErrManagerStopping
	}
	if m.started.Load() {
		return nil
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.started.Store(true)

	m.wg.Add(1)
	go m.frequentChecks()

	if m.cfg.CleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}

	m.logger.Info("stream manager started",
		"exchange", m.cfg.Exchange,
		"max_subscriptions", m.cfg.MaxSubscriptionsPerStream,
		"category_caps", m.cfg.MaxSubscriptionsPerCategory,
		"signal_buffer", m.cfg.EnableSignalBuffer,
	)
	return nil
}

// Stop stops all streams in parallel, then closes buffers and signal feeds.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.stopping.CompareAndSwap(false, true) {
		return nil
	}

	var g errgroup.Group
	for _, e := range m.streams.list() {
		g.Go(func() error {
			if err := e.worker.Stop(ctx); err != nil {
				return fmt.Errorf("stop stream %s: %w", e.stream.ID, err)
			}
			return nil
		})
	}
	err := g.Wait()

	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	m.stats.Reset()
	m.data.CloseAll()
	if m.signals != nil {
		m.signals.Close()
	}

	m.feedMu.Lock()
	for _, ch := range m.feeds {
		close(ch)
	}
	m.feeds = nil
	m.feedsClosed = true
	m.feedMu.Unlock()

	m.logger.Info("stream manager stopped", "streams", m.streams.len())
	return err
}

// IsStopping reports whether Stop has been called.
func (m *Manager) IsStopping() bool {
	return m.stopping.Load()
}

func (m *Manager) checkRunning() error {
	if m.stopping.Load() {
		return ErrManagerStopping
	}
	if !m.started.Load() {
		return ErrNotStarted
	}
	return nil
}

// CreateStream validates req, splits it into batches of at most the
// per-stream cap and starts one stream per batch. It returns the new ids.
func (m *Manager) CreateStream(ctx context.Context, req StreamRequest) ([]string, error) {
	if err := m.checkRunning(); err != nil {
		return nil, err
	}

	exchange := req.Exchange
	if exchange == "" {
		exchange = m.cfg.Exchange
	}
	ep, err := endpoint.New(exchange, req.Category)
	if err != nil {
		if errors.Is(err, endpoint.ErrUnknownCategory) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, err
	}
	ep.BaseURI = req.BaseURI

	if len(req.Channels) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidRequest)
	}

	output := req.Output
	if output == "" {
		output = m.cfg.DefaultOutput
	}
	if output != stream.OutputRaw && output != stream.OutputDecoded {
		return nil, fmt.Errorf("%w: unknown output %q", ErrInvalidRequest, output)
	}

	if ep.Category.IsPrivate() && (req.APIKey == "" || req.APISecret == "") && m.cfg.ListenKeys == nil {
		return nil, fmt.Errorf("%w: private streams need api key and secret", ErrInvalidRequest)
	}

	workerCfg := m.cfg.Worker
	if req.Proxy != nil {
		workerCfg.Proxy = req.Proxy
	}
	if workerCfg.Proxy != nil {
		if err := workerCfg.Proxy.Validate(); err != nil {
			return nil, err
		}
	}

	subs := splitter.Expand(req.Channels, req.Symbols)
	limit := req.MaxSubscriptions
	if limit <= 0 {
		limit = m.cfg.MaxSubscriptions(ep.Category)
	}
	if len(subs) > limit && m.cfg.DisableSplitting {
		return nil, fmt.Errorf("%w: %d > %d", ErrMaximumSubscriptionsExceeded, len(subs), limit)
	}

	cfg := stream.Config{
		Endpoint:         ep,
		BufferName:       req.BufferName,
		BufferMaxLen:     req.BufferMaxLen,
		Output:           output,
		MaxSubscriptions: limit,
		PingInterval:     durationOr(req.PingInterval, m.cfg.PingInterval),
		PingTimeout:      durationOr(req.PingTimeout, m.cfg.PingTimeout),
		CloseTimeout:     durationOr(req.CloseTimeout, m.cfg.CloseTimeout),
		APIKey:           req.APIKey,
		APISecret:        req.APISecret,
	}
	data := m.data.GetWithMaxLen(req.BufferName, req.BufferMaxLen)

	batches := splitter.Split(subs, limit)
	ids := make([]string, 0, len(batches))
	for _, batch := range batches {
		id := GenerateRequestID()
		s := stream.New(id, req.Label, cfg, batch.Subscriptions)

		w := connection.NewWorker(s, connection.Host{
			Data:       data,
			Results:    m.results,
			Errors:     m.errors,
			Stats:      m.stats,
			Emit:       m.emit,
			ListenKeys: m.cfg.ListenKeys,
		}, workerCfg, m.logger)

		m.streams.add(&entry{stream: s, worker: w})
		w.Start(m.ctx)
		ids = append(ids, id)
	}

	m.logger.Info("streams created",
		"endpoint", ep.String(),
		"subscriptions", len(subs),
		"streams", len(ids),
		"label", req.Label,
	)
	return ids, nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// StopStream stops a stream and waits for its worker to exit. The stream
// stays registered in StateStopped. Stopping a stopped stream is a no-op.
func (m *Manager) StopStream(ctx context.Context, id string) error {
	e, ok := m.streams.get(id)
	if !ok {
		return ErrStreamNotFound
	}
	if e.stream.State().IsTerminal() {
		return nil
	}
	return e.worker.Stop(ctx)
}

// ReplaceStream starts a stream for req writing to the old stream's buffer,
// waits for it to run and then stops and removes the old stream. If the new
// streams do not start within the handover window they are removed and the
// old stream is kept.
func (m *Manager) ReplaceStream(ctx context.Context, id string, req StreamRequest) ([]string, error) {
	old, ok := m.streams.get(id)
	if !ok {
		return nil, ErrStreamNotFound
	}
	if req.BufferName == "" {
		req.BufferName = old.stream.Config.BufferName
	}
	if req.Label == "" {
		req.Label = old.stream.Label()
	}

	ids, err := m.CreateStream(ctx, req)
	if err != nil {
		return nil, err
	}

	for _, nid := range ids {
		if err := m.WaitTillStreamHasStarted(ctx, nid, m.cfg.ReplaceTimeout); err != nil {
			m.logger.Warn("replacement did not start, keeping old stream",
				"stream_id", id,
				"replacement", nid,
				"error", err,
			)
			for _, rid := range ids {
				if serr := m.StopStream(ctx, rid); serr != nil {
					m.logger.Warn("failed to stop replacement", "stream_id", rid, "error", serr)
				}
				m.removeStream(rid)
			}
			return nil, err
		}
	}

	if err := m.StopStream(ctx, id); err != nil {
		return ids, fmt.Errorf("stop replaced stream: %w", err)
	}
	m.removeStream(id)

	m.logger.Info("stream replaced", "stream_id", id, "replacements", ids)
	return ids, nil
}

// SubscribeToStream adds channel x symbol subscriptions to a stream. A
// running stream receives them at once, otherwise on its next connect. The
// set may not grow past the cap the stream was created with.
func (m *Manager) SubscribeToStream(ctx context.Context, id string, channels, symbols []string) error {
	e, ok := m.streams.get(id)
	if !ok {
		return ErrStreamNotFound
	}
	if err := writable(e.stream.State()); err != nil {
		return err
	}

	subs := splitter.Expand(channels, symbols)
	if len(subs) == 0 {
		return fmt.Errorf("%w: no subscriptions", ErrInvalidRequest)
	}

	// Only count subscriptions not already present against the cap
	fresh := 0
	have := make(map[splitter.Subscription]struct{})
	for _, sub := range e.stream.Subscriptions() {
		have[sub] = struct{}{}
	}
	for _, sub := range subs {
		if _, ok := have[sub]; !ok {
			fresh++
		}
	}
	limit := e.stream.Config.MaxSubscriptions
	if limit <= 0 {
		limit = m.cfg.MaxSubscriptions(e.stream.Config.Endpoint.Category)
	}
	if total := e.stream.NumSubscriptions() + fresh; total > limit {
		return fmt.Errorf("%w: %d > %d", ErrMaximumSubscriptionsExceeded, total, limit)
	}

	if added := e.stream.AddSubscriptions(subs); len(added) == 0 {
		return nil
	}
	return e.worker.SyncSubscriptions(ctx)
}

// UnsubscribeFromStream removes channel x symbol subscriptions from a stream.
func (m *Manager) UnsubscribeFromStream(ctx context.Context, id string, channels, symbols []string) error {
	e, ok := m.streams.get(id)
	if !ok {
		return ErrStreamNotFound
	}
	if err := writable(e.stream.State()); err != nil {
		return err
	}

	if removed := e.stream.RemoveSubscriptions(splitter.Expand(channels, symbols)); len(removed) == 0 {
		return nil
	}
	return e.worker.SyncSubscriptions(ctx)
}

// writable allows set changes on streams that will still (re)connect.
func writable(s stream.State) error {
	switch s {
	case stream.StateStopping, stream.StateStopped, stream.StateCrashed:
		return s.Err()
	}
	return nil
}

// WaitTillStreamHasStarted blocks until the stream is running. It fails with
// the stream's lifecycle error if it ends first and ErrTimeout after timeout.
func (m *Manager) WaitTillStreamHasStarted(ctx context.Context, id string, timeout time.Duration) error {
	state, err := m.waitFor(ctx, id, timeout, func(s stream.State) bool {
		return s == stream.StateRunning || s == stream.StateCrashed || s == stream.StateStopping || s == stream.StateStopped
	})
	if err != nil {
		return err
	}
	return state.Err()
}

// WaitTillStreamHasStopped blocks until the stream is stopped.
func (m *Manager) WaitTillStreamHasStopped(ctx context.Context, id string, timeout time.Duration) error {
	_, err := m.waitFor(ctx, id, timeout, func(s stream.State) bool {
		return s == stream.StateStopped
	})
	return err
}

func (m *Manager) waitFor(ctx context.Context, id string, timeout time.Duration, match func(stream.State) bool) (stream.State, error) {
	e, ok := m.streams.get(id)
	if !ok {
		return "", ErrStreamNotFound
	}

	if state := e.stream.State(); match(state) {
		return state, nil
	}
	if timeout <= 0 {
		return e.stream.State(), ErrTimeout
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state, err := e.stream.WaitFor(wctx, match)
	if err != nil {
		if ctx.Err() != nil {
			return state, ctx.Err()
		}
		return state, ErrTimeout
	}
	return state, nil
}

// SendWithStream sends payload over a stream, injecting a generated req_id if
// absent, and returns the request id for GetResultByRequestID.
func (m *Manager) SendWithStream(ctx context.Context, id string, payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidRequest)
	}

	if reqID, _ := payload["req_id"].(string); reqID == "" {
		payload = maps.Clone(payload)
		payload["req_id"] = GenerateRequestID()
	}

	data, err := wire.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return m.SendRawWithStream(ctx, id, data)
}

// SendRawWithStream sends an encoded frame as is. When the frame carries a
// req_id it is recorded as pending and returned.
func (m *Manager) SendRawWithStream(ctx context.Context, id string, data []byte) (string, error) {
	e, ok := m.streams.get(id)
	if !ok {
		return "", ErrStreamNotFound
	}
	if err := e.stream.State().Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidRequest)
	}

	reqID := wire.RequestID(data)
	if reqID != "" {
		m.pending.add(PendingRequest{ID: reqID, StreamID: id, SentAt: time.Now()})
	}
	if err := e.worker.Send(ctx, data); err != nil {
		if reqID != "" {
			m.pending.take(reqID)
		}
		return "", err
	}
	return reqID, nil
}

// GetResultByRequestID polls the result ring every 100ms until the response
// to reqID arrives or timeout elapses. A zero timeout checks once.
func (m *Manager) GetResultByRequestID(ctx context.Context, reqID string, timeout time.Duration) ([]byte, error) {
	if raw, ok := m.lookupResult(reqID); ok {
		return raw, nil
	}
	if timeout <= 0 {
		return nil, ErrTimeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(resultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			if raw, ok := m.lookupResult(reqID); ok {
				return raw, nil
			}
			return nil, ErrTimeout
		case <-ticker.C:
			if raw, ok := m.lookupResult(reqID); ok {
				return raw, nil
			}
		}
	}
}

func (m *Manager) lookupResult(reqID string) ([]byte, bool) {
	raw, ok := m.results.Get(reqID)
	if ok {
		m.pending.take(reqID)
	}
	return raw, ok
}

// GetPendingRequest returns a sent request whose result was not retrieved.
func (m *Manager) GetPendingRequest(reqID string) (PendingRequest, bool) {
	return m.pending.get(reqID)
}

// GetNumberOfPendingRequests returns how many results are awaiting retrieval.
func (m *Manager) GetNumberOfPendingRequests() int {
	return m.pending.len()
}

// RemoveAllDataOfStreamID waits until the stream has stopped and then drops
// it, its statistics and its data buffer unless another stream shares it.
// A crashed stream is stopped first.
func (m *Manager) RemoveAllDataOfStreamID(ctx context.Context, id string, timeout time.Duration) error {
	if e, ok := m.streams.get(id); ok && e.stream.State() == stream.StateCrashed {
		if err := e.worker.Stop(ctx); err != nil {
			return err
		}
	}
	if err := m.WaitTillStreamHasStopped(ctx, id, timeout); err != nil {
		return err
	}
	m.removeStream(id)
	return nil
}

func (m *Manager) removeStream(id string) {
	e, ok := m.streams.remove(id)
	if !ok {
		return
	}
	m.stats.Forget(id)
	m.pending.prune(time.Time{}, id)

	name := e.stream.Config.BufferName
	if !m.streams.bufferInUse(name, id) {
		m.data.Remove(name)
	}
	m.logger.Debug("stream removed", "stream_id", id)
}
