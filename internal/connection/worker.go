package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rickgao/bybit-streams/internal/auth"
	"github.com/rickgao/bybit-streams/internal/buffer"
	"github.com/rickgao/bybit-streams/internal/splitter"
	"github.com/rickgao/bybit-streams/internal/stats"
	"github.com/rickgao/bybit-streams/internal/stream"
	"github.com/rickgao/bybit-streams/internal/version"
	"github.com/rickgao/bybit-streams/internal/wire"
)

// DefaultRingSize is the capacity of result and error rings created for a
// worker without a host-provided ring.
const DefaultRingSize = 500

// Host is what a worker shares with its manager. Buffers, rings and the
// tracker are safe for concurrent use.
type Host struct {
	Data       *buffer.StreamBuffer[stream.Record]
	Results    *buffer.RingBuffer[[]byte]
	Errors     *buffer.RingBuffer[EndpointError]
	Stats      *stats.Tracker
	Emit       func(stream.Signal)
	ListenKeys ListenKeyClient // nil = no listen keys
}

func (h *Host) applyDefaults() {
	if h.Data == nil {
		h.Data = buffer.NewStreamBuffer(buffer.Options[stream.Record]{SizeOf: stream.Record.Size})
	}
	if h.Results == nil {
		h.Results = buffer.NewRingBuffer[[]byte](DefaultRingSize)
	}
	if h.Errors == nil {
		h.Errors = buffer.NewRingBuffer[EndpointError](DefaultRingSize)
	}
	if h.Stats == nil {
		h.Stats = stats.NewTracker(stats.DefaultKeepSeconds)
	}
}

// Worker owns the socket of one stream: it dials, subscribes, routes inbound
// frames and reconnects until stopped or unrepairable.
type Worker struct {
	stream  *stream.Stream
	host    Host
	cfg     WorkerConfig
	logger  *slog.Logger
	limiter *rate.Limiter
	creds   *auth.Credentials

	mu                 sync.Mutex
	client             Client
	cancel             context.CancelFunc
	listenKeyRefreshed time.Time

	// subscriptions sent on the current socket
	syncMu sync.Mutex
	sent   map[splitter.Subscription]struct{}

	startOnce sync.Once
	done      chan struct{}

	// owned by the run goroutine
	sessionRunning bool
	lastRaw        []byte
}

// NewWorker creates a worker for s. Start must be called to connect.
func NewWorker(s *stream.Stream, host Host, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	host.applyDefaults()

	w := &Worker{
		stream:  s,
		host:    host,
		cfg:     cfg,
		logger:  logger.With("stream_id", s.ID, "endpoint", s.Config.Endpoint.String()),
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		sent:    make(map[splitter.Subscription]struct{}),
		done:    make(chan struct{}),
	}

	if s.Config.Endpoint.Category.IsPrivate() && s.Config.APIKey != "" {
		w.creds = &auth.Credentials{APIKey: s.Config.APIKey, APISecret: s.Config.APISecret}
	}

	return w
}

// Stream returns the stream served by this worker.
func (w *Worker) Stream() *stream.Stream {
	return w.stream
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Start launches the worker goroutine. Later calls are no-ops.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		w.mu.Lock()
		w.cancel = cancel
		w.mu.Unlock()
		go w.run(ctx)
	})
}

// Stop cancels the worker and waits for it to exit, force-closing the socket
// after the stream's close timeout. Safe to call more than once.
func (w *Worker) Stop(ctx context.Context) error {
	// Never started: stop in place
	w.startOnce.Do(func() {
		w.shutdown()
		close(w.done)
	})

	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	grace := w.stream.Config.CloseTimeout
	if grace <= 0 {
		grace = DefaultClientConfig().CloseTimeout
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-w.done:
	case <-timer.C:
		w.logger.Warn("worker did not exit in time, forcing close", "grace", grace)
		w.closeClient()
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		w.closeClient()
		return ctx.Err()
	}

	// A crashed worker exits without passing through stopping
	if w.stream.State() == stream.StateCrashed {
		w.deleteListenKey()
		if err := w.stream.Transition(stream.StateStopping); err != nil {
			return err
		}
		return w.stream.Transition(stream.StateStopped)
	}
	return nil
}

// Send writes an arbitrary frame. It fails with the stream's lifecycle error
// unless the stream is running.
func (w *Worker) Send(ctx context.Context, payload []byte) error {
	if err := w.stream.State().Err(); err != nil {
		return err
	}
	return w.sendFrame(ctx, payload)
}

// SyncSubscriptions sends subscribe and unsubscribe frames so the socket
// matches the stream's authoritative set. Changes made while the stream is
// not running are applied when it next becomes running.
func (w *Worker) SyncSubscriptions(ctx context.Context) error {
	if w.stream.State() != stream.StateRunning {
		return nil
	}
	return w.syncSubscriptions(ctx)
}

// RefreshListenKey keeps the listen key alive once the refresh interval has
// elapsed since the last refresh.
func (w *Worker) RefreshListenKey(ctx context.Context, now time.Time) error {
	key := w.stream.ListenKey()
	if key == "" || w.host.ListenKeys == nil {
		return nil
	}

	w.mu.Lock()
	due := now.Sub(w.listenKeyRefreshed) >= w.cfg.ListenKeyRefreshInterval
	if due {
		w.listenKeyRefreshed = now
	}
	w.mu.Unlock()

	if !due {
		return nil
	}
	if err := w.host.ListenKeys.KeepAliveListenKey(ctx, key); err != nil {
		return fmt.Errorf("keep alive listen key: %w", err)
	}
	w.logger.Debug("listen key refreshed")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	if err := w.stream.Transition(stream.StateConnecting); err != nil {
		w.logger.Error("cannot start stream", "error", err)
		return
	}

	bo := w.newBackOff()
	failures := 0

	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			w.shutdown()
			return
		}

		if w.sessionRunning {
			failures = 0
			bo.Reset()
		}
		failures++
		w.stream.SetError(err)

		if errors.Is(err, ErrHandshakeRateLimited) {
			w.crash(err)
			return
		}
		if w.cfg.MaxReconnectAttempts > 0 && failures > w.cfg.MaxReconnectAttempts {
			w.crash(fmt.Errorf("giving up after %d reconnect attempts: %w", w.cfg.MaxReconnectAttempts, err))
			return
		}

		if w.stream.State() != stream.StateReconnecting {
			if terr := w.stream.Transition(stream.StateReconnecting); terr != nil {
				w.logger.Error("cannot reconnect", "error", terr)
				return
			}
			w.emit(stream.SignalDisconnect, w.lastRaw, err)
		}

		attempt := w.stream.RecordReconnect(err)
		w.host.Stats.RecordReconnect(w.stream.ID)

		wait := bo.NextBackOff()
		w.logger.Warn("stream disconnected, reconnecting",
			"error", err,
			"attempt", attempt,
			"wait", wait,
		)

		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case <-time.After(wait):
		}
	}
}

func (w *Worker) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.cfg.Backoff.InitialInterval
	bo.MaxInterval = w.cfg.Backoff.MaxInterval
	bo.Multiplier = w.cfg.Backoff.Multiplier
	bo.RandomizationFactor = w.cfg.Backoff.RandomizationFactor
	bo.Reset()
	return bo
}

// session runs one socket from dial to failure.
func (w *Worker) session(ctx context.Context) error {
	w.sessionRunning = false

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	key, err := w.ensureListenKey(ctx)
	if err != nil {
		return err
	}
	if key != "" {
		header.Set(ListenKeyHeader, key)
	}

	cfg := w.stream.Config
	client := NewClient(ClientConfig{
		URL:              cfg.Endpoint.URI(),
		Header:           header,
		Proxy:            w.cfg.Proxy,
		PingInterval:     cfg.PingInterval,
		PingTimeout:      cfg.PingTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		WriteTimeout:     w.cfg.WriteTimeout,
		HandshakeTimeout: w.cfg.HandshakeTimeout,
		BufferSize:       w.cfg.MessageBufferSize,
	}, w.logger)

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Endpoint.URI(), err)
	}
	w.setClient(client)
	defer w.closeClient()

	w.logger.Info("stream connected", "uri", cfg.Endpoint.URI())
	w.emit(stream.SignalConnect, nil, nil)

	w.syncMu.Lock()
	w.sent = make(map[splitter.Subscription]struct{})
	w.syncMu.Unlock()

	pending := false
	if w.creds.Valid() {
		if err := w.authenticate(ctx); err != nil {
			return err
		}
		pending = true
	}
	n, err := w.subscribeAll(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		pending = true
	}
	if !pending {
		w.markRunning(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-client.Errors():
			// Frames read before the failure are still delivered
			for {
				select {
				case msg := <-client.Messages():
					w.handle(ctx, msg)
					continue
				default:
				}
				return err
			}
		case msg := <-client.Messages():
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) subscribeAll(ctx context.Context) (int, error) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	subs := w.stream.Subscriptions()
	sent, err := w.sendChunks(ctx, wire.OpSubscribe, subs)
	for _, sub := range subs[:sent] {
		w.sent[sub] = struct{}{}
	}
	return sent, err
}

func (w *Worker) syncSubscriptions(ctx context.Context) error {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	want := w.stream.Subscriptions()
	wanted := make(map[splitter.Subscription]struct{}, len(want))
	var add []splitter.Subscription
	for _, sub := range want {
		wanted[sub] = struct{}{}
		if _, ok := w.sent[sub]; !ok {
			add = append(add, sub)
		}
	}

	var del []splitter.Subscription
	for sub := range w.sent {
		if _, ok := wanted[sub]; !ok {
			del = append(del, sub)
		}
	}
	sort.Slice(del, func(i, j int) bool { return del[i].Topic() < del[j].Topic() })

	n, err := w.sendChunks(ctx, wire.OpUnsubscribe, del)
	for _, sub := range del[:n] {
		delete(w.sent, sub)
	}
	if err != nil {
		return err
	}

	n, err = w.sendChunks(ctx, wire.OpSubscribe, add)
	for _, sub := range add[:n] {
		w.sent[sub] = struct{}{}
	}
	return err
}

// sendChunks sends op frames for subs, respecting the per-request arg limit.
// It returns how many subscriptions were sent.
func (w *Worker) sendChunks(ctx context.Context, op string, subs []splitter.Subscription) (int, error) {
	limit := w.stream.Config.Endpoint.Category.MaxArgsPerRequest()
	sent := 0
	for _, chunk := range splitter.ChunkArgs(splitter.Topics(subs), limit) {
		var (
			frame []byte
			err   error
		)
		if op == wire.OpUnsubscribe {
			frame, err = wire.UnsubscribeFrame(uuid.NewString(), chunk)
		} else {
			frame, err = wire.SubscribeFrame(uuid.NewString(), chunk)
		}
		if err != nil {
			return sent, err
		}
		if err := w.sendFrame(ctx, frame); err != nil {
			return sent, fmt.Errorf("%s: %w", op, err)
		}
		sent += len(chunk)
	}
	if sent > 0 {
		w.logger.Debug("subscriptions sent", "op", op, "count", sent)
	}
	return sent, nil
}

func (w *Worker) authenticate(ctx context.Context) error {
	frame, err := wire.AuthFrame(uuid.NewString(), w.creds.AuthArgs(time.Now()))
	if err != nil {
		return err
	}
	if err := w.sendFrame(ctx, frame); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (w *Worker) sendFrame(ctx context.Context, payload []byte) error {
	client := w.currentClient()
	if client == nil {
		return stream.ErrStreamRestarting
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := client.Send(payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	w.host.Stats.RecordTransmit(w.stream.ID)
	return nil
}

// handle routes one inbound frame.
func (w *Worker) handle(ctx context.Context, msg TimestampedMessage) {
	w.host.Stats.RecordReceive(w.stream.ID, len(msg.Data))
	w.stream.SetHeartbeat(msg.ReceivedAt)
	w.lastRaw = msg.Data

	decoded, err := wire.Decode(msg.Data)
	if err != nil {
		w.recordError(msg, err.Error())
		return
	}

	switch decoded.Kind {
	case wire.KindData:
		rec := stream.Record{
			StreamID:   w.stream.ID,
			ReceivedAt: msg.ReceivedAt,
			Raw:        msg.Data,
		}
		if w.stream.Config.Output == stream.OutputDecoded {
			frame := decoded.Frame
			rec.Frame = &frame
		}
		w.host.Data.Push(rec)

		if w.stream.MarkFirstData() {
			w.emit(stream.SignalFirstReceivedData, msg.Data, nil)
		}
		w.markRunning(ctx)

	case wire.KindResponse:
		w.storeResult(decoded.Response.ReqID, msg.Data)
		switch decoded.Response.Op {
		case wire.OpSubscribe, wire.OpAuth:
			w.markRunning(ctx)
		}

	case wire.KindError:
		w.storeResult(decoded.Response.ReqID, msg.Data)
		w.recordError(msg, fmt.Sprintf("%s failed: %s", decoded.Response.Op, decoded.Response.RetMsg))
	}
}

func (w *Worker) markRunning(ctx context.Context) {
	if w.sessionRunning {
		return
	}
	w.sessionRunning = true

	if err := w.stream.Transition(stream.StateRunning); err != nil {
		w.logger.Warn("cannot mark stream running", "error", err)
		return
	}
	w.logger.Info("stream running", "subscriptions", w.stream.NumSubscriptions())

	// Pick up set changes made while connecting
	if err := w.syncSubscriptions(ctx); err != nil {
		w.logger.Warn("subscription resync failed", "error", err)
	}
}

func (w *Worker) storeResult(reqID string, raw []byte) {
	if reqID == "" {
		w.host.Results.Add(raw)
		return
	}
	w.host.Results.Put(reqID, raw)
}

func (w *Worker) recordError(msg TimestampedMessage, text string) {
	w.host.Stats.RecordError(w.stream.ID)
	w.host.Errors.Add(EndpointError{
		StreamID: w.stream.ID,
		Time:     msg.ReceivedAt,
		Message:  text,
		Raw:      msg.Data,
	})
	w.logger.Debug("error frame", "message", text)
}

func (w *Worker) crash(err error) {
	if terr := w.stream.Transition(stream.StateCrashed); terr != nil {
		w.logger.Error("cannot mark stream crashed", "error", terr)
	}
	w.logger.Error("stream unrepairable", "error", err)
	w.emit(stream.SignalStreamUnrepairable, w.lastRaw, err)
}

func (w *Worker) shutdown() {
	if err := w.stream.Transition(stream.StateStopping); err != nil {
		w.logger.Warn("stop transition", "error", err)
	}
	w.closeClient()
	w.deleteListenKey()
	if err := w.stream.Transition(stream.StateStopped); err != nil {
		w.logger.Warn("stop transition", "error", err)
	}
	w.logger.Info("stream stopped")
	w.emit(stream.SignalStop, nil, nil)
}

func (w *Worker) ensureListenKey(ctx context.Context) (string, error) {
	if w.host.ListenKeys == nil || !w.stream.Config.Endpoint.Category.IsPrivate() {
		return "", nil
	}
	if key := w.stream.ListenKey(); key != "" {
		return key, nil
	}

	key, err := w.host.ListenKeys.GetListenKey(ctx)
	if err != nil {
		return "", fmt.Errorf("get listen key: %w", err)
	}
	w.stream.SetListenKey(key)

	w.mu.Lock()
	w.listenKeyRefreshed = time.Now()
	w.mu.Unlock()

	return key, nil
}

func (w *Worker) deleteListenKey() {
	key := w.stream.ListenKey()
	if key == "" || w.host.ListenKeys == nil || !w.cfg.DeleteListenKey {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
	defer cancel()

	if err := w.host.ListenKeys.DeleteListenKey(ctx, key); err != nil {
		w.logger.Warn("failed to delete listen key", "error", err)
		return
	}
	w.stream.SetListenKey("")
}

func (w *Worker) emit(t stream.SignalType, record []byte, err error) {
	if w.host.Emit == nil {
		return
	}
	sig := stream.Signal{
		Type:       t,
		StreamID:   w.stream.ID,
		Timestamp:  time.Now(),
		DataRecord: record,
	}
	if err != nil {
		sig.Error = err.Error()
	}
	w.host.Emit(sig)
}

func (w *Worker) currentClient() Client {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.client
}

func (w *Worker) setClient(c Client) {
	w.mu.Lock()
	w.client = c
	w.mu.Unlock()
}

func (w *Worker) closeClient() {
	w.mu.Lock()
	c := w.client
	w.client = nil
	w.mu.Unlock()

	if c != nil {
		c.Close()
	}
}
