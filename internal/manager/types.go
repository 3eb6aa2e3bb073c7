package manager

import (
	"errors"
	"time"

	"github.com/rickgao/bybit-streams/internal/buffer"
	"github.com/rickgao/bybit-streams/internal/connection"
	"github.com/rickgao/bybit-streams/internal/endpoint"
	"github.com/rickgao/bybit-streams/internal/stream"
)

// Errors
var (
	ErrStreamNotFound               = errors.New("stream not found")
	ErrMaximumSubscriptionsExceeded = errors.New("maximum subscriptions per stream exceeded")
	ErrInvalidRequest               = errors.New("invalid stream request")
	ErrTimeout                      = errors.New("operation timeout")
	ErrNotStarted                   = errors.New("manager not started")
	ErrManagerStopping              = errors.New("manager is stopping")
	ErrSignalBufferDisabled         = errors.New("signal buffer disabled")
)

// StreamRequest describes the streams to create. Zero fields fall back to the
// manager defaults.
type StreamRequest struct {
	Exchange string // e.g. "bybit.com", defaults to Config.Exchange
	Category string // spot, linear, inverse, option or private
	Channels []string
	Symbols  []string // empty for channel-only topics

	Label        string
	BufferName   string // data buffer, "" = shared default
	BufferMaxLen int
	Output       stream.Output

	PingInterval time.Duration
	PingTimeout  time.Duration
	CloseTimeout time.Duration

	APIKey    string
	APISecret string

	BaseURI string                  // websocket base override
	Proxy   *connection.ProxyConfig // overrides Config.Worker.Proxy

	MaxSubscriptions int // per-stream cap, 0 = the category cap
}

// Config configures the Manager.
type Config struct {
	Exchange                    string
	MaxSubscriptionsPerStream   int                       // fallback cap
	MaxSubscriptionsPerCategory map[endpoint.Category]int // overrides by category
	DisableSplitting            bool                      // reject oversized requests instead of splitting

	BufferPolicy   buffer.Policy
	BufferMaxLen   int
	BufferEvictEnd buffer.End
	BufferPopEnd   buffer.End

	EnableSignalBuffer bool
	SignalBufferMaxLen int
	SignalFeedSize     int

	RingBufferErrorMaxSize  int
	RingBufferResultMaxSize int

	DefaultOutput stream.Output
	PingInterval  time.Duration
	PingTimeout   time.Duration
	CloseTimeout  time.Duration

	Worker     connection.WorkerConfig
	ListenKeys connection.ListenKeyClient

	CleanupInterval       time.Duration // 0 disables cleanup of stopped streams
	CleanupAge            time.Duration
	FrequentCheckInterval time.Duration
	ReplaceTimeout        time.Duration // handover window of ReplaceStream
	StatsKeepSeconds      int
}

// Defaults
const (
	DefaultMaxSubscriptionsPerStream = 200
	DefaultRingBufferSize            = 500
	DefaultSignalFeedSize            = 1000
	DefaultCleanupInterval           = 60 * time.Second
	DefaultCleanupAge                = 900 * time.Second
	DefaultFrequentCheckInterval     = time.Second
	DefaultReplaceTimeout            = 10 * time.Second
	resultPollInterval               = 100 * time.Millisecond
)

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	client := connection.DefaultClientConfig()
	return Config{
		Exchange:                  string(endpoint.Bybit),
		MaxSubscriptionsPerStream: DefaultMaxSubscriptionsPerStream,
		BufferPolicy:              buffer.FIFO,
		SignalFeedSize:            DefaultSignalFeedSize,
		RingBufferErrorMaxSize:    DefaultRingBufferSize,
		RingBufferResultMaxSize:   DefaultRingBufferSize,
		DefaultOutput:             stream.OutputRaw,
		PingInterval:              client.PingInterval,
		PingTimeout:               client.PingTimeout,
		CloseTimeout:              client.CloseTimeout,
		Worker:                    connection.DefaultWorkerConfig(),
		CleanupInterval:           DefaultCleanupInterval,
		CleanupAge:                DefaultCleanupAge,
		FrequentCheckInterval:     DefaultFrequentCheckInterval,
		ReplaceTimeout:            DefaultReplaceTimeout,
		StatsKeepSeconds:          5,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Exchange == "" {
		c.Exchange = def.Exchange
	}
	if c.MaxSubscriptionsPerStream <= 0 {
		c.MaxSubscriptionsPerStream = def.MaxSubscriptionsPerStream
	}
	if c.SignalFeedSize <= 0 {
		c.SignalFeedSize = def.SignalFeedSize
	}
	if c.RingBufferErrorMaxSize <= 0 {
		c.RingBufferErrorMaxSize = def.RingBufferErrorMaxSize
	}
	if c.RingBufferResultMaxSize <= 0 {
		c.RingBufferResultMaxSize = def.RingBufferResultMaxSize
	}
	if c.DefaultOutput == "" {
		c.DefaultOutput = def.DefaultOutput
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = def.PingTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = def.CloseTimeout
	}
	if c.CleanupAge <= 0 {
		c.CleanupAge = def.CleanupAge
	}
	if c.FrequentCheckInterval <= 0 {
		c.FrequentCheckInterval = def.FrequentCheckInterval
	}
	if c.ReplaceTimeout <= 0 {
		c.ReplaceTimeout = def.ReplaceTimeout
	}
	if c.StatsKeepSeconds <= 0 {
		c.StatsKeepSeconds = def.StatsKeepSeconds
	}
}

// MaxSubscriptions returns the per-stream cap for cat.
func (c *Config) MaxSubscriptions(cat endpoint.Category) int {
	if n := c.MaxSubscriptionsPerCategory[cat]; n > 0 {
		return n
	}
	return c.MaxSubscriptionsPerStream
}

// PendingRequest is a request sent through SendWithStream whose result has
// not been retrieved yet.
type PendingRequest struct {
	ID       string
	StreamID string
	SentAt   time.Time
}
