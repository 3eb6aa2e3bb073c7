package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Errors
var (
	ErrNotConnected         = errors.New("not connected")
	ErrStaleConnection      = errors.New("connection stale (no pong)")
	ErrTimeout              = errors.New("operation timeout")
	ErrAlreadyClosed        = errors.New("already closed")
	ErrSocks5Proxy          = errors.New("socks5 proxy connection error")
	ErrInvalidProxy         = errors.New("invalid proxy configuration")
	ErrHandshakeRateLimited = errors.New("handshake rejected with http 429")
	ErrServerClosed         = errors.New("server closed connection")
)

// ProxyError is a dial failure at the SOCKS5 proxy.
type ProxyError struct {
	Proxy string
	Err   error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("socks5 proxy %s: %v", e.Proxy, e.Err)
}

func (e *ProxyError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSocks5Proxy) match any ProxyError.
func (e *ProxyError) Is(target error) bool {
	return target == ErrSocks5Proxy
}

// ProxyConfig configures a SOCKS5 proxy for the websocket dial.
type ProxyConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	InsecureSkipVerify bool // skip TLS verification of the exchange behind the proxy
}

// Addr returns host:port.
func (p ProxyConfig) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Validate checks host and port.
func (p ProxyConfig) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidProxy)
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidProxy, p.Port)
	}
	if p.Password != "" && p.User == "" {
		return fmt.Errorf("%w: password without user", ErrInvalidProxy)
	}
	return nil
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// EndpointError is an error frame or local failure kept in the error ring.
type EndpointError struct {
	StreamID string
	Time     time.Time
	Message  string
	Raw      []byte
}

// ListenKeyClient manages listen keys for private streams.
type ListenKeyClient interface {
	GetListenKey(ctx context.Context) (string, error)
	KeepAliveListenKey(ctx context.Context, key string) error
	DeleteListenKey(ctx context.Context, key string) error
}

// ListenKeyHeader carries the listen key on the websocket handshake.
const ListenKeyHeader = "X-Listen-Key"

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // e.g. wss://stream.bybit.com/v5/public/linear
	Header           http.Header   // extra handshake headers
	Proxy            *ProxyConfig  // nil = direct
	PingInterval     time.Duration // how often to send a protocol ping
	PingTimeout      time.Duration // max time without pong before the connection is stale
	CloseTimeout     time.Duration // deadline for the close frame
	WriteTimeout     time.Duration // write deadline for sends
	HandshakeTimeout time.Duration
	BufferSize       int // message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     5 * time.Second,
		PingTimeout:      10 * time.Second,
		CloseTimeout:     1 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       10000,
	}
}

func (c *ClientConfig) applyDefaults() {
	def := DefaultClientConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = def.PingTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = def.CloseTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
}

// BackoffConfig configures the reconnect backoff.
type BackoffConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// WorkerConfig configures a connection worker.
type WorkerConfig struct {
	Proxy                    *ProxyConfig
	SendRate                 float64 // outbound frames per second
	SendBurst                int
	MaxReconnectAttempts     int // consecutive failures before crashing, 0 = unlimited
	Backoff                  BackoffConfig
	WriteTimeout             time.Duration
	HandshakeTimeout         time.Duration
	MessageBufferSize        int
	ListenKeyRefreshInterval time.Duration
	DeleteListenKey          bool // delete the listen key on stop
}

// DefaultWorkerConfig returns sensible defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		SendRate:             5,
		SendBurst:            5,
		MaxReconnectAttempts: 0,
		Backoff: BackoffConfig{
			InitialInterval:     500 * time.Millisecond,
			MaxInterval:         30 * time.Second,
			Multiplier:          2,
			RandomizationFactor: 0.2,
		},
		WriteTimeout:             5 * time.Second,
		HandshakeTimeout:         10 * time.Second,
		MessageBufferSize:        10000,
		ListenKeyRefreshInterval: 15 * time.Minute,
		DeleteListenKey:          true,
	}
}

func (c *WorkerConfig) applyDefaults() {
	def := DefaultWorkerConfig()
	if c.SendRate <= 0 {
		c.SendRate = def.SendRate
	}
	if c.SendBurst <= 0 {
		c.SendBurst = def.SendBurst
	}
	if c.Backoff.InitialInterval <= 0 {
		c.Backoff.InitialInterval = def.Backoff.InitialInterval
	}
	if c.Backoff.MaxInterval <= 0 {
		c.Backoff.MaxInterval = def.Backoff.MaxInterval
	}
	if c.Backoff.Multiplier < 1 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if c.Backoff.RandomizationFactor < 0 {
		c.Backoff.RandomizationFactor = 0
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.MessageBufferSize <= 0 {
		c.MessageBufferSize = def.MessageBufferSize
	}
	if c.ListenKeyRefreshInterval <= 0 {
		c.ListenKeyRefreshInterval = def.ListenKeyRefreshInterval
	}
}
