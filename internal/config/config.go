package config

import (
	"time"

	"github.com/rickgao/bybit-streams/internal/endpoint"
)

// Config is the root configuration for a streamd instance.
type Config struct {
	Exchange       string               `yaml:"exchange"`
	Manager        ManagerConfig        `yaml:"manager"`
	StreamDefaults StreamDefaultsConfig `yaml:"stream_defaults"`
	Reconnect      ReconnectConfig      `yaml:"reconnect"`
	Proxy          ProxyConfig          `yaml:"proxy"`
	API            APIConfig            `yaml:"api"`
	Streams        []StreamConfig       `yaml:"streams"`
	Poller         PollerConfig         `yaml:"poller"`
	Journal        JournalConfig        `yaml:"journal"`
	Logging        LoggingConfig        `yaml:"logging"`
	Health         HealthConfig         `yaml:"health"`
}

// ManagerConfig holds stream manager settings.
type ManagerConfig struct {
	MaxSubscriptionsPerStream int           `yaml:"max_subscriptions_per_stream"`
	MaxSubscriptionsSpot      int           `yaml:"max_subscriptions_per_stream_spot"` // 0 = max_subscriptions_per_stream
	MaxSubscriptionsLinear    int           `yaml:"max_subscriptions_per_stream_linear"`
	MaxSubscriptionsInverse   int           `yaml:"max_subscriptions_per_stream_inverse"`
	MaxSubscriptionsOption    int           `yaml:"max_subscriptions_per_stream_option"`
	MaxSubscriptionsPrivate   int           `yaml:"max_subscriptions_per_stream_private"`
	DisableSplitting          bool          `yaml:"disable_splitting"`
	BufferPolicy              string        `yaml:"buffer_policy"` // fifo or lifo
	BufferMaxLen              int           `yaml:"buffer_maxlen"`
	EnableSignalBuffer        bool          `yaml:"enable_signal_buffer"`
	SignalBufferMaxLen        int           `yaml:"signal_buffer_maxlen"`
	RingBufferErrorMaxSize    int           `yaml:"ring_buffer_error_max_size"`
	RingBufferResultMaxSize   int           `yaml:"ring_buffer_result_max_size"`
	DefaultOutput             string        `yaml:"default_output"` // raw_data or decoded
	SendRate                  float64       `yaml:"send_rate"`      // outbound frames per second per stream
	SendBurst                 int           `yaml:"send_burst"`
	CleanupInterval           time.Duration `yaml:"cleanup_interval"`
	CleanupAge                time.Duration `yaml:"cleanup_age"`
	StatsKeepSeconds          int           `yaml:"stats_keep_seconds"`
}

// CategoryCap returns the configured cap for cat, 0 when unset.
func (m ManagerConfig) CategoryCap(cat endpoint.Category) int {
	switch cat {
	case endpoint.Spot:
		return m.MaxSubscriptionsSpot
	case endpoint.Linear:
		return m.MaxSubscriptionsLinear
	case endpoint.Inverse:
		return m.MaxSubscriptionsInverse
	case endpoint.Option:
		return m.MaxSubscriptionsOption
	case endpoint.Private:
		return m.MaxSubscriptionsPrivate
	}
	return 0
}

// CategoryCaps returns the configured per-category caps. Unset categories
// are omitted.
func (m ManagerConfig) CategoryCaps() map[endpoint.Category]int {
	caps := make(map[endpoint.Category]int)
	for _, cat := range endpoint.Categories {
		if n := m.CategoryCap(cat); n > 0 {
			caps[cat] = n
		}
	}
	return caps
}

// StreamDefaultsConfig holds per-stream defaults.
type StreamDefaultsConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	CloseTimeout time.Duration `yaml:"close_timeout"`
	BaseURI      string        `yaml:"websocket_base_uri"`
}

// ReconnectConfig holds reconnect backoff settings.
type ReconnectConfig struct {
	InitialInterval     time.Duration `yaml:"initial_interval"`
	MaxInterval         time.Duration `yaml:"max_interval"`
	Multiplier          float64       `yaml:"multiplier"`
	RandomizationFactor float64       `yaml:"randomization_factor"`
	MaxAttempts         int           `yaml:"max_attempts"` // 0 = unlimited
}

// ProxyConfig holds the optional SOCKS5 proxy.
type ProxyConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Enabled reports whether a proxy is configured.
func (p ProxyConfig) Enabled() bool {
	return p.Host != ""
}

// APIConfig holds Bybit REST settings and private stream credentials.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	APIKey     string        `yaml:"api_key"`
	APISecret  string        `yaml:"api_secret"`
	SecretFile string        `yaml:"secret_file"` // read when api_secret is empty
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig describes one stream request started by streamd.
type StreamConfig struct {
	Label      string   `yaml:"label"`
	Category   string   `yaml:"category"`
	Channels   []string `yaml:"channels"`
	Symbols    []string `yaml:"symbols"`
	AllSymbols bool     `yaml:"all_symbols"` // discover trading symbols through the REST api
	BufferName string   `yaml:"buffer_name"`
	Output     string   `yaml:"output"`
}

// PollerConfig holds instrument discovery settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// JournalConfig holds the signal journal settings.
type JournalConfig struct {
	Driver        string        `yaml:"driver"` // none, sqlite or postgres
	SQLitePath    string        `yaml:"sqlite_path"`
	Postgres      DBConfig      `yaml:"postgres"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // rotated log file, empty = stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// HealthConfig holds the health and debug HTTP server settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
