package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultExchange                  = "bybit.com"
	DefaultMaxSubscriptionsPerStream = 200
	DefaultBufferPolicy              = "fifo"
	DefaultSignalBufferMaxLen        = 10000
	DefaultRingBufferSize            = 500
	DefaultOutput                    = "raw_data"
	DefaultSendRate                  = 5
	DefaultSendBurst                 = 5
	DefaultCleanupInterval           = 60 * time.Second
	DefaultCleanupAge                = 900 * time.Second
	DefaultStatsKeepSeconds          = 5
	DefaultPingInterval              = 5 * time.Second
	DefaultPingTimeout               = 10 * time.Second
	DefaultCloseTimeout              = 1 * time.Second
	DefaultReconnectInitial          = 500 * time.Millisecond
	DefaultReconnectMax              = 30 * time.Second
	DefaultReconnectMultiplier       = 2.0
	DefaultReconnectRandomization    = 0.2
	DefaultAPITimeout                = 10 * time.Second
	DefaultMaxRetries                = 3
	DefaultPollInterval              = 15 * time.Minute
	DefaultJournalDriver             = "none"
	DefaultSQLitePath                = "signals.db"
	DefaultDBPort                    = 5432
	DefaultDBSSLMode                 = "prefer"
	DefaultMaxConns                  = 10
	DefaultMinConns                  = 2
	DefaultBatchSize                 = 100
	DefaultFlushInterval             = 1 * time.Second
	DefaultLogLevel                  = "info"
	DefaultLogFormat                 = "text"
	DefaultLogMaxSizeMB              = 100
	DefaultLogMaxBackups             = 5
	DefaultLogMaxAgeDays             = 30
	DefaultHealthPort                = 8080
)

func (c *Config) applyDefaults() {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}

	// Manager defaults
	m := &c.Manager
	if m.MaxSubscriptionsPerStream == 0 {
		m.MaxSubscriptionsPerStream = DefaultMaxSubscriptionsPerStream
	}
	if m.BufferPolicy == "" {
		m.BufferPolicy = DefaultBufferPolicy
	}
	if m.SignalBufferMaxLen == 0 {
		m.SignalBufferMaxLen = DefaultSignalBufferMaxLen
	}
	if m.RingBufferErrorMaxSize == 0 {
		m.RingBufferErrorMaxSize = DefaultRingBufferSize
	}
	if m.RingBufferResultMaxSize == 0 {
		m.RingBufferResultMaxSize = DefaultRingBufferSize
	}
	if m.DefaultOutput == "" {
		m.DefaultOutput = DefaultOutput
	}
	if m.SendRate == 0 {
		m.SendRate = DefaultSendRate
	}
	if m.SendBurst == 0 {
		m.SendBurst = DefaultSendBurst
	}
	if m.CleanupInterval == 0 {
		m.CleanupInterval = DefaultCleanupInterval
	}
	if m.CleanupAge == 0 {
		m.CleanupAge = DefaultCleanupAge
	}
	if m.StatsKeepSeconds == 0 {
		m.StatsKeepSeconds = DefaultStatsKeepSeconds
	}

	// Stream defaults
	if c.StreamDefaults.PingInterval == 0 {
		c.StreamDefaults.PingInterval = DefaultPingInterval
	}
	if c.StreamDefaults.PingTimeout == 0 {
		c.StreamDefaults.PingTimeout = DefaultPingTimeout
	}
	if c.StreamDefaults.CloseTimeout == 0 {
		c.StreamDefaults.CloseTimeout = DefaultCloseTimeout
	}

	// Reconnect defaults
	if c.Reconnect.InitialInterval == 0 {
		c.Reconnect.InitialInterval = DefaultReconnectInitial
	}
	if c.Reconnect.MaxInterval == 0 {
		c.Reconnect.MaxInterval = DefaultReconnectMax
	}
	if c.Reconnect.Multiplier == 0 {
		c.Reconnect.Multiplier = DefaultReconnectMultiplier
	}
	if c.Reconnect.RandomizationFactor == 0 {
		c.Reconnect.RandomizationFactor = DefaultReconnectRandomization
	}

	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	// Journal defaults
	if c.Journal.Driver == "" {
		c.Journal.Driver = DefaultJournalDriver
	}
	if c.Journal.SQLitePath == "" {
		c.Journal.SQLitePath = DefaultSQLitePath
	}
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	applyDBDefaults(&c.Journal.Postgres)

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
