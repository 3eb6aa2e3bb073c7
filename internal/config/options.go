package config

import (
	"github.com/rickgao/bybit-streams/internal/buffer"
	"github.com/rickgao/bybit-streams/internal/connection"
	"github.com/rickgao/bybit-streams/internal/manager"
	"github.com/rickgao/bybit-streams/internal/stream"
)

// ManagerOptions converts the file configuration into manager options.
// Call it on a validated config.
func (c *Config) ManagerOptions() manager.Config {
	opts := manager.DefaultConfig()

	opts.Exchange = c.Exchange
	opts.MaxSubscriptionsPerStream = c.Manager.MaxSubscriptionsPerStream
	opts.MaxSubscriptionsPerCategory = c.Manager.CategoryCaps()
	opts.DisableSplitting = c.Manager.DisableSplitting
	opts.BufferPolicy, _ = buffer.ParsePolicy(c.Manager.BufferPolicy)
	opts.BufferMaxLen = c.Manager.BufferMaxLen
	opts.EnableSignalBuffer = c.Manager.EnableSignalBuffer
	opts.SignalBufferMaxLen = c.Manager.SignalBufferMaxLen
	opts.RingBufferErrorMaxSize = c.Manager.RingBufferErrorMaxSize
	opts.RingBufferResultMaxSize = c.Manager.RingBufferResultMaxSize
	opts.DefaultOutput = stream.Output(c.Manager.DefaultOutput)
	opts.CleanupInterval = c.Manager.CleanupInterval
	opts.CleanupAge = c.Manager.CleanupAge
	opts.StatsKeepSeconds = c.Manager.StatsKeepSeconds

	opts.PingInterval = c.StreamDefaults.PingInterval
	opts.PingTimeout = c.StreamDefaults.PingTimeout
	opts.CloseTimeout = c.StreamDefaults.CloseTimeout

	opts.Worker.SendRate = c.Manager.SendRate
	opts.Worker.SendBurst = c.Manager.SendBurst
	opts.Worker.MaxReconnectAttempts = c.Reconnect.MaxAttempts
	opts.Worker.Backoff = connection.BackoffConfig{
		InitialInterval:     c.Reconnect.InitialInterval,
		MaxInterval:         c.Reconnect.MaxInterval,
		Multiplier:          c.Reconnect.Multiplier,
		RandomizationFactor: c.Reconnect.RandomizationFactor,
	}
	opts.Worker.Proxy = c.Proxy.connection()

	return opts
}

func (p ProxyConfig) connection() *connection.ProxyConfig {
	if !p.Enabled() {
		return nil
	}
	return &connection.ProxyConfig{
		Host:               p.Host,
		Port:               p.Port,
		User:               p.User,
		Password:           p.Password,
		InsecureSkipVerify: p.InsecureSkipVerify,
	}
}

// StreamRequest converts one configured stream into a manager request.
// symbols replaces the configured symbols when non-nil.
func (c *Config) StreamRequest(s StreamConfig, symbols []string, apiKey, apiSecret string) manager.StreamRequest {
	if symbols == nil {
		symbols = s.Symbols
	}
	req := manager.StreamRequest{
		Category:   s.Category,
		Channels:   s.Channels,
		Symbols:    symbols,
		Label:      s.Label,
		BufferName: s.BufferName,
		Output:     stream.Output(s.Output),
		BaseURI:    c.StreamDefaults.BaseURI,
	}
	if s.Category == "private" {
		req.APIKey = apiKey
		req.APISecret = apiSecret
	}
	return req
}
