package config

import (
	"errors"
	"fmt"

	"github.com/rickgao/bybit-streams/internal/buffer"
	"github.com/rickgao/bybit-streams/internal/endpoint"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if _, err := endpoint.ParseExchange(c.Exchange); err != nil {
		return fmt.Errorf("exchange: %w", err)
	}

	if c.Manager.MaxSubscriptionsPerStream < 1 {
		return errors.New("manager.max_subscriptions_per_stream must be >= 1")
	}
	for _, cat := range endpoint.Categories {
		if c.Manager.CategoryCap(cat) < 0 {
			return fmt.Errorf("manager.max_subscriptions_per_stream_%s must be >= 0", cat)
		}
	}
	if _, ok := buffer.ParsePolicy(c.Manager.BufferPolicy); !ok {
		return fmt.Errorf("manager.buffer_policy must be fifo or lifo, got %q", c.Manager.BufferPolicy)
	}
	if c.Manager.BufferMaxLen < 0 {
		return errors.New("manager.buffer_maxlen must be >= 0")
	}
	if err := validOutput("manager.default_output", c.Manager.DefaultOutput); err != nil {
		return err
	}
	if c.Manager.SendRate <= 0 {
		return errors.New("manager.send_rate must be > 0")
	}
	if c.Manager.CleanupInterval < 0 {
		return errors.New("manager.cleanup_interval must be >= 0")
	}

	if c.StreamDefaults.PingTimeout < c.StreamDefaults.PingInterval {
		return fmt.Errorf("stream_defaults.ping_timeout (%v) cannot be shorter than ping_interval (%v)",
			c.StreamDefaults.PingTimeout, c.StreamDefaults.PingInterval)
	}

	if c.Reconnect.Multiplier < 1 {
		return errors.New("reconnect.multiplier must be >= 1")
	}
	if c.Reconnect.MaxInterval < c.Reconnect.InitialInterval {
		return fmt.Errorf("reconnect.initial_interval (%v) cannot exceed max_interval (%v)",
			c.Reconnect.InitialInterval, c.Reconnect.MaxInterval)
	}

	if c.Proxy.Enabled() && (c.Proxy.Port < 1 || c.Proxy.Port > 65535) {
		return fmt.Errorf("proxy.port must be between 1 and 65535, got %d", c.Proxy.Port)
	}

	for i, s := range c.Streams {
		prefix := fmt.Sprintf("streams[%d]", i)
		cat, err := endpoint.ParseCategory(s.Category)
		if err != nil {
			return fmt.Errorf("%s.category: %w", prefix, err)
		}
		if len(s.Channels) == 0 {
			return fmt.Errorf("%s.channels is required", prefix)
		}
		if s.AllSymbols && cat.IsPrivate() {
			return fmt.Errorf("%s.all_symbols is not supported for private streams", prefix)
		}
		if cat.IsPrivate() && (c.API.APIKey == "" || (c.API.APISecret == "" && c.API.SecretFile == "")) {
			return fmt.Errorf("%s: private streams require api.api_key and api.api_secret", prefix)
		}
		if s.Output != "" {
			if err := validOutput(prefix+".output", s.Output); err != nil {
				return err
			}
		}
	}

	switch c.Journal.Driver {
	case "none":
	case "sqlite":
		if c.Journal.SQLitePath == "" {
			return errors.New("journal.sqlite_path is required")
		}
	case "postgres":
		if err := c.Journal.Postgres.validate("journal.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("journal.driver must be none, sqlite or postgres, got %q", c.Journal.Driver)
	}
	if c.Journal.BatchSize < 1 {
		return errors.New("journal.batch_size must be >= 1")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func validOutput(field, v string) error {
	switch v {
	case "raw_data", "decoded":
		return nil
	}
	return fmt.Errorf("%s must be raw_data or decoded, got %q", field, v)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
