package journal

import (
	"context"
	"fmt"

	"github.com/rickgao/bybit-streams/internal/config"
	"github.com/rickgao/bybit-streams/internal/database"
)

// Open returns the sink selected by cfg.Driver, or nil for "none".
func Open(ctx context.Context, cfg config.JournalConfig) (Sink, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		sink, err := NewSQLiteSink(cfg.SQLitePath, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect journal database: %w", err)
		}
		sink, err := NewPostgresSink(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return sink, nil
	}
	return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
}
