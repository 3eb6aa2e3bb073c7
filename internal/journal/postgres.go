package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/bybit-streams/internal/stream"
)

const createSignalsTable = `
	CREATE TABLE IF NOT EXISTS stream_signals (
		id          BIGSERIAL PRIMARY KEY,
		stream_id   TEXT        NOT NULL,
		type        TEXT        NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL,
		error       TEXT        NOT NULL DEFAULT '',
		data_record BYTEA
	);
	CREATE INDEX IF NOT EXISTS idx_stream_signals_stream_id ON stream_signals (stream_id);
	CREATE INDEX IF NOT EXISTS idx_stream_signals_timestamp ON stream_signals (timestamp);
`

// PostgresSink writes signals with pgx batches.
type PostgresSink struct {
	db *pgxpool.Pool
}

// NewPostgresSink creates the stream_signals table if missing.
func NewPostgresSink(ctx context.Context, db *pgxpool.Pool) (*PostgresSink, error) {
	if _, err := db.Exec(ctx, createSignalsTable); err != nil {
		return nil, fmt.Errorf("create stream_signals: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Write inserts signals in one batch.
func (s *PostgresSink) Write(ctx context.Context, signals []stream.Signal) error {
	batch := &pgx.Batch{}
	for _, sig := range signals {
		r := recordFrom(sig)
		batch.Queue(`
			INSERT INTO stream_signals (stream_id, type, timestamp, error, data_record)
			VALUES ($1, $2, $3, $4, $5)
		`, r.StreamID, r.Type, r.Timestamp, r.Error, r.DataRecord)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range signals {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert signal: %w", err)
		}
	}
	return nil
}

// Close closes the pool.
func (s *PostgresSink) Close() error {
	s.db.Close()
	return nil
}
