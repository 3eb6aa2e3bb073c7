package journal

import (
	"context"
	"time"

	"github.com/rickgao/bybit-streams/internal/stream"
)

// Sink stores batches of signals.
type Sink interface {
	Write(ctx context.Context, signals []stream.Signal) error
	Close() error
}

// Config holds batching settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

// Metrics tracks journal performance.
type Metrics struct {
	Inserts int64
	Flushes int64
	Errors  int64
}

// SignalRecord is the stored form of a signal.
type SignalRecord struct {
	ID         uint      `gorm:"primaryKey"`
	StreamID   string    `gorm:"index"`
	Type       string    `gorm:"index"`
	Timestamp  time.Time `gorm:"index"`
	Error      string
	DataRecord []byte
}

// TableName sets the table shared by both sinks.
func (SignalRecord) TableName() string {
	return "stream_signals"
}

func recordFrom(sig stream.Signal) SignalRecord {
	return SignalRecord{
		StreamID:   sig.StreamID,
		Type:       string(sig.Type),
		Timestamp:  sig.Timestamp.UTC(),
		Error:      sig.Error,
		DataRecord: sig.DataRecord,
	}
}
