package journal

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rickgao/bybit-streams/internal/database"
	"github.com/rickgao/bybit-streams/internal/stream"
)

// SQLiteSink writes signals to a SQLite file through gorm.
type SQLiteSink struct {
	db        *gorm.DB
	batchSize int
}

// NewSQLiteSink opens path and migrates the signal table.
func NewSQLiteSink(path string, batchSize int) (*SQLiteSink, error) {
	db, err := database.OpenSQLite(path, &SignalRecord{})
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = DefaultConfig().BatchSize
	}
	return &SQLiteSink{db: db, batchSize: batchSize}, nil
}

// Write inserts signals.
func (s *SQLiteSink) Write(ctx context.Context, signals []stream.Signal) error {
	records := make([]SignalRecord, len(signals))
	for i, sig := range signals {
		records[i] = recordFrom(sig)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(records, s.batchSize).Error; err != nil {
		return fmt.Errorf("insert signals: %w", err)
	}
	return nil
}

// Signals returns the stored signals of a stream, oldest first.
func (s *SQLiteSink) Signals(ctx context.Context, streamID string) ([]SignalRecord, error) {
	var records []SignalRecord
	err := s.db.WithContext(ctx).
		Where("stream_id = ?", streamID).
		Order("id").
		Find(&records).Error
	return records, err
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
