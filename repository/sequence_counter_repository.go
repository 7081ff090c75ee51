package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SequenceCounterRepositoryImpl implements SequenceCounterRepository with a single upsert statement
type SequenceCounterRepositoryImpl struct {
	DB *gorm.DB
}

// NewSequenceCounterRepository creates a new sequence counter repository
func NewSequenceCounterRepository(db *gorm.DB) SequenceCounterRepository {
	return &SequenceCounterRepositoryImpl{DB: db}
}

const nextSequenceSQL = `
INSERT INTO sequence_counters (name, last_value, created_at, updated_at)
VALUES (?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT (name)
DO UPDATE SET last_value = sequence_counters.last_value + 1, updated_at = CURRENT_TIMESTAMP
RETURNING last_value`

// Next increments the named counter and returns the new value. The row stays
// locked until the surrounding transaction ends, so concurrent callers get distinct values.
func (r *SequenceCounterRepositoryImpl) Next(ctx context.Context, name string) (int64, error) {
	db := r.DB.WithContext(ctx)
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		db = tx.WithContext(ctx)
	}

	var value int64
	if err := db.Raw(nextSequenceSQL, name).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}
	return value, nil
}
