package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/kargo/models"
	"gorm.io/gorm"
)

// StatusHistoryRepositoryImpl implements StatusHistoryRepository interface.
// It exposes no update or delete; the table trigger rejects both anyway.
type StatusHistoryRepositoryImpl struct {
	*BaseRepository[models.StatusHistory, models.StatusHistoryFilter]
}

// NewStatusHistoryRepository creates a new status history repository
func NewStatusHistoryRepository(db *gorm.DB) StatusHistoryRepository {
	return &StatusHistoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.StatusHistory, models.StatusHistoryFilter](db),
	}
}

// ListByEntity returns the transitions of one entity, oldest first
func (r *StatusHistoryRepositoryImpl) ListByEntity(ctx context.Context, entityType models.EntityType, entityID uint) ([]*models.StatusHistory, error) {
	db := r.getDB(ctx)

	var rows []*models.StatusHistory
	err := db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	return rows, nil
}

// CountByEntity returns how many transitions an entity went through
func (r *StatusHistoryRepositoryImpl) CountByEntity(ctx context.Context, entityType models.EntityType, entityID uint) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.StatusHistory{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count status history: %w", err)
	}
	return count, nil
}
