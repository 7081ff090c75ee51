package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/kargo/models"
	"gorm.io/gorm"
)

// PickupRequestRepositoryImpl implements PickupRequestRepository interface
type PickupRequestRepositoryImpl struct {
	*BaseRepository[models.PickupRequest, models.PickupRequestFilter]
}

// NewPickupRequestRepository creates a new pickup request repository
func NewPickupRequestRepository(db *gorm.DB) PickupRequestRepository {
	return &PickupRequestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PickupRequest, models.PickupRequestFilter](db),
	}
}

// AttachProspectsToUser moves guest pickup requests of the given prospects to a user account
func (r *PickupRequestRepositoryImpl) AttachProspectsToUser(ctx context.Context, prospectIDs []uint, userID uint) (int64, error) {
	if len(prospectIDs) == 0 {
		return 0, nil
	}
	res := r.getDB(ctx).Model(&models.PickupRequest{}).
		Where("prospect_id IN ? AND user_id IS NULL", prospectIDs).
		Updates(map[string]any{"user_id": userID, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to attach pickup requests to user %d: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *PickupRequestRepositoryImpl) applyFilter(query *gorm.DB, filter models.PickupRequestFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.RequestNumber != nil {
		query = query.Where("request_number = ?", *filter.RequestNumber)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ProspectID != nil {
		query = query.Where("prospect_id = ?", *filter.ProspectID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves pickup requests based on filter criteria
func (r *PickupRequestRepositoryImpl) ByFilter(ctx context.Context, filter models.PickupRequestFilter, orderBy string, limit, offset int) ([]*models.PickupRequest, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PickupRequest{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.PickupRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pickup requests: %w", err)
	}
	return rows, nil
}

// Count returns number of pickup requests matching filter
func (r *PickupRequestRepositoryImpl) Count(ctx context.Context, filter models.PickupRequestFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.PickupRequest{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count pickup requests: %w", err)
	}
	return count, nil
}

// Exists checks if any pickup request matches the filter
func (r *PickupRequestRepositoryImpl) Exists(ctx context.Context, filter models.PickupRequestFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
