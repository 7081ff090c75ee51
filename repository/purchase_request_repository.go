package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/kargo/models"
	"gorm.io/gorm"
)

// PurchaseRequestRepositoryImpl implements PurchaseRequestRepository interface
type PurchaseRequestRepositoryImpl struct {
	*BaseRepository[models.PurchaseRequest, models.PurchaseRequestFilter]
}

// NewPurchaseRequestRepository creates a new purchase request repository
func NewPurchaseRequestRepository(db *gorm.DB) PurchaseRequestRepository {
	return &PurchaseRequestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PurchaseRequest, models.PurchaseRequestFilter](db),
	}
}

// AttachProspectsToUser moves guest purchase requests of the given prospects to a user account
func (r *PurchaseRequestRepositoryImpl) AttachProspectsToUser(ctx context.Context, prospectIDs []uint, userID uint) (int64, error) {
	if len(prospectIDs) == 0 {
		return 0, nil
	}
	res := r.getDB(ctx).Model(&models.PurchaseRequest{}).
		Where("prospect_id IN ? AND user_id IS NULL", prospectIDs).
		Updates(map[string]any{"user_id": userID, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to attach purchase requests to user %d: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *PurchaseRequestRepositoryImpl) applyFilter(query *gorm.DB, filter models.PurchaseRequestFilter) *gorm.DB {
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

// ByFilter retrieves purchase requests based on filter criteria
func (r *PurchaseRequestRepositoryImpl) ByFilter(ctx context.Context, filter models.PurchaseRequestFilter, orderBy string, limit, offset int) ([]*models.PurchaseRequest, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PurchaseRequest{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.PurchaseRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list purchase requests: %w", err)
	}
	return rows, nil
}

// Count returns number of purchase requests matching filter
func (r *PurchaseRequestRepositoryImpl) Count(ctx context.Context, filter models.PurchaseRequestFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.PurchaseRequest{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count purchase requests: %w", err)
	}
	return count, nil
}

// Exists checks if any purchase request matches the filter
func (r *PurchaseRequestRepositoryImpl) Exists(ctx context.Context, filter models.PurchaseRequestFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
