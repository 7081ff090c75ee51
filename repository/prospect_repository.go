package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/utils"
	"gorm.io/gorm"
)

// ProspectRepositoryImpl implements ProspectRepository interface
type ProspectRepositoryImpl struct {
	*BaseRepository[models.Prospect, models.ProspectFilter]
}

// NewProspectRepository creates a new prospect repository
func NewProspectRepository(db *gorm.DB) ProspectRepository {
	return &ProspectRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Prospect, models.ProspectFilter](db),
	}
}

// contactQuery matches email OR phone; nil when neither is given
func contactQuery(query *gorm.DB, email, phone *string) *gorm.DB {
	var e, p string
	if email != nil {
		e = utils.NormalizeEmail(*email)
	}
	if phone != nil {
		p = utils.NormalizePhone(*phone)
	}
	switch {
	case e != "" && p != "":
		return query.Where("(email = ? OR phone = ?)", e, p)
	case e != "":
		return query.Where("email = ?", e)
	case p != "":
		return query.Where("phone = ?", p)
	}
	return nil
}

// ByContact returns the most recent unconverted prospect sharing the email or phone
func (r *ProspectRepositoryImpl) ByContact(ctx context.Context, email, phone *string) (*models.Prospect, error) {
	query := contactQuery(r.getDB(ctx).Model(&models.Prospect{}), email, phone)
	if query == nil {
		return nil, nil
	}

	var prospect models.Prospect
	err := query.Where("converted_user_id IS NULL").Order("id DESC").First(&prospect).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find prospect by contact: %w", err)
	}
	return &prospect, nil
}

// ListUnconvertedByContact lists every unconverted prospect sharing the email or phone
func (r *ProspectRepositoryImpl) ListUnconvertedByContact(ctx context.Context, email, phone *string) ([]*models.Prospect, error) {
	query := contactQuery(r.getDB(ctx).Model(&models.Prospect{}), email, phone)
	if query == nil {
		return nil, nil
	}

	var rows []*models.Prospect
	if err := query.Where("converted_user_id IS NULL").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list prospects by contact: %w", err)
	}
	return rows, nil
}

func (r *ProspectRepositoryImpl) applyFilter(query *gorm.DB, filter models.ProspectFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", utils.NormalizeEmail(*filter.Email))
	}
	if filter.Phone != nil {
		query = query.Where("phone = ?", utils.NormalizePhone(*filter.Phone))
	}
	if filter.Converted != nil {
		if *filter.Converted {
			query = query.Where("converted_user_id IS NOT NULL")
		} else {
			query = query.Where("converted_user_id IS NULL")
		}
	}
	return query
}

// ByFilter retrieves prospects based on filter criteria
func (r *ProspectRepositoryImpl) ByFilter(ctx context.Context, filter models.ProspectFilter, orderBy string, limit, offset int) ([]*models.Prospect, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Prospect{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.Prospect
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list prospects: %w", err)
	}
	return rows, nil
}

// Count returns number of prospects matching filter
func (r *ProspectRepositoryImpl) Count(ctx context.Context, filter models.ProspectFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Prospect{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count prospects: %w", err)
	}
	return count, nil
}

// Exists checks if any prospect matches the filter
func (r *ProspectRepositoryImpl) Exists(ctx context.Context, filter models.ProspectFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
