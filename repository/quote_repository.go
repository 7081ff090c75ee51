package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/kargo/models"
	"gorm.io/gorm"
)

// QuoteRepositoryImpl implements QuoteRepository interface
type QuoteRepositoryImpl struct {
	*BaseRepository[models.Quote, models.QuoteFilter]
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &QuoteRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Quote, models.QuoteFilter](db),
	}
}

// ByQuoteNumber retrieves a quote by its QT-YYYYMMDD-NNNNN number
func (r *QuoteRepositoryImpl) ByQuoteNumber(ctx context.Context, number string) (*models.Quote, error) {
	db := r.getDB(ctx)

	var quote models.Quote
	if err := db.Where("quote_number = ?", number).First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find quote by number: %w", err)
	}
	return &quote, nil
}

func (r *QuoteRepositoryImpl) applyFilter(query *gorm.DB, filter models.QuoteFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.QuoteNumber != nil {
		query = query.Where("quote_number = ?", *filter.QuoteNumber)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.ValidBefore != nil {
		query = query.Where("valid_until IS NOT NULL AND valid_until < ?", *filter.ValidBefore)
	}
	return query
}

// ByFilter retrieves quotes based on filter criteria
func (r *QuoteRepositoryImpl) ByFilter(ctx context.Context, filter models.QuoteFilter, orderBy string, limit, offset int) ([]*models.Quote, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Quote{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.Quote
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return rows, nil
}

// Count returns number of quotes matching filter
func (r *QuoteRepositoryImpl) Count(ctx context.Context, filter models.QuoteFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Quote{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	return count, nil
}

// Exists checks if any quote matches the filter
func (r *QuoteRepositoryImpl) Exists(ctx context.Context, filter models.QuoteFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
