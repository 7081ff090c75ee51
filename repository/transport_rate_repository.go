package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/kargo/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransportRateRepositoryImpl implements TransportRateRepository interface
type TransportRateRepositoryImpl struct {
	*BaseRepository[models.TransportRate, models.TransportRateFilter]
}

// NewTransportRateRepository creates a new transport rate repository
func NewTransportRateRepository(db *gorm.DB) TransportRateRepository {
	return &TransportRateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.TransportRate, models.TransportRateFilter](db),
	}
}

// ByKey retrieves the rate of one route and mode regardless of its active flag
func (r *TransportRateRepositoryImpl) ByKey(ctx context.Context, key models.RateKey) (*models.TransportRate, error) {
	db := r.getDB(ctx)

	var rate models.TransportRate
	err := db.Where("origin_country = ? AND destination_country = ? AND transport_mode = ?",
		strings.ToUpper(key.OriginCountry), strings.ToUpper(key.DestinationCountry), key.TransportMode).
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find transport rate: %w", err)
	}
	return &rate, nil
}

// ActiveForRoute lists the active rates of every mode for a route
func (r *TransportRateRepositoryImpl) ActiveForRoute(ctx context.Context, originCountry, destinationCountry string) ([]*models.TransportRate, error) {
	db := r.getDB(ctx)

	var rates []*models.TransportRate
	err := db.Where("origin_country = ? AND destination_country = ? AND is_active = ?",
		strings.ToUpper(originCountry), strings.ToUpper(destinationCountry), true).
		Find(&rates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transport rates for route: %w", err)
	}
	return rates, nil
}

// Upsert inserts rates or overwrites the existing row of the same route and mode
func (r *TransportRateRepositoryImpl) Upsert(ctx context.Context, rates []*models.TransportRate) error {
	if len(rates) == 0 {
		return nil
	}
	db := r.getDB(ctx)

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "origin_country"}, {Name: "destination_country"}, {Name: "transport_mode"}},
		DoUpdates: clause.Assignments(map[string]any{
			"rate_per_kg": clause.Expr{SQL: "EXCLUDED.rate_per_kg"},
			"rate_per_m3": clause.Expr{SQL: "EXCLUDED.rate_per_m3"},
			"notes":       clause.Expr{SQL: "EXCLUDED.notes"},
			"is_active":   clause.Expr{SQL: "EXCLUDED.is_active"},
			"updated_at":  clause.Expr{SQL: "CURRENT_TIMESTAMP"},
		}),
	}).CreateInBatches(rates, 100).Error
	if err != nil {
		return fmt.Errorf("failed to upsert transport rates: %w", err)
	}
	return nil
}

// SetActive toggles the active flag of one rate
func (r *TransportRateRepositoryImpl) SetActive(ctx context.Context, id uint, active bool) error {
	db := r.getDB(ctx)
	res := db.Model(&models.TransportRate{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")})
	if res.Error != nil {
		return fmt.Errorf("failed to toggle transport rate %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TransportRateRepositoryImpl) applyFilter(query *gorm.DB, filter models.TransportRateFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.OriginCountry != nil {
		query = query.Where("origin_country = ?", strings.ToUpper(*filter.OriginCountry))
	}
	if filter.DestinationCountry != nil {
		query = query.Where("destination_country = ?", strings.ToUpper(*filter.DestinationCountry))
	}
	if filter.TransportMode != nil {
		query = query.Where("transport_mode = ?", *filter.TransportMode)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves transport rates based on filter criteria
func (r *TransportRateRepositoryImpl) ByFilter(ctx context.Context, filter models.TransportRateFilter, orderBy string, limit, offset int) ([]*models.TransportRate, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.TransportRate{}), filter)
	query = paginate(query, orderBy, "origin_country ASC, destination_country ASC, transport_mode ASC", limit, offset)

	var rows []*models.TransportRate
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transport rates: %w", err)
	}
	return rows, nil
}

// Count returns number of transport rates matching filter
func (r *TransportRateRepositoryImpl) Count(ctx context.Context, filter models.TransportRateFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.TransportRate{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transport rates: %w", err)
	}
	return count, nil
}

// Exists checks if any transport rate matches the filter
func (r *TransportRateRepositoryImpl) Exists(ctx context.Context, filter models.TransportRateFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
