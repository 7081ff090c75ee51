package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/kargo/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PricingConfigRepositoryImpl implements PricingConfigRepository interface
type PricingConfigRepositoryImpl struct {
	*BaseRepository[models.PricingConfig, models.PricingConfigFilter]
}

// NewPricingConfigRepository creates a new pricing config repository
func NewPricingConfigRepository(db *gorm.DB) PricingConfigRepository {
	return &PricingConfigRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PricingConfig, models.PricingConfigFilter](db),
	}
}

// Active returns the live configuration, or nil when none is active
func (r *PricingConfigRepositoryImpl) Active(ctx context.Context) (*models.PricingConfig, error) {
	return r.active(r.getDB(ctx))
}

// LockActive returns the live configuration locked for update. It must run inside WithTransaction.
func (r *PricingConfigRepositoryImpl) LockActive(ctx context.Context) (*models.PricingConfig, error) {
	tx, ok := ctx.Value(TxContextKey).(*gorm.DB)
	if !ok || tx == nil {
		return nil, ErrNoTransaction
	}
	return r.active(tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}))
}

func (r *PricingConfigRepositoryImpl) active(db *gorm.DB) (*models.PricingConfig, error) {
	var cfg models.PricingConfig
	err := db.Where("is_active = ?", true).Order("version DESC").First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active pricing config: %w", err)
	}
	return &cfg, nil
}

// Deactivate flips is_active off on a superseded version
func (r *PricingConfigRepositoryImpl) Deactivate(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	err := db.Model(&models.PricingConfig{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")}).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate pricing config %d: %w", id, err)
	}
	return nil
}

// LatestVersion returns the highest version number ever stored, 0 when empty
func (r *PricingConfigRepositoryImpl) LatestVersion(ctx context.Context) (int, error) {
	db := r.getDB(ctx)
	var version int
	err := db.Model(&models.PricingConfig{}).Select("COALESCE(MAX(version), 0)").Scan(&version).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read latest pricing config version: %w", err)
	}
	return version, nil
}

func (r *PricingConfigRepositoryImpl) applyFilter(query *gorm.DB, filter models.PricingConfigFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Version != nil {
		query = query.Where("version = ?", *filter.Version)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves pricing config versions based on filter criteria
func (r *PricingConfigRepositoryImpl) ByFilter(ctx context.Context, filter models.PricingConfigFilter, orderBy string, limit, offset int) ([]*models.PricingConfig, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PricingConfig{}), filter)
	query = paginate(query, orderBy, "version DESC", limit, offset)

	var rows []*models.PricingConfig
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pricing configs: %w", err)
	}
	return rows, nil
}

// Count returns number of pricing config versions matching filter
func (r *PricingConfigRepositoryImpl) Count(ctx context.Context, filter models.PricingConfigFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.PricingConfig{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count pricing configs: %w", err)
	}
	return count, nil
}

// Exists checks if any pricing config matches the filter
func (r *PricingConfigRepositoryImpl) Exists(ctx context.Context, filter models.PricingConfigFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
