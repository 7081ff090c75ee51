package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/kargo/models"
	"gorm.io/gorm"
)

// ShipmentRepositoryImpl implements ShipmentRepository interface
type ShipmentRepositoryImpl struct {
	*BaseRepository[models.Shipment, models.ShipmentFilter]
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *gorm.DB) ShipmentRepository {
	return &ShipmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Shipment, models.ShipmentFilter](db),
	}
}

// ByTrackingNumber retrieves a shipment by its normalized tracking number
func (r *ShipmentRepositoryImpl) ByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	return r.first(ctx, "tracking_number = ?", trackingNumber)
}

// ByQuoteID retrieves the shipment created from a quote
func (r *ShipmentRepositoryImpl) ByQuoteID(ctx context.Context, quoteID uint) (*models.Shipment, error) {
	return r.first(ctx, "quote_id = ?", quoteID)
}

func (r *ShipmentRepositoryImpl) first(ctx context.Context, cond string, arg any) (*models.Shipment, error) {
	db := r.getDB(ctx)

	var shipment models.Shipment
	if err := db.Where(cond, arg).First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find shipment: %w", err)
	}
	return &shipment, nil
}

func (r *ShipmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.ShipmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.TrackingNumber != nil {
		query = query.Where("tracking_number = ?", *filter.TrackingNumber)
	}
	if filter.QuoteID != nil {
		query = query.Where("quote_id = ?", *filter.QuoteID)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves shipments based on filter criteria
func (r *ShipmentRepositoryImpl) ByFilter(ctx context.Context, filter models.ShipmentFilter, orderBy string, limit, offset int) ([]*models.Shipment, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Shipment{}), filter)
	query = paginate(query, orderBy, "id DESC", limit, offset)

	var rows []*models.Shipment
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	return rows, nil
}

// Count returns number of shipments matching filter
func (r *ShipmentRepositoryImpl) Count(ctx context.Context, filter models.ShipmentFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Shipment{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count shipments: %w", err)
	}
	return count, nil
}

// Exists checks if any shipment matches the filter
func (r *ShipmentRepositoryImpl) Exists(ctx context.Context, filter models.ShipmentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// TrackingEventRepositoryImpl implements TrackingEventRepository interface
type TrackingEventRepositoryImpl struct {
	*BaseRepository[models.TrackingEvent, struct{}]
}

// NewTrackingEventRepository creates a new tracking event repository
func NewTrackingEventRepository(db *gorm.DB) TrackingEventRepository {
	return &TrackingEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.TrackingEvent, struct{}](db),
	}
}

// ListByShipment returns the checkpoints of a shipment in chronological order
func (r *TrackingEventRepositoryImpl) ListByShipment(ctx context.Context, shipmentID uint) ([]*models.TrackingEvent, error) {
	db := r.getDB(ctx)

	var events []*models.TrackingEvent
	err := db.Where("shipment_id = ?", shipmentID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking events: %w", err)
	}
	return events, nil
}
