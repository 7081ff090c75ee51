// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/amirphl/kargo/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// ErrNoTransaction is returned by locking reads issued outside WithTransaction
var ErrNoTransaction = errors.New("row lock requested outside a transaction")

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// Workflow entities are addressed by UUID and locked before every transition
type workflowRepository[T any, F any] interface {
	Repository[T, F]
	ByUUID(ctx context.Context, id uuid.UUID) (*T, error)
	LockByUUID(ctx context.Context, id uuid.UUID) (*T, error)
	Update(ctx context.Context, entity *T) error
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// PricingConfigRepository defines operations for versioned pricing configurations
type PricingConfigRepository interface {
	Repository[models.PricingConfig, models.PricingConfigFilter]
	Active(ctx context.Context) (*models.PricingConfig, error)
	LockActive(ctx context.Context) (*models.PricingConfig, error)
	Deactivate(ctx context.Context, id uint) error
	LatestVersion(ctx context.Context) (int, error)
}

// TransportRateRepository defines operations for route rates
type TransportRateRepository interface {
	Repository[models.TransportRate, models.TransportRateFilter]
	ByKey(ctx context.Context, key models.RateKey) (*models.TransportRate, error)
	ActiveForRoute(ctx context.Context, originCountry, destinationCountry string) ([]*models.TransportRate, error)
	Upsert(ctx context.Context, rates []*models.TransportRate) error
	SetActive(ctx context.Context, id uint, active bool) error
}

// QuoteRepository defines operations for quotes
type QuoteRepository interface {
	workflowRepository[models.Quote, models.QuoteFilter]
	ByQuoteNumber(ctx context.Context, number string) (*models.Quote, error)
}

// ShipmentRepository defines operations for shipments
type ShipmentRepository interface {
	workflowRepository[models.Shipment, models.ShipmentFilter]
	ByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	ByQuoteID(ctx context.Context, quoteID uint) (*models.Shipment, error)
}

// TrackingEventRepository defines operations for shipment checkpoints
type TrackingEventRepository interface {
	Save(ctx context.Context, event *models.TrackingEvent) error
	ListByShipment(ctx context.Context, shipmentID uint) ([]*models.TrackingEvent, error)
}

// PickupRequestRepository defines operations for pickup requests
type PickupRequestRepository interface {
	workflowRepository[models.PickupRequest, models.PickupRequestFilter]
	AttachProspectsToUser(ctx context.Context, prospectIDs []uint, userID uint) (int64, error)
}

// PurchaseRequestRepository defines operations for purchase requests
type PurchaseRequestRepository interface {
	workflowRepository[models.PurchaseRequest, models.PurchaseRequestFilter]
	AttachProspectsToUser(ctx context.Context, prospectIDs []uint, userID uint) (int64, error)
}

// ProspectRepository defines operations for guest contacts
type ProspectRepository interface {
	Repository[models.Prospect, models.ProspectFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Prospect, error)
	LockByUUID(ctx context.Context, id uuid.UUID) (*models.Prospect, error)
	ByContact(ctx context.Context, email, phone *string) (*models.Prospect, error)
	ListUnconvertedByContact(ctx context.Context, email, phone *string) ([]*models.Prospect, error)
	Update(ctx context.Context, prospect *models.Prospect) error
}

// StatusHistoryRepository is append-only
type StatusHistoryRepository interface {
	Save(ctx context.Context, entry *models.StatusHistory) error
	ListByEntity(ctx context.Context, entityType models.EntityType, entityID uint) ([]*models.StatusHistory, error)
	CountByEntity(ctx context.Context, entityType models.EntityType, entityID uint) (int64, error)
}

// SequenceCounterRepository hands out per-day sequence values
type SequenceCounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByActor(ctx context.Context, actorID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListByEntity(ctx context.Context, entityType string, entityID uint) ([]*models.AuditLog, error)
}
