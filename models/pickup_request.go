package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PickupStatus is the lifecycle status of a pickup request
type PickupStatus string

const (
	PickupStatusRequested PickupStatus = "REQUESTED"
	PickupStatusScheduled PickupStatus = "SCHEDULED"
	PickupStatusCompleted PickupStatus = "COMPLETED"
	PickupStatusCancelled PickupStatus = "CANCELLED"
)

func (s PickupStatus) String() string { return string(s) }

func (s PickupStatus) Valid() bool {
	switch s {
	case PickupStatusRequested, PickupStatusScheduled, PickupStatusCompleted, PickupStatusCancelled:
		return true
	}
	return false
}

func (s *PickupStatus) Scan(value any) error { return scanEnum(s, value, "PickupStatus") }

func (s PickupStatus) Value() (driver.Value, error) { return valueEnum(s, s.Valid(), "PickupStatus") }

type PickupAction string

const (
	PickupActionSchedule PickupAction = "schedule"
	PickupActionComplete PickupAction = "complete"
	PickupActionCancel   PickupAction = "cancel"
)

var PickupActions = []PickupAction{PickupActionSchedule, PickupActionComplete, PickupActionCancel}

// PickupMachine is the pickup request transition table
var PickupMachine = NewStateMachine(
	[]PickupStatus{PickupStatusRequested, PickupStatusScheduled, PickupStatusCompleted, PickupStatusCancelled},
	[]Transition[PickupStatus, PickupAction]{
		{From: PickupStatusRequested, Action: PickupActionSchedule, To: PickupStatusScheduled},
		{From: PickupStatusScheduled, Action: PickupActionComplete, To: PickupStatusCompleted},
	},
	[]PickupStatus{PickupStatusCompleted, PickupStatusCancelled},
).WithCancel(PickupActionCancel, PickupStatusCancelled)

// PickupRequest asks the forwarder to collect goods at an address.
// Guest submissions carry a ProspectID until the prospect registers.
type PickupRequest struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID    `gorm:"type:uuid;uniqueIndex:uk_pickup_requests_uuid;not null" json:"uuid"`
	RequestNumber      string       `gorm:"size:32;uniqueIndex:uk_pickup_requests_number;not null" json:"request_number"`
	UserID             *uint        `gorm:"index:idx_pickup_requests_user_id" json:"user_id,omitempty"`
	ProspectID         *uint        `gorm:"index:idx_pickup_requests_prospect_id" json:"prospect_id,omitempty"`
	ContactName        string       `gorm:"size:255;not null" json:"contact_name"`
	ContactEmail       *string      `gorm:"size:255" json:"contact_email,omitempty"`
	ContactPhone       string       `gorm:"size:32;not null" json:"contact_phone"`
	PickupAddress      string       `gorm:"type:text;not null" json:"pickup_address"`
	PickupCity         string       `gorm:"size:128;not null" json:"pickup_city"`
	PickupCountry      string       `gorm:"size:2;not null" json:"pickup_country"`
	DestinationCountry *string      `gorm:"size:2" json:"destination_country,omitempty"`
	CargoDescription   string       `gorm:"type:text;not null" json:"cargo_description"`
	CargoType          CargoType    `gorm:"type:varchar(16);not null" json:"cargo_type"`
	PackageCount       int          `gorm:"not null;default:1" json:"package_count"`
	EstimatedWeight    *float64     `gorm:"type:numeric(12,3)" json:"estimated_weight,omitempty"`
	PreferredDate      *time.Time   `json:"preferred_date,omitempty"`
	Status             PickupStatus `gorm:"type:varchar(16);not null;default:'REQUESTED';index:idx_pickup_requests_status" json:"status"`
	ScheduledDate      *time.Time   `json:"scheduled_date,omitempty"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`
	CancellationReason *string      `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time    `gorm:"default:CURRENT_TIMESTAMP;index:idx_pickup_requests_created_at" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PickupRequest) TableName() string {
	return "pickup_requests"
}

func (p *PickupRequest) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PickupStatusRequested
	}
	return nil
}

// IsOwnedBy reports whether userID is the owning client
func (p *PickupRequest) IsOwnedBy(userID uint) bool {
	return p.UserID != nil && *p.UserID == userID
}

// PickupRequestFilter represents filter criteria for pickup request queries
type PickupRequestFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	RequestNumber *string
	UserID        *uint
	ProspectID    *uint
	Status        *PickupStatus
}
