package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShipmentStatus represents the carriage status of a shipment
type ShipmentStatus string

const (
	ShipmentStatusDraft          ShipmentStatus = "DRAFT"
	ShipmentStatusRegistered     ShipmentStatus = "REGISTERED"
	ShipmentStatusInTransit      ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusAtCustoms      ShipmentStatus = "AT_CUSTOMS"
	ShipmentStatusOutForDelivery ShipmentStatus = "OUT_FOR_DELIVERY"
	ShipmentStatusDelivered      ShipmentStatus = "DELIVERED"
	ShipmentStatusCancelled      ShipmentStatus = "CANCELLED"
)

func (s ShipmentStatus) String() string { return string(s) }

func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentStatusDraft, ShipmentStatusRegistered, ShipmentStatusInTransit, ShipmentStatusAtCustoms,
		ShipmentStatusOutForDelivery, ShipmentStatusDelivered, ShipmentStatusCancelled:
		return true
	}
	return false
}

// IsPublished reports whether the shipment may be shown on the public tracking page
func (s ShipmentStatus) IsPublished() bool {
	return s.Valid() && s != ShipmentStatusDraft
}

func (s *ShipmentStatus) Scan(value any) error { return scanEnum(s, value, "ShipmentStatus") }

func (s ShipmentStatus) Value() (driver.Value, error) {
	return valueEnum(s, s.Valid(), "ShipmentStatus")
}

// ShipmentAction is an input of the shipment state machine
type ShipmentAction string

const (
	ShipmentActionPublish       ShipmentAction = "publish"
	ShipmentActionDepart        ShipmentAction = "depart"
	ShipmentActionHoldAtCustoms ShipmentAction = "hold_at_customs"
	ShipmentActionDispatch      ShipmentAction = "dispatch"
	ShipmentActionDeliver       ShipmentAction = "deliver"
	ShipmentActionCancel        ShipmentAction = "cancel"
)

var ShipmentActions = []ShipmentAction{
	ShipmentActionPublish, ShipmentActionDepart, ShipmentActionHoldAtCustoms,
	ShipmentActionDispatch, ShipmentActionDeliver, ShipmentActionCancel,
}

// ShipmentMachine is the shipment transition table
var ShipmentMachine = NewStateMachine(
	[]ShipmentStatus{
		ShipmentStatusDraft, ShipmentStatusRegistered, ShipmentStatusInTransit, ShipmentStatusAtCustoms,
		ShipmentStatusOutForDelivery, ShipmentStatusDelivered, ShipmentStatusCancelled,
	},
	[]Transition[ShipmentStatus, ShipmentAction]{
		{From: ShipmentStatusDraft, Action: ShipmentActionPublish, To: ShipmentStatusRegistered},
		{From: ShipmentStatusRegistered, Action: ShipmentActionDepart, To: ShipmentStatusInTransit},
		{From: ShipmentStatusAtCustoms, Action: ShipmentActionDepart, To: ShipmentStatusInTransit},
		{From: ShipmentStatusInTransit, Action: ShipmentActionHoldAtCustoms, To: ShipmentStatusAtCustoms},
		{From: ShipmentStatusInTransit, Action: ShipmentActionDispatch, To: ShipmentStatusOutForDelivery},
		{From: ShipmentStatusAtCustoms, Action: ShipmentActionDispatch, To: ShipmentStatusOutForDelivery},
		{From: ShipmentStatusOutForDelivery, Action: ShipmentActionDeliver, To: ShipmentStatusDelivered},
	},
	[]ShipmentStatus{ShipmentStatusDelivered, ShipmentStatusCancelled},
).WithCancel(ShipmentActionCancel, ShipmentStatusCancelled)

// Shipment is created when a quote is validated. Cost and notes are internal.
type Shipment struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID      `gorm:"type:uuid;uniqueIndex:uk_shipments_uuid;not null" json:"uuid"`
	TrackingNumber     string         `gorm:"size:32;uniqueIndex:uk_shipments_tracking_number;not null" json:"tracking_number"`
	QuoteID            uint           `gorm:"not null;uniqueIndex:uk_shipments_quote_id" json:"quote_id"`
	Quote              *Quote         `gorm:"foreignKey:QuoteID;references:ID" json:"quote,omitempty"`
	ClientID           uint           `gorm:"not null;index:idx_shipments_client_id" json:"client_id"`
	OriginCountry      string         `gorm:"size:2;not null" json:"origin_country"`
	OriginCity         *string        `gorm:"size:128" json:"origin_city,omitempty"`
	DestinationCountry string         `gorm:"size:2;not null" json:"destination_country"`
	DestinationCity    *string        `gorm:"size:128" json:"destination_city,omitempty"`
	TransportMode      TransportMode  `gorm:"type:varchar(16);not null" json:"transport_mode"`
	PackageCount       int            `gorm:"not null" json:"package_count"`
	CargoDescription   *string        `gorm:"type:text" json:"cargo_description,omitempty"`
	TotalWeight        float64        `gorm:"type:numeric(12,3);not null;default:0" json:"total_weight"`
	EstimatedCost      float64        `gorm:"type:numeric(14,2);not null;default:0" json:"estimated_cost"`
	ActualCost         *float64       `gorm:"type:numeric(14,2)" json:"actual_cost,omitempty"`
	Currency           string         `gorm:"size:3;not null" json:"currency"`
	InternalNotes      *string        `gorm:"type:text" json:"internal_notes,omitempty"`
	Status             ShipmentStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index:idx_shipments_status" json:"status"`
	DeliveredAt        *time.Time     `json:"delivered_at,omitempty"`
	CreatedByID        *uint          `json:"created_by_id,omitempty"`
	CreatedAt          time.Time      `gorm:"default:CURRENT_TIMESTAMP;index:idx_shipments_created_at" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Shipment) TableName() string {
	return "shipments"
}

func (s *Shipment) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.Status == "" {
		s.Status = ShipmentStatusDraft
	}
	return nil
}

// ShipmentFilter represents filter criteria for shipment queries
type ShipmentFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	TrackingNumber *string
	QuoteID        *uint
	ClientID       *uint
	Status         *ShipmentStatus
}
