package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseStatus is the lifecycle status of a purchase request
type PurchaseStatus string

const (
	PurchaseStatusRequested   PurchaseStatus = "REQUESTED"
	PurchaseStatusInTreatment PurchaseStatus = "IN_TREATMENT"
	PurchaseStatusDelivered   PurchaseStatus = "DELIVERED"
	PurchaseStatusCancelled   PurchaseStatus = "CANCELLED"
)

func (s PurchaseStatus) String() string { return string(s) }

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseStatusRequested, PurchaseStatusInTreatment, PurchaseStatusDelivered, PurchaseStatusCancelled:
		return true
	}
	return false
}

func (s *PurchaseStatus) Scan(value any) error { return scanEnum(s, value, "PurchaseStatus") }

func (s PurchaseStatus) Value() (driver.Value, error) {
	return valueEnum(s, s.Valid(), "PurchaseStatus")
}

type PurchaseAction string

const (
	PurchaseActionStartTreatment PurchaseAction = "start_treatment"
	PurchaseActionComplete       PurchaseAction = "complete"
	PurchaseActionCancel         PurchaseAction = "cancel"
)

var PurchaseActions = []PurchaseAction{PurchaseActionStartTreatment, PurchaseActionComplete, PurchaseActionCancel}

// PurchaseMachine is the purchase request transition table
var PurchaseMachine = NewStateMachine(
	[]PurchaseStatus{PurchaseStatusRequested, PurchaseStatusInTreatment, PurchaseStatusDelivered, PurchaseStatusCancelled},
	[]Transition[PurchaseStatus, PurchaseAction]{
		{From: PurchaseStatusRequested, Action: PurchaseActionStartTreatment, To: PurchaseStatusInTreatment},
		{From: PurchaseStatusInTreatment, Action: PurchaseActionComplete, To: PurchaseStatusDelivered},
	},
	[]PurchaseStatus{PurchaseStatusDelivered, PurchaseStatusCancelled},
).WithCancel(PurchaseActionCancel, PurchaseStatusCancelled)

// PurchaseRequest asks the forwarder to buy a product on the client's behalf and ship it
type PurchaseRequest struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	UUID                 uuid.UUID      `gorm:"type:uuid;uniqueIndex:uk_purchase_requests_uuid;not null" json:"uuid"`
	RequestNumber        string         `gorm:"size:32;uniqueIndex:uk_purchase_requests_number;not null" json:"request_number"`
	UserID               *uint          `gorm:"index:idx_purchase_requests_user_id" json:"user_id,omitempty"`
	ProspectID           *uint          `gorm:"index:idx_purchase_requests_prospect_id" json:"prospect_id,omitempty"`
	ContactName          string         `gorm:"size:255;not null" json:"contact_name"`
	ContactEmail         *string        `gorm:"size:255" json:"contact_email,omitempty"`
	ContactPhone         string         `gorm:"size:32;not null" json:"contact_phone"`
	ProductName          string         `gorm:"size:255;not null" json:"product_name"`
	ProductURL           *string        `gorm:"type:text" json:"product_url,omitempty"`
	ProductDescription   *string        `gorm:"type:text" json:"product_description,omitempty"`
	Quantity             int            `gorm:"not null;default:1" json:"quantity"`
	EstimatedProductCost *float64       `gorm:"type:numeric(14,2)" json:"estimated_product_cost,omitempty"`
	DeliveryAddress      string         `gorm:"type:text;not null" json:"delivery_address"`
	DeliveryCity         string         `gorm:"size:128;not null" json:"delivery_city"`
	DeliveryCountry      string         `gorm:"size:2;not null" json:"delivery_country"`
	ActualProductCost    *float64       `gorm:"type:numeric(14,2)" json:"actual_product_cost,omitempty"`
	DeliveryCost         *float64       `gorm:"type:numeric(14,2)" json:"delivery_cost,omitempty"`
	ServiceFee           *float64       `gorm:"type:numeric(14,2)" json:"service_fee,omitempty"`
	TotalCost            *float64       `gorm:"type:numeric(14,2)" json:"total_cost,omitempty"`
	Currency             string         `gorm:"size:3;not null" json:"currency"`
	Status               PurchaseStatus `gorm:"type:varchar(16);not null;default:'REQUESTED';index:idx_purchase_requests_status" json:"status"`
	TreatmentStartedAt   *time.Time     `json:"treatment_started_at,omitempty"`
	TreatmentComment     *string        `gorm:"type:text" json:"treatment_comment,omitempty"`
	DeliveredAt          *time.Time     `json:"delivered_at,omitempty"`
	CancellationReason   *string        `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledAt          *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time      `gorm:"default:CURRENT_TIMESTAMP;index:idx_purchase_requests_created_at" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PurchaseRequest) TableName() string {
	return "purchase_requests"
}

func (p *PurchaseRequest) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.Status == "" {
		p.Status = PurchaseStatusRequested
	}
	return nil
}

func (p *PurchaseRequest) IsOwnedBy(userID uint) bool {
	return p.UserID != nil && *p.UserID == userID
}

// PurchaseRequestFilter represents filter criteria for purchase request queries
type PurchaseRequestFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	RequestNumber *string
	UserID        *uint
	ProspectID    *uint
	Status        *PurchaseStatus
}
