package models

import (
	"database/sql/driver"
	"time"

	"github.com/amirphl/kargo/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// QuoteStatus represents the lifecycle status of a quote
type QuoteStatus string

const (
	QuoteStatusDraft       QuoteStatus = "DRAFT"
	QuoteStatusSubmitted   QuoteStatus = "SUBMITTED"
	QuoteStatusSent        QuoteStatus = "SENT"
	QuoteStatusAccepted    QuoteStatus = "ACCEPTED"
	QuoteStatusRejected    QuoteStatus = "REJECTED"
	QuoteStatusExpired     QuoteStatus = "EXPIRED"
	QuoteStatusInTreatment QuoteStatus = "IN_TREATMENT"
	QuoteStatusValidated   QuoteStatus = "VALIDATED"
	QuoteStatusCancelled   QuoteStatus = "CANCELLED"
)

func (s QuoteStatus) String() string { return string(s) }

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSubmitted, QuoteStatusSent, QuoteStatusAccepted,
		QuoteStatusRejected, QuoteStatusExpired, QuoteStatusInTreatment,
		QuoteStatusValidated, QuoteStatusCancelled:
		return true
	}
	return false
}

func (s *QuoteStatus) Scan(value any) error { return scanEnum(s, value, "QuoteStatus") }

func (s QuoteStatus) Value() (driver.Value, error) { return valueEnum(s, s.Valid(), "QuoteStatus") }

// QuoteAction is an input of the quote state machine
type QuoteAction string

const (
	QuoteActionSubmit         QuoteAction = "submit"
	QuoteActionSend           QuoteAction = "send"
	QuoteActionAccept         QuoteAction = "accept"
	QuoteActionReject         QuoteAction = "reject"
	QuoteActionExpire         QuoteAction = "expire"
	QuoteActionStartTreatment QuoteAction = "start_treatment"
	QuoteActionValidate       QuoteAction = "validate"
	QuoteActionCancel         QuoteAction = "cancel"
)

// QuoteActions lists the quote actions in display order
var QuoteActions = []QuoteAction{
	QuoteActionSubmit, QuoteActionSend, QuoteActionAccept, QuoteActionReject,
	QuoteActionExpire, QuoteActionStartTreatment, QuoteActionValidate, QuoteActionCancel,
}

// QuoteMachine is the quote transition table
var QuoteMachine = NewStateMachine(
	[]QuoteStatus{
		QuoteStatusDraft, QuoteStatusSubmitted, QuoteStatusSent, QuoteStatusAccepted,
		QuoteStatusRejected, QuoteStatusExpired, QuoteStatusInTreatment,
		QuoteStatusValidated, QuoteStatusCancelled,
	},
	[]Transition[QuoteStatus, QuoteAction]{
		{From: QuoteStatusDraft, Action: QuoteActionSubmit, To: QuoteStatusSubmitted},
		{From: QuoteStatusSubmitted, Action: QuoteActionSend, To: QuoteStatusSent},
		{From: QuoteStatusSent, Action: QuoteActionAccept, To: QuoteStatusAccepted},
		{From: QuoteStatusSent, Action: QuoteActionReject, To: QuoteStatusRejected},
		{From: QuoteStatusSent, Action: QuoteActionExpire, To: QuoteStatusExpired},
		{From: QuoteStatusAccepted, Action: QuoteActionStartTreatment, To: QuoteStatusInTreatment},
		{From: QuoteStatusInTreatment, Action: QuoteActionValidate, To: QuoteStatusValidated},
	},
	[]QuoteStatus{QuoteStatusRejected, QuoteStatusExpired, QuoteStatusValidated, QuoteStatusCancelled},
).WithCancel(QuoteActionCancel, QuoteStatusCancelled)

// Quote is a priced transport request owned by a client
type Quote struct {
	ID                    uint               `gorm:"primaryKey" json:"id"`
	UUID                  uuid.UUID          `gorm:"type:uuid;uniqueIndex:uk_quotes_uuid;not null" json:"uuid"`
	QuoteNumber           string             `gorm:"size:32;uniqueIndex:uk_quotes_number;not null" json:"quote_number"`
	ClientID              uint               `gorm:"not null;index:idx_quotes_client_id" json:"client_id"`
	Client                *User              `gorm:"foreignKey:ClientID;references:ID" json:"client,omitempty"`
	CompanyID             *uint              `gorm:"index:idx_quotes_company_id" json:"company_id,omitempty"`
	OriginCountry         string             `gorm:"size:2;not null" json:"origin_country"`
	OriginCity            *string            `gorm:"size:128" json:"origin_city,omitempty"`
	DestinationCountry    string             `gorm:"size:2;not null" json:"destination_country"`
	DestinationCity       *string            `gorm:"size:128" json:"destination_city,omitempty"`
	TransportModes        pq.StringArray     `gorm:"type:text[];not null" json:"transport_modes"`
	Priority              Priority           `gorm:"type:varchar(16);not null" json:"priority"`
	Packages              QuotePackages      `gorm:"type:jsonb;not null" json:"packages"`
	EstimateLines         QuoteEstimateLines `gorm:"type:jsonb" json:"estimate_lines"`
	TotalWeight           float64            `gorm:"type:numeric(12,3);not null;default:0" json:"total_weight"`
	TotalPackageCount     int                `gorm:"not null;default:0" json:"total_package_count"`
	DominantCargoType     CargoType          `gorm:"type:varchar(16)" json:"dominant_cargo_type"`
	TotalBeforePriority   float64            `gorm:"type:numeric(14,2);not null;default:0" json:"total_before_priority"`
	EstimatedCost         float64            `gorm:"type:numeric(14,2);not null;default:0" json:"estimated_cost"`
	EstimatedDeliveryDays int                `gorm:"not null;default:0" json:"estimated_delivery_days"`
	Currency              string             `gorm:"size:3;not null" json:"currency"`
	PricingConfigVersion  int                `gorm:"not null;default:0" json:"pricing_config_version"`
	Status                QuoteStatus        `gorm:"type:varchar(16);not null;default:'SUBMITTED';index:idx_quotes_status" json:"status"`
	PaymentMethod         *PaymentMethod     `gorm:"type:varchar(16)" json:"payment_method,omitempty"`
	AcceptedByID          *uint              `json:"accepted_by_id,omitempty"`
	SentAt                *time.Time         `json:"sent_at,omitempty"`
	ValidUntil            *time.Time         `json:"valid_until,omitempty"`
	AcceptedAt            *time.Time         `json:"accepted_at,omitempty"`
	RejectionReason       *string            `gorm:"type:text" json:"rejection_reason,omitempty"`
	TreatmentStartedAt    *time.Time         `json:"treatment_started_at,omitempty"`
	TreatmentComment      *string            `gorm:"type:text" json:"treatment_comment,omitempty"`
	ValidatedAt           *time.Time         `json:"validated_at,omitempty"`
	ValidatedByID         *uint              `json:"validated_by_id,omitempty"`
	PaymentReceivedAt     *time.Time         `json:"payment_received_at,omitempty"`
	PaymentReceivedByID   *uint              `json:"payment_received_by_id,omitempty"`
	CancellationReason    *string            `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledAt           *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time          `gorm:"default:CURRENT_TIMESTAMP;index:idx_quotes_created_at" json:"created_at"`
	UpdatedAt             time.Time          `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Quote) TableName() string {
	return "quotes"
}

func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.UUID == uuid.Nil {
		q.UUID = uuid.New()
	}
	if q.Status == "" {
		q.Status = QuoteStatusSubmitted
	}
	if q.Currency == "" {
		q.Currency = utils.DefaultCurrency
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = utils.UTCNow()
	}
	return nil
}

// Modes returns the selected transport modes in order
func (q *Quote) Modes() []TransportMode {
	out := make([]TransportMode, 0, len(q.TransportModes))
	for _, m := range q.TransportModes {
		out = append(out, TransportMode(m))
	}
	return out
}

// IsOwnedBy reports whether userID is the owning client
func (q *Quote) IsOwnedBy(userID uint) bool {
	return q.ClientID == userID
}

// IsTerminal reports whether the quote reached a final state
func (q *Quote) IsTerminal() bool {
	return QuoteMachine.IsTerminal(q.Status)
}

// QuoteFilter represents filter criteria for quote queries
type QuoteFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	QuoteNumber   *string
	ClientID      *uint
	CompanyID     *uint
	Status        *QuoteStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	ValidBefore   *time.Time
}
