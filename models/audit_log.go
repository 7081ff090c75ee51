package models

import (
	"encoding/json"
	"time"
)

// AuditLog records administrative events that are not status transitions
type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ActorID      *uint           `gorm:"index:idx_audit_actor_id" json:"actor_id,omitempty"`
	Actor        *User           `gorm:"foreignKey:ActorID;references:ID" json:"actor,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	EntityType   *string         `gorm:"size:32" json:"entity_type,omitempty"`
	EntityID     *uint           `json:"entity_id,omitempty"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:inet;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb;index:idx_audit_metadata,type:gin" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionPricingConfigUpdated  = "pricing_config_updated"
	AuditActionTransportRateSaved    = "transport_rate_saved"
	AuditActionTransportRateToggled  = "transport_rate_toggled"
	AuditActionTransportRatesImport  = "transport_rates_imported"
	AuditActionPaymentMethodChanged  = "payment_method_changed"
	AuditActionPaymentReceived       = "payment_received"
	AuditActionShipmentCostRecorded  = "shipment_cost_recorded"
	AuditActionUserCreated           = "user_created"
	AuditActionUserRoleChanged       = "user_role_changed"
	AuditActionUserActivated         = "user_activated"
	AuditActionUserDeactivated       = "user_deactivated"
	AuditActionProspectInvited       = "prospect_invited"
	AuditActionProspectRegistered    = "prospect_registered"
	AuditActionBootstrapAdminCreated = "bootstrap_admin_created"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	ActorID       *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
