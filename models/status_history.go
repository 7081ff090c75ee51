package models

import (
	"encoding/json"
	"time"
)

// StatusHistory is one immutable row per workflow transition. The table rejects UPDATE and DELETE.
type StatusHistory struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	EntityType EntityType      `gorm:"type:varchar(32);not null;index:idx_status_history_entity,priority:1" json:"entity_type"`
	EntityID   uint            `gorm:"not null;index:idx_status_history_entity,priority:2" json:"entity_id"`
	Action     string          `gorm:"size:32;not null" json:"action"`
	OldStatus  string          `gorm:"size:32;not null" json:"old_status"`
	NewStatus  string          `gorm:"size:32;not null" json:"new_status"`
	ActorID    *uint           `gorm:"index:idx_status_history_actor_id" json:"actor_id,omitempty"`
	ActorRole  *string         `gorm:"size:32" json:"actor_role,omitempty"`
	Note       *string         `gorm:"type:text" json:"note,omitempty"`
	Metadata   json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	RequestID  *string         `gorm:"size:255" json:"request_id,omitempty"`
	CreatedAt  time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_status_history_created_at" json:"created_at"`
}

func (StatusHistory) TableName() string {
	return "status_history"
}

// StatusHistoryFilter represents filter criteria for status history queries
type StatusHistoryFilter struct {
	EntityType *EntityType
	EntityID   *uint
	ActorID    *uint
}
