package models

import "time"

// TrackingEvent is a checkpoint of a shipment. Coordinates and notes never leave the back office.
type TrackingEvent struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ShipmentID   uint           `gorm:"not null;index:idx_tracking_events_shipment_id" json:"shipment_id"`
	Status       ShipmentStatus `gorm:"type:varchar(20);not null" json:"status"`
	LocationName string         `gorm:"size:255;not null" json:"location_name"`
	Latitude     *float64       `gorm:"type:numeric(9,6)" json:"latitude,omitempty"`
	Longitude    *float64       `gorm:"type:numeric(9,6)" json:"longitude,omitempty"`
	InternalNote *string        `gorm:"type:text" json:"internal_note,omitempty"`
	RecordedByID *uint          `json:"recorded_by_id,omitempty"`
	OccurredAt   time.Time      `gorm:"not null;index:idx_tracking_events_occurred_at" json:"occurred_at"`
	CreatedAt    time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (TrackingEvent) TableName() string {
	return "tracking_events"
}
