package dto

import "time"

// ShipmentDTO is the internal view of a shipment, including costs and notes
type ShipmentDTO struct {
	UUID               string             `json:"uuid"`
	TrackingNumber     string             `json:"tracking_number"`
	QuoteUUID          string             `json:"quote_uuid,omitempty"`
	QuoteNumber        string             `json:"quote_number,omitempty"`
	ClientID           uint               `json:"client_id"`
	Status             string             `json:"status"`
	OriginCountry      string             `json:"origin_country"`
	OriginCity         *string            `json:"origin_city,omitempty"`
	DestinationCountry string             `json:"destination_country"`
	DestinationCity    *string            `json:"destination_city,omitempty"`
	TransportMode      string             `json:"transport_mode"`
	PackageCount       int                `json:"package_count"`
	CargoDescription   *string            `json:"cargo_description,omitempty"`
	TotalWeight        float64            `json:"total_weight"`
	EstimatedCost      float64            `json:"estimated_cost"`
	ActualCost         *float64           `json:"actual_cost,omitempty"`
	Currency           string             `json:"currency"`
	InternalNotes      *string            `json:"internal_notes,omitempty"`
	DeliveredAt        *string            `json:"delivered_at,omitempty"`
	Events             []TrackingEventDTO `json:"events,omitempty"`
	AvailableActions   []string           `json:"available_actions"`
	CreatedAt          string             `json:"created_at"`
	UpdatedAt          string             `json:"updated_at"`
}

// TrackingEventDTO is the internal view of a checkpoint
type TrackingEventDTO struct {
	ID           uint     `json:"id"`
	Status       string   `json:"status"`
	LocationName string   `json:"location_name"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	InternalNote *string  `json:"internal_note,omitempty"`
	RecordedByID *uint    `json:"recorded_by_id,omitempty"`
	OccurredAt   string   `json:"occurred_at"`
}

// ListShipmentsRequest filters shipments
type ListShipmentsRequest struct {
	Status   *string `json:"status,omitempty"`
	ClientID *uint   `json:"client_id,omitempty"`
	Page     uint    `json:"page,omitempty"`
	PageSize uint    `json:"page_size,omitempty"`
}

// ListShipmentsResponse is one page of shipments, newest first
type ListShipmentsResponse struct {
	Items      []ShipmentDTO  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// AddTrackingEventRequest records a checkpoint. The event takes the shipment's current status.
type AddTrackingEventRequest struct {
	LocationName string     `json:"location_name" validate:"required,max=255"`
	Latitude     *float64   `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude    *float64   `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	InternalNote *string    `json:"internal_note,omitempty" validate:"omitempty,max=1000"`
	OccurredAt   *time.Time `json:"occurred_at,omitempty"`
}

// ShipmentTransitionRequest applies a status action to a shipment
type ShipmentTransitionRequest struct {
	Action string  `json:"action" validate:"required,oneof=publish depart hold_at_customs dispatch deliver cancel"`
	Note   *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// RecordActualCostRequest stores the final cost of a shipment
type RecordActualCostRequest struct {
	ActualCost float64 `json:"actual_cost" validate:"gte=0"`
}

// PublicCargoSummary is the cargo part of the public tracking view
type PublicCargoSummary struct {
	PackageCount int     `json:"package_count"`
	Description  *string `json:"description,omitempty"`
	TotalWeight  float64 `json:"total_weight"`
}

// PublicTrackingEvent is a coarse checkpoint: place and time only
type PublicTrackingEvent struct {
	Location   string `json:"location"`
	OccurredAt string `json:"occurred_at"`
}

// PublicTrackingView is what anyone holding a tracking number may see
type PublicTrackingView struct {
	TrackingNumber     string                `json:"tracking_number"`
	Status             string                `json:"status"`
	StatusLabel        string                `json:"status_label"`
	OriginCountry      string                `json:"origin_country"`
	DestinationCountry string                `json:"destination_country"`
	TransportMode      string                `json:"transport_mode"`
	Cargo              PublicCargoSummary    `json:"cargo"`
	Events             []PublicTrackingEvent `json:"events"`
}
