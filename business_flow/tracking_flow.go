package businessflow

import (
	"context"
	"regexp"
	"strings"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
)

// TrackingFlow serves the public, unauthenticated shipment tracking view
type TrackingFlow interface {
	TrackShipment(ctx context.Context, trackingNumber, lang string) (*dto.PublicTrackingView, error)
}

// TrackingFlowImpl implements the public tracking flow
type TrackingFlowImpl struct {
	shipmentRepo repository.ShipmentRepository
	eventRepo    repository.TrackingEventRepository
}

// NewTrackingFlow creates a new tracking flow
func NewTrackingFlow(shipmentRepo repository.ShipmentRepository, eventRepo repository.TrackingEventRepository) TrackingFlow {
	return &TrackingFlowImpl{
		shipmentRepo: shipmentRepo,
		eventRepo:    eventRepo,
	}
}

var trackingNumberPattern = regexp.MustCompile(`^TRK-\d{8}-\d{5}$`)

// NormalizeTrackingNumber trims and upper-cases input and checks its shape
func NormalizeTrackingNumber(raw string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(raw))
	if !trackingNumberPattern.MatchString(n) {
		return "", fieldError("tracking_number", "must look like TRK-YYYYMMDD-NNNNN")
	}
	return n, nil
}

// TrackShipment returns nil, nil for unknown and unpublished shipments so callers
// cannot tell them apart
func (f *TrackingFlowImpl) TrackShipment(ctx context.Context, trackingNumber, lang string) (*dto.PublicTrackingView, error) {
	number, err := NormalizeTrackingNumber(trackingNumber)
	if err != nil {
		return nil, err
	}

	s, err := f.shipmentRepo.ByTrackingNumber(ctx, number)
	if err != nil {
		logSystemError(ctx, "TrackShipment", err)
		return nil, NewBusinessError("SHIPMENT_LOAD_FAILED", "Failed to load shipment", err)
	}
	if s == nil || !s.Status.IsPublished() {
		return nil, nil
	}

	events, err := f.eventRepo.ListByShipment(ctx, s.ID)
	if err != nil {
		logSystemError(ctx, "TrackShipment", err)
		return nil, NewBusinessError("TRACKING_EVENT_LOAD_FAILED", "Failed to load tracking events", err)
	}
	return ToPublicView(s, events, lang), nil
}

// ToPublicView strips everything internal from a shipment: costs, notes, coordinates,
// client identity and staff references never appear. Draft shipments have no public view.
func ToPublicView(s *models.Shipment, events []*models.TrackingEvent, lang string) *dto.PublicTrackingView {
	if s == nil || !s.Status.IsPublished() {
		return nil
	}
	view := &dto.PublicTrackingView{
		TrackingNumber:     s.TrackingNumber,
		Status:             string(s.Status),
		StatusLabel:        StatusLabel(s.Status, lang),
		OriginCountry:      s.OriginCountry,
		DestinationCountry: s.DestinationCountry,
		TransportMode:      string(s.TransportMode),
		Cargo: dto.PublicCargoSummary{
			PackageCount: s.PackageCount,
			Description:  s.CargoDescription,
			TotalWeight:  s.TotalWeight,
		},
		Events: make([]dto.PublicTrackingEvent, 0, len(events)),
	}
	for _, e := range events {
		view.Events = append(view.Events, dto.PublicTrackingEvent{
			Location:   e.LocationName,
			OccurredAt: formatTime(e.OccurredAt),
		})
	}
	return view
}

var statusLabels = map[string]map[models.ShipmentStatus]string{
	"fr": {
		models.ShipmentStatusDraft:          "Brouillon",
		models.ShipmentStatusRegistered:     "Enregistré",
		models.ShipmentStatusInTransit:      "En transit",
		models.ShipmentStatusAtCustoms:      "En douane",
		models.ShipmentStatusOutForDelivery: "En cours de livraison",
		models.ShipmentStatusDelivered:      "Livré",
		models.ShipmentStatusCancelled:      "Annulé",
	},
	"en": {
		models.ShipmentStatusDraft:          "Draft",
		models.ShipmentStatusRegistered:     "Registered",
		models.ShipmentStatusInTransit:      "In transit",
		models.ShipmentStatusAtCustoms:      "At customs",
		models.ShipmentStatusOutForDelivery: "Out for delivery",
		models.ShipmentStatusDelivered:      "Delivered",
		models.ShipmentStatusCancelled:      "Cancelled",
	},
}

// StatusLabel returns the display label of status in lang. French is the default.
func StatusLabel(status models.ShipmentStatus, lang string) string {
	labels, ok := statusLabels[strings.ToLower(strings.TrimSpace(lang))]
	if !ok {
		labels = statusLabels["fr"]
	}
	if l, ok := labels[status]; ok {
		return l
	}
	return string(status)
}
