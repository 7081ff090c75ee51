package businessflow

import (
	"time"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/models"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// availableActions lists the actions legal from s that actor is also allowed to perform
func availableActions[S ~string, A ~string](m *models.StateMachine[S, A], entity models.EntityType, s S, order []A, actor Actor, subject Subject) []string {
	out := make([]string, 0, len(order))
	for _, a := range m.AvailableActions(s, order) {
		if Authorize(entity, string(a), actor, subject).Allowed {
			out = append(out, string(a))
		}
	}
	return out
}

func ToPricingConfigResponse(cfg *models.PricingConfig) dto.PricingConfigResponse {
	resp := dto.PricingConfigResponse{
		Version:                    cfg.Version,
		IsActive:                   cfg.IsActive,
		Currency:                   cfg.Currency,
		DefaultRatePerKg:           cfg.DefaultRatePerKg,
		DefaultRatePerM3:           cfg.DefaultRatePerM3,
		VolumetricWeightRatios:     make(map[string]float64, len(cfg.VolumetricWeightRatios)),
		UseVolumetricWeightPerMode: make(map[string]bool, len(cfg.UseVolumetricWeightPerMode)),
		TransportMultipliers:       make(map[string]float64, len(cfg.TransportMultipliers)),
		CargoTypeSurcharges:        make(map[string]float64, len(cfg.CargoTypeSurcharges)),
		PrioritySurcharges:         make(map[string]float64, len(cfg.PrioritySurcharges)),
		DeliverySpeedsPerMode:      make(map[string]dto.DeliverySpeedDTO, len(cfg.DeliverySpeedsPerMode)),
		UpdatedByID:                cfg.UpdatedByID,
		CreatedAt:                  formatTime(cfg.CreatedAt),
		UpdatedAt:                  formatTime(cfg.UpdatedAt),
	}
	for k, v := range cfg.VolumetricWeightRatios {
		resp.VolumetricWeightRatios[string(k)] = v
	}
	for k, v := range cfg.UseVolumetricWeightPerMode {
		resp.UseVolumetricWeightPerMode[string(k)] = v
	}
	for k, v := range cfg.TransportMultipliers {
		resp.TransportMultipliers[string(k)] = v
	}
	for k, v := range cfg.CargoTypeSurcharges {
		resp.CargoTypeSurcharges[string(k)] = v
	}
	for k, v := range cfg.PrioritySurcharges {
		resp.PrioritySurcharges[string(k)] = v
	}
	for k, v := range cfg.DeliverySpeedsPerMode {
		resp.DeliverySpeedsPerMode[string(k)] = dto.DeliverySpeedDTO{Min: v.Min, Max: v.Max}
	}
	return resp
}

func ToTransportRateDTO(r *models.TransportRate) dto.TransportRateDTO {
	return dto.TransportRateDTO{
		ID:                 r.ID,
		OriginCountry:      r.OriginCountry,
		DestinationCountry: r.DestinationCountry,
		TransportMode:      string(r.TransportMode),
		RatePerKg:          r.RatePerKg,
		RatePerM3:          r.RatePerM3,
		Notes:              r.Notes,
		IsActive:           r.IsActive == nil || *r.IsActive,
		UpdatedAt:          formatTime(r.UpdatedAt),
	}
}

func toEstimateLineDTOs(lines []models.QuoteEstimateLine) []dto.EstimateLineDTO {
	out := make([]dto.EstimateLineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, dto.EstimateLineDTO{
			Description:    l.Description,
			Quantity:       l.Quantity,
			CargoType:      string(l.CargoType),
			Weight:         l.Weight,
			BillableWeight: l.BillableWeight,
			RatePerKg:      l.RatePerKg,
			UnitPrice:      l.UnitPrice,
			LineTotal:      l.LineTotal,
		})
	}
	return out
}

func modeStrings(modes []models.TransportMode) []string {
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		out = append(out, string(m))
	}
	return out
}

// ToEstimateResponse exposes a pricing result
func ToEstimateResponse(est *QuoteEstimate) dto.QuoteEstimateResponse {
	return dto.QuoteEstimateResponse{
		Lines:                    toEstimateLineDTOs(est.Lines),
		TransportModes:           modeStrings(est.TransportModes),
		RatingMode:               string(est.RatingMode),
		Priority:                 string(est.Priority),
		PrioritySurcharge:        est.PrioritySurcharge,
		TotalWeight:              est.TotalWeight,
		TotalBillableWeight:      est.TotalBillableWeight,
		TotalPackageCount:        est.TotalPackageCount,
		TotalBeforePriority:      est.TotalBeforePriority,
		TotalPrice:               est.TotalPrice,
		DominantCargoType:        string(est.DominantCargoType),
		EstimatedDeliveryDays:    est.EstimatedDeliveryDays,
		EstimatedDeliveryDaysMin: est.EstimatedDeliveryDaysMin,
		Currency:                 est.Currency,
		PricingConfigVersion:     est.PricingConfigVersion,
	}
}

func quoteSubject(q *models.Quote) Subject {
	return Subject{OwnerID: &q.ClientID, CompanyID: q.CompanyID}
}

// ToQuoteDTO renders q for actor. trackingNumber is set once the quote produced a shipment.
func ToQuoteDTO(q *models.Quote, actor Actor, trackingNumber *string) dto.QuoteDTO {
	packages := make([]dto.PackageLineRequest, 0, len(q.Packages))
	for _, p := range q.Packages {
		packages = append(packages, dto.PackageLineRequest{
			Description: p.Description,
			Quantity:    p.Quantity,
			CargoType:   string(p.CargoType),
			Weight:      p.Weight,
			Length:      p.Length,
			Width:       p.Width,
			Height:      p.Height,
		})
	}

	var paymentMethod *string
	if q.PaymentMethod != nil {
		s := string(*q.PaymentMethod)
		paymentMethod = &s
	}

	return dto.QuoteDTO{
		UUID:                   q.UUID.String(),
		QuoteNumber:            q.QuoteNumber,
		Status:                 string(q.Status),
		ClientID:               q.ClientID,
		CompanyID:              q.CompanyID,
		OriginCountry:          q.OriginCountry,
		OriginCity:             q.OriginCity,
		DestinationCountry:     q.DestinationCountry,
		DestinationCity:        q.DestinationCity,
		TransportModes:         []string(q.TransportModes),
		Priority:               string(q.Priority),
		Packages:               packages,
		Lines:                  toEstimateLineDTOs(q.EstimateLines),
		TotalWeight:            q.TotalWeight,
		TotalPackageCount:      q.TotalPackageCount,
		DominantCargoType:      string(q.DominantCargoType),
		TotalBeforePriority:    q.TotalBeforePriority,
		EstimatedCost:          q.EstimatedCost,
		EstimatedDeliveryDays:  q.EstimatedDeliveryDays,
		Currency:               q.Currency,
		PricingConfigVersion:   q.PricingConfigVersion,
		PaymentMethod:          paymentMethod,
		SentAt:                 formatTimePtr(q.SentAt),
		ValidUntil:             formatTimePtr(q.ValidUntil),
		AcceptedAt:             formatTimePtr(q.AcceptedAt),
		RejectionReason:        q.RejectionReason,
		TreatmentStartedAt:     formatTimePtr(q.TreatmentStartedAt),
		TreatmentComment:       q.TreatmentComment,
		ValidatedAt:            formatTimePtr(q.ValidatedAt),
		PaymentReceivedAt:      formatTimePtr(q.PaymentReceivedAt),
		CancellationReason:     q.CancellationReason,
		CancelledAt:            formatTimePtr(q.CancelledAt),
		ShipmentTrackingNumber: trackingNumber,
		AvailableActions:       availableActions(models.QuoteMachine, models.EntityTypeQuote, q.Status, models.QuoteActions, actor, quoteSubject(q)),
		CreatedAt:              formatTime(q.CreatedAt),
		UpdatedAt:              formatTime(q.UpdatedAt),
	}
}

func ToTrackingEventDTO(e *models.TrackingEvent) dto.TrackingEventDTO {
	return dto.TrackingEventDTO{
		ID:           e.ID,
		Status:       string(e.Status),
		LocationName: e.LocationName,
		Latitude:     e.Latitude,
		Longitude:    e.Longitude,
		InternalNote: e.InternalNote,
		RecordedByID: e.RecordedByID,
		OccurredAt:   formatTime(e.OccurredAt),
	}
}

// ToShipmentDTO renders the internal view of s. events may be nil for listings.
func ToShipmentDTO(s *models.Shipment, events []*models.TrackingEvent, actor Actor) dto.ShipmentDTO {
	out := dto.ShipmentDTO{
		UUID:               s.UUID.String(),
		TrackingNumber:     s.TrackingNumber,
		ClientID:           s.ClientID,
		Status:             string(s.Status),
		OriginCountry:      s.OriginCountry,
		OriginCity:         s.OriginCity,
		DestinationCountry: s.DestinationCountry,
		DestinationCity:    s.DestinationCity,
		TransportMode:      string(s.TransportMode),
		PackageCount:       s.PackageCount,
		CargoDescription:   s.CargoDescription,
		TotalWeight:        s.TotalWeight,
		EstimatedCost:      s.EstimatedCost,
		ActualCost:         s.ActualCost,
		Currency:           s.Currency,
		InternalNotes:      s.InternalNotes,
		DeliveredAt:        formatTimePtr(s.DeliveredAt),
		AvailableActions:   availableActions(models.ShipmentMachine, models.EntityTypeShipment, s.Status, models.ShipmentActions, actor, Subject{OwnerID: &s.ClientID}),
		CreatedAt:          formatTime(s.CreatedAt),
		UpdatedAt:          formatTime(s.UpdatedAt),
	}
	if s.Quote != nil {
		out.QuoteUUID = s.Quote.UUID.String()
		out.QuoteNumber = s.Quote.QuoteNumber
	}
	if events != nil {
		out.Events = make([]dto.TrackingEventDTO, 0, len(events))
		for _, e := range events {
			out.Events = append(out.Events, ToTrackingEventDTO(e))
		}
	}
	return out
}

func ToPickupRequestDTO(p *models.PickupRequest, actor Actor) dto.PickupRequestDTO {
	return dto.PickupRequestDTO{
		UUID:               p.UUID.String(),
		RequestNumber:      p.RequestNumber,
		Status:             string(p.Status),
		UserID:             p.UserID,
		ContactName:        p.ContactName,
		ContactEmail:       p.ContactEmail,
		ContactPhone:       p.ContactPhone,
		PickupAddress:      p.PickupAddress,
		PickupCity:         p.PickupCity,
		PickupCountry:      p.PickupCountry,
		DestinationCountry: p.DestinationCountry,
		CargoDescription:   p.CargoDescription,
		CargoType:          string(p.CargoType),
		PackageCount:       p.PackageCount,
		EstimatedWeight:    p.EstimatedWeight,
		PreferredDate:      formatTimePtr(p.PreferredDate),
		ScheduledDate:      formatTimePtr(p.ScheduledDate),
		CompletedAt:        formatTimePtr(p.CompletedAt),
		CancellationReason: p.CancellationReason,
		CancelledAt:        formatTimePtr(p.CancelledAt),
		AvailableActions:   availableActions(models.PickupMachine, models.EntityTypePickupRequest, p.Status, models.PickupActions, actor, Subject{OwnerID: p.UserID}),
		CreatedAt:          formatTime(p.CreatedAt),
		UpdatedAt:          formatTime(p.UpdatedAt),
	}
}

func ToPurchaseRequestDTO(p *models.PurchaseRequest, actor Actor) dto.PurchaseRequestDTO {
	return dto.PurchaseRequestDTO{
		UUID:                 p.UUID.String(),
		RequestNumber:        p.RequestNumber,
		Status:               string(p.Status),
		UserID:               p.UserID,
		ContactName:          p.ContactName,
		ContactEmail:         p.ContactEmail,
		ContactPhone:         p.ContactPhone,
		ProductName:          p.ProductName,
		ProductURL:           p.ProductURL,
		ProductDescription:   p.ProductDescription,
		Quantity:             p.Quantity,
		EstimatedProductCost: p.EstimatedProductCost,
		DeliveryAddress:      p.DeliveryAddress,
		DeliveryCity:         p.DeliveryCity,
		DeliveryCountry:      p.DeliveryCountry,
		ActualProductCost:    p.ActualProductCost,
		DeliveryCost:         p.DeliveryCost,
		ServiceFee:           p.ServiceFee,
		TotalCost:            p.TotalCost,
		Currency:             p.Currency,
		TreatmentStartedAt:   formatTimePtr(p.TreatmentStartedAt),
		TreatmentComment:     p.TreatmentComment,
		DeliveredAt:          formatTimePtr(p.DeliveredAt),
		CancellationReason:   p.CancellationReason,
		CancelledAt:          formatTimePtr(p.CancelledAt),
		AvailableActions:     availableActions(models.PurchaseMachine, models.EntityTypePurchaseRequest, p.Status, models.PurchaseActions, actor, Subject{OwnerID: p.UserID}),
		CreatedAt:            formatTime(p.CreatedAt),
		UpdatedAt:            formatTime(p.UpdatedAt),
	}
}

func ToUserDTO(u *models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:        u.ID,
		UUID:      u.UUID.String(),
		Email:     u.Email,
		Phone:     u.Phone,
		FullName:  u.FullName,
		Role:      string(u.Role),
		RoleLabel: u.Role.DisplayName(),
		CompanyID: u.CompanyID,
		IsActive:  u.IsActive == nil || *u.IsActive,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func ToProspectDTO(p *models.Prospect) dto.ProspectDTO {
	return dto.ProspectDTO{
		UUID:                p.UUID.String(),
		FullName:            p.FullName,
		Email:               p.Email,
		Phone:               p.Phone,
		InvitedAt:           formatTimePtr(p.InvitedAt),
		InvitationExpiresAt: formatTimePtr(p.InvitationExpiresAt),
		ConvertedUserID:     p.ConvertedUserID,
		ConvertedAt:         formatTimePtr(p.ConvertedAt),
		CreatedAt:           formatTime(p.CreatedAt),
	}
}

func ToStatusHistoryItems(rows []*models.StatusHistory) []dto.StatusHistoryItem {
	items := make([]dto.StatusHistoryItem, 0, len(rows))
	for _, r := range rows {
		item := dto.StatusHistoryItem{
			Action:    r.Action,
			OldStatus: r.OldStatus,
			NewStatus: r.NewStatus,
			ActorID:   r.ActorID,
			ActorRole: r.ActorRole,
			Note:      r.Note,
			CreatedAt: formatTime(r.CreatedAt),
		}
		if len(r.Metadata) > 0 {
			item.Metadata = r.Metadata
		}
		items = append(items, item)
	}
	return items
}
