package handlers

import (
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// TrackingHandlerInterface defines the public tracking endpoint
type TrackingHandlerInterface interface {
	Track(c fiber.Ctx) error
}

type TrackingHandler struct {
	baseHandler
	trackingFlow businessflow.TrackingFlow
}

func NewTrackingHandler(trackingFlow businessflow.TrackingFlow) TrackingHandlerInterface {
	return &TrackingHandler{
		baseHandler:  newBaseHandler(),
		trackingFlow: trackingFlow,
	}
}

// Track returns the public view of a shipment
// @Summary Track a shipment
// @Description Public tracking by number. Unknown and unpublished shipments both answer 404.
// @Tags Tracking
// @Produce json
// @Param trackingNumber path string true "Tracking number, e.g. TRK-20250301-00012"
// @Param lang query string false "Label language (fr or en)" default(fr)
// @Success 200 {object} dto.APIResponse{data=dto.PublicTrackingView}
// @Failure 400 {object} dto.APIResponse "Malformed tracking number"
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/tracking/{trackingNumber} [get]
func (h *TrackingHandler) Track(c fiber.Ctx) error {
	lang := c.Query("lang")
	if lang == "" {
		lang = c.AcceptsLanguages("fr", "en")
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/tracking/:trackingNumber")
	defer cancel()

	view, err := h.trackingFlow.TrackShipment(ctx, c.Params("trackingNumber"), lang)
	if err != nil {
		return h.handleFlowError(c, "TrackShipment", err)
	}
	if view == nil {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Shipment not found", "SHIPMENT_NOT_FOUND", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Shipment found", view)
}
