package handlers

import (
	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// GuestHandlerInterface defines the anonymous submission and invitation endpoints
type GuestHandlerInterface interface {
	Captcha(c fiber.Ctx) error
	CreatePickupRequest(c fiber.Ctx) error
	CreatePurchaseRequest(c fiber.Ctx) error
	TrackRequest(c fiber.Ctx) error
	RegisterProspect(c fiber.Ctx) error
}

type GuestHandler struct {
	baseHandler
	prospectFlow businessflow.ProspectFlow
}

func NewGuestHandler(prospectFlow businessflow.ProspectFlow) GuestHandlerInterface {
	return &GuestHandler{
		baseHandler:  newBaseHandler(),
		prospectFlow: prospectFlow,
	}
}

// Captcha issues a rotate captcha challenge
// @Summary Get a captcha challenge
// @Description Returns a rotate challenge; the solved angle must accompany the next guest submission
// @Tags Guest
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CaptchaChallengeResponse}
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/captcha [get]
func (h *GuestHandler) Captcha(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/captcha")
	defer cancel()

	res, err := h.prospectFlow.GenerateCaptcha(ctx)
	if err != nil {
		return h.handleFlowError(c, "GenerateCaptcha", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Captcha generated", res)
}

// CreatePickupRequest accepts a pickup request from a visitor without an account
// @Summary Guest pickup request
// @Tags Guest
// @Accept json
// @Produce json
// @Param request body dto.GuestPickupRequest true "Captcha answer and pickup details"
// @Success 201 {object} dto.APIResponse{data=dto.GuestSubmissionResponse}
// @Failure 400 {object} dto.APIResponse "Invalid payload or captcha"
// @Router /api/v1/guest/pickup-requests [post]
func (h *GuestHandler) CreatePickupRequest(c fiber.Ctx) error {
	var req dto.GuestPickupRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/guest/pickup-requests")
	defer cancel()

	res, err := h.prospectFlow.GuestCreatePickupRequest(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "GuestCreatePickupRequest", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Pickup request received", res)
}

// CreatePurchaseRequest accepts a purchase request from a visitor without an account
// @Summary Guest purchase request
// @Tags Guest
// @Accept json
// @Produce json
// @Param request body dto.GuestPurchaseRequest true "Captcha answer and purchase details"
// @Success 201 {object} dto.APIResponse{data=dto.GuestSubmissionResponse}
// @Failure 400 {object} dto.APIResponse "Invalid payload or captcha"
// @Router /api/v1/guest/purchase-requests [post]
func (h *GuestHandler) CreatePurchaseRequest(c fiber.Ctx) error {
	var req dto.GuestPurchaseRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/guest/purchase-requests")
	defer cancel()

	res, err := h.prospectFlow.GuestCreatePurchaseRequest(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "GuestCreatePurchaseRequest", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Purchase request received", res)
}

// TrackRequest shows the status timeline of a guest submission
// @Summary Follow a guest request
// @Tags Guest
// @Produce json
// @Param token query string true "Tracking token returned at submission"
// @Success 200 {object} dto.APIResponse{data=dto.GuestRequestView}
// @Failure 401 {object} dto.APIResponse "Token missing, invalid or expired"
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/guest/requests/track [get]
func (h *GuestHandler) TrackRequest(c fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Tracking token is required", "MISSING_TRACKING_TOKEN", nil)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/guest/requests/track")
	defer cancel()

	res, err := h.prospectFlow.GuestTrackRequest(ctx, token)
	if err != nil {
		return h.handleFlowError(c, "GuestTrackRequest", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Request retrieved", res)
}

// RegisterProspect turns an invited prospect into a client account
// @Summary Register from an invitation
// @Description Creates a CLIENT account and attaches every guest request filed with the same email or phone
// @Tags Guest
// @Accept json
// @Produce json
// @Param uuid path string true "Prospect UUID"
// @Param request body dto.RegisterProspectRequest true "Invitation token"
// @Success 201 {object} dto.APIResponse{data=dto.CreateUserResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse "Invitation invalid or expired"
// @Failure 409 {object} dto.APIResponse "Already registered"
// @Router /api/v1/prospects/{uuid}/register [post]
func (h *GuestHandler) RegisterProspect(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "RegisterProspect", err)
	}
	var req dto.RegisterProspectRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/prospects/:uuid/register")
	defer cancel()

	res, err := h.prospectFlow.RegisterProspect(ctx, id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "RegisterProspect", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Account created", res)
}
