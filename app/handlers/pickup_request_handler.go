package handlers

import (
	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// PickupRequestHandlerInterface defines the pickup request endpoints
type PickupRequestHandlerInterface interface {
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	History(c fiber.Ctx) error
	Schedule(c fiber.Ctx) error
	Complete(c fiber.Ctx) error
	Cancel(c fiber.Ctx) error
}

type PickupRequestHandler struct {
	baseHandler
	pickupFlow businessflow.PickupRequestFlow
}

func NewPickupRequestHandler(pickupFlow businessflow.PickupRequestFlow) PickupRequestHandlerInterface {
	return &PickupRequestHandler{
		baseHandler: newBaseHandler(),
		pickupFlow:  pickupFlow,
	}
}

// Create files a pickup request for the caller
// @Summary Create a pickup request
// @Tags Pickup Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreatePickupRequestRequest true "Pickup details"
// @Success 201 {object} dto.APIResponse{data=dto.PickupRequestDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/pickup-requests [post]
func (h *PickupRequestHandler) Create(c fiber.Ctx) error {
	var req dto.CreatePickupRequestRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/pickup-requests")
	defer cancel()

	res, err := h.pickupFlow.CreatePickupRequest(ctx, h.actor(c), &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "CreatePickupRequest", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Pickup request created", res)
}

// List returns the caller's pickup requests, or all of them for staff
// @Summary List pickup requests
// @Tags Pickup Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param user_id query int false "Owner filter (staff only)"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListPickupRequestsResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/pickup-requests [get]
func (h *PickupRequestHandler) List(c fiber.Ctx) error {
	req, err := listRequestsQuery(c)
	if err != nil {
		return h.handleFlowError(c, "ListPickupRequests", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/pickup-requests")
	defer cancel()

	res, err := h.pickupFlow.ListPickupRequests(ctx, h.actor(c), req)
	if err != nil {
		return h.handleFlowError(c, "ListPickupRequests", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pickup requests retrieved", res)
}

// Get returns one pickup request
// @Summary Get a pickup request
// @Tags Pickup Requests
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Pickup request UUID"
// @Success 200 {object} dto.APIResponse{data=dto.PickupRequestDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/pickup-requests/{uuid} [get]
func (h *PickupRequestHandler) Get(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "GetPickupRequest", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/pickup-requests/:uuid")
	defer cancel()

	res, err := h.pickupFlow.GetPickupRequest(ctx, h.actor(c), id)
	if err != nil {
		return h.handleFlowError(c, "GetPickupRequest", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pickup request retrieved", res)
}

// History lists the recorded transitions of a pickup request
// @Summary Pickup request status history
// @Tags Pickup Requests
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Pickup request UUID"
// @Success 200 {object} dto.APIResponse{data=dto.StatusHistoryResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/pickup-requests/{uuid}/history [get]
func (h *PickupRequestHandler) History(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "GetPickupRequestHistory", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/pickup-requests/:uuid/history")
	defer cancel()

	res, err := h.pickupFlow.GetPickupRequestHistory(ctx, h.actor(c), id)
	if err != nil {
		return h.handleFlowError(c, "GetPickupRequestHistory", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "History retrieved", res)
}

// Schedule fixes the collection date
// @Summary Schedule a pickup
// @Tags Pickup Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Pickup request UUID"
// @Param request body dto.SchedulePickupRequest true "Scheduled date"
// @Success 200 {object} dto.APIResponse{data=dto.PickupRequestDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/pickup-requests/{uuid}/schedule [post]
func (h *PickupRequestHandler) Schedule(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "SchedulePickup", err)
	}
	var req dto.SchedulePickupRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/pickup-requests/:uuid/schedule")
	defer cancel()

	res, err := h.pickupFlow.SchedulePickup(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "SchedulePickup", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pickup scheduled", res)
}

// Complete marks the goods as collected
// @Summary Complete a pickup
// @Tags Pickup Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Pickup request UUID"
// @Param request body dto.NoteRequest false "Optional note"
// @Success 200 {object} dto.APIResponse{data=dto.PickupRequestDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/pickup-requests/{uuid}/complete [post]
func (h *PickupRequestHandler) Complete(c fiber.Ctx) error {
	return noteAction(h.baseHandler, c, "CompletePickup", "/api/v1/pickup-requests/:uuid/complete", "Pickup completed", h.pickupFlow.CompletePickup)
}

// Cancel withdraws a pickup request
// @Summary Cancel a pickup request
// @Tags Pickup Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Pickup request UUID"
// @Param request body dto.ReasonRequest true "Reason, at least 10 characters"
// @Success 200 {object} dto.APIResponse{data=dto.PickupRequestDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/pickup-requests/{uuid}/cancel [post]
func (h *PickupRequestHandler) Cancel(c fiber.Ctx) error {
	return reasonAction(h.baseHandler, c, "CancelPickup", "/api/v1/pickup-requests/:uuid/cancel", "Pickup request cancelled", h.pickupFlow.CancelPickup)
}

func listRequestsQuery(c fiber.Ctx) (*dto.ListRequestsRequest, error) {
	q := newQueryParams(c)
	req := &dto.ListRequestsRequest{
		Status: q.optString("status"),
		UserID: q.optUint("user_id"),
	}
	req.Page, req.PageSize = q.paging()
	return req, q.err()
}
