package handlers

import (
	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// PurchaseRequestHandlerInterface defines the purchase request endpoints
type PurchaseRequestHandlerInterface interface {
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	History(c fiber.Ctx) error
	StartTreatment(c fiber.Ctx) error
	Complete(c fiber.Ctx) error
	Cancel(c fiber.Ctx) error
}

type PurchaseRequestHandler struct {
	baseHandler
	purchaseFlow businessflow.PurchaseRequestFlow
}

func NewPurchaseRequestHandler(purchaseFlow businessflow.PurchaseRequestFlow) PurchaseRequestHandlerInterface {
	return &PurchaseRequestHandler{
		baseHandler:  newBaseHandler(),
		purchaseFlow: purchaseFlow,
	}
}

// Create files a purchase-on-behalf request for the caller
// @Summary Create a purchase request
// @Tags Purchase Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreatePurchaseRequestRequest true "Product and delivery details"
// @Success 201 {object} dto.APIResponse{data=dto.PurchaseRequestDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/purchase-requests [post]
func (h *PurchaseRequestHandler) Create(c fiber.Ctx) error {
	var req dto.CreatePurchaseRequestRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/purchase-requests")
	defer cancel()

	res, err := h.purchaseFlow.CreatePurchaseRequest(ctx, h.actor(c), &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "CreatePurchaseRequest", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Purchase request created", res)
}

// List returns the caller's purchase requests, or all of them for staff
// @Summary List purchase requests
// @Tags Purchase Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param user_id query int false "Owner filter (staff only)"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListPurchaseRequestsResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/purchase-requests [get]
func (h *PurchaseRequestHandler) List(c fiber.Ctx) error {
	req, err := listRequestsQuery(c)
	if err != nil {
		return h.handleFlowError(c, "ListPurchaseRequests", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/purchase-requests")
	defer cancel()

	res, err := h.purchaseFlow.ListPurchaseRequests(ctx, h.actor(c), req)
	if err != nil {
		return h.handleFlowError(c, "ListPurchaseRequests", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Purchase requests retrieved", res)
}

// Get returns one purchase request
// @Summary Get a purchase request
// @Tags Purchase Requests
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Purchase request UUID"
// @Success 200 {object} dto.APIResponse{data=dto.PurchaseRequestDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/purchase-requests/{uuid} [get]
func (h *PurchaseRequestHandler) Get(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "GetPurchaseRequest", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/purchase-requests/:uuid")
	defer cancel()

	res, err := h.purchaseFlow.GetPurchaseRequest(ctx, h.actor(c), id)
	if err != nil {
		return h.handleFlowError(c, "GetPurchaseRequest", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Purchase request retrieved", res)
}

// History lists the recorded transitions of a purchase request
// @Summary Purchase request status history
// @Tags Purchase Requests
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Purchase request UUID"
// @Success 200 {object} dto.APIResponse{data=dto.StatusHistoryResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/purchase-requests/{uuid}/history [get]
func (h *PurchaseRequestHandler) History(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "GetPurchaseRequestHistory", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/purchase-requests/:uuid/history")
	defer cancel()

	res, err := h.purchaseFlow.GetPurchaseRequestHistory(ctx, h.actor(c), id)
	if err != nil {
		return h.handleFlowError(c, "GetPurchaseRequestHistory", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "History retrieved", res)
}

// StartTreatment assigns the purchase to an agent
// @Summary Start treatment of a purchase request
// @Tags Purchase Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Purchase request UUID"
// @Param request body dto.StartTreatmentRequest false "Optional comment"
// @Success 200 {object} dto.APIResponse{data=dto.PurchaseRequestDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/purchase-requests/{uuid}/start-treatment [post]
func (h *PurchaseRequestHandler) StartTreatment(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "StartPurchaseTreatment", err)
	}
	var req dto.StartTreatmentRequest
	if ok, err := h.parseOptionalBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/purchase-requests/:uuid/start-treatment")
	defer cancel()

	res, err := h.purchaseFlow.StartPurchaseTreatment(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "StartPurchaseTreatment", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Treatment started", res)
}

// Complete records the final product and delivery costs; the service fee is derived
// @Summary Complete a purchase request
// @Tags Purchase Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Purchase request UUID"
// @Param request body dto.CompletePurchaseRequest true "Actual costs"
// @Success 200 {object} dto.APIResponse{data=dto.PurchaseRequestDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/purchase-requests/{uuid}/complete [post]
func (h *PurchaseRequestHandler) Complete(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "CompletePurchase", err)
	}
	var req dto.CompletePurchaseRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/purchase-requests/:uuid/complete")
	defer cancel()

	res, err := h.purchaseFlow.CompletePurchase(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "CompletePurchase", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Purchase completed", res)
}

// Cancel withdraws a purchase request
// @Summary Cancel a purchase request
// @Tags Purchase Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Purchase request UUID"
// @Param request body dto.ReasonRequest true "Reason, at least 10 characters"
// @Success 200 {object} dto.APIResponse{data=dto.PurchaseRequestDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/purchase-requests/{uuid}/cancel [post]
func (h *PurchaseRequestHandler) Cancel(c fiber.Ctx) error {
	return reasonAction(h.baseHandler, c, "CancelPurchase", "/api/v1/purchase-requests/:uuid/cancel", "Purchase request cancelled", h.purchaseFlow.CancelPurchase)
}
