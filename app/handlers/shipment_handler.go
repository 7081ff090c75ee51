package handlers

import (
	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ShipmentHandlerInterface defines the staff shipment endpoints
type ShipmentHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	History(c fiber.Ctx) error
	AddEvent(c fiber.Ctx) error
	Transition(c fiber.Ctx) error
	RecordActualCost(c fiber.Ctx) error
}

type ShipmentHandler struct {
	baseHandler
	shipmentFlow businessflow.ShipmentFlow
}

func NewShipmentHandler(shipmentFlow businessflow.ShipmentFlow) ShipmentHandlerInterface {
	return &ShipmentHandler{
		baseHandler:  newBaseHandler(),
		shipmentFlow: shipmentFlow,
	}
}

// List returns shipments for staff
// @Summary List shipments
// @Tags Admin Shipments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Shipment status"
// @Param client_id query int false "Client filter"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListShipmentsResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/shipments [get]
func (h *ShipmentHandler) List(c fiber.Ctx) error {
	q := newQueryParams(c)
	req := dto.ListShipmentsRequest{
		Status:   q.optString("status"),
		ClientID: q.optUint("client_id"),
	}
	req.Page, req.PageSize = q.paging()
	if err := q.err(); err != nil {
		return h.handleFlowError(c, "ListShipments", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/shipments")
	defer cancel()

	res, err := h.shipmentFlow.ListShipments(ctx, h.actor(c), &req)
	if err != nil {
		return h.handleFlowError(c, "ListShipments", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Shipments retrieved", res)
}

// Get returns a shipment with its internal details and events
// @Summary Get a shipment
// @Tags Admin Shipments
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Shipment UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ShipmentDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/shipments/{uuid} [get]
func (h *ShipmentHandler) Get(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "GetShipment", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/shipments/:uuid")
	defer cancel()

	res, err := h.shipmentFlow.GetShipment(ctx, h.actor(c), id)
	if err != nil {
		return h.handleFlowError(c, "GetShipment", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Shipment retrieved", res)
}

// History lists the recorded status changes of a shipment
// @Summary Shipment status history
// @Tags Admin Shipments
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Shipment UUID"
// @Success 200 {object} dto.APIResponse{data=dto.StatusHistoryResponse}
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/shipments/{uuid}/history [get]
func (h *ShipmentHandler) History(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "GetShipmentHistory", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/shipments/:uuid/history")
	defer cancel()

	res, err := h.shipmentFlow.GetShipmentHistory(ctx, h.actor(c), id)
	if err != nil {
		return h.handleFlowError(c, "GetShipmentHistory", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "History retrieved", res)
}

// AddEvent records a tracking checkpoint
// @Summary Add a tracking event
// @Description Coordinates and the internal note are stored but never shown on public tracking
// @Tags Admin Shipments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Shipment UUID"
// @Param request body dto.AddTrackingEventRequest true "Checkpoint"
// @Success 201 {object} dto.APIResponse{data=dto.ShipmentDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/shipments/{uuid}/events [post]
func (h *ShipmentHandler) AddEvent(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "AddTrackingEvent", err)
	}
	var req dto.AddTrackingEventRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/shipments/:uuid/events")
	defer cancel()

	res, err := h.shipmentFlow.AddTrackingEvent(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "AddTrackingEvent", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Tracking event recorded", res)
}

// Transition applies a status action to a shipment
// @Summary Change shipment status
// @Tags Admin Shipments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Shipment UUID"
// @Param request body dto.ShipmentTransitionRequest true "Action and optional note"
// @Success 200 {object} dto.APIResponse{data=dto.ShipmentDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/shipments/{uuid}/status [post]
func (h *ShipmentHandler) Transition(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "TransitionShipment", err)
	}
	var req dto.ShipmentTransitionRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/shipments/:uuid/status")
	defer cancel()

	res, err := h.shipmentFlow.TransitionShipment(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "TransitionShipment", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Shipment status updated", res)
}

// RecordActualCost stores the final cost of a shipment
// @Summary Record actual cost
// @Tags Admin Shipments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Shipment UUID"
// @Param request body dto.RecordActualCostRequest true "Actual cost"
// @Success 200 {object} dto.APIResponse{data=dto.ShipmentDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/shipments/{uuid}/actual-cost [put]
func (h *ShipmentHandler) RecordActualCost(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "RecordActualCost", err)
	}
	var req dto.RecordActualCostRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/shipments/:uuid/actual-cost")
	defer cancel()

	res, err := h.shipmentFlow.RecordActualCost(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "RecordActualCost", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Actual cost recorded", res)
}
