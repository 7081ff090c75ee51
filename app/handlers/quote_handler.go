package handlers

import (
	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// QuoteHandlerInterface defines the quote endpoints
type QuoteHandlerInterface interface {
	Estimate(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	History(c fiber.Ctx) error
	Submit(c fiber.Ctx) error
	Send(c fiber.Ctx) error
	Accept(c fiber.Ctx) error
	Reject(c fiber.Ctx) error
	Expire(c fiber.Ctx) error
	StartTreatment(c fiber.Ctx) error
	Validate(c fiber.Ctx) error
	Cancel(c fiber.Ctx) error
	ChangePaymentMethod(c fiber.Ctx) error
	PaymentReceived(c fiber.Ctx) error
}

// QuoteHandler exposes the quote workflow over HTTP
type QuoteHandler struct {
	baseHandler
	quoteFlow businessflow.QuoteFlow
}

func NewQuoteHandler(quoteFlow businessflow.QuoteFlow) QuoteHandlerInterface {
	return &QuoteHandler{
		baseHandler: newBaseHandler(),
		quoteFlow:   quoteFlow,
	}
}

// Estimate prices a shipment without saving anything
// @Summary Estimate a quote
// @Description Computes the price and delivery window of a shipment from the active pricing configuration
// @Tags Quotes
// @Accept json
// @Produce json
// @Param request body dto.QuoteEstimateRequest true "Route, modes and packages"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteEstimateResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse "No active pricing configuration"
// @Router /api/v1/quotes/estimate [post]
func (h *QuoteHandler) Estimate(c fiber.Ctx) error {
	var req dto.QuoteEstimateRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/estimate")
	defer cancel()

	res, err := h.quoteFlow.EstimateQuote(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, "EstimateQuote", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Estimate computed", res)
}

// Create saves a priced quote for the caller
// @Summary Create a quote
// @Description Prices and saves a quote. With save_as_draft the quote stays editable in DRAFT, otherwise it is submitted.
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateQuoteRequest true "Quote request"
// @Success 201 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) Create(c fiber.Ctx) error {
	var req dto.CreateQuoteRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes")
	defer cancel()

	res, err := h.quoteFlow.CreateQuote(ctx, h.actor(c), &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "CreateQuote", err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Quote created", res)
}

// List returns the caller's quotes, or every quote for staff
// @Summary List quotes
// @Tags Quotes
// @Produce json
// @Security BearerAuth
// @Param status query string false "Quote status"
// @Param client_id query int false "Owner filter (staff only)"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListQuotesResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) List(c fiber.Ctx) error {
	q := newQueryParams(c)
	req := dto.ListQuotesRequest{
		Status:   q.optString("status"),
		ClientID: q.optUint("client_id"),
	}
	req.Page, req.PageSize = q.paging()
	if err := q.err(); err != nil {
		return h.handleFlowError(c, "ListQuotes", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes")
	defer cancel()

	res, err := h.quoteFlow.ListQuotes(ctx, h.actor(c), &req)
	if err != nil {
		return h.handleFlowError(c, "ListQuotes", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Quotes retrieved", res)
}

// Get returns one quote with the actions available to the caller
// @Summary Get a quote
// @Tags Quotes
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid} [get]
func (h *QuoteHandler) Get(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "GetQuote", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/:uuid")
	defer cancel()

	res, err := h.quoteFlow.GetQuote(ctx, h.actor(c), id)
	if err != nil {
		return h.handleFlowError(c, "GetQuote", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Quote retrieved", res)
}

// History lists the recorded transitions of a quote
// @Summary Quote status history
// @Tags Quotes
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.StatusHistoryResponse}
// @Failure 403 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/history [get]
func (h *QuoteHandler) History(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "GetQuoteHistory", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/:uuid/history")
	defer cancel()

	res, err := h.quoteFlow.GetQuoteHistory(ctx, h.actor(c), id)
	if err != nil {
		return h.handleFlowError(c, "GetQuoteHistory", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "History retrieved", res)
}

// Submit moves a draft quote to SUBMITTED
// @Summary Submit a draft quote
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Param request body dto.NoteRequest false "Optional note"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/submit [post]
func (h *QuoteHandler) Submit(c fiber.Ctx) error {
	return noteAction(h.baseHandler, c, "SubmitQuote", "/api/v1/quotes/:uuid/submit", "Quote submitted", h.quoteFlow.SubmitQuote)
}

// Send publishes the quote to its client
// @Summary Send a quote to the client
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Param request body dto.NoteRequest false "Optional note"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/send [post]
func (h *QuoteHandler) Send(c fiber.Ctx) error {
	return noteAction(h.baseHandler, c, "SendQuote", "/api/v1/quotes/:uuid/send", "Quote sent", h.quoteFlow.SendQuote)
}

// Accept records the client's acceptance and payment method
// @Summary Accept a quote
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Param request body dto.AcceptQuoteRequest true "Payment method"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/accept [post]
func (h *QuoteHandler) Accept(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "AcceptQuote", err)
	}
	var req dto.AcceptQuoteRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/:uuid/accept")
	defer cancel()

	res, err := h.quoteFlow.AcceptQuote(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "AcceptQuote", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Quote accepted", res)
}

// Reject records the client's refusal
// @Summary Reject a quote
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Param request body dto.ReasonRequest true "Reason, at least 10 characters"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/reject [post]
func (h *QuoteHandler) Reject(c fiber.Ctx) error {
	return reasonAction(h.baseHandler, c, "RejectQuote", "/api/v1/quotes/:uuid/reject", "Quote rejected", h.quoteFlow.RejectQuote)
}

// Expire closes a sent quote whose validity has lapsed
// @Summary Expire a quote
// @Tags Quotes
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/expire [post]
func (h *QuoteHandler) Expire(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "ExpireQuote", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/:uuid/expire")
	defer cancel()

	res, err := h.quoteFlow.ExpireQuote(ctx, h.actor(c), id, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "ExpireQuote", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Quote expired", res)
}

// StartTreatment hands an accepted quote to operations
// @Summary Start treatment of a quote
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Param request body dto.StartTreatmentRequest false "Optional comment"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/start-treatment [post]
func (h *QuoteHandler) StartTreatment(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "StartTreatment", err)
	}
	var req dto.StartTreatmentRequest
	if ok, err := h.parseOptionalBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/:uuid/start-treatment")
	defer cancel()

	res, err := h.quoteFlow.StartTreatment(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "StartTreatment", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Treatment started", res)
}

// Validate finalizes the quote and registers its shipment
// @Summary Validate a quote
// @Description Validates a quote in treatment and atomically creates its shipment with a tracking number
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Param request body dto.ValidateQuoteRequest true "Package count and cargo description"
// @Success 200 {object} dto.APIResponse{data=dto.ValidateQuoteResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/validate [post]
func (h *QuoteHandler) Validate(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "ValidateQuote", err)
	}
	var req dto.ValidateQuoteRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/:uuid/validate")
	defer cancel()

	res, err := h.quoteFlow.ValidateQuote(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "ValidateQuote", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Quote validated", res)
}

// Cancel withdraws a quote before validation
// @Summary Cancel a quote
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Param request body dto.ReasonRequest true "Reason, at least 10 characters"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/cancel [post]
func (h *QuoteHandler) Cancel(c fiber.Ctx) error {
	return reasonAction(h.baseHandler, c, "CancelQuote", "/api/v1/quotes/:uuid/cancel", "Quote cancelled", h.quoteFlow.CancelQuote)
}

// ChangePaymentMethod replaces the payment method of an accepted quote
// @Summary Change the payment method
// @Tags Quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Param request body dto.ChangePaymentMethodRequest true "New payment method"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/payment-method [put]
func (h *QuoteHandler) ChangePaymentMethod(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "ChangePaymentMethod", err)
	}
	var req dto.ChangePaymentMethodRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/:uuid/payment-method")
	defer cancel()

	res, err := h.quoteFlow.ChangePaymentMethod(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "ChangePaymentMethod", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Payment method updated", res)
}

// PaymentReceived marks the quote as paid
// @Summary Record a payment receipt
// @Tags Quotes
// @Produce json
// @Security BearerAuth
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteDTO}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/quotes/{uuid}/payment-received [post]
func (h *QuoteHandler) PaymentReceived(c fiber.Ctx) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, "RecordPaymentReceived", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/quotes/:uuid/payment-received")
	defer cancel()

	res, err := h.quoteFlow.RecordPaymentReceived(ctx, h.actor(c), id, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "RecordPaymentReceived", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Payment recorded", res)
}
