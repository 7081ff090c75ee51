package handlers

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminPricingHandlerInterface defines the pricing configuration and route rate endpoints
type AdminPricingHandlerInterface interface {
	GetPricingConfig(c fiber.Ctx) error
	UpdatePricingConfig(c fiber.Ctx) error
	ListPricingConfigVersions(c fiber.Ctx) error
	ListTransportRates(c fiber.Ctx) error
	SaveTransportRate(c fiber.Ctx) error
	SetTransportRateActive(c fiber.Ctx) error
	ImportTransportRates(c fiber.Ctx) error
	ExportTransportRates(c fiber.Ctx) error
}

type AdminPricingHandler struct {
	baseHandler
	pricingFlow businessflow.PricingConfigFlow
	rateFlow    businessflow.TransportRateFlow
}

func NewAdminPricingHandler(pricingFlow businessflow.PricingConfigFlow, rateFlow businessflow.TransportRateFlow) AdminPricingHandlerInterface {
	return &AdminPricingHandler{
		baseHandler: newBaseHandler(),
		pricingFlow: pricingFlow,
		rateFlow:    rateFlow,
	}
}

// GetPricingConfig returns the active pricing configuration
// @Summary Get the active pricing configuration
// @Tags Admin Pricing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.PricingConfigResponse}
// @Failure 403 {object} dto.APIResponse
// @Failure 503 {object} dto.APIResponse
// @Router /api/v1/admin/pricing-config [get]
func (h *AdminPricingHandler) GetPricingConfig(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/pricing-config")
	defer cancel()

	res, err := h.pricingFlow.AdminGetPricingConfig(ctx, h.actor(c))
	if err != nil {
		return h.handleFlowError(c, "AdminGetPricingConfig", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pricing configuration retrieved", res)
}

// UpdatePricingConfig publishes a new configuration version
// @Summary Update the pricing configuration
// @Description Creates a new active version. expected_version guards against concurrent edits.
// @Tags Admin Pricing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdatePricingConfigRequest true "Full configuration"
// @Success 200 {object} dto.APIResponse{data=dto.PricingConfigResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "Stale expected_version"
// @Router /api/v1/admin/pricing-config [put]
func (h *AdminPricingHandler) UpdatePricingConfig(c fiber.Ctx) error {
	var req dto.UpdatePricingConfigRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/pricing-config")
	defer cancel()

	res, err := h.pricingFlow.AdminUpdatePricingConfig(ctx, h.actor(c), &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "AdminUpdatePricingConfig", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pricing configuration updated", res)
}

// ListPricingConfigVersions lists past configuration versions
// @Summary List pricing configuration versions
// @Tags Admin Pricing
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListPricingConfigVersionsResponse}
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/pricing-config/versions [get]
func (h *AdminPricingHandler) ListPricingConfigVersions(c fiber.Ctx) error {
	q := newQueryParams(c)
	var req dto.ListPricingConfigVersionsRequest
	req.Page, req.PageSize = q.paging()
	if err := q.err(); err != nil {
		return h.handleFlowError(c, "AdminListPricingConfigVersions", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/pricing-config/versions")
	defer cancel()

	res, err := h.pricingFlow.AdminListPricingConfigVersions(ctx, h.actor(c), &req)
	if err != nil {
		return h.handleFlowError(c, "AdminListPricingConfigVersions", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Versions retrieved", res)
}

// ListTransportRates lists route rates
// @Summary List transport rates
// @Tags Admin Pricing
// @Produce json
// @Security BearerAuth
// @Param origin_country query string false "Origin country"
// @Param destination_country query string false "Destination country"
// @Param transport_mode query string false "Transport mode"
// @Param is_active query bool false "Active filter"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(20)
// @Success 200 {object} dto.APIResponse{data=dto.ListTransportRatesResponse}
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/transport-rates [get]
func (h *AdminPricingHandler) ListTransportRates(c fiber.Ctx) error {
	q := newQueryParams(c)
	req := dto.ListTransportRatesRequest{
		OriginCountry:      q.optString("origin_country"),
		DestinationCountry: q.optString("destination_country"),
		TransportMode:      q.optString("transport_mode"),
		IsActive:           q.optBool("is_active"),
	}
	req.Page, req.PageSize = q.paging()
	if err := q.err(); err != nil {
		return h.handleFlowError(c, "ListTransportRates", err)
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/transport-rates")
	defer cancel()

	res, err := h.rateFlow.ListTransportRates(ctx, h.actor(c), &req)
	if err != nil {
		return h.handleFlowError(c, "ListTransportRates", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Transport rates retrieved", res)
}

// SaveTransportRate creates or replaces the rate of a route and mode
// @Summary Save a transport rate
// @Tags Admin Pricing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SaveTransportRateRequest true "Route rate"
// @Success 200 {object} dto.APIResponse{data=dto.TransportRateDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/transport-rates [post]
func (h *AdminPricingHandler) SaveTransportRate(c fiber.Ctx) error {
	var req dto.SaveTransportRateRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/transport-rates")
	defer cancel()

	res, err := h.rateFlow.SaveTransportRate(ctx, h.actor(c), &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "SaveTransportRate", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Transport rate saved", res)
}

// SetTransportRateActive enables or disables a route rate
// @Summary Toggle a transport rate
// @Tags Admin Pricing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transport rate ID"
// @Param request body dto.SetActiveRequest true "Active flag"
// @Success 200 {object} dto.APIResponse{data=dto.TransportRateDTO}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/admin/transport-rates/{id}/active [patch]
func (h *AdminPricingHandler) SetTransportRateActive(c fiber.Ctx) error {
	id, err := h.idParam(c, "id")
	if err != nil {
		return h.handleFlowError(c, "SetTransportRateActive", err)
	}
	var req dto.SetActiveRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/transport-rates/:id/active")
	defer cancel()

	res, err := h.rateFlow.SetTransportRateActive(ctx, h.actor(c), id, *req.IsActive, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "SetTransportRateActive", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Transport rate updated", res)
}

// ImportTransportRates replaces route rates from an uploaded workbook
// @Summary Import transport rates from xlsx
// @Description Columns: origin_country, destination_country, transport_mode, rate_per_kg, rate_per_m3, notes, is_active. Any bad row rejects the whole file.
// @Tags Admin Pricing
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "xlsx workbook"
// @Success 200 {object} dto.APIResponse{data=dto.ImportTransportRatesResponse}
// @Failure 400 {object} dto.APIResponse "Row errors in error.details"
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/transport-rates/import [post]
func (h *AdminPricingHandler) ImportTransportRates(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "INVALID_REQUEST", nil)
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file must be an .xlsx workbook", "INVALID_FILE", nil)
	}
	fh, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "invalid file", "INVALID_FILE", err.Error())
	}
	defer fh.Close()

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/transport-rates/import", 60*time.Second)
	defer cancel()

	res, err := h.rateFlow.ImportTransportRates(ctx, h.actor(c), fh, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, "ImportTransportRates", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ExportTransportRates downloads every route rate as a workbook in the import layout
// @Summary Export transport rates to xlsx
// @Tags Admin Pricing
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "xlsx workbook"
// @Failure 403 {object} dto.APIResponse
// @Router /api/v1/admin/transport-rates/export [get]
func (h *AdminPricingHandler) ExportTransportRates(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/transport-rates/export", 60*time.Second)
	defer cancel()

	filename, data, err := h.rateFlow.ExportTransportRates(ctx, h.actor(c))
	if err != nil {
		return h.handleFlowError(c, "ExportTransportRates", err)
	}
	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
