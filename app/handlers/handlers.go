// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/middleware"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: NewValidator()}
}

// NewValidator returns a validator that reports json field names and knows the freight enums
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("country_code", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if len(s) != 2 {
			return false
		}
		for _, r := range s {
			if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
				return false
			}
		}
		return true
	})
	_ = v.RegisterValidation("transport_mode", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTransportMode(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("cargo_type", func(fl validator.FieldLevel) bool {
		_, err := models.ParseCargoType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, err := models.ParsePriority(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		_, err := models.ParsePaymentMethod(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, err := models.ParseRole(fl.Field().String())
		return err == nil
	})
	return v
}

func (h baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    code,
			Details: details,
		},
	})
}

func (h baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// createRequestContext derives the flow context of one request. The caller must invoke the cancel func.
func (h baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, defaultRequestTimeout)
}

func (h baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	if actor, ok := middleware.ActorFromCtx(c); ok {
		ctx = businessflow.WithActor(ctx, actor)
	}
	return ctx, cancel
}

func (h baseHandler) clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	md := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	md.SetRequestID(requestID(c))
	return md
}

// actor returns the authenticated caller; routes without auth get the anonymous actor
func (h baseHandler) actor(c fiber.Ctx) businessflow.Actor {
	actor, _ := middleware.ActorFromCtx(c)
	return actor
}

// parseBody binds and validates the JSON body. A non-nil error has already been written to c.
func (h baseHandler) parseBody(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return false, h.validationFailed(c, err)
	}
	return true, nil
}

// parseOptionalBody is parseBody for endpoints whose payload may be omitted
func (h baseHandler) parseOptionalBody(c fiber.Ctx, req any) (bool, error) {
	if len(c.Body()) == 0 {
		return true, nil
	}
	return h.parseBody(c, req)
}

func (h baseHandler) validationFailed(c fiber.Ctx, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	details := make(businessflow.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, businessflow.FieldError{Field: fieldPath(fe), Message: getValidationErrorMessage(fe)})
	}
	return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
}

// handleFlowError maps the business error taxonomy onto HTTP statuses
func (h baseHandler) handleFlowError(c fiber.Ctx, op string, err error) error {
	code, message := "", ""
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		code, message = be.Code, be.Message
	}
	orDefault := func(defCode, defMessage string) (string, string) {
		if code == "" {
			code = defCode
		}
		if message == "" {
			message = defMessage
		}
		return code, message
	}

	switch {
	case businessflow.IsValidation(err):
		code, message = orDefault("VALIDATION_ERROR", "Validation failed")
		return h.ErrorResponse(c, fiber.StatusBadRequest, message, code, businessflow.ValidationDetails(err))
	case businessflow.IsUnauthenticated(err):
		code, message = orDefault("UNAUTHENTICATED", "Authentication required")
		return h.ErrorResponse(c, fiber.StatusUnauthorized, message, code, nil)
	case businessflow.IsForbidden(err):
		code, message = orDefault("FORBIDDEN", "Operation not permitted")
		return h.ErrorResponse(c, fiber.StatusForbidden, message, code, nil)
	case businessflow.IsNotFound(err):
		code, message = orDefault("NOT_FOUND", "Resource not found")
		return h.ErrorResponse(c, fiber.StatusNotFound, message, code, nil)
	case businessflow.IsStateConflict(err):
		code, message = orDefault("STATE_CONFLICT", "Action not allowed in the current status")
		return h.ErrorResponse(c, fiber.StatusConflict, message, code, businessflow.StateConflictDetails(err))
	case businessflow.IsEmailAlreadyExists(err), businessflow.IsProspectAlreadyConverted(err):
		code, message = orDefault("CONFLICT", "Resource already exists")
		return h.ErrorResponse(c, fiber.StatusConflict, message, code, nil)
	case businessflow.IsPricingConfigMissing(err):
		code, message = orDefault("PRICING_UNAVAILABLE", "Pricing is not configured")
		return h.ErrorResponse(c, fiber.StatusServiceUnavailable, message, code, nil)
	}

	log.Printf(`{"level":"error","op":%q,"request_id":%q,"path":%q,"error":%q}`, op, requestID(c), c.Path(), err.Error())
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", code, nil)
}

func (h baseHandler) uuidParam(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, businessflow.NewBusinessError("INVALID_UUID", "Invalid identifier", businessflow.ValidationErrors{{Field: name, Message: "must be a UUID"}})
	}
	return id, nil
}

func (h baseHandler) idParam(c fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, businessflow.NewBusinessError("INVALID_ID", "Invalid identifier", businessflow.ValidationErrors{{Field: name, Message: "must be a positive integer"}})
	}
	return uint(id), nil
}

// queryParams reads typed query parameters and collects every malformed one
type queryParams struct {
	c    fiber.Ctx
	errs businessflow.ValidationErrors
}

func newQueryParams(c fiber.Ctx) *queryParams {
	return &queryParams{c: c}
}

func (q *queryParams) optString(key string) *string {
	v := strings.TrimSpace(q.c.Query(key))
	if v == "" {
		return nil
	}
	return &v
}

func (q *queryParams) optUint(key string) *uint {
	raw := strings.TrimSpace(q.c.Query(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		q.errs.Add(key, "must be a non-negative integer")
		return nil
	}
	u := uint(v)
	return &u
}

func (q *queryParams) optBool(key string) *bool {
	raw := strings.TrimSpace(q.c.Query(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.errs.Add(key, "must be true or false")
		return nil
	}
	return &v
}

func (q *queryParams) paging() (page, pageSize uint) {
	return utils.Deref(q.optUint("page")), utils.Deref(q.optUint("page_size"))
}

func (q *queryParams) err() error {
	if len(q.errs) == 0 {
		return nil
	}
	return businessflow.NewBusinessError("INVALID_QUERY", "Invalid query parameters", q.errs)
}

type noteFunc[T any] func(ctx context.Context, actor businessflow.Actor, id uuid.UUID, note *string, md *businessflow.ClientMetadata) (T, error)

type reasonFunc[T any] func(ctx context.Context, actor businessflow.Actor, id uuid.UUID, req *dto.ReasonRequest, md *businessflow.ClientMetadata) (T, error)

// noteAction runs a transition whose only payload is an optional note
func noteAction[T any](h baseHandler, c fiber.Ctx, op, endpoint, message string, fn noteFunc[T]) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, op, err)
	}
	var req dto.NoteRequest
	if ok, err := h.parseOptionalBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, endpoint)
	defer cancel()

	res, err := fn(ctx, h.actor(c), id, req.Note, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, op, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, res)
}

// reasonAction runs a reject or cancel transition, which requires a reason
func reasonAction[T any](h baseHandler, c fiber.Ctx, op, endpoint, message string, fn reasonFunc[T]) error {
	id, err := h.uuidParam(c, "uuid")
	if err != nil {
		return h.handleFlowError(c, op, err)
	}
	var req dto.ReasonRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, endpoint)
	defer cancel()

	res, err := fn(ctx, h.actor(c), id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, op, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, res)
}

func requestID(c fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok && id != "" {
		return id
	}
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	return c.GetRespHeader("X-Request-ID")
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "url":
		return err.Field() + " must be a valid URL"
	case "min":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", err.Field(), err.Param())
		}
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	case "country_code":
		return err.Field() + " must be an ISO 3166-1 alpha-2 country code"
	case "transport_mode":
		return err.Field() + " must be one of: ROAD SEA AIR RAIL"
	case "cargo_type":
		return err.Field() + " is not a known cargo type"
	case "priority":
		return err.Field() + " is not a known priority"
	case "payment_method":
		return err.Field() + " is not a supported payment method"
	case "role":
		return err.Field() + " must be one of: ADMIN OPERATIONS_MANAGER FINANCE_MANAGER CLIENT"
	default:
		return err.Field() + " is invalid"
	}
}
