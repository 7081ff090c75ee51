package handlers

import (
	"github.com/amirphl/kargo/app/dto"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the session endpoints. Credentials are checked by the
// identity provider; this service only rotates the tokens it issued.
type AuthHandlerInterface interface {
	Refresh(c fiber.Ctx) error
}

type AuthHandler struct {
	baseHandler
	userFlow businessflow.UserFlow
}

func NewAuthHandler(userFlow businessflow.UserFlow) AuthHandlerInterface {
	return &AuthHandler{
		baseHandler: newBaseHandler(),
		userFlow:    userFlow,
	}
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.TokenPairResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse "Token invalid or expired"
// @Failure 403 {object} dto.APIResponse "Account inactive"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if ok, err := h.parseBody(c, &req); !ok {
		return err
	}
	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/refresh")
	defer cancel()

	res, err := h.userFlow.RefreshSession(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, "RefreshSession", err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Session refreshed", res)
}
