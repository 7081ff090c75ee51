// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/services"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/amirphl/kargo/models"
	"github.com/gofiber/fiber/v3"
)

const (
	actorLocalKey  = "actor"
	claimsLocalKey = "token_claims"
)

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate rejects requests without a valid access token and stores the caller as an Actor
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, code, message := bearerToken(c.Get("Authorization"))
		if code != "" {
			return unauthorized(c, code, message)
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			code, message := tokenErrorCode(err)
			return unauthorized(c, code, message)
		}

		role, err := models.ParseRole(claims.Role)
		if err != nil {
			return unauthorized(c, "TOKEN_INVALID", "Invalid access token")
		}

		c.Locals(actorLocalKey, businessflow.Actor{UserID: claims.UserID, Role: role, CompanyID: claims.CompanyID})
		c.Locals(claimsLocalKey, claims)
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}

// OptionalAuth attaches the actor when a valid token is present and never rejects the request
func (m *AuthMiddleware) OptionalAuth() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, code, _ := bearerToken(c.Get("Authorization"))
		if code != "" {
			return c.Next()
		}
		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			return c.Next()
		}
		if role, err := models.ParseRole(claims.Role); err == nil {
			c.Locals(actorLocalKey, businessflow.Actor{UserID: claims.UserID, Role: role, CompanyID: claims.CompanyID})
			c.Locals(claimsLocalKey, claims)
		}
		return c.Next()
	}
}

// RequireRoles must run after Authenticate. Callers outside roles get 403.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c fiber.Ctx) error {
		actor, ok := ActorFromCtx(c)
		if !ok {
			return unauthorized(c, "AUTHENTICATION_REQUIRED", "Authentication required")
		}
		if !actor.HasRole(roles...) {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "Insufficient role for this operation",
				Error:   dto.ErrorDetail{Code: "FORBIDDEN"},
			})
		}
		return c.Next()
	}
}

// ActorFromCtx returns the authenticated caller, if any
func ActorFromCtx(c fiber.Ctx) (businessflow.Actor, bool) {
	actor, ok := c.Locals(actorLocalKey).(businessflow.Actor)
	return actor, ok
}

// GetTokenClaimsFromContext extracts the validated access token claims
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals(claimsLocalKey).(*services.TokenClaims)
	return claims, ok
}

func bearerToken(header string) (token, code, message string) {
	if header == "" {
		return "", "MISSING_AUTHORIZATION_HEADER", "Authorization header is required"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'"
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", "MISSING_ACCESS_TOKEN", "Access token is required"
	}
	return token, "", ""
}

func tokenErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		return "TOKEN_EXPIRED", "Access token has expired"
	case errors.Is(err, services.ErrTokenInvalid):
		return "TOKEN_INVALID", "Invalid access token"
	default:
		return "TOKEN_VALIDATION_FAILED", "Token validation failed"
	}
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}
