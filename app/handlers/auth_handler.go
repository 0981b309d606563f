package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/app/middleware"
	businessflow "github.com/treebio/treebio/business_flow"
)

// AuthHandlerInterface defines the contract for identity handlers
type AuthHandlerInterface interface {
	Onboard(c fiber.Ctx) error
	Me(c fiber.Ctx) error
}

// AuthHandler links identity provider subjects to local users
type AuthHandler struct {
	flow           businessflow.ProfileFlow
	logger         zerolog.Logger
	requestTimeout time.Duration
}

func NewAuthHandler(flow businessflow.ProfileFlow, requestTimeout time.Duration, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		flow:           flow,
		logger:         logger.With().Str("handler", "auth").Logger(),
		requestTimeout: requestTimeout,
	}
}

// Onboard creates or refreshes the local user of the authenticated subject
// @Summary Onboard user
// @Description Upsert the local user from the verified identity token claims
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "User onboarded"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/onboard [post]
func (h *AuthHandler) Onboard(c fiber.Ctx) error {
	claims, ok := c.Locals(middleware.LocalIdentityClaims).(*dto.IdentityClaims)
	if !ok || claims == nil {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Identity claims not found in context", "MISSING_IDENTITY", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auth/onboard", h.requestTimeout)
	defer cancel()

	user, err := h.flow.Onboard(ctx, claims)
	if err != nil {
		if businessflow.ErrorCode(err) == "EXTERNAL_ID_REQUIRED" {
			return ErrorResponse(c, fiber.StatusBadRequest, "Identity subject is required", "EXTERNAL_ID_REQUIRED", nil)
		}
		h.logger.Error().Err(err).Msg("onboarding failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Onboarding failed", "ONBOARD_FAILED", nil)
	}

	return SuccessResponse(c, fiber.StatusOK, "User onboarded successfully", user)
}

// Me returns the authenticated user
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "User retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/me [get]
func (h *AuthHandler) Me(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/me", h.requestTimeout)
	defer cancel()

	user, err := h.flow.Me(ctx, userID)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		}
		h.logger.Error().Err(err).Uint("user_id", userID).Msg("user lookup failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get user", "GET_USER_FAILED", nil)
	}

	return SuccessResponse(c, fiber.StatusOK, "User retrieved successfully", user)
}
