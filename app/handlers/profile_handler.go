package handlers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	businessflow "github.com/treebio/treebio/business_flow"
	"github.com/treebio/treebio/utils"
)

type ProfileHandlerInterface interface {
	PublicProfile(c fiber.Ctx) error
	UpdateProfile(c fiber.Ctx) error
}

// TrafficOptions controls how public endpoints record analytics events
type TrafficOptions struct {
	ExcludeLocal    bool
	VisitLogTimeout time.Duration
	RequestTimeout  time.Duration
}

type ProfileHandler struct {
	flow      businessflow.ProfileFlow
	visitFlow businessflow.VisitFlow
	opts      TrafficOptions
	validator *validator.Validate
	logger    zerolog.Logger
}

func NewProfileHandler(flow businessflow.ProfileFlow, visitFlow businessflow.VisitFlow, opts TrafficOptions, logger zerolog.Logger) *ProfileHandler {
	if opts.VisitLogTimeout <= 0 {
		opts.VisitLogTimeout = 5 * time.Second
	}
	return &ProfileHandler{
		flow:      flow,
		visitFlow: visitFlow,
		opts:      opts,
		validator: validator.New(),
		logger:    logger.With().Str("handler", "profile").Logger(),
	}
}

// PublicProfile returns a profile page by username and records the visit in the background
// @Summary Get public profile
// @Tags Profile
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} dto.APIResponse{data=dto.PublicProfileResponse} "Profile retrieved successfully"
// @Failure 404 {object} dto.APIResponse "Profile not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/profiles/{username} [get]
func (h *ProfileHandler) PublicProfile(c fiber.Ctx) error {
	username := c.Params("username")
	ctx, cancel := createRequestContext(c, "/api/v1/profiles/:username", h.opts.RequestTimeout)
	defer cancel()

	profile, err := h.flow.PublicProfile(ctx, username)
	if err != nil {
		if businessflow.IsProfileNotFound(err) {
			return ErrorResponse(c, fiber.StatusNotFound, "Profile not found", "PROFILE_NOT_FOUND", nil)
		}
		h.logger.Error().Err(err).Str("username", username).Msg("public profile lookup failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get profile", "GET_PROFILE_FAILED", nil)
	}

	h.logVisitAsync(ctx, profile.ID)

	return SuccessResponse(c, fiber.StatusOK, "Profile retrieved successfully", profile)
}

// logVisitAsync records the visit without delaying or failing the response
func (h *ProfileHandler) logVisitAsync(reqCtx context.Context, userID uint) {
	if h.opts.ExcludeLocal && utils.IsLocalIP(utils.ClientIPFromContext(reqCtx, nil)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), h.opts.VisitLogTimeout)
	go func() {
		defer cancel()
		if _, err := h.visitFlow.LogProfileVisit(ctx, userID, nil); err != nil {
			h.logger.Error().Err(err).Uint("user_id", userID).Str("code", businessflow.ErrorCode(err)).Msg("failed to log profile visit")
		}
	}()
}

// UpdateProfile updates username and bio of the authenticated user
// @Summary Update profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param request body dto.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Profile updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Username taken"
// @Router /api/v1/profile [put]
func (h *ProfileHandler) UpdateProfile(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.UpdateProfileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/profile", h.opts.RequestTimeout)
	defer cancel()

	user, err := h.flow.UpdateProfile(ctx, userID, &req)
	if err != nil {
		switch {
		case businessflow.IsUsernameTaken(err):
			return ErrorResponse(c, fiber.StatusConflict, "Username is already taken", "USERNAME_TAKEN", nil)
		case businessflow.IsUserNotFound(err):
			return ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		case businessflow.ErrorCode(err) == "PROFILE_UPDATE_EMPTY", businessflow.ErrorCode(err) == "INVALID_USERNAME":
			return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), businessflow.ErrorCode(err), nil)
		}
		h.logger.Error().Err(err).Uint("user_id", userID).Msg("profile update failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update profile", "PROFILE_UPDATE_FAILED", nil)
	}

	return SuccessResponse(c, fiber.StatusOK, "Profile updated successfully", user)
}
