package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	businessflow "github.com/treebio/treebio/business_flow"
)

type SocialLinkHandler struct {
	flow           businessflow.SocialLinkFlow
	validator      *validator.Validate
	logger         zerolog.Logger
	requestTimeout time.Duration
}

func NewSocialLinkHandler(flow businessflow.SocialLinkFlow, requestTimeout time.Duration, logger zerolog.Logger) *SocialLinkHandler {
	return &SocialLinkHandler{
		flow:           flow,
		validator:      validator.New(),
		logger:         logger.With().Str("handler", "social_link").Logger(),
		requestTimeout: requestTimeout,
	}
}

// @Summary Add social link
// @Tags Social Links
// @Accept json
// @Produce json
// @Param request body dto.SocialLinkRequest true "Social link"
// @Success 201 {object} dto.APIResponse{data=dto.SocialLinkResponse}
// @Router /api/v1/social-links [post]
func (h *SocialLinkHandler) AddSocialLink(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req, errResp := h.bind(c)
	if req == nil {
		return errResp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/social-links", h.requestTimeout)
	defer cancel()

	out, err := h.flow.AddSocialLink(ctx, userID, req)
	if err != nil {
		h.logger.Error().Err(err).Uint("user_id", userID).Msg("add social link failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add social link", "ADD_SOCIAL_LINK_FAILED", nil)
	}
	return SuccessResponse(c, fiber.StatusCreated, "Social link added successfully", out)
}

// @Summary List social links
// @Tags Social Links
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.SocialLinkResponse}
// @Router /api/v1/social-links [get]
func (h *SocialLinkHandler) ListSocialLinks(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/social-links", h.requestTimeout)
	defer cancel()

	out, err := h.flow.ListSocialLinks(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Uint("user_id", userID).Msg("list social links failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list social links", "LIST_SOCIAL_LINKS_FAILED", nil)
	}
	return SuccessResponse(c, fiber.StatusOK, "Social links retrieved successfully", out)
}

// @Summary Update social link
// @Tags Social Links
// @Accept json
// @Produce json
// @Param id path int true "Social link ID"
// @Param request body dto.SocialLinkRequest true "Social link"
// @Success 200 {object} dto.APIResponse{data=dto.SocialLinkResponse}
// @Router /api/v1/social-links/{id} [put]
func (h *SocialLinkHandler) UpdateSocialLink(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid social link ID", "INVALID_SOCIAL_LINK_ID", nil)
	}
	req, errResp := h.bind(c)
	if req == nil {
		return errResp
	}

	ctx, cancel := createRequestContext(c, "/api/v1/social-links/:id", h.requestTimeout)
	defer cancel()

	out, err := h.flow.UpdateSocialLink(ctx, userID, id, req)
	if err != nil {
		return h.socialLinkError(c, err, userID)
	}
	return SuccessResponse(c, fiber.StatusOK, "Social link updated successfully", out)
}

// @Summary Delete social link
// @Tags Social Links
// @Param id path int true "Social link ID"
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/social-links/{id} [delete]
func (h *SocialLinkHandler) DeleteSocialLink(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid social link ID", "INVALID_SOCIAL_LINK_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/social-links/:id", h.requestTimeout)
	defer cancel()

	if err := h.flow.DeleteSocialLink(ctx, userID, id); err != nil {
		return h.socialLinkError(c, err, userID)
	}
	return SuccessResponse(c, fiber.StatusOK, "Social link deleted successfully", nil)
}

// bind returns nil and the written error response when the body is unusable
func (h *SocialLinkHandler) bind(c fiber.Ctx) (*dto.SocialLinkRequest, error) {
	var req dto.SocialLinkRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return nil, ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}
	return &req, nil
}

func (h *SocialLinkHandler) socialLinkError(c fiber.Ctx, err error, userID uint) error {
	if businessflow.IsSocialLinkNotFound(err) {
		return ErrorResponse(c, fiber.StatusNotFound, "Social link not found", "SOCIAL_LINK_NOT_FOUND", nil)
	}
	h.logger.Error().Err(err).Uint("user_id", userID).Msg("social link operation failed")
	return ErrorResponse(c, fiber.StatusInternalServerError, "Social link operation failed", "SOCIAL_LINK_OPERATION_FAILED", nil)
}
