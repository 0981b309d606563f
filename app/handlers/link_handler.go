package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	businessflow "github.com/treebio/treebio/business_flow"
)

type LinkHandlerInterface interface {
	CreateLink(c fiber.Ctx) error
	ListLinks(c fiber.Ctx) error
	UpdateLink(c fiber.Ctx) error
	DeleteLink(c fiber.Ctx) error
}

type LinkHandler struct {
	flow           businessflow.LinkFlow
	validator      *validator.Validate
	logger         zerolog.Logger
	requestTimeout time.Duration
}

func NewLinkHandler(flow businessflow.LinkFlow, requestTimeout time.Duration, logger zerolog.Logger) *LinkHandler {
	return &LinkHandler{
		flow:           flow,
		validator:      validator.New(),
		logger:         logger.With().Str("handler", "link").Logger(),
		requestTimeout: requestTimeout,
	}
}

// CreateLink adds a link to the authenticated user's page
// @Summary Create link
// @Tags Links
// @Accept json
// @Produce json
// @Param request body dto.CreateLinkRequest true "Link"
// @Success 201 {object} dto.APIResponse{data=dto.LinkResponse} "Link created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var req dto.CreateLinkRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/links", h.requestTimeout)
	defer cancel()

	link, err := h.flow.CreateLink(ctx, userID, &req)
	if err != nil {
		h.logger.Error().Err(err).Uint("user_id", userID).Msg("create link failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create link", "CREATE_LINK_FAILED", nil)
	}
	return SuccessResponse(c, fiber.StatusCreated, "Link created successfully", link)
}

// ListLinks returns the authenticated user's links
// @Summary List links
// @Tags Links
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.LinkResponse} "Links retrieved"
// @Router /api/v1/links [get]
func (h *LinkHandler) ListLinks(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/links", h.requestTimeout)
	defer cancel()

	links, err := h.flow.ListLinks(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Uint("user_id", userID).Msg("list links failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list links", "LIST_LINKS_FAILED", nil)
	}
	return SuccessResponse(c, fiber.StatusOK, "Links retrieved successfully", links)
}

// UpdateLink replaces title, URL and description of an owned link
// @Summary Update link
// @Tags Links
// @Accept json
// @Produce json
// @Param id path int true "Link ID"
// @Param request body dto.UpdateLinkRequest true "Link"
// @Success 200 {object} dto.APIResponse{data=dto.LinkResponse} "Link updated"
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /api/v1/links/{id} [put]
func (h *LinkHandler) UpdateLink(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	linkID, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid link ID", "INVALID_LINK_ID", nil)
	}

	var req dto.UpdateLinkRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, "/api/v1/links/:id", h.requestTimeout)
	defer cancel()

	link, err := h.flow.UpdateLink(ctx, userID, linkID, &req)
	if err != nil {
		return h.linkError(c, err, userID, linkID)
	}
	return SuccessResponse(c, fiber.StatusOK, "Link updated successfully", link)
}

// DeleteLink removes an owned link together with its click events
// @Summary Delete link
// @Tags Links
// @Param id path int true "Link ID"
// @Success 200 {object} dto.APIResponse "Link deleted"
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /api/v1/links/{id} [delete]
func (h *LinkHandler) DeleteLink(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	linkID, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid link ID", "INVALID_LINK_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/links/:id", h.requestTimeout)
	defer cancel()

	if err := h.flow.DeleteLink(ctx, userID, linkID); err != nil {
		return h.linkError(c, err, userID, linkID)
	}
	return SuccessResponse(c, fiber.StatusOK, "Link deleted successfully", nil)
}

// linkError maps ownership failures to 404 so link IDs of other users are not disclosed
func (h *LinkHandler) linkError(c fiber.Ctx, err error, userID, linkID uint) error {
	if businessflow.IsLinkNotFound(err) || businessflow.IsLinkAccessDenied(err) {
		return ErrorResponse(c, fiber.StatusNotFound, "Link not found", "LINK_NOT_FOUND", nil)
	}
	h.logger.Error().Err(err).Uint("user_id", userID).Uint("link_id", linkID).Msg("link operation failed")
	return ErrorResponse(c, fiber.StatusInternalServerError, "Link operation failed", "LINK_OPERATION_FAILED", nil)
}
