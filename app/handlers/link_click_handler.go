package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	businessflow "github.com/treebio/treebio/business_flow"
	"github.com/treebio/treebio/utils"
)

// LinkClickHandlerInterface defines the public click-through endpoint
type LinkClickHandlerInterface interface {
	Redirect(c fiber.Ctx) error
}

type LinkClickHandler struct {
	flow   businessflow.ClickFlow
	opts   TrafficOptions
	logger zerolog.Logger
}

func NewLinkClickHandler(flow businessflow.ClickFlow, opts TrafficOptions, logger zerolog.Logger) *LinkClickHandler {
	return &LinkClickHandler{
		flow:   flow,
		opts:   opts,
		logger: logger.With().Str("handler", "link_click").Logger(),
	}
}

// Redirect counts a click and redirects to the link target.
// The redirect happens whenever the link exists, even if recording the click failed.
// @Summary Follow link
// @Tags Links
// @Param id path int true "Link ID"
// @Success 302 {string} string "Redirect"
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /l/{id} [get]
func (h *LinkClickHandler) Redirect(c fiber.Ctx) error {
	linkID, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid link ID", "INVALID_LINK_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/l/:id", h.opts.RequestTimeout)
	defer cancel()

	if h.opts.ExcludeLocal && utils.IsLocalIP(utils.ClientIPFromContext(ctx, nil)) {
		return h.redirectWithoutCounting(c, ctx, linkID)
	}

	res, err := h.flow.LogLinkClick(ctx, linkID, nil)
	if err != nil {
		h.logger.Error().Err(err).Uint("link_id", linkID).Str("code", businessflow.ErrorCode(err)).Msg("failed to record link click")
	}
	if res == nil || res.Path == businessflow.ClickPathSkipped {
		return ErrorResponse(c, fiber.StatusNotFound, "Link not found", "LINK_NOT_FOUND", nil)
	}
	if res.Link == nil {
		// lookup failed; the counter may have moved but there is no target to send the visitor to
		return ErrorResponse(c, fiber.StatusServiceUnavailable, "Link temporarily unavailable", "LINK_UNAVAILABLE", nil)
	}

	return c.Redirect().Status(fiber.StatusFound).To(res.Link.URL)
}

// redirectWithoutCounting serves local traffic without touching analytics
func (h *LinkClickHandler) redirectWithoutCounting(c fiber.Ctx, ctx context.Context, linkID uint) error {
	link, err := h.flow.ResolveLink(ctx, linkID)
	if err != nil {
		h.logger.Error().Err(err).Uint("link_id", linkID).Msg("link lookup failed")
		return ErrorResponse(c, fiber.StatusServiceUnavailable, "Link temporarily unavailable", "LINK_UNAVAILABLE", nil)
	}
	if link == nil {
		return ErrorResponse(c, fiber.StatusNotFound, "Link not found", "LINK_NOT_FOUND", nil)
	}
	return c.Redirect().Status(fiber.StatusFound).To(link.URL)
}
