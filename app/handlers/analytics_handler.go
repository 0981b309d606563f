package handlers

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	businessflow "github.com/treebio/treebio/business_flow"
	"github.com/treebio/treebio/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AnalyticsHandlerInterface interface {
	Summary(c fiber.Ctx) error
	Overview(c fiber.Ctx) error
	DailyVisits(c fiber.Ctx) error
	RecentVisitors(c fiber.Ctx) error
	TopLinks(c fiber.Ctx) error
	LinkAnalytics(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// AnalyticsLimits bounds query parameters accepted by dashboard endpoints
type AnalyticsLimits struct {
	RecentVisitors int
	TopLinks       int
	MaxDays        int
	DefaultDays    int
	RequestTimeout time.Duration
}

// AnalyticsHandler serves the owner's dashboard. Aggregation failures are logged and
// answered with zero-valued data so the dashboard still renders.
type AnalyticsHandler struct {
	flow     businessflow.AnalyticsFlow
	exporter businessflow.AnalyticsExportFlow
	limits   AnalyticsLimits
	now      businessflow.Clock
	logger   zerolog.Logger
}

func NewAnalyticsHandler(
	flow businessflow.AnalyticsFlow,
	exporter businessflow.AnalyticsExportFlow,
	limits AnalyticsLimits,
	logger zerolog.Logger,
) *AnalyticsHandler {
	if limits.RecentVisitors <= 0 {
		limits.RecentVisitors = utils.DefaultRecentVisitorsLimit
	}
	if limits.TopLinks <= 0 {
		limits.TopLinks = utils.DefaultTopLinksLimit
	}
	if limits.MaxDays <= 0 {
		limits.MaxDays = utils.DefaultMaxAnalyticsDays
	}
	if limits.DefaultDays <= 0 || limits.DefaultDays > limits.MaxDays {
		limits.DefaultDays = min(utils.DefaultAnalyticsDays, limits.MaxDays)
	}
	return &AnalyticsHandler{
		flow:     flow,
		exporter: exporter,
		limits:   limits,
		now:      utils.UTCNow,
		logger:   logger.With().Str("handler", "analytics").Logger(),
	}
}

// Summary returns the cached dashboard summary
// @Summary Analytics summary
// @Tags Analytics
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.AnalyticsSummary}
// @Router /api/v1/analytics/summary [get]
func (h *AnalyticsHandler) Summary(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/summary", h.limits.RequestTimeout)
	defer cancel()

	summary, err := h.flow.AnalyticsSummary(ctx, userID)
	h.logReadError(err, userID, "summary")
	return SuccessResponse(c, fiber.StatusOK, "Analytics summary retrieved successfully", summary)
}

// Overview returns the summary plus per-link click analytics
// @Summary Analytics overview
// @Tags Analytics
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.UserAnalytics}
// @Router /api/v1/analytics/overview [get]
func (h *AnalyticsHandler) Overview(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/overview", h.limits.RequestTimeout)
	defer cancel()

	overview, err := h.flow.UserAnalytics(ctx, userID)
	h.logReadError(err, userID, "overview")
	return SuccessResponse(c, fiber.StatusOK, "Analytics retrieved successfully", overview)
}

// DailyVisits returns a gap-filled daily visit series
// @Summary Daily profile visits
// @Tags Analytics
// @Produce json
// @Param days query int false "Window in days"
// @Success 200 {object} dto.APIResponse{data=[]dto.DailyCount}
// @Failure 400 {object} dto.APIResponse "Invalid days"
// @Router /api/v1/analytics/visits [get]
func (h *AnalyticsHandler) DailyVisits(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	days, ok := h.days(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, businessflow.ErrInvalidDays.Error(), "INVALID_DAYS", fiber.Map{"max_days": h.limits.MaxDays})
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/visits", h.limits.RequestTimeout)
	defer cancel()

	series, err := h.flow.DailyVisits(ctx, userID, days)
	h.logReadError(err, userID, "daily_visits")
	return SuccessResponse(c, fiber.StatusOK, "Daily visits retrieved successfully", businessflow.FillMissingDates(series, days, h.now()))
}

// RecentVisitors returns the newest visits first
// @Summary Recent visitors
// @Tags Analytics
// @Produce json
// @Param limit query int false "Maximum entries"
// @Success 200 {object} dto.APIResponse{data=[]dto.RecentVisitor}
// @Router /api/v1/analytics/visits/recent [get]
func (h *AnalyticsHandler) RecentVisitors(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	limit, err := queryInt(c, "limit", h.limits.RecentVisitors)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_LIMIT", nil)
	}
	limit = min(limit, h.limits.RecentVisitors)

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/visits/recent", h.limits.RequestTimeout)
	defer cancel()

	visitors, err := h.flow.RecentVisitors(ctx, userID, limit)
	h.logReadError(err, userID, "recent_visitors")
	return SuccessResponse(c, fiber.StatusOK, "Recent visitors retrieved successfully", visitors)
}

// TopLinks ranks the user's links by click count
// @Summary Top links
// @Tags Analytics
// @Produce json
// @Param limit query int false "Maximum entries"
// @Success 200 {object} dto.APIResponse{data=[]dto.TopLink}
// @Router /api/v1/analytics/links/top [get]
func (h *AnalyticsHandler) TopLinks(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	limit, err := queryInt(c, "limit", h.limits.TopLinks)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_LIMIT", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/links/top", h.limits.RequestTimeout)
	defer cancel()

	links, err := h.flow.TopLinks(ctx, userID, limit)
	h.logReadError(err, userID, "top_links")
	return SuccessResponse(c, fiber.StatusOK, "Top links retrieved successfully", links)
}

// LinkAnalytics returns click analytics of one owned link
// @Summary Link analytics
// @Tags Analytics
// @Produce json
// @Param id path int true "Link ID"
// @Param days query int false "Window in days"
// @Success 200 {object} dto.APIResponse{data=dto.LinkClickAnalytics}
// @Failure 404 {object} dto.APIResponse "Link not found"
// @Router /api/v1/analytics/links/{id} [get]
func (h *AnalyticsHandler) LinkAnalytics(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	linkID, err := parseUintParam(c, "id")
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid link ID", "INVALID_LINK_ID", nil)
	}
	days, ok := h.days(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, businessflow.ErrInvalidDays.Error(), "INVALID_DAYS", fiber.Map{"max_days": h.limits.MaxDays})
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/links/:id", h.limits.RequestTimeout)
	defer cancel()

	out, err := h.flow.LinkAnalytics(ctx, userID, linkID, days)
	if businessflow.IsLinkNotFound(err) || businessflow.IsLinkAccessDenied(err) {
		return ErrorResponse(c, fiber.StatusNotFound, "Link not found", "LINK_NOT_FOUND", nil)
	}
	if out == nil {
		h.logReadError(err, userID, "link_analytics")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load link", "LINK_ANALYTICS_FAILED", nil)
	}
	h.logReadError(err, userID, "link_analytics")
	return SuccessResponse(c, fiber.StatusOK, "Link analytics retrieved successfully", out)
}

// Export streams the user's analytics as an XLSX workbook
// @Summary Export analytics
// @Tags Analytics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param days query int false "Window in days"
// @Success 200 {file} file
// @Router /api/v1/analytics/export [get]
func (h *AnalyticsHandler) Export(c fiber.Ctx) error {
	userID, ok := userIDFromLocals(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	days, ok := h.days(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, businessflow.ErrInvalidDays.Error(), "INVALID_DAYS", fiber.Map{"max_days": h.limits.MaxDays})
	}

	ctx, cancel := createRequestContext(c, "/api/v1/analytics/export", h.limits.RequestTimeout)
	defer cancel()

	filename, data, err := h.exporter.ExportUserAnalytics(ctx, userID, days)
	if err != nil {
		h.logger.Error().Err(err).Uint("user_id", userID).Msg("analytics export failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export analytics", "EXPORT_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Attachment(filename)
	return c.Status(fiber.StatusOK).Send(data)
}

// days parses the days query parameter and checks it against the configured maximum
func (h *AnalyticsHandler) days(c fiber.Ctx) (int, bool) {
	days, err := queryInt(c, "days", h.limits.DefaultDays)
	if err != nil || days > h.limits.MaxDays {
		return 0, false
	}
	return days, true
}

func (h *AnalyticsHandler) logReadError(err error, userID uint, op string) {
	if err == nil {
		return
	}
	h.logger.Error().Err(err).Uint("user_id", userID).Str("op", op).Str("code", businessflow.ErrorCode(err)).Msg("analytics read failed; serving zero values")
}
