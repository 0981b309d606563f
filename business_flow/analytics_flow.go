package businessflow

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/app/services"
	"github.com/treebio/treebio/models"
	"github.com/treebio/treebio/repository"
	"github.com/treebio/treebio/utils"
)

// AnalyticsFlow computes dashboard aggregates over visit and click events.
// Every method is read-only. Subjects without events yield zero-valued results;
// on store failures the zero-valued shape is returned together with the error.
type AnalyticsFlow interface {
	VisitCounts(ctx context.Context, userID uint) (*dto.VisitCounts, error)
	DailyVisits(ctx context.Context, userID uint, days int) ([]dto.DailyCount, error)
	RecentVisitors(ctx context.Context, userID uint, limit int) ([]dto.RecentVisitor, error)
	ClickAnalytics(ctx context.Context, linkID uint) (*dto.ClickAnalytics, error)
	DailyClicks(ctx context.Context, linkID uint, days int) ([]dto.DailyCount, error)
	TopLinks(ctx context.Context, userID uint, limit int) ([]dto.TopLink, error)
	AnalyticsSummary(ctx context.Context, userID uint) (*dto.AnalyticsSummary, error)
	UserAnalytics(ctx context.Context, userID uint) (*dto.UserAnalytics, error)
	// LinkAnalytics is ClickAnalytics plus the daily series, restricted to the link owner
	LinkAnalytics(ctx context.Context, userID, linkID uint, days int) (*dto.LinkClickAnalytics, error)
}

// SummaryInvalidator drops cached summaries after writes that change them
type SummaryInvalidator interface {
	InvalidateSummary(ctx context.Context, userID uint)
}

// Windows reported by VisitCounts and ClickAnalytics
const (
	windowHour  = time.Hour
	windowDay   = 24 * time.Hour
	windowWeek  = 7 * 24 * time.Hour
	windowMonth = 30 * 24 * time.Hour
)

type AnalyticsFlowImpl struct {
	visitRepo repository.ProfileVisitRepository
	clickRepo repository.LinkClickRepository
	linkRepo  repository.LinkRepository
	cache     services.CacheService
	cacheTTL  time.Duration
	now       Clock
	logger    zerolog.Logger
}

type AnalyticsFlowOption func(*AnalyticsFlowImpl)

func WithAnalyticsClock(c Clock) AnalyticsFlowOption {
	return func(f *AnalyticsFlowImpl) { f.now = defaultClock(c) }
}

// WithSummaryCache caches AnalyticsSummary results for ttl; a zero ttl disables caching
func WithSummaryCache(cache services.CacheService, ttl time.Duration) AnalyticsFlowOption {
	return func(f *AnalyticsFlowImpl) {
		f.cache = cache
		f.cacheTTL = ttl
	}
}

func NewAnalyticsFlow(
	visitRepo repository.ProfileVisitRepository,
	clickRepo repository.LinkClickRepository,
	linkRepo repository.LinkRepository,
	logger zerolog.Logger,
	opts ...AnalyticsFlowOption,
) *AnalyticsFlowImpl {
	f := &AnalyticsFlowImpl{
		visitRepo: visitRepo,
		clickRepo: clickRepo,
		linkRepo:  linkRepo,
		now:       utils.UTCNow,
		logger:    logger.With().Str("flow", "analytics").Logger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *AnalyticsFlowImpl) VisitCounts(ctx context.Context, userID uint) (*dto.VisitCounts, error) {
	now := f.now().UTC()
	out := &dto.VisitCounts{TotalFormatted: "0"}

	count := func(after, before *time.Time) (int64, error) {
		return f.visitRepo.Count(ctx, models.ProfileVisitFilter{
			UserID:        &userID,
			VisitedAfter:  after,
			VisitedBefore: before,
		})
	}
	since := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	var err error
	if out.Total, err = count(nil, nil); err != nil {
		return zeroVisitCounts(), f.readError("VISIT_COUNTS_FAILED", err)
	}
	if out.LastHour, err = count(since(windowHour), nil); err != nil {
		return zeroVisitCounts(), f.readError("VISIT_COUNTS_FAILED", err)
	}
	if out.Last24Hours, err = count(since(windowDay), nil); err != nil {
		return zeroVisitCounts(), f.readError("VISIT_COUNTS_FAILED", err)
	}
	if out.Last7Days, err = count(since(windowWeek), nil); err != nil {
		return zeroVisitCounts(), f.readError("VISIT_COUNTS_FAILED", err)
	}
	if out.Last30Days, err = count(since(windowMonth), nil); err != nil {
		return zeroVisitCounts(), f.readError("VISIT_COUNTS_FAILED", err)
	}
	previousWeek, err := count(since(2*windowWeek), since(windowWeek))
	if err != nil {
		return zeroVisitCounts(), f.readError("VISIT_COUNTS_FAILED", err)
	}
	if out.UniqueVisitors, err = f.visitRepo.CountDistinctVisitors(ctx, userID); err != nil {
		return zeroVisitCounts(), f.readError("VISIT_COUNTS_FAILED", err)
	}

	out.TotalFormatted = utils.FormatNumber(out.Total)
	out.WeekOverWeekDelta = utils.CalculatePercentageChange(out.Last7Days, previousWeek)
	return out, nil
}

func (f *AnalyticsFlowImpl) DailyVisits(ctx context.Context, userID uint, days int) ([]dto.DailyCount, error) {
	if days <= 0 {
		return []dto.DailyCount{}, nil
	}
	rows, err := f.visitRepo.DailyCounts(ctx, userID, windowStart(f.now(), days))
	if err != nil {
		return []dto.DailyCount{}, f.readError("DAILY_VISITS_FAILED", err)
	}
	return toDailyCounts(rows), nil
}

func (f *AnalyticsFlowImpl) RecentVisitors(ctx context.Context, userID uint, limit int) ([]dto.RecentVisitor, error) {
	if limit <= 0 {
		limit = utils.DefaultRecentVisitorsLimit
	}
	rows, err := f.visitRepo.ByFilter(ctx, models.ProfileVisitFilter{UserID: &userID}, "visited_at DESC, id DESC", limit, 0)
	if err != nil {
		return []dto.RecentVisitor{}, f.readError("RECENT_VISITORS_FAILED", err)
	}

	now := f.now().UTC()
	out := make([]dto.RecentVisitor, 0, len(rows))
	for _, v := range rows {
		out = append(out, dto.RecentVisitor{
			VisitedAt: v.VisitedAt,
			VisitorIP: v.VisitorIP,
			TimeAgo:   utils.TimeAgo(v.VisitedAt, now),
		})
	}
	return out, nil
}

func (f *AnalyticsFlowImpl) ClickAnalytics(ctx context.Context, linkID uint) (*dto.ClickAnalytics, error) {
	now := f.now().UTC()
	out := &dto.ClickAnalytics{LinkID: linkID, RecentClicks: []dto.RecentClick{}}

	count := func(window time.Duration) (int64, error) {
		filter := models.LinkClickFilter{LinkID: &linkID}
		if window > 0 {
			t := now.Add(-window)
			filter.ClickedAfter = &t
		}
		return f.clickRepo.Count(ctx, filter)
	}

	var err error
	if out.TotalClicks, err = count(0); err != nil {
		return zeroClickAnalytics(linkID), f.readError("CLICK_ANALYTICS_FAILED", err)
	}
	if out.LastHour, err = count(windowHour); err != nil {
		return zeroClickAnalytics(linkID), f.readError("CLICK_ANALYTICS_FAILED", err)
	}
	if out.Last24Hours, err = count(windowDay); err != nil {
		return zeroClickAnalytics(linkID), f.readError("CLICK_ANALYTICS_FAILED", err)
	}
	if out.Last7Days, err = count(windowWeek); err != nil {
		return zeroClickAnalytics(linkID), f.readError("CLICK_ANALYTICS_FAILED", err)
	}
	if out.Last30Days, err = count(windowMonth); err != nil {
		return zeroClickAnalytics(linkID), f.readError("CLICK_ANALYTICS_FAILED", err)
	}
	if out.UniqueClickers, err = f.clickRepo.CountDistinctClickers(ctx, linkID); err != nil {
		return zeroClickAnalytics(linkID), f.readError("CLICK_ANALYTICS_FAILED", err)
	}

	recent, err := f.clickRepo.ByFilter(ctx, models.LinkClickFilter{LinkID: &linkID}, "clicked_at DESC, id DESC", utils.DefaultRecentClicksLimit, 0)
	if err != nil {
		return zeroClickAnalytics(linkID), f.readError("CLICK_ANALYTICS_FAILED", err)
	}
	for _, c := range recent {
		out.RecentClicks = append(out.RecentClicks, dto.RecentClick{
			ClickedAt: c.ClickedAt,
			ClickerIP: c.ClickerIP,
			TimeAgo:   utils.TimeAgo(c.ClickedAt, now),
		})
	}
	return out, nil
}

func (f *AnalyticsFlowImpl) DailyClicks(ctx context.Context, linkID uint, days int) ([]dto.DailyCount, error) {
	if days <= 0 {
		return []dto.DailyCount{}, nil
	}
	rows, err := f.clickRepo.DailyCounts(ctx, linkID, windowStart(f.now(), days))
	if err != nil {
		return []dto.DailyCount{}, f.readError("DAILY_CLICKS_FAILED", err)
	}
	return toDailyCounts(rows), nil
}

// TopLinks ranks by click_count; equal counts keep insertion order
func (f *AnalyticsFlowImpl) TopLinks(ctx context.Context, userID uint, limit int) ([]dto.TopLink, error) {
	if limit <= 0 {
		limit = utils.DefaultTopLinksLimit
	}
	rows, err := f.linkRepo.ByFilter(ctx, models.LinkFilter{UserID: &userID}, "click_count DESC, id ASC", limit, 0)
	if err != nil {
		return []dto.TopLink{}, f.readError("TOP_LINKS_FAILED", err)
	}
	out := make([]dto.TopLink, 0, len(rows))
	for _, l := range rows {
		out = append(out, ToTopLink(*l))
	}
	return out, nil
}

// AnalyticsSummary may be served from cache for up to the configured TTL. Visits do not
// invalidate it, so its 1h and 24h windows are relative to when it was computed.
func (f *AnalyticsFlowImpl) AnalyticsSummary(ctx context.Context, userID uint) (*dto.AnalyticsSummary, error) {
	if cached, ok := f.cachedSummary(ctx, userID); ok {
		return cached, nil
	}

	out, err := f.computeSummary(ctx, userID)
	if err != nil {
		return out, err
	}
	f.storeSummary(ctx, userID, out)
	return out, nil
}

func (f *AnalyticsFlowImpl) computeSummary(ctx context.Context, userID uint) (*dto.AnalyticsSummary, error) {
	visits, err := f.VisitCounts(ctx, userID)
	if err != nil {
		return zeroSummary(), NewBusinessError("ANALYTICS_SUMMARY_FAILED", "Failed to compute analytics summary", err)
	}
	totalLinks, err := f.linkRepo.Count(ctx, models.LinkFilter{UserID: &userID})
	if err != nil {
		return zeroSummary(), f.readError("ANALYTICS_SUMMARY_FAILED", err)
	}
	totalClicks, err := f.linkRepo.SumClickCount(ctx, userID)
	if err != nil {
		return zeroSummary(), f.readError("ANALYTICS_SUMMARY_FAILED", err)
	}
	top, err := f.TopLinks(ctx, userID, 1)
	if err != nil {
		return zeroSummary(), NewBusinessError("ANALYTICS_SUMMARY_FAILED", "Failed to compute analytics summary", err)
	}

	out := &dto.AnalyticsSummary{
		ProfileVisits: *visits,
		TotalLinks:    totalLinks,
		TotalClicks:   totalClicks,
	}
	if len(top) > 0 {
		out.TopLink = &top[0]
	}
	return out, nil
}

// UserAnalytics always computes its summary so it agrees with the per-link figures next to it
func (f *AnalyticsFlowImpl) UserAnalytics(ctx context.Context, userID uint) (*dto.UserAnalytics, error) {
	summary, err := f.computeSummary(ctx, userID)
	if err != nil {
		return zeroUserAnalytics(), NewBusinessError("USER_ANALYTICS_FAILED", "Failed to compute user analytics", err)
	}

	links, err := f.linkRepo.ByFilter(ctx, models.LinkFilter{UserID: &userID}, "id ASC", 0, 0)
	if err != nil {
		return zeroUserAnalytics(), f.readError("USER_ANALYTICS_FAILED", err)
	}

	out := &dto.UserAnalytics{
		Summary: *summary,
		Links:   make([]dto.LinkAnalyticsEntry, 0, len(links)),
	}

	var best *models.Link
	for _, l := range links {
		clicks, err := f.ClickAnalytics(ctx, l.ID)
		if err != nil {
			return zeroUserAnalytics(), NewBusinessError("USER_ANALYTICS_FAILED", "Failed to compute user analytics", err)
		}
		out.Links = append(out.Links, dto.LinkAnalyticsEntry{Link: ToTopLink(*l), Analytics: *clicks})

		// strict comparison: ties keep the first link, all-zero leaves nil
		if (best == nil && l.ClickCount > 0) || (best != nil && l.ClickCount > best.ClickCount) {
			best = l
		}
	}
	if best != nil {
		top := ToTopLink(*best)
		out.MostClickedLink = &top
	}
	return out, nil
}

func (f *AnalyticsFlowImpl) LinkAnalytics(ctx context.Context, userID, linkID uint, days int) (*dto.LinkClickAnalytics, error) {
	link, err := f.linkRepo.ByID(ctx, linkID)
	if err != nil {
		return nil, f.readError("LINK_ANALYTICS_FAILED", err)
	}
	if link == nil {
		return nil, ErrLinkNotFound
	}
	if link.UserID != userID {
		return nil, ErrLinkAccessDenied
	}

	out := &dto.LinkClickAnalytics{Link: ToLinkResponse(*link)}
	clicks, err := f.ClickAnalytics(ctx, linkID)
	out.Analytics = *clicks
	if err != nil {
		out.DailyClicks = []dto.DailyCount{}
		return out, err
	}
	daily, err := f.DailyClicks(ctx, linkID, days)
	out.DailyClicks = FillMissingDates(daily, days, f.now())
	return out, err
}

func (f *AnalyticsFlowImpl) InvalidateSummary(ctx context.Context, userID uint) {
	if f.cache == nil || f.cacheTTL <= 0 {
		return
	}
	if err := f.cache.Delete(ctx, summaryCacheKey(userID)); err != nil {
		f.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to invalidate cached summary")
	}
}

func (f *AnalyticsFlowImpl) cachedSummary(ctx context.Context, userID uint) (*dto.AnalyticsSummary, bool) {
	if f.cache == nil || f.cacheTTL <= 0 {
		return nil, false
	}
	bs, ok, err := f.cache.Get(ctx, summaryCacheKey(userID))
	if err != nil {
		f.logger.Warn().Err(err).Uint("user_id", userID).Msg("summary cache read failed")
		return nil, false
	}
	if !ok || len(bs) == 0 {
		return nil, false
	}
	var out dto.AnalyticsSummary
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil, false
	}
	return &out, true
}

func (f *AnalyticsFlowImpl) storeSummary(ctx context.Context, userID uint, summary *dto.AnalyticsSummary) {
	if f.cache == nil || f.cacheTTL <= 0 {
		return
	}
	bs, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, summaryCacheKey(userID), bs, f.cacheTTL); err != nil {
		f.logger.Warn().Err(err).Uint("user_id", userID).Msg("summary cache write failed")
	}
}

func (f *AnalyticsFlowImpl) readError(code string, err error) error {
	f.logger.Error().Err(err).Str("code", code).Msg("analytics read failed")
	return NewBusinessError(code, "Failed to read analytics", err)
}

func summaryCacheKey(userID uint) string {
	return fmt.Sprintf(utils.AnalyticsSummaryCacheKey, userID)
}

// windowStart is midnight UTC of the oldest day in a days-long window ending today
func windowStart(now time.Time, days int) time.Time {
	return utils.StartOfUTCDay(now).AddDate(0, 0, -(days - 1))
}

func toDailyCounts(rows []*repository.DailyCount) []dto.DailyCount {
	out := make([]dto.DailyCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.DailyCount{Date: r.Day, Count: r.Count})
	}
	return out
}

func zeroVisitCounts() *dto.VisitCounts {
	return &dto.VisitCounts{TotalFormatted: "0"}
}

func zeroClickAnalytics(linkID uint) *dto.ClickAnalytics {
	return &dto.ClickAnalytics{LinkID: linkID, RecentClicks: []dto.RecentClick{}}
}

func zeroSummary() *dto.AnalyticsSummary {
	return &dto.AnalyticsSummary{ProfileVisits: *zeroVisitCounts()}
}

func zeroUserAnalytics() *dto.UserAnalytics {
	return &dto.UserAnalytics{Summary: *zeroSummary(), Links: []dto.LinkAnalyticsEntry{}}
}
