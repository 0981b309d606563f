package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treebio/treebio/app/dto"
)

var analyticsNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newAnalyticsFixture(opts ...AnalyticsFlowOption) (*memStore, *AnalyticsFlowImpl) {
	store := newMemStore()
	opts = append([]AnalyticsFlowOption{WithAnalyticsClock(fixedClock(analyticsNow))}, opts...)
	flow := NewAnalyticsFlow(&memVisitRepo{store}, &memClickRepo{store}, &memLinkRepo{store}, zerolog.Nop(), opts...)
	return store, flow
}

func seedVisitHistory(s *memStore, userID uint) {
	seedVisit(s, userID, "a", analyticsNow.Add(-30*time.Minute))
	seedVisit(s, userID, "b", analyticsNow.Add(-5*time.Hour))
	seedVisit(s, userID, "a", analyticsNow.Add(-3*24*time.Hour))
	seedVisit(s, userID, "c", analyticsNow.Add(-10*24*time.Hour))
	seedVisit(s, userID, "d", analyticsNow.Add(-40*24*time.Hour))
}

func TestAnalyticsFlow_VisitCounts(t *testing.T) {
	store, flow := newAnalyticsFixture()
	seedVisitHistory(store, 1)
	seedVisit(store, 2, "z", analyticsNow)

	got, err := flow.VisitCounts(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(5), got.Total)
	assert.Equal(t, int64(1), got.LastHour)
	assert.Equal(t, int64(2), got.Last24Hours)
	assert.Equal(t, int64(3), got.Last7Days)
	assert.Equal(t, int64(4), got.Last30Days)
	assert.Equal(t, int64(4), got.UniqueVisitors)
	assert.Equal(t, "5", got.TotalFormatted)
	// 3 this week against 1 the week before
	assert.InDelta(t, 200.0, got.WeekOverWeekDelta, 0.001)
}

func TestAnalyticsFlow_VisitCountsWindowBoundaryIsInclusive(t *testing.T) {
	store, flow := newAnalyticsFixture()
	seedVisit(store, 1, "edge", analyticsNow.Add(-time.Hour))
	seedVisit(store, 1, "out", analyticsNow.Add(-time.Hour-time.Second))

	got, err := flow.VisitCounts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LastHour)
}

func TestAnalyticsFlow_VisitCountsNoEvents(t *testing.T) {
	_, flow := newAnalyticsFixture()

	got, err := flow.VisitCounts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &dto.VisitCounts{TotalFormatted: "0"}, got)
}

func TestAnalyticsFlow_VisitCountsFailureReturnsZeroShape(t *testing.T) {
	store, flow := newAnalyticsFixture()
	seedVisitHistory(store, 1)
	store.failOn("visits.Count", errors.New("db down"))

	got, err := flow.VisitCounts(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, "VISIT_COUNTS_FAILED", ErrorCode(err))
	require.NotNil(t, got)
	assert.Zero(t, got.Total)
	assert.Equal(t, "0", got.TotalFormatted)
}

func TestAnalyticsFlow_DailyVisits(t *testing.T) {
	store, flow := newAnalyticsFixture()
	seedVisitHistory(store, 1)
	// first instant of the 7-day window counts, the one before does not
	seedVisit(store, 1, "early", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	seedVisit(store, 1, "late", time.Date(2026, 3, 3, 23, 59, 59, 0, time.UTC))

	got, err := flow.DailyVisits(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, []dto.DailyCount{
		{Date: "2026-03-04", Count: 1},
		{Date: "2026-03-07", Count: 1},
		{Date: "2026-03-10", Count: 2},
	}, got)

	filled := FillMissingDates(got, 7, analyticsNow)
	require.Len(t, filled, 7)
	assert.Equal(t, "2026-03-04", filled[0].Date)
	assert.Equal(t, int64(0), filled[1].Count)
	assert.Equal(t, "2026-03-10", filled[6].Date)
	assert.Equal(t, int64(2), filled[6].Count)
}

func TestAnalyticsFlow_DailyVisitsEdgeCases(t *testing.T) {
	store, flow := newAnalyticsFixture()
	seedVisitHistory(store, 1)

	got, err := flow.DailyVisits(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	store.failOn("visits.DailyCounts", errors.New("db down"))
	got, err = flow.DailyVisits(context.Background(), 1, 7)
	require.Error(t, err)
	assert.Equal(t, "DAILY_VISITS_FAILED", ErrorCode(err))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAnalyticsFlow_RecentVisitors(t *testing.T) {
	store, flow := newAnalyticsFixture()
	seedVisitHistory(store, 1)

	got, err := flow.RecentVisitors(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].VisitorIP)
	assert.Equal(t, "30m ago", got[0].TimeAgo)
	assert.Equal(t, "b", got[1].VisitorIP)
	assert.Equal(t, "5h ago", got[1].TimeAgo)

	all, err := flow.RecentVisitors(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	store.failOn("visits.ByFilter", errors.New("db down"))
	failed, err := flow.RecentVisitors(context.Background(), 1, 2)
	require.Error(t, err)
	assert.NotNil(t, failed)
	assert.Empty(t, failed)
}

func TestAnalyticsFlow_ClickAnalytics(t *testing.T) {
	store, flow := newAnalyticsFixture()
	link := seedLink(store, 1, "shop", 3, analyticsNow)
	other := seedLink(store, 1, "blog", 1, analyticsNow)
	seedClick(store, link.ID, "x", analyticsNow.Add(-10*time.Minute))
	seedClick(store, link.ID, "y", analyticsNow.Add(-2*24*time.Hour))
	seedClick(store, link.ID, "x", analyticsNow.Add(-20*24*time.Hour))
	seedClick(store, other.ID, "q", analyticsNow)

	got, err := flow.ClickAnalytics(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.LinkID)
	assert.Equal(t, int64(3), got.TotalClicks)
	assert.Equal(t, int64(1), got.LastHour)
	assert.Equal(t, int64(1), got.Last24Hours)
	assert.Equal(t, int64(2), got.Last7Days)
	assert.Equal(t, int64(3), got.Last30Days)
	assert.Equal(t, int64(2), got.UniqueClickers)
	require.Len(t, got.RecentClicks, 3)
	assert.Equal(t, "10m ago", got.RecentClicks[0].TimeAgo)
	assert.Equal(t, "y", got.RecentClicks[1].ClickerIP)
}

func TestAnalyticsFlow_ClickAnalyticsUnknownLinkIsZero(t *testing.T) {
	_, flow := newAnalyticsFixture()

	got, err := flow.ClickAnalytics(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint(42), got.LinkID)
	assert.Zero(t, got.TotalClicks)
	assert.NotNil(t, got.RecentClicks)
	assert.Empty(t, got.RecentClicks)
}

func TestAnalyticsFlow_DailyClicks(t *testing.T) {
	store, flow := newAnalyticsFixture()
	link := seedLink(store, 1, "shop", 0, analyticsNow)
	seedClick(store, link.ID, "x", analyticsNow.Add(-time.Hour))
	seedClick(store, link.ID, "y", analyticsNow.Add(-time.Hour))
	seedClick(store, link.ID, "x", analyticsNow.Add(-24*time.Hour))
	seedClick(store, link.ID, "x", analyticsNow.Add(-8*24*time.Hour))

	got, err := flow.DailyClicks(context.Background(), link.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, []dto.DailyCount{
		{Date: "2026-03-09", Count: 1},
		{Date: "2026-03-10", Count: 2},
	}, got)
}

func TestAnalyticsFlow_TopLinksOrderingAndTies(t *testing.T) {
	store, flow := newAnalyticsFixture()
	a := seedLink(store, 1, "a", 5, analyticsNow)
	b := seedLink(store, 1, "b", 9, analyticsNow)
	c := seedLink(store, 1, "c", 5, analyticsNow)
	d := seedLink(store, 1, "d", 0, analyticsNow)
	seedLink(store, 2, "foreign", 100, analyticsNow)

	got, err := flow.TopLinks(context.Background(), 1, 10)
	require.NoError(t, err)
	ids := make([]uint, 0, len(got))
	for _, l := range got {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []uint{b.ID, a.ID, c.ID, d.ID}, ids)

	limited, err := flow.TopLinks(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, a.ID, limited[1].ID)

	none, err := flow.TopLinks(context.Background(), 99, 5)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestAnalyticsFlow_AnalyticsSummary(t *testing.T) {
	store, flow := newAnalyticsFixture()
	seedVisitHistory(store, 1)
	seedLink(store, 1, "a", 2, analyticsNow)
	top := seedLink(store, 1, "b", 7, analyticsNow)

	got, err := flow.AnalyticsSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ProfileVisits.Total)
	assert.Equal(t, int64(2), got.TotalLinks)
	assert.Equal(t, int64(9), got.TotalClicks)
	require.NotNil(t, got.TopLink)
	assert.Equal(t, top.ID, got.TopLink.ID)

	empty, err := flow.AnalyticsSummary(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, empty.TopLink)
	assert.Zero(t, empty.TotalLinks)
}

func TestAnalyticsFlow_AnalyticsSummaryFailure(t *testing.T) {
	store, flow := newAnalyticsFixture()
	seedLink(store, 1, "a", 2, analyticsNow)
	store.failOn("links.Sum", errors.New("db down"))

	got, err := flow.AnalyticsSummary(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, "ANALYTICS_SUMMARY_FAILED", ErrorCode(err))
	require.NotNil(t, got)
	assert.Zero(t, got.TotalLinks)
	assert.Equal(t, "0", got.ProfileVisits.TotalFormatted)
}

func TestAnalyticsFlow_SummaryCache(t *testing.T) {
	cache := newMemCache()
	store, flow := newAnalyticsFixture(WithSummaryCache(cache, time.Minute))
	seedVisit(store, 1, "a", analyticsNow)

	first, err := flow.AnalyticsSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ProfileVisits.Total)
	assert.Contains(t, cache.data, summaryCacheKey(1))

	seedVisit(store, 1, "b", analyticsNow)
	cached, err := flow.AnalyticsSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.ProfileVisits.Total)

	flow.InvalidateSummary(context.Background(), 1)
	fresh, err := flow.AnalyticsSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.ProfileVisits.Total)
}

func TestAnalyticsFlow_UserAnalyticsBypassesSummaryCache(t *testing.T) {
	cache := newMemCache()
	store, flow := newAnalyticsFixture(WithSummaryCache(cache, time.Minute))
	seedVisit(store, 1, "a", analyticsNow)

	_, err := flow.AnalyticsSummary(context.Background(), 1)
	require.NoError(t, err)
	require.Contains(t, cache.data, summaryCacheKey(1))

	seedVisit(store, 1, "b", analyticsNow)
	link := seedLink(store, 1, "a", 1, analyticsNow)
	seedClick(store, link.ID, "x", analyticsNow)

	got, err := flow.UserAnalytics(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Summary.ProfileVisits.Total)
	assert.Equal(t, int64(1), got.Summary.TotalLinks)
	assert.Equal(t, int64(1), got.Summary.TotalClicks)
	require.Len(t, got.Links, 1)
	assert.Equal(t, int64(1), got.Links[0].Analytics.TotalClicks)
}

func TestAnalyticsFlow_SummaryCacheDisabledWithZeroTTL(t *testing.T) {
	cache := newMemCache()
	store, flow := newAnalyticsFixture(WithSummaryCache(cache, 0))
	seedVisit(store, 1, "a", analyticsNow)

	_, err := flow.AnalyticsSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, cache.data)

	flow.InvalidateSummary(context.Background(), 1)
	assert.Zero(t, cache.deletes)
}

func TestAnalyticsFlow_ClickInvalidatesCachedSummary(t *testing.T) {
	cache := newMemCache()
	store, analytics := newAnalyticsFixture(WithSummaryCache(cache, time.Minute))
	link := seedLink(store, 1, "a", 0, analyticsNow)
	clicks := NewClickFlow(&memLinkRepo{store}, &memClickRepo{store}, &memTransactor{store: store}, zerolog.Nop(),
		WithClickClock(fixedClock(analyticsNow)),
		WithClickSummaryInvalidator(analytics),
	)

	before, err := analytics.AnalyticsSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, before.TotalClicks)

	_, err = clicks.LogLinkClick(context.Background(), link.ID, nil)
	require.NoError(t, err)

	after, err := analytics.AnalyticsSummary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.TotalClicks)
}

func TestAnalyticsFlow_UserAnalytics(t *testing.T) {
	t.Run("most clicked keeps the first of equal links", func(t *testing.T) {
		store, flow := newAnalyticsFixture()
		a := seedLink(store, 1, "a", 3, analyticsNow)
		seedLink(store, 1, "b", 3, analyticsNow)
		seedLink(store, 1, "c", 1, analyticsNow)
		seedClick(store, a.ID, "x", analyticsNow)

		got, err := flow.UserAnalytics(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, got.Links, 3)
		assert.Equal(t, a.ID, got.Links[0].Link.ID)
		assert.Equal(t, int64(1), got.Links[0].Analytics.TotalClicks)
		require.NotNil(t, got.MostClickedLink)
		assert.Equal(t, a.ID, got.MostClickedLink.ID)
		assert.Equal(t, int64(7), got.Summary.TotalClicks)
	})

	t.Run("all zero counters leave most clicked empty", func(t *testing.T) {
		store, flow := newAnalyticsFixture()
		seedLink(store, 1, "a", 0, analyticsNow)
		seedLink(store, 1, "b", 0, analyticsNow)

		got, err := flow.UserAnalytics(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, got.Links, 2)
		assert.Nil(t, got.MostClickedLink)
	})

	t.Run("failure returns zero shape", func(t *testing.T) {
		store, flow := newAnalyticsFixture()
		seedLink(store, 1, "a", 4, analyticsNow)
		store.failOn("clicks.Count", errors.New("db down"))

		got, err := flow.UserAnalytics(context.Background(), 1)
		require.Error(t, err)
		assert.Equal(t, "USER_ANALYTICS_FAILED", ErrorCode(err))
		assert.NotNil(t, got.Links)
		assert.Empty(t, got.Links)
		assert.Nil(t, got.MostClickedLink)
	})
}

func TestAnalyticsFlow_LinkAnalytics(t *testing.T) {
	store, flow := newAnalyticsFixture()
	link := seedLink(store, 1, "shop", 1, analyticsNow)
	seedClick(store, link.ID, "x", analyticsNow.Add(-2*time.Hour))

	got, err := flow.LinkAnalytics(context.Background(), 1, link.ID, 14)
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.Link.ID)
	assert.Equal(t, int64(1), got.Analytics.TotalClicks)
	require.Len(t, got.DailyClicks, 14)
	assert.Equal(t, dto.DailyCount{Date: "2026-03-10", Count: 1}, got.DailyClicks[13])

	_, err = flow.LinkAnalytics(context.Background(), 2, link.ID, 14)
	assert.True(t, IsLinkAccessDenied(err))

	_, err = flow.LinkAnalytics(context.Background(), 1, 999, 14)
	assert.True(t, IsLinkNotFound(err))
}
