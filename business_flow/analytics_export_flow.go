package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/treebio/treebio/utils"
	"github.com/xuri/excelize/v2"
)

// AnalyticsExportFlow renders a user's analytics into an XLSX workbook
type AnalyticsExportFlow interface {
	ExportUserAnalytics(ctx context.Context, userID uint, days int) (string, []byte, error)
}

type AnalyticsExportFlowImpl struct {
	analytics AnalyticsFlow
	now       Clock
}

func NewAnalyticsExportFlow(analytics AnalyticsFlow, clock Clock) AnalyticsExportFlow {
	return &AnalyticsExportFlowImpl{analytics: analytics, now: defaultClock(clock)}
}

const (
	sheetSummary        = "Summary"
	sheetLinks          = "Links"
	sheetDailyVisits    = "Daily Visits"
	sheetRecentVisitors = "Recent Visitors"

	maxSheetNameLen = 31
)

func (f *AnalyticsExportFlowImpl) ExportUserAnalytics(ctx context.Context, userID uint, days int) (string, []byte, error) {
	if days <= 0 {
		return "", nil, NewBusinessError("INVALID_DAYS", "days must be positive", ErrInvalidDays)
	}

	overview, err := f.analytics.UserAnalytics(ctx, userID)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FETCH_FAILED", "Failed to fetch analytics for export", err)
	}
	daily, err := f.analytics.DailyVisits(ctx, userID, days)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FETCH_FAILED", "Failed to fetch daily visits for export", err)
	}
	recent, err := f.analytics.RecentVisitors(ctx, userID, 0)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FETCH_FAILED", "Failed to fetch recent visitors for export", err)
	}

	now := f.now().UTC()

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), sheetSummary)
	for _, name := range []string{sheetLinks, sheetDailyVisits, sheetRecentVisitors} {
		if _, err := xl.NewSheet(name); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create sheet", err)
		}
	}

	s := overview.Summary
	topLink := ""
	if s.TopLink != nil {
		topLink = s.TopLink.Title
	}
	mostClicked := ""
	if overview.MostClickedLink != nil {
		mostClicked = overview.MostClickedLink.Title
	}
	summaryRows := [][]any{
		{"metric", "value"},
		{"generated_at", now.Format(time.RFC3339)},
		{"total_visits", s.ProfileVisits.Total},
		{"visits_last_hour", s.ProfileVisits.LastHour},
		{"visits_last_24_hours", s.ProfileVisits.Last24Hours},
		{"visits_last_7_days", s.ProfileVisits.Last7Days},
		{"visits_last_30_days", s.ProfileVisits.Last30Days},
		{"unique_visitors", s.ProfileVisits.UniqueVisitors},
		{"week_over_week_change_pct", s.ProfileVisits.WeekOverWeekDelta},
		{"total_links", s.TotalLinks},
		{"total_clicks", s.TotalClicks},
		{"top_link", topLink},
		{"most_clicked_link", mostClicked},
	}
	if err := writeRows(xl, sheetSummary, summaryRows); err != nil {
		return "", nil, err
	}

	linkRows := [][]any{{"id", "title", "url", "click_count", "unique_clickers", "clicks_last_24_hours", "clicks_last_7_days", "clicks_last_30_days", "created_at"}}
	for _, e := range overview.Links {
		linkRows = append(linkRows, []any{
			e.Link.ID,
			e.Link.Title,
			e.Link.URL,
			e.Link.ClickCount,
			e.Analytics.UniqueClickers,
			e.Analytics.Last24Hours,
			e.Analytics.Last7Days,
			e.Analytics.Last30Days,
			e.Link.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeRows(xl, sheetLinks, linkRows); err != nil {
		return "", nil, err
	}

	dailyRows := [][]any{{"date", "visits"}}
	for _, d := range FillMissingDates(daily, days, now) {
		dailyRows = append(dailyRows, []any{d.Date, d.Count})
	}
	if err := writeRows(xl, sheetDailyVisits, dailyRows); err != nil {
		return "", nil, err
	}

	recentRows := [][]any{{"visited_at", "visitor_ip", "time_ago"}}
	for _, v := range recent {
		recentRows = append(recentRows, []any{v.VisitedAt.UTC().Format(time.RFC3339), v.VisitorIP, v.TimeAgo})
	}
	if err := writeRows(xl, sheetRecentVisitors, recentRows); err != nil {
		return "", nil, err
	}

	// one sheet per link with its daily clicks
	used := map[string]bool{"summary": true, "links": true, "daily visits": true, "recent visitors": true}
	for _, e := range overview.Links {
		name := uniqueSheetName(used, "Link "+e.Link.Title)
		if _, err := xl.NewSheet(name); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create sheet", err)
		}
		clicks, err := f.analytics.DailyClicks(ctx, e.Link.ID, days)
		if err != nil {
			return "", nil, NewBusinessError("EXPORT_FETCH_FAILED", "Failed to fetch daily clicks for export", err)
		}
		rows := [][]any{{"date", "clicks"}}
		for _, d := range FillMissingDates(clicks, days, now) {
			rows = append(rows, []any{d.Date, d.Count})
		}
		if err := writeRows(xl, name, rows); err != nil {
			return "", nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("analytics_%d_%s.xlsx", userID, utils.UTCDate(now))
	return filename, buf.Bytes(), nil
}

func writeRows(xl *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return NewBusinessError("EXCEL_WRITE_ERROR", "Failed to address cell", err)
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write row", err)
		}
	}
	return nil
}

func uniqueSheetName(used map[string]bool, raw string) string {
	base := sanitizeSheetName(raw)
	name := base
	// sheet names compare case-insensitively
	for idx := 2; used[strings.ToLower(name)]; idx++ {
		suffix := fmt.Sprintf("_%d", idx)
		name = truncateRunes(base, maxSheetNameLen-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \\ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := replacer.Replace(name)
	return truncateSheetName(strings.TrimSpace(safe))
}

func truncateSheetName(name string) string {
	if name == "" {
		return "Sheet"
	}
	return truncateRunes(name, maxSheetNameLen)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
