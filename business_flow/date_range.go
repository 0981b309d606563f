package businessflow

import (
	"time"

	"github.com/treebio/treebio/app/dto"
	"github.com/treebio/treebio/utils"
)

// GenerateDateRange lists the UTC dates of a days-long window ending on the
// UTC day of now, oldest first.
func GenerateDateRange(days int, now time.Time) []string {
	if days <= 0 {
		return []string{}
	}
	start := windowStart(now, days)
	out := make([]string, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, start.AddDate(0, 0, i).Format(utils.DateLayout))
	}
	return out
}

// FillMissingDates expands a sparse daily series onto the full window,
// adding zero entries for days without events. Entries outside the window are dropped.
func FillMissingDates(series []dto.DailyCount, days int, now time.Time) []dto.DailyCount {
	counts := make(map[string]int64, len(series))
	for _, d := range series {
		counts[d.Date] += d.Count
	}

	dates := GenerateDateRange(days, now)
	out := make([]dto.DailyCount, 0, len(dates))
	for _, date := range dates {
		out = append(out, dto.DailyCount{Date: date, Count: counts[date]})
	}
	return out
}
