package businessflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/treebio/treebio/app/dto"
)

func TestGenerateDateRange(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, []string{"2026-02-27", "2026-02-28", "2026-03-01"}, GenerateDateRange(3, now))
	assert.Equal(t, []string{"2026-03-01"}, GenerateDateRange(1, now))
	assert.Empty(t, GenerateDateRange(0, now))
	assert.Empty(t, GenerateDateRange(-5, now))
}

func TestGenerateDateRangeUsesUTCDay(t *testing.T) {
	tehran := time.FixedZone("UTC+3:30", 3*3600+1800)
	// 01:00 local is still the previous UTC day
	now := time.Date(2026, 3, 2, 1, 0, 0, 0, tehran)

	assert.Equal(t, []string{"2026-02-28", "2026-03-01"}, GenerateDateRange(2, now))
}

func TestFillMissingDates(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		series []dto.DailyCount
		days   int
		want   []dto.DailyCount
	}{
		{
			name:   "empty series is all zeros",
			series: nil,
			days:   3,
			want: []dto.DailyCount{
				{Date: "2026-03-08"}, {Date: "2026-03-09"}, {Date: "2026-03-10"},
			},
		},
		{
			name: "gaps filled and order normalized",
			series: []dto.DailyCount{
				{Date: "2026-03-10", Count: 4},
				{Date: "2026-03-08", Count: 1},
			},
			days: 3,
			want: []dto.DailyCount{
				{Date: "2026-03-08", Count: 1}, {Date: "2026-03-09"}, {Date: "2026-03-10", Count: 4},
			},
		},
		{
			name: "entries outside the window are dropped",
			series: []dto.DailyCount{
				{Date: "2026-03-01", Count: 9},
				{Date: "2026-03-10", Count: 2},
			},
			days: 2,
			want: []dto.DailyCount{{Date: "2026-03-09"}, {Date: "2026-03-10", Count: 2}},
		},
		{
			name:   "non-positive days",
			series: []dto.DailyCount{{Date: "2026-03-10", Count: 2}},
			days:   0,
			want:   []dto.DailyCount{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FillMissingDates(tt.series, tt.days, now))
		})
	}
}
