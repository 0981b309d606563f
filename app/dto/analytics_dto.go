package dto

import "time"

// VisitCounts holds windowed profile visit counts. Windows are inclusive of now minus the window length.
type VisitCounts struct {
	Total          int64 `json:"total"`
	LastHour       int64 `json:"last_hour"`
	Last24Hours    int64 `json:"last_24_hours"`
	Last7Days      int64 `json:"last_7_days"`
	Last30Days     int64 `json:"last_30_days"`
	UniqueVisitors int64 `json:"unique_visitors"`

	// Display helpers
	TotalFormatted    string  `json:"total_formatted"`
	WeekOverWeekDelta float64 `json:"week_over_week_delta"`
}

// DailyCount is the number of events on one UTC calendar day
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type RecentVisitor struct {
	VisitedAt time.Time `json:"visited_at"`
	VisitorIP string    `json:"visitor_ip"`
	TimeAgo   string    `json:"time_ago"`
}

type RecentClick struct {
	ClickedAt time.Time `json:"clicked_at"`
	ClickerIP string    `json:"clicker_ip"`
	TimeAgo   string    `json:"time_ago"`
}

type ClickAnalytics struct {
	LinkID         uint          `json:"link_id"`
	TotalClicks    int64         `json:"total_clicks"`
	UniqueClickers int64         `json:"unique_clickers"`
	LastHour       int64         `json:"last_hour"`
	Last24Hours    int64         `json:"last_24_hours"`
	Last7Days      int64         `json:"last_7_days"`
	Last30Days     int64         `json:"last_30_days"`
	RecentClicks   []RecentClick `json:"recent_clicks"`
}

// LinkClickAnalytics is a link with its click analytics, returned by the link detail endpoint
type LinkClickAnalytics struct {
	Link        LinkResponse   `json:"link"`
	Analytics   ClickAnalytics `json:"analytics"`
	DailyClicks []DailyCount   `json:"daily_clicks"`
}

type TopLink struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	ClickCount int64     `json:"click_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type AnalyticsSummary struct {
	ProfileVisits VisitCounts `json:"profile_visits"`
	TotalLinks    int64       `json:"total_links"`
	TotalClicks   int64       `json:"total_clicks"`
	TopLink       *TopLink    `json:"top_link"`
}

type LinkAnalyticsEntry struct {
	Link      TopLink        `json:"link"`
	Analytics ClickAnalytics `json:"analytics"`
}

type UserAnalytics struct {
	Summary         AnalyticsSummary     `json:"summary"`
	Links           []LinkAnalyticsEntry `json:"links"`
	MostClickedLink *TopLink             `json:"most_clicked_link"`
}

// ReconcileDivergence is a link whose counter disagrees with its click events
type ReconcileDivergence struct {
	LinkID     uint  `json:"link_id"`
	ClickCount int64 `json:"click_count"`
	EventCount int64 `json:"event_count"`
	Repaired   bool  `json:"repaired"`
}

type ReconcileReport struct {
	StartedAt    time.Time             `json:"started_at"`
	FinishedAt   time.Time             `json:"finished_at"`
	LinksScanned int                   `json:"links_scanned"`
	Divergent    []ReconcileDivergence `json:"divergent"`
	Repaired     int                   `json:"repaired"`
}
