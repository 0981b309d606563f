package utils

import (
	"time"
)

// Request handling constants
const (
	// DefaultRequestTimeout bounds every store call issued on behalf of a request
	DefaultRequestTimeout = 10 * time.Second

	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Analytics constants
const (
	// DefaultDedupWindow collapses repeat profile visits from the same key
	DefaultDedupWindow = time.Hour

	// UnknownClientIP is stored when no address signal is available
	UnknownClientIP = "unknown"

	// MaxIdentityKeyLength is the longest textual IPv6 address
	MaxIdentityKeyLength = 45

	DefaultRecentVisitorsLimit = 10
	DefaultRecentClicksLimit   = 10
	DefaultTopLinksLimit       = 5

	// DefaultMaxAnalyticsDays caps the days parameter of daily series
	DefaultMaxAnalyticsDays = 365
	DefaultAnalyticsDays    = 30

	// DateLayout keys daily series
	DateLayout = "2006-01-02"
)

// Cache key prefixes
const (
	AnalyticsSummaryCacheKey = "analytics:summary:%d"
)
