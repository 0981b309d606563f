package utils

import (
	"fmt"
	"strconv"
	"time"
)

// FormatNumber renders large counters in a compact form (1.2K, 3.4M)
func FormatNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// CalculatePercentageChange returns the relative change from previous to current in percent
func CalculatePercentageChange(current, previous int64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// TimeAgo describes how long before now t happened
func TimeAgo(t, now time.Time) string {
	secs := int64(now.Sub(t).Seconds())
	switch {
	case secs < 60:
		return "Just now"
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	case secs < 2592000:
		return fmt.Sprintf("%dd ago", secs/86400)
	case secs < 31536000:
		return fmt.Sprintf("%dmo ago", secs/2592000)
	default:
		return fmt.Sprintf("%dy ago", secs/31536000)
	}
}
