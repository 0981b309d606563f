// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// StartOfUTCDay truncates t to midnight of its UTC calendar day
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// UTCDate formats t as its UTC calendar date (YYYY-MM-DD)
func UTCDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
