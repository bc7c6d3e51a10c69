package utils

import "time"

// -----------------------------------------------------------------------------

// Polling windows and retention defaults.
const (
	DefaultPollInterval     = 5 * time.Minute
	DefaultFetchWindow      = 7 * 24 * time.Hour
	DefaultValidationWindow = 24 * time.Hour

	DefaultRetentionDays = 30

	// One result every 5 minutes for a day.
	DefaultHistorySize = 288
)

// -----------------------------------------------------------------------------

// Days converts a day count to a duration, falling back when n <= 0.
func Days(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * 24 * time.Hour
}

// Minutes converts a minute count to a duration, falling back when n <= 0.
func Minutes(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Minute
}
