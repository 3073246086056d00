package candle

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the key format of daily records.
	DateLayout = "2006-01-02"
	// MonthLayout is the key format of monthly records.
	MonthLayout = "2006-01"
	// ISOLayout matches JavaScript's Date.toISOString output.
	ISOLayout = "2006-01-02T15:04:05.000Z"

	Day = 24 * time.Hour
)

// StartOfDay truncates t to UTC midnight.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey returns the UTC calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateKeyMillis returns the UTC calendar date of a millisecond timestamp.
func DateKeyMillis(ms int64) string {
	return DateKey(time.UnixMilli(ms))
}

// ParseDate parses a YYYY-MM-DD key into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FirstOfMonth returns the first instant of the given month in UTC.
func FirstOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// LastOfMonth returns 23:59:59.999 UTC on the last day of the month.
func LastOfMonth(year int, month time.Month) time.Time {
	return FirstOfMonth(year, month).AddDate(0, 1, 0).Add(-time.Millisecond)
}

// MonthKey formats a year and month as YYYY-MM.
func MonthKey(year int, month time.Month) string {
	return FirstOfMonth(year, month).Format(MonthLayout)
}
