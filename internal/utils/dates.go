package utils

import (
	"fmt"
	"time"

	"vehicle-booking-engine/internal/domain"
)

const DateLayout = "2006-01-02"

// ParseDate converts a yyyy-mm-dd string into a UTC calendar date.
func ParseDate(dateStr string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, dateStr, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-mm-dd", dateStr)
	}
	return t, nil
}

// ParseTimestamp accepts RFC 3339 timestamps and falls back to plain dates,
// which are read as midnight UTC.
func ParseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q, expected RFC 3339 or yyyy-mm-dd", value)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return domain.DateOf(t).Format(DateLayout)
}
