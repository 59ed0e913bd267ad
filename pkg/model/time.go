package model

import (
	"fmt"
	"time"
)

// isoLayout matches the millisecond UTC form browsers write with toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t as an ISO-8601 timestamp in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// ParseTime accepts RFC 3339 timestamps (fractional seconds optional) and
// bare calendar dates. Bare dates are read in the local time zone; use
// Task.DueIn to place them in another one.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
