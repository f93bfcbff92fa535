package domain

import (
	"strings"
	"time"
)

// DateLayout is the wire format of due dates and date-range bounds.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date and returns midnight of that day in loc.
// Full RFC 3339 timestamps are accepted too and reduced to their day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if d, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return StartOfDay(ts.In(loc)), true
	}
	return time.Time{}, false
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FormatDate renders t as a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
