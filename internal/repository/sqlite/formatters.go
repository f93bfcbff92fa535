package sqlite

import (
	"encoding/json"
	"time"

	"protask/internal/remote"
)

// FormatTimeForDB formats a time.Time value as an RFC 3339 UTC string for consistent database storage
func FormatTimeForDB(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FormatTimePtrForDB formats a *time.Time value, returning nil if the pointer is nil
func FormatTimePtrForDB(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return FormatTimeForDB(*t)
}

// ParseTimeFromDB parses an RFC 3339 formatted time string from the database
func ParseTimeFromDB(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// EncodeFields serializes document fields for the fields column.
func EncodeFields(fields remote.Fields) (string, error) {
	if fields == nil {
		fields = remote.Fields{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeFields parses the fields column. JSON numbers decode as float64.
func DecodeFields(s string) (remote.Fields, error) {
	fields := remote.Fields{}
	if s == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
