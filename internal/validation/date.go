package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day layout accepted and printed by taskgraph.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a date cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses a calendar day (2006-01-02) or an RFC 3339 timestamp.
// Blank input and "none" clear the date and return nil.
func ParseDate(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "none") {
		return nil, nil
	}
	if parsed, err := time.Parse(DateLayout, trimmed); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (expected %s or RFC 3339)", ErrInvalidDate, value, DateLayout)
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

// FormatDate prints a date in DateLayout, or "-" when absent.
func FormatDate(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.UTC().Format(DateLayout)
}
