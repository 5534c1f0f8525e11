package ui

import (
	"fmt"
	"time"
)

// DateLayout is how dates are printed.
const DateLayout = time.DateOnly

// FormatDate prints a date, or "-" when absent.
func FormatDate(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.UTC().Format(DateLayout)
}

// FormatDateRange prints "start → due", collapsing equal dates and
// milestones to one date.
func FormatDateRange(start, due *time.Time, milestone bool) string {
	switch {
	case start == nil && due == nil:
		return "-"
	case milestone && due != nil:
		return "◆ " + FormatDate(due)
	case start != nil && due != nil && start.Equal(*due):
		return FormatDate(start)
	default:
		return FormatDate(start) + " → " + FormatDate(due)
	}
}

// FormatDelta prints a shift in whole days with a sign, like "+2d".
// Sub-day shifts print as a duration.
func FormatDelta(delta time.Duration) string {
	if delta == 0 {
		return "0d"
	}
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	if delta%(24*time.Hour) == 0 {
		return fmt.Sprintf("%s%dd", sign, int(delta/(24*time.Hour)))
	}
	return sign + delta.String()
}

// FormatTimeAgo returns a compact age string like "2m ago".
func FormatTimeAgo(then time.Time, now time.Time) string {
	if then.IsZero() {
		return "-"
	}
	return FormatDurationShort(now.Sub(then)) + " ago"
}

// FormatDurationShort formats a duration using short units (s/m/h/d).
func FormatDurationShort(duration time.Duration) string {
	if duration < 0 {
		duration = 0
	}
	seconds := int64(duration.Truncate(time.Second).Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dd", hours/24)
}
