package ui

import (
	"testing"
	"time"
)

func TestFormatDurationShort(t *testing.T) {
	cases := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{name: "seconds", duration: 45 * time.Second, want: "45s"},
		{name: "minutes", duration: 2*time.Minute + 10*time.Second, want: "2m"},
		{name: "hours", duration: 3*time.Hour + 5*time.Minute, want: "3h"},
		{name: "days", duration: 48 * time.Hour, want: "2d"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatDurationShort(tc.duration)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	then := now.Add(-2 * time.Minute)

	got := FormatTimeAgo(then, now)
	if got != "2m ago" {
		t.Fatalf("expected 2m ago, got %s", got)
	}
}

func TestFormatDateRange(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	due := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		start     *time.Time
		due       *time.Time
		milestone bool
		want      string
	}{
		{name: "none", want: "-"},
		{name: "range", start: &start, due: &due, want: "2025-01-06 → 2025-01-08"},
		{name: "same day", start: &start, due: &start, want: "2025-01-06"},
		{name: "milestone", start: &due, due: &due, milestone: true, want: "◆ 2025-01-08"},
		{name: "start only", start: &start, want: "2025-01-06 → -"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatDateRange(tc.start, tc.due, tc.milestone); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFormatDelta(t *testing.T) {
	cases := map[time.Duration]string{
		0:                 "0d",
		48 * time.Hour:    "+2d",
		-72 * time.Hour:   "-3d",
		36 * time.Hour:    "+36h0m0s",
		-90 * time.Minute: "-1h30m0s",
	}
	for delta, want := range cases {
		if got := FormatDelta(delta); got != want {
			t.Errorf("FormatDelta(%v) = %q, want %q", delta, got, want)
		}
	}
}

func TestFormatTimeAgoZero(t *testing.T) {
	if got := FormatTimeAgo(time.Time{}, time.Now()); got != "-" {
		t.Fatalf("expected -, got %s", got)
	}
}
