package validation

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-02")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	want := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseDate_RFC3339(t *testing.T) {
	got, err := ParseDate("2024-03-02T10:30:00+02:00")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	want := time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", got.Location())
	}
}

func TestParseDate_BlankClears(t *testing.T) {
	for _, input := range []string{"", "  ", "none", "NONE"} {
		got, err := ParseDate(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != nil {
			t.Errorf("expected nil for %q, got %v", input, got)
		}
	}
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("next tuesday")
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(nil); got != "-" {
		t.Errorf("expected -, got %q", got)
	}
	day := time.Date(2024, 3, 2, 23, 0, 0, 0, time.UTC)
	if got := FormatDate(&day); got != "2024-03-02" {
		t.Errorf("expected 2024-03-02, got %q", got)
	}
}
