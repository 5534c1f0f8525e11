package ui

import "testing"

func TestPrefixLength(t *testing.T) {
	tests := []struct {
		name   string
		length map[string]int
		id     string
		want   int
	}{
		{
			name:   "case insensitive lookup",
			length: map[string]int{"abc123": 4},
			id:     "ABC123",
			want:   4,
		},
		{
			name:   "missing id",
			length: map[string]int{"abc123": 4},
			id:     "",
			want:   0,
		},
		{
			name:   "nil map",
			length: nil,
			id:     "ABC123",
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrefixLength(tt.length, tt.id); got != tt.want {
				t.Fatalf("PrefixLength() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUniqueIDPrefixLengths(t *testing.T) {
	lengths := UniqueIDPrefixLengths([]string{"abc123", "abd456", "x9", "ABC123", ""})
	want := map[string]int{"abc123": 3, "abd456": 3, "x9": 1}
	if len(lengths) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), lengths)
	}
	for id, length := range want {
		if lengths[id] != length {
			t.Errorf("lengths[%q] = %d, want %d", id, lengths[id], length)
		}
	}
}

func TestHighlightIDWithoutColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if got := HighlightID("abc123", 3); got != "abc123" {
		t.Fatalf("expected plain id, got %q", got)
	}
	if got := HighlightID("abc123", 10); got != "abc123" {
		t.Fatalf("expected plain id for long prefix, got %q", got)
	}
}

func TestColorEnabledHonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if ColorEnabled() {
		t.Fatal("expected color disabled")
	}
}
