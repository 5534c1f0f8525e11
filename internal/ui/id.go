// Package ui formats taskgraph output for the terminal.
package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var idPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

// ColorEnabled reports whether stdout is a color-capable terminal.
func ColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth returns the width of stdout, or fallback when it is not a
// terminal.
func TerminalWidth(fallback int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}

// HighlightID returns an ID with its unique prefix highlighted.
func HighlightID(id string, prefixLen int) string {
	if id == "" {
		return id
	}
	if prefixLen <= 0 || prefixLen > len(id) {
		return id
	}
	if !ColorEnabled() {
		return id
	}
	return idPrefixStyle.Render(id[:prefixLen]) + id[prefixLen:]
}

// PrefixLength looks up id in lengths case-insensitively.
func PrefixLength(lengths map[string]int, id string) int {
	if lengths == nil || id == "" {
		return 0
	}
	return lengths[strings.ToLower(id)]
}

// UniqueIDPrefixLengths returns the shortest unique prefix length for each ID.
func UniqueIDPrefixLengths(ids []string) map[string]int {
	uniqueIDs := make([]string, 0, len(ids))
	seen := make(map[string]bool)
	for _, id := range ids {
		idLower := strings.ToLower(id)
		if idLower == "" || seen[idLower] {
			continue
		}
		seen[idLower] = true
		uniqueIDs = append(uniqueIDs, idLower)
	}

	lengths := make(map[string]int, len(uniqueIDs))
	for _, id := range uniqueIDs {
		lengths[id] = uniquePrefixLength(id, uniqueIDs)
	}
	return lengths
}

func uniquePrefixLength(id string, ids []string) int {
	for length := 1; length <= len(id); length++ {
		prefix := id[:length]
		unique := true
		for _, other := range ids {
			if other != id && strings.HasPrefix(other, prefix) {
				unique = false
				break
			}
		}
		if unique {
			return length
		}
	}
	return len(id)
}
