package ui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

// ReflowParagraphs wraps text to width, keeping blank-line paragraph breaks
// and collapsing whitespace inside paragraphs.
func ReflowParagraphs(value string, width int) string {
	value = strings.TrimSpace(normalizeNewlines(value))
	if value == "" {
		return ""
	}
	wrapped := make([]string, 0)
	for _, paragraph := range splitParagraphs(value) {
		normalized := strings.Join(strings.Fields(paragraph), " ")
		if normalized == "" {
			continue
		}
		wrapped = append(wrapped, wordwrap.String(normalized, width))
	}
	return strings.Join(wrapped, "\n\n")
}

// Bullet wraps value to width and prefixes it with "- ", indenting
// continuation lines to match.
func Bullet(value string, width int) string {
	wrapped := ReflowParagraphs(value, max(width-2, 1))
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		if i == 0 {
			lines[i] = "- " + line
		} else if line != "" {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}

func splitParagraphs(value string) []string {
	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		paragraphs = append(paragraphs, strings.Join(current, " "))
		current = nil
	}
	for _, line := range strings.Split(value, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paragraphs
}

// IndentBlock prefixes each non-empty line with spaces.
func IndentBlock(value string, spaces int) string {
	value = trimTrailingNewlines(value)
	if spaces <= 0 {
		return value
	}
	prefix := strings.Repeat(" ", spaces)
	lines := strings.Split(value, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
