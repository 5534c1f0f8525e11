package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

var (
	rendererMu sync.Mutex
	renderers  = map[int]*glamour.TermRenderer{}
)

// RenderMarkdown formats a task description for terminal output, indented
// by indent spaces. Blank input renders as "".
func RenderMarkdown(value string, width, indent int) string {
	value = trimTrailingNewlines(normalizeNewlines(value))
	if strings.TrimSpace(value) == "" {
		return ""
	}
	width = max(width, 1)
	indent = max(indent, 0)
	renderWidth := max(width-indent, 1)

	rendered := value
	if renderer := markdownRenderer(renderWidth); renderer != nil {
		if formatted, err := renderer.Render(value); err == nil {
			rendered = formatted
		}
	}
	rendered = trimTrailingNewlines(rendered)
	if strings.TrimSpace(rendered) == "" {
		return ""
	}
	return IndentBlock(rendered, indent)
}

func markdownRenderer(width int) *glamour.TermRenderer {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	if cached, ok := renderers[width]; ok {
		return cached
	}
	style := styles.ASCIIStyleConfig
	style.Item.BlockPrefix = "- "
	created, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	renderers[width] = created
	return created
}

func normalizeNewlines(value string) string {
	return strings.ReplaceAll(strings.ReplaceAll(value, "\r\n", "\n"), "\r", "\n")
}

func trimTrailingNewlines(value string) string {
	return strings.TrimRight(value, "\n")
}
