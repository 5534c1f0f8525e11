package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateTableCellCountsRunes(t *testing.T) {
	value := strings.Repeat("a", tableCellMaxWidth-1) + "é"

	got := TruncateTableCell(value)

	if got != value {
		t.Fatalf("expected value to remain untruncated, got %q", got)
	}
}

func TestTruncateTableCellTruncatesLongValues(t *testing.T) {
	got := TruncateTableCell(strings.Repeat("a", tableCellMaxWidth+10))

	if width := lipgloss.Width(got); width != tableCellMaxWidth {
		t.Fatalf("expected width %d, got %d", tableCellMaxWidth, width)
	}
	if !strings.HasSuffix(got, tableCellEllipsis) {
		t.Fatalf("expected ellipsis, got %q", got)
	}
}

func TestTruncateTableCellNormalizesLineBreaks(t *testing.T) {
	value := "Hello\nWorld\r\nAgain\tTab"

	got := TruncateTableCell(value)

	if got != "Hello World Again Tab" {
		t.Fatalf("expected line breaks to normalize, got %q", got)
	}
}

func TestTruncateTableCellIgnoresANSICodes(t *testing.T) {
	value := "\x1b[1m\x1b[36m" + strings.Repeat("a", tableCellMaxWidth) + "\x1b[0m"

	got := TruncateTableCell(value)

	if got != value {
		t.Fatalf("expected value to remain untruncated, got %q", got)
	}
}

func TestFormatTableAlignsColumns(t *testing.T) {
	builder := NewTableBuilder([]string{"ID", "TITLE", "STATUS"}, 2)
	builder.AddRow("abc", "Pour foundation", "done")
	builder.AddRow("\x1b[1ma\x1b[0mbcdef", "Frame", "todo")

	got := builder.String()

	expected := "ID      TITLE            STATUS\n" +
		"abc     Pour foundation  done\n" +
		"\x1b[1ma\x1b[0mbcdef  Frame            todo\n"
	if got != expected {
		t.Fatalf("unexpected table:\n%q\nwant:\n%q", got, expected)
	}
}

func TestFormatTableNormalizesLineBreaks(t *testing.T) {
	headers := []string{"COL"}
	rows := [][]string{{"Hello\nWorld\r\nAgain\tTab"}}

	got := FormatTable(headers, rows)

	expected := "COL\nHello World Again Tab\n"
	if got != expected {
		t.Fatalf("expected normalized table output, got %q", got)
	}
}
