package gantt

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/padding"
	"github.com/muesli/reflow/truncate"
)

const (
	defaultWidth  = 80
	maxLabelWidth = 28
	minBarCells   = 10

	barCell       = "█"
	slackCell     = "·"
	milestoneCell = "◆"
)

var (
	criticalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	milestoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	headerStyle    = lipgloss.NewStyle().Bold(true)
)

// RenderOptions configures Render.
type RenderOptions struct {
	// Width is the total line width. Zero means 80.
	Width int

	// Color enables ANSI styling.
	Color bool
}

// Render draws the chart as text, one row per task. Bars sit at the planned
// dates and are followed by the task's slack.
func Render(chart *Chart, opts RenderOptions) string {
	if chart == nil {
		return ""
	}
	if len(chart.Rows) == 0 {
		return fmt.Sprintf("No tasks in %s/%s.\n", chart.Workspace, chart.Project)
	}
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	style := func(s lipgloss.Style, value string) string {
		if !opts.Color {
			return value
		}
		return s.Render(value)
	}

	labelWidth := 0
	for _, row := range chart.Rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Title))
	}
	labelWidth = min(labelWidth, maxLabelWidth)
	cells := max(width-labelWidth-1, minBarCells)
	span := max(chart.Days, 1)
	daysPerCell := (span + cells - 1) / cells

	var builder strings.Builder
	end := chart.Origin.AddDate(0, 0, chart.Days)
	title := fmt.Sprintf("%s/%s  %s → %s  (%s)", chart.Workspace, chart.Project,
		chart.Origin.Format(time.DateOnly), end.Format(time.DateOnly), pluralDays(chart.Days))
	builder.WriteString(style(headerStyle, title))
	builder.WriteByte('\n')
	builder.WriteString(strings.Repeat(" ", labelWidth+1))
	builder.WriteString(style(mutedStyle, ruler(span, daysPerCell)))
	builder.WriteByte('\n')

	for _, row := range chart.Rows {
		label := row.Title
		if lipgloss.Width(label) > labelWidth {
			label = truncate.StringWithTail(label, uint(labelWidth), "…")
		}
		builder.WriteString(padding.String(label, uint(labelWidth)))
		builder.WriteByte(' ')
		builder.WriteString(renderBar(row, daysPerCell, style))
		builder.WriteByte('\n')
	}
	return builder.String()
}

func renderBar(row Row, daysPerCell int, style func(lipgloss.Style, string) string) string {
	if !row.Scheduled {
		return style(mutedStyle, "(unscheduled)")
	}
	lead := strings.Repeat(" ", row.Offset/daysPerCell)
	if row.Milestone {
		return lead + style(milestoneStyle, milestoneCell)
	}
	barWidth := max(1, row.Duration/daysPerCell)
	bar := strings.Repeat(barCell, barWidth)
	if row.Critical {
		bar = style(criticalStyle, bar)
	} else {
		bar = style(barStyle, bar)
	}
	slack := ""
	if row.Slack > 0 {
		slack = style(mutedStyle, strings.Repeat(slackCell, max(1, row.Slack/daysPerCell)))
	}
	return lead + bar + slack
}

// ruler marks every seventh day.
func ruler(span, daysPerCell int) string {
	cells := (span + daysPerCell - 1) / daysPerCell
	var builder strings.Builder
	for cell := range cells {
		day := cell * daysPerCell
		if day%7 == 0 || day/7 != (day+daysPerCell-1)/7 {
			builder.WriteByte('|')
		} else {
			builder.WriteByte(' ')
		}
	}
	return strings.TrimRight(builder.String(), " ")
}

func pluralDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
