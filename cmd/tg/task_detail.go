package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/amonks/taskgraph/internal/ui"
	"github.com/amonks/taskgraph/schedule"
)

// taskDetail is everything `tg task show` prints.
type taskDetail struct {
	Task         *schedule.Task                `json:"task"`
	Dependencies []schedule.BlockingDependency `json:"dependencies"`
	Dependents   []schedule.LinkedTask         `json:"dependents"`
	Timeline     *schedule.TimelineResult      `json:"timeline"`
	Events       []schedule.Event              `json:"events"`
}

func formatTaskTable(tasks []schedule.Task) string {
	prefixLengths := ui.UniqueIDPrefixLengths(taskIDs(tasks))
	builder := ui.NewTableBuilder([]string{"ID", "STATUS", "DATES", "PROJECT", "TITLE"}, len(tasks))
	for _, task := range tasks {
		status := string(task.Status)
		if task.IsDeleted() {
			status = "deleted"
		}
		project := task.Workspace
		if task.Project != "" {
			project += "/" + task.Project
		}
		builder.AddRow(
			ui.HighlightID(task.ID, ui.PrefixLength(prefixLengths, task.ID)),
			status,
			ui.FormatDateRange(task.StartDate, task.DueDate, task.IsMilestone),
			project,
			ui.TruncateTableCell(task.Title),
		)
	}
	return builder.String()
}

func formatTaskDetail(detail *taskDetail, width, eventLimit int) string {
	task := detail.Task
	var b strings.Builder

	fmt.Fprintf(&b, "ID:        %s\n", task.ID)
	fmt.Fprintf(&b, "Title:     %s\n", task.Title)
	fmt.Fprintf(&b, "Status:    %s\n", task.Status)
	project := task.Workspace
	if task.Project != "" {
		project += " / " + task.Project
	}
	fmt.Fprintf(&b, "Workspace: %s\n", project)
	fmt.Fprintf(&b, "Dates:     %s\n", ui.FormatDateRange(task.StartDate, task.DueDate, task.IsMilestone))

	if description := ui.RenderMarkdown(task.Description, width, 2); description != "" {
		b.WriteString("\nDescription:\n")
		b.WriteString(description)
		b.WriteString("\n")
	}

	if len(detail.Dependencies) > 0 {
		b.WriteString("\nDepends on:\n")
		for _, dep := range detail.Dependencies {
			line := fmt.Sprintf("%s %s %s (%s)", dep.Dependency.Type, dep.Predecessor.ID, dep.Predecessor.Title, dep.Predecessor.Status)
			if dep.IsBlocking {
				line += " [blocking]"
			}
			writeBullet(&b, line, width)
		}
	}

	if len(detail.Dependents) > 0 {
		b.WriteString("\nDependents:\n")
		for _, dep := range detail.Dependents {
			writeBullet(&b, fmt.Sprintf("%s %s %s (%s)", dep.Dependency.Type, dep.Task.ID, dep.Task.Title, dep.Task.Status), width)
		}
	}

	if detail.Timeline != nil && !detail.Timeline.Valid {
		b.WriteString("\nTimeline problems:\n")
		for _, problem := range detail.Timeline.Errors {
			writeBullet(&b, problem, width)
		}
	}

	if eventLimit > 0 && len(detail.Events) > 0 {
		recent := detail.Events
		if len(recent) > eventLimit {
			recent = recent[len(recent)-eventLimit:]
		}
		b.WriteString("\nRecent events:\n")
		for _, event := range recent {
			line := fmt.Sprintf("%s %s", event.At.UTC().Format("2006-01-02 15:04"), event.Name)
			if event.Actor != "" {
				line += " by " + event.Actor
			}
			writeBullet(&b, line, width)
		}
	}
	return b.String()
}

func formatBlockers(result *schedule.TransitionResult, width int) string {
	if result == nil || len(result.Blockers) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", result.Reason)
	for _, blocker := range result.Blockers {
		writeBullet(&b, blocker.Reason, width)
	}
	return b.String()
}

func formatReschedule(result *schedule.RescheduleResult, width int) string {
	var b strings.Builder
	task := result.Task
	fmt.Fprintf(&b, "Rescheduled %s: %s (%s)\n", task.ID,
		ui.FormatDateRange(task.StartDate, task.DueDate, task.IsMilestone), ui.FormatDelta(result.Delta))

	if result.Cascade != nil && result.Cascade.UpdatedCount > 0 {
		noun := "dependents"
		if result.Cascade.UpdatedCount == 1 {
			noun = "dependent"
		}
		fmt.Fprintf(&b, "Shifted %d %s:\n", result.Cascade.UpdatedCount, noun)
		builder := ui.NewTableBuilder([]string{"ID", "DATES", "TITLE"}, len(result.Cascade.Tasks))
		for _, shifted := range result.Cascade.Tasks {
			builder.AddRow(shifted.ID, ui.FormatDateRange(shifted.StartDate, shifted.DueDate, shifted.IsMilestone), ui.TruncateTableCell(shifted.Title))
		}
		b.WriteString(ui.IndentBlock(strings.TrimRight(builder.String(), "\n"), 2))
		b.WriteString("\n")
	}

	if len(result.Violations) > 0 {
		ids := make([]string, 0, len(result.Violations))
		for id := range result.Violations {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		b.WriteString("Timeline violations:\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "  %s:\n", id)
			for _, problem := range result.Violations[id] {
				b.WriteString(ui.IndentBlock(ui.Bullet(problem, width-4), 4))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func writeBullet(b *strings.Builder, value string, width int) {
	b.WriteString(ui.Bullet(value, width))
	b.WriteByte('\n')
}
