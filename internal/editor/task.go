package editor

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/amonks/taskgraph/internal/validation"
	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
)

// TaskData is what the task template is rendered from.
type TaskData struct {
	Title       string
	Workspace   string
	Project     string
	Status      string
	Start       string
	Due         string
	Milestone   bool
	Description string
}

// DataFromOptions pre-fills the template from command-line options.
func DataFromOptions(opts store.CreateTaskOptions) TaskData {
	status := string(opts.Status)
	if status == "" {
		status = string(schedule.StatusTodo)
	}
	return TaskData{
		Title:       opts.Title,
		Workspace:   opts.Workspace,
		Project:     opts.Project,
		Status:      status,
		Start:       formatOptionalDate(opts.StartDate),
		Due:         formatOptionalDate(opts.DueDate),
		Milestone:   opts.IsMilestone,
		Description: opts.Description,
	}
}

func formatOptionalDate(value *time.Time) string {
	if value == nil {
		return ""
	}
	return validation.FormatDate(value)
}

var taskTemplate = template.Must(template.New("task").Parse(`title = {{ printf "%q" .Title }}
workspace = {{ printf "%q" .Workspace }}
project = {{ printf "%q" .Project }}
status = {{ printf "%q" .Status }} # todo, in-progress, in-review, done
start = {{ printf "%q" .Start }} # YYYY-MM-DD, empty for none
due = {{ printf "%q" .Due }}
milestone = {{ .Milestone }} # start and due fall on the same day
---
{{ .Description }}
`))

// RenderTaskTOML renders data as TOML frontmatter followed by the
// description.
func RenderTaskTOML(data TaskData) (string, error) {
	var buf bytes.Buffer
	if err := taskTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// ParsedTask is the editor output.
type ParsedTask struct {
	Title       string `toml:"title"`
	Workspace   string `toml:"workspace"`
	Project     string `toml:"project"`
	Status      string `toml:"status"`
	Start       string `toml:"start"`
	Due         string `toml:"due"`
	Milestone   bool   `toml:"milestone"`
	Description string `toml:"-"`

	startDate *time.Time
	dueDate   *time.Time
}

// ParseTaskTOML parses and validates edited task content.
func ParseTaskTOML(content string) (*ParsedTask, error) {
	frontmatter, body := splitFrontmatter(content)

	var parsed ParsedTask
	meta, err := toml.Decode(frontmatter, &parsed)
	if err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse TOML: unknown key %s", undecoded[0])
	}
	parsed.Title = strings.TrimSpace(parsed.Title)
	parsed.Workspace = strings.TrimSpace(parsed.Workspace)
	parsed.Project = strings.TrimSpace(parsed.Project)
	parsed.Description = strings.TrimRight(strings.TrimLeft(body, "\n"), "\n")

	if parsed.Title == "" {
		return nil, store.ErrEmptyTitle
	}
	if parsed.Workspace == "" {
		return nil, fmt.Errorf("%w: missing workspace", store.ErrWorkspaceNotFound)
	}
	if parsed.Status != "" {
		status, err := schedule.ParseStatus(parsed.Status)
		if err != nil {
			return nil, err
		}
		parsed.Status = string(status)
	}
	if parsed.startDate, err = validation.ParseDate(parsed.Start); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if parsed.dueDate, err = validation.ParseDate(parsed.Due); err != nil {
		return nil, fmt.Errorf("due: %w", err)
	}
	return &parsed, nil
}

func splitFrontmatter(content string) (string, string) {
	content = strings.TrimLeft(content, "\n")
	if content == "" {
		return "", ""
	}

	lines := strings.Split(content, "\n")
	separatorIndex := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			separatorIndex = i
			break
		}
	}
	if separatorIndex == -1 {
		return content, ""
	}

	frontmatter := strings.Join(lines[:separatorIndex], "\n")
	body := strings.Join(lines[separatorIndex+1:], "\n")
	return frontmatter, body
}

// EditTask opens the editor pre-filled with data and returns the parsed
// result.
func EditTask(data TaskData) (*ParsedTask, error) {
	content, err := RenderTaskTOML(data)
	if err != nil {
		return nil, err
	}

	tmpfile, err := os.CreateTemp("", "tg-task-*.md")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpfile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpfile.WriteString(content); err != nil {
		tmpfile.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpfile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := Edit(tmpPath); err != nil {
		return nil, err
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read edited file: %w", err)
	}
	return ParseTaskTOML(string(edited))
}

// ToCreateOptions converts the parsed task to store options.
func (p *ParsedTask) ToCreateOptions() store.CreateTaskOptions {
	return store.CreateTaskOptions{
		Title:       p.Title,
		Description: p.Description,
		Workspace:   p.Workspace,
		Project:     p.Project,
		Status:      schedule.Status(p.Status),
		StartDate:   p.startDate,
		DueDate:     p.dueDate,
		IsMilestone: p.Milestone,
	}
}
