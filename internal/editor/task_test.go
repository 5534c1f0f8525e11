package editor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/amonks/taskgraph/internal/validation"
	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
)

func TestRenderTaskTOML(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	content, err := RenderTaskTOML(DataFromOptions(store.CreateTaskOptions{
		Workspace: "acme",
		Project:   "launch",
		StartDate: &start,
	}))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		`title = ""`,
		`workspace = "acme"`,
		`project = "launch"`,
		`status = "todo"`,
		`start = "2025-01-06"`,
		`due = ""`,
		"milestone = false",
		"---",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in:\n%s", want, content)
		}
	}
	if strings.Contains(content, "description =") {
		t.Error("expected description to be in body")
	}
}

func TestParseTaskTOML(t *testing.T) {
	content := `title = "Pour foundation"
workspace = "acme"
project = "house"
status = "in_progress"
start = "2025-01-06"
due = "2025-01-08"
milestone = false
---

Rebar first.

Then concrete.
`
	parsed, err := ParseTaskTOML(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Status != string(schedule.StatusInProgress) {
		t.Errorf("expected normalized status, got %q", parsed.Status)
	}
	if parsed.Description != "Rebar first.\n\nThen concrete." {
		t.Errorf("unexpected description %q", parsed.Description)
	}

	opts := parsed.ToCreateOptions()
	if opts.Title != "Pour foundation" || opts.Workspace != "acme" || opts.Project != "house" {
		t.Fatalf("unexpected options %+v", opts)
	}
	if validation.FormatDate(opts.StartDate) != "2025-01-06" || validation.FormatDate(opts.DueDate) != "2025-01-08" {
		t.Fatalf("unexpected dates %v %v", opts.StartDate, opts.DueDate)
	}
}

func TestParseTaskTOMLErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		content string
		want    error
	}{
		"missing title":     {content: "title = \"\"\nworkspace = \"acme\"\n---\n", want: store.ErrEmptyTitle},
		"missing workspace": {content: "title = \"x\"\n---\n", want: store.ErrWorkspaceNotFound},
		"bad status":        {content: "title = \"x\"\nworkspace = \"acme\"\nstatus = \"blocked\"\n", want: schedule.ErrInvalidStatus},
		"bad date":          {content: "title = \"x\"\nworkspace = \"acme\"\ndue = \"soon\"\n", want: validation.ErrInvalidDate},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTaskTOML(tc.content)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := ParseTaskTOML("title = \"x\"\nworkspace = \"acme\"\npriority = 1\n"); err == nil {
		t.Fatal("expected unknown key error")
	}
	if _, err := ParseTaskTOML("title = \n"); err == nil {
		t.Fatal("expected TOML syntax error")
	}
}

func TestSplitFrontmatter(t *testing.T) {
	frontmatter, body := splitFrontmatter("\n\ntitle = \"x\"\n---\nbody\n")
	if frontmatter != "title = \"x\"" {
		t.Errorf("unexpected frontmatter %q", frontmatter)
	}
	if body != "body\n" {
		t.Errorf("unexpected body %q", body)
	}

	frontmatter, body = splitFrontmatter("title = \"x\"")
	if frontmatter != "title = \"x\"" || body != "" {
		t.Errorf("unexpected split %q %q", frontmatter, body)
	}
}

func TestEditTaskKeepsUnchangedContent(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "true")
	parsed, err := EditTask(TaskData{
		Title:       "Frame walls",
		Workspace:   "acme",
		Status:      "todo",
		Due:         "2025-01-10",
		Milestone:   true,
		Description: "Two storeys.",
	})
	if err != nil {
		t.Fatalf("edit task: %v", err)
	}
	if parsed.Title != "Frame walls" || !parsed.Milestone || parsed.Description != "Two storeys." {
		t.Fatalf("unexpected parse %+v", parsed)
	}
	if validation.FormatDate(parsed.ToCreateOptions().DueDate) != "2025-01-10" {
		t.Fatalf("expected due date to survive the round trip")
	}
}

func TestEditTaskReportsEditorFailure(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "false")
	if _, err := EditTask(TaskData{Title: "x", Workspace: "acme"}); err == nil {
		t.Fatal("expected editor failure")
	}
}
