package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
	"github.com/amonks/taskgraph/store/storetest"
)

func newTestStore(t *testing.T, now func() time.Time) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{Now: now})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, now func() time.Time) store.Backend {
		return newTestStore(t, now)
	})
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(" ", Options{}); err == nil {
		t.Fatal("expected error for blank data dir")
	}
}

func TestStoreWritesJSONLines(t *testing.T) {
	s := newTestStore(t, storetest.NewClock().Now)
	ctx := context.Background()

	if _, err := s.CreateWorkspace(ctx, "acme", "alice"); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	for _, title := range []string{"One", "Two"} {
		if _, err := s.CreateTask(ctx, store.CreateTaskOptions{Title: title, Workspace: "acme"}); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), TasksFile))
	if err != nil {
		t.Fatalf("read tasks file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], `"title":"One"`) {
		t.Fatalf("expected first line to hold task One, got %s", lines[0])
	}

	if _, err := os.Stat(filepath.Join(s.Dir(), DependenciesFile)); !os.IsNotExist(err) {
		t.Fatalf("expected dependencies file to be untouched, got %v", err)
	}
}

func TestStoreReadsBlankLinesAndReportsCorruption(t *testing.T) {
	dir := t.TempDir()
	content := `{"id":"abc","title":"Kept","status":"todo","workspace":"acme","project":""}` + "\n\n"
	if err := os.WriteFile(filepath.Join(dir, TasksFile), []byte(content), 0644); err != nil {
		t.Fatalf("write tasks: %v", err)
	}
	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	task, err := s.FindTask(context.Background(), "abc")
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if task.Title != "Kept" || task.Status != schedule.StatusTodo {
		t.Fatalf("unexpected task: %+v", task)
	}

	if err := os.WriteFile(filepath.Join(dir, DependenciesFile), []byte("{not json\n"), 0644); err != nil {
		t.Fatalf("write dependencies: %v", err)
	}
	_, err = s.FindActiveByTask(context.Background(), "abc")
	if err == nil || !strings.Contains(err.Error(), "parse line 1") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestStoreIsSharedAcrossHandles(t *testing.T) {
	dir := t.TempDir()
	clock := storetest.NewClock()
	first, err := Open(dir, Options{Now: clock.Now})
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	second, err := Open(dir, Options{Now: clock.Now})
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	ctx := context.Background()

	if _, err := first.CreateWorkspace(ctx, "acme", "alice"); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	ok, err := second.IsMember(ctx, "acme", "alice")
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !ok {
		t.Fatal("expected second handle to see the workspace")
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	s := newTestStore(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.ListTasks(ctx, store.TaskFilter{}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
