package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/amonks/taskgraph/events"
	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
	"github.com/amonks/taskgraph/store/storetest"
)

func openTestApp(t *testing.T, backend string) *App {
	t.Helper()
	opened, err := Open(Options{Backend: backend, DataDir: t.TempDir(), Now: storetest.NewClock().Now})
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	t.Cleanup(func() {
		if err := opened.Close(); err != nil {
			t.Errorf("close app: %v", err)
		}
	})
	if _, err := opened.Backend.CreateWorkspace(context.Background(), "acme", "alice"); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return opened
}

func createTask(t *testing.T, a *App, title string) *schedule.Task {
	t.Helper()
	task, err := a.CreateTask(context.Background(), store.CreateTaskOptions{
		Title:     title,
		Workspace: "acme",
		Project:   "launch",
	}, "alice")
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestOpenBackends(t *testing.T) {
	for _, backend := range []string{"", BackendJSONL, BackendSQLite, "SQLite"} {
		t.Run(backend, func(t *testing.T) {
			a := openTestApp(t, backend)
			task := createTask(t, a, "Write docs")
			found, err := a.ResolveTask(context.Background(), task.ID[:4])
			if err != nil {
				t.Fatalf("resolve task: %v", err)
			}
			if found.ID != task.ID {
				t.Fatalf("expected %s, got %s", task.ID, found.ID)
			}
		})
	}
}

func TestOpenSQLiteCreatesDatabaseFile(t *testing.T) {
	a := openTestApp(t, BackendSQLite)
	if _, err := os.Stat(filepath.Join(a.DataDir(), "taskgraph.db")); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "postgres", DataDir: t.TempDir()})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestOpenRequiresDataDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatal("expected error without data dir")
	}
}

func TestCreateTaskRequiresMembership(t *testing.T) {
	a := openTestApp(t, BackendJSONL)
	_, err := a.CreateTask(context.Background(), store.CreateTaskOptions{Title: "x", Workspace: "acme"}, "mallory")
	if !errors.Is(err, schedule.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestChangeStatusIsGated(t *testing.T) {
	a := openTestApp(t, BackendJSONL)
	ctx := context.Background()
	foundation := createTask(t, a, "Pour foundation")
	framing := createTask(t, a, "Frame walls")
	if _, err := a.Service.Graph.CreateDependency(ctx, framing.ID, foundation.ID, schedule.FinishToStart, "alice"); err != nil {
		t.Fatalf("create dependency: %v", err)
	}

	change, err := a.ChangeStatus(ctx, framing.ID, schedule.StatusDone, false, "alice")
	if !errors.Is(err, ErrTransitionBlocked) || !errors.Is(err, schedule.ErrConflict) {
		t.Fatalf("expected blocked conflict, got %v", err)
	}
	if change == nil || change.Transition.Allowed || change.Transition.BlockingCount != 1 {
		t.Fatalf("expected blocked verdict, got %+v", change)
	}
	stored, err := a.Backend.FindTask(ctx, framing.ID)
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if stored.Status != schedule.StatusTodo {
		t.Fatalf("expected status unchanged, got %s", stored.Status)
	}

	change, err = a.ChangeStatus(ctx, framing.ID, schedule.StatusDone, true, "alice")
	if err != nil {
		t.Fatalf("forced change: %v", err)
	}
	if !change.Forced || change.Task.Status != schedule.StatusDone {
		t.Fatalf("expected forced done, got %+v", change)
	}

	change, err = a.ChangeStatus(ctx, foundation.ID, "in_progress", false, "alice")
	if err != nil {
		t.Fatalf("ungated change: %v", err)
	}
	if change.Forced || change.Task.Status != schedule.StatusInProgress {
		t.Fatalf("unexpected change: %+v", change)
	}
}

func TestChangeStatusValidation(t *testing.T) {
	a := openTestApp(t, BackendJSONL)
	task := createTask(t, a, "Paint")
	ctx := context.Background()
	if _, err := a.ChangeStatus(ctx, task.ID, "archived", false, "alice"); !errors.Is(err, schedule.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := a.ChangeStatus(ctx, task.ID, schedule.StatusDone, false, "mallory"); !errors.Is(err, schedule.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := a.ChangeStatus(ctx, "missing", schedule.StatusDone, false, "alice"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	a := openTestApp(t, BackendJSONL)
	ctx := context.Background()
	task := createTask(t, a, "Paint")
	if err := a.DeleteTask(ctx, task.ID, "mallory"); !errors.Is(err, schedule.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if err := a.DeleteTask(ctx, task.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := a.ResolveTask(ctx, task.ID); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected deleted task to be gone, got %v", err)
	}
	if _, err := a.ChangeStatus(ctx, task.ID, schedule.StatusDone, false, "alice"); !errors.Is(err, schedule.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	records, err := events.ActivitySnapshot(filepath.Join(a.DataDir(), events.ActivityFile))
	if err != nil {
		t.Fatalf("activity snapshot: %v", err)
	}
	if len(records) != 2 || records[0].Action != schedule.ActionCreate || records[1].Action != schedule.ActionDelete {
		t.Fatalf("unexpected activity: %+v", records)
	}
}

func TestTaskEvents(t *testing.T) {
	a := openTestApp(t, BackendJSONL)
	ctx := context.Background()
	first := createTask(t, a, "First")
	second := createTask(t, a, "Second")
	if _, err := a.Service.Graph.CreateDependency(ctx, second.ID, first.ID, schedule.StartToStart, "alice"); err != nil {
		t.Fatalf("create dependency: %v", err)
	}
	got, err := a.TaskEvents(second.ID)
	if err != nil {
		t.Fatalf("task events: %v", err)
	}
	if len(got) != 1 || got[0].Name != schedule.EventDependencyAdded {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestAddMember(t *testing.T) {
	a := openTestApp(t, BackendJSONL)
	ctx := context.Background()

	if _, err := a.AddMember(ctx, "acme", "carol", "mallory"); !errors.Is(err, schedule.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := a.AddMember(ctx, "acme", " ", "alice"); !errors.Is(err, schedule.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	ws, err := a.AddMember(ctx, "acme", "bob", "alice")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if !ws.HasMember("bob") {
		t.Fatalf("expected bob in %v", ws.Members)
	}
	if _, err := a.CreateTask(ctx, store.CreateTaskOptions{Title: "Review", Workspace: "acme"}, "bob"); err != nil {
		t.Fatalf("create task as new member: %v", err)
	}
}

func TestWorkspaceActivity(t *testing.T) {
	a := openTestApp(t, BackendJSONL)
	ctx := context.Background()
	if _, err := a.Backend.CreateWorkspace(ctx, "other", "alice"); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	task := createTask(t, a, "Paint")
	if _, err := a.AddMember(ctx, "acme", "bob", "alice"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := a.CreateTask(ctx, store.CreateTaskOptions{Title: "Elsewhere", Workspace: "other"}, "alice"); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if _, err := a.WorkspaceActivity(ctx, "acme", "mallory"); !errors.Is(err, schedule.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	got, err := a.WorkspaceActivity(ctx, "acme", "bob")
	if err != nil {
		t.Fatalf("workspace activity: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %+v", got)
	}
	if got[0].Action != schedule.ActionCreate || got[0].EntityID != task.ID {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].Entity != "workspace" || got[1].Details["added_member"] != "bob" {
		t.Fatalf("unexpected second record: %+v", got[1])
	}
}
