// Package storetest is a conformance suite for store.Backend
// implementations.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
)

// OpenFunc opens an empty backend whose clock is now.
type OpenFunc func(t *testing.T, now func() time.Time) store.Backend

// Epoch is the first instant the suite's clock reports.
var Epoch = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

// Clock ticks one second per call so generated IDs and orderings are
// deterministic.
type Clock struct {
	mu   sync.Mutex
	next time.Time
}

// NewClock returns a clock starting at Epoch.
func NewClock() *Clock {
	return &Clock{next: Epoch}
}

// Now returns the current tick and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(time.Second)
	return now
}

// Run runs the suite against backends returned by open.
func Run(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, backend store.Backend)
	}{
		{"Workspaces", testWorkspaces},
		{"CreateTask", testCreateTask},
		{"CreateTaskValidation", testCreateTaskValidation},
		{"SaveTask", testSaveTask},
		{"ListTasks", testListTasks},
		{"UpdateTaskStatus", testUpdateTaskStatus},
		{"DeleteTask", testDeleteTask},
		{"ResolveTaskID", testResolveTaskID},
		{"Dependencies", testDependencies},
		{"ListDependencies", testListDependencies},
		{"EngineCascade", testEngineCascade},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := open(t, NewClock().Now)
			t.Cleanup(func() {
				if err := backend.Close(); err != nil {
					t.Errorf("close backend: %v", err)
				}
			})
			tt.fn(t, backend)
		})
	}
}

func day(n int) *time.Time {
	value := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return &value
}

func mustWorkspace(t *testing.T, backend store.Backend, name string) {
	t.Helper()
	if _, err := backend.CreateWorkspace(context.Background(), name, "alice"); err != nil {
		t.Fatalf("create workspace %s: %v", name, err)
	}
}

func mustTask(t *testing.T, backend store.Backend, opts store.CreateTaskOptions) *schedule.Task {
	t.Helper()
	if opts.Workspace == "" {
		opts.Workspace = "acme"
	}
	if opts.Project == "" {
		opts.Project = "site"
	}
	task, err := backend.CreateTask(context.Background(), opts)
	if err != nil {
		t.Fatalf("create task %q: %v", opts.Title, err)
	}
	return task
}

func assertTime(t *testing.T, label string, got, want *time.Time) {
	t.Helper()
	if got == nil || want == nil {
		if got != want {
			t.Fatalf("%s: expected %v, got %v", label, want, got)
		}
		return
	}
	if !got.Equal(*want) {
		t.Fatalf("%s: expected %s, got %s", label, want, got)
	}
}

func testWorkspaces(t *testing.T, backend store.Backend) {
	ctx := context.Background()

	ws, err := backend.CreateWorkspace(ctx, "  acme ", "alice")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	if ws.ID != "acme" || !reflect.DeepEqual(ws.Members, []string{"alice"}) {
		t.Fatalf("unexpected workspace: %+v", ws)
	}

	if _, err := backend.CreateWorkspace(ctx, "acme", "bob"); !errors.Is(err, store.ErrWorkspaceExists) {
		t.Fatalf("expected ErrWorkspaceExists, got %v", err)
	}
	if _, err := backend.CreateWorkspace(ctx, " ", "bob"); !errors.Is(err, store.ErrEmptyWorkspaceName) {
		t.Fatalf("expected ErrEmptyWorkspaceName, got %v", err)
	}
	if _, err := backend.CreateWorkspace(ctx, "beta", ""); err != nil {
		t.Fatalf("create workspace without owner: %v", err)
	}

	ws, err = backend.AddMember(ctx, "acme", "bob")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	ws, err = backend.AddMember(ctx, "acme", "bob")
	if err != nil {
		t.Fatalf("add member twice: %v", err)
	}
	if !reflect.DeepEqual(ws.Members, []string{"alice", "bob"}) {
		t.Fatalf("expected members [alice bob], got %v", ws.Members)
	}
	if _, err := backend.AddMember(ctx, "missing", "bob"); !errors.Is(err, store.ErrWorkspaceNotFound) {
		t.Fatalf("expected ErrWorkspaceNotFound, got %v", err)
	}
	if !errors.Is(store.ErrWorkspaceNotFound, schedule.ErrNotFound) {
		t.Fatal("expected ErrWorkspaceNotFound to be a not-found error")
	}

	for _, tc := range []struct {
		workspace, user string
		want            bool
	}{
		{"acme", "alice", true},
		{"acme", "bob", true},
		{"acme", "carol", false},
		{"beta", "alice", false},
		{"missing", "alice", false},
	} {
		got, err := backend.IsMember(ctx, tc.workspace, tc.user)
		if err != nil {
			t.Fatalf("is member: %v", err)
		}
		if got != tc.want {
			t.Errorf("IsMember(%s, %s) = %v, want %v", tc.workspace, tc.user, got, tc.want)
		}
	}

	workspaces, err := backend.ListWorkspaces(ctx)
	if err != nil {
		t.Fatalf("list workspaces: %v", err)
	}
	if len(workspaces) != 2 || workspaces[0].ID != "acme" || workspaces[1].ID != "beta" {
		t.Fatalf("unexpected workspaces: %+v", workspaces)
	}
}

func testCreateTask(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")

	created := mustTask(t, backend, store.CreateTaskOptions{
		Title:       "  Pour foundation ",
		Description: "Concrete, 20cm",
		StartDate:   day(0),
		DueDate:     day(2),
	})
	if created.Title != "Pour foundation" || created.Status != schedule.StatusTodo {
		t.Fatalf("unexpected task: %+v", created)
	}
	if len(created.ID) != 8 {
		t.Fatalf("expected 8-character ID, got %q", created.ID)
	}

	found, err := backend.FindTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if found.Title != created.Title || found.Description != "Concrete, 20cm" || found.Workspace != "acme" || found.Project != "site" {
		t.Fatalf("unexpected stored task: %+v", found)
	}
	assertTime(t, "start", found.StartDate, day(0))
	assertTime(t, "due", found.DueDate, day(2))
	if !found.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("expected created_at %s, got %s", created.CreatedAt, found.CreatedAt)
	}

	milestone := mustTask(t, backend, store.CreateTaskOptions{Title: "Handover", DueDate: day(9), IsMilestone: true})
	found, err = backend.FindTask(ctx, milestone.ID)
	if err != nil {
		t.Fatalf("find milestone: %v", err)
	}
	if !found.IsMilestone {
		t.Fatal("expected milestone flag to persist")
	}
	assertTime(t, "milestone start", found.StartDate, day(9))

	if _, err := backend.FindTask(ctx, "nope"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testCreateTaskValidation(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")

	tests := []struct {
		name string
		opts store.CreateTaskOptions
		want error
	}{
		{"empty title", store.CreateTaskOptions{Title: " ", Workspace: "acme"}, store.ErrEmptyTitle},
		{"unknown workspace", store.CreateTaskOptions{Title: "x", Workspace: "nope"}, store.ErrWorkspaceNotFound},
		{"missing workspace", store.CreateTaskOptions{Title: "x"}, store.ErrWorkspaceNotFound},
		{"bad status", store.CreateTaskOptions{Title: "x", Workspace: "acme", Status: "archived"}, schedule.ErrInvalidStatus},
		{"inverted dates", store.CreateTaskOptions{Title: "x", Workspace: "acme", StartDate: day(3), DueDate: day(1)}, schedule.ErrInvalidDateRange},
	}
	for _, tt := range tests {
		if _, err := backend.CreateTask(ctx, tt.opts); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	tasks, err := backend.ListTasks(ctx, store.TaskFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func testSaveTask(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")
	task := mustTask(t, backend, store.CreateTaskOptions{Title: "Frame", StartDate: day(0), DueDate: day(1)})

	task.Title = "Frame walls"
	task.StartDate = day(4)
	task.DueDate = nil
	task.IsMilestone = true
	if err := backend.SaveTask(ctx, task); err != nil {
		t.Fatalf("save task: %v", err)
	}

	found, err := backend.FindTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	if found.Title != "Frame walls" || !found.IsMilestone {
		t.Fatalf("unexpected task: %+v", found)
	}
	assertTime(t, "start", found.StartDate, day(4))
	assertTime(t, "due", found.DueDate, nil)

	missing := *task
	missing.ID = "zzzzzzzz"
	if err := backend.SaveTask(ctx, &missing); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testListTasks(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")
	mustWorkspace(t, backend, "beta")

	first := mustTask(t, backend, store.CreateTaskOptions{Title: "First"})
	second := mustTask(t, backend, store.CreateTaskOptions{Title: "Second", Status: schedule.StatusDone})
	mustTask(t, backend, store.CreateTaskOptions{Title: "Other project", Project: "depot"})
	mustTask(t, backend, store.CreateTaskOptions{Title: "Other workspace", Workspace: "beta"})

	tasks, err := backend.ListTasks(ctx, store.TaskFilter{Workspace: "acme", Project: "site"})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != first.ID || tasks[1].ID != second.ID {
		t.Fatalf("expected [%s %s] in creation order, got %+v", first.ID, second.ID, tasks)
	}

	tasks, err = backend.ListTasks(ctx, store.TaskFilter{Statuses: []schedule.Status{schedule.StatusDone}})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != second.ID {
		t.Fatalf("expected only %s, got %+v", second.ID, tasks)
	}

	tasks, err = backend.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(tasks))
	}
}

func testUpdateTaskStatus(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")
	task := mustTask(t, backend, store.CreateTaskOptions{Title: "Paint"})

	updated, err := backend.UpdateTaskStatus(ctx, task.ID, schedule.StatusInProgress)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != schedule.StatusInProgress {
		t.Fatalf("expected in-progress, got %s", updated.Status)
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Fatalf("expected updated_at to advance past %s, got %s", task.UpdatedAt, updated.UpdatedAt)
	}

	if _, err := backend.UpdateTaskStatus(ctx, task.ID, "archived"); !errors.Is(err, schedule.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := backend.UpdateTaskStatus(ctx, "zzzzzzzz", schedule.StatusDone); !errors.Is(err, schedule.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func testDeleteTask(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")
	task := mustTask(t, backend, store.CreateTaskOptions{Title: "Demolish"})

	if err := backend.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	found, err := backend.FindTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("find deleted task: %v", err)
	}
	if !found.IsDeleted() {
		t.Fatal("expected task to be soft-deleted")
	}

	tasks, err := backend.ListTasks(ctx, store.TaskFilter{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected deleted task to be hidden, got %+v", tasks)
	}
	tasks, err = backend.ListTasks(ctx, store.TaskFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected deleted task with IncludeDeleted, got %d", len(tasks))
	}

	if err := backend.DeleteTask(ctx, task.ID); !errors.Is(err, schedule.ErrTaskNotFound) {
		t.Fatalf("expected deleting twice to fail, got %v", err)
	}
}

func testResolveTaskID(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")
	task := mustTask(t, backend, store.CreateTaskOptions{Title: "Wire"})

	got, err := backend.ResolveTaskID(ctx, task.ID[:6])
	if err != nil {
		t.Fatalf("resolve prefix: %v", err)
	}
	if got != task.ID {
		t.Fatalf("expected %s, got %s", task.ID, got)
	}
	got, err = backend.ResolveTaskID(ctx, task.ID)
	if err != nil || got != task.ID {
		t.Fatalf("resolve full ID: got %q, %v", got, err)
	}

	if _, err := backend.ResolveTaskID(ctx, "99999999"); !errors.Is(err, schedule.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	if err := backend.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := backend.ResolveTaskID(ctx, task.ID); !errors.Is(err, schedule.ErrTaskNotFound) {
		t.Fatalf("expected deleted task not to resolve, got %v", err)
	}
}

func testDependencies(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	created := Epoch.Add(time.Hour)
	first := &schedule.Dependency{ID: "dep-1", TaskID: "b", DependsOnID: "a", Type: schedule.FinishToStart, CreatedAt: created, CreatedBy: "alice"}
	second := &schedule.Dependency{ID: "dep-2", TaskID: "c", DependsOnID: "a", Type: schedule.StartToStart, CreatedAt: created}
	for _, dep := range []*schedule.Dependency{first, second} {
		if err := backend.CreateDependency(ctx, dep); err != nil {
			t.Fatalf("create dependency %s: %v", dep.ID, err)
		}
	}

	found, err := backend.FindDependency(ctx, "dep-1")
	if err != nil {
		t.Fatalf("find dependency: %v", err)
	}
	if found.TaskID != "b" || found.DependsOnID != "a" || found.Type != schedule.FinishToStart || found.CreatedBy != "alice" {
		t.Fatalf("unexpected dependency: %+v", found)
	}
	if !found.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %s, got %s", created, found.CreatedAt)
	}

	dependents, err := backend.FindActiveByDependsOn(ctx, "a")
	if err != nil {
		t.Fatalf("find by depends on: %v", err)
	}
	if len(dependents) != 2 || dependents[0].ID != "dep-1" || dependents[1].ID != "dep-2" {
		t.Fatalf("expected dep-1 and dep-2 in insertion order, got %+v", dependents)
	}

	pair, err := backend.FindActivePair(ctx, "c", "a")
	if err != nil || pair.ID != "dep-2" {
		t.Fatalf("find pair: got %+v, %v", pair, err)
	}
	if _, err := backend.FindActivePair(ctx, "a", "c"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for reversed pair, got %v", err)
	}

	if err := backend.SoftDeleteDependency(ctx, "dep-1", "bob", created.Add(time.Hour)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	incoming, err := backend.FindActiveByTask(ctx, "b")
	if err != nil {
		t.Fatalf("find by task: %v", err)
	}
	if len(incoming) != 0 {
		t.Fatalf("expected deleted edge to be hidden, got %+v", incoming)
	}
	if _, err := backend.FindActivePair(ctx, "b", "a"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	found, err = backend.FindDependency(ctx, "dep-1")
	if err != nil {
		t.Fatalf("find deleted dependency: %v", err)
	}
	if found.IsActive() || found.DeletedBy != "bob" {
		t.Fatalf("expected soft-deleted dependency, got %+v", found)
	}

	if _, err := backend.FindDependency(ctx, "dep-9"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := backend.SoftDeleteDependency(ctx, "dep-9", "bob", created); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testListDependencies(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")
	a := mustTask(t, backend, store.CreateTaskOptions{Title: "A"})
	b := mustTask(t, backend, store.CreateTaskOptions{Title: "B"})
	other := mustTask(t, backend, store.CreateTaskOptions{Title: "Other", Project: "depot"})
	otherPred := mustTask(t, backend, store.CreateTaskOptions{Title: "Other pred", Project: "depot"})

	edges := []*schedule.Dependency{
		{ID: "d1", TaskID: b.ID, DependsOnID: a.ID, Type: schedule.FinishToStart, CreatedAt: Epoch},
		{ID: "d2", TaskID: other.ID, DependsOnID: otherPred.ID, Type: schedule.FinishToStart, CreatedAt: Epoch},
	}
	for _, dep := range edges {
		if err := backend.CreateDependency(ctx, dep); err != nil {
			t.Fatalf("create dependency: %v", err)
		}
	}

	deps, err := backend.ListDependencies(ctx, "acme", "site")
	if err != nil {
		t.Fatalf("list dependencies: %v", err)
	}
	if len(deps) != 1 || deps[0].ID != "d1" {
		t.Fatalf("expected only d1, got %+v", deps)
	}
}

func testEngineCascade(t *testing.T, backend store.Backend) {
	ctx := context.Background()
	mustWorkspace(t, backend, "acme")
	a := mustTask(t, backend, store.CreateTaskOptions{Title: "A", StartDate: day(0), DueDate: day(2)})
	b := mustTask(t, backend, store.CreateTaskOptions{Title: "B", StartDate: day(2), DueDate: day(4)})

	service := schedule.New(schedule.Options{Tasks: backend, Dependencies: backend, Members: backend})
	if _, err := service.Graph.CreateDependency(ctx, b.ID, a.ID, schedule.FinishToStart, "alice"); err != nil {
		t.Fatalf("create dependency: %v", err)
	}
	if _, err := service.Graph.CreateDependency(ctx, a.ID, b.ID, schedule.FinishToStart, "alice"); !errors.Is(err, schedule.ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}

	result, err := service.Scheduler.SetTaskDates(ctx, a.ID, schedule.DateChange{StartDate: day(0), DueDate: day(3)}, "alice")
	if err != nil {
		t.Fatalf("set task dates: %v", err)
	}
	if result.Cascade.UpdatedCount != 1 {
		t.Fatalf("expected updatedCount 1, got %d", result.Cascade.UpdatedCount)
	}
	found, err := backend.FindTask(ctx, b.ID)
	if err != nil {
		t.Fatalf("find task: %v", err)
	}
	assertTime(t, "b.start", found.StartDate, day(3))
	assertTime(t, "b.due", found.DueDate, day(5))
}
