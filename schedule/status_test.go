package schedule

import (
	"context"
	"errors"
	"testing"
)

func TestCanTransitionToStatus(t *testing.T) {
	tests := []struct {
		name        string
		depType     DependencyType
		predecessor Status
		target      Status
		allowed     bool
	}{
		{name: "FS blocks done until predecessor done", depType: FinishToStart, predecessor: StatusInProgress, target: StatusDone, allowed: false},
		{name: "FS allows done after predecessor done", depType: FinishToStart, predecessor: StatusDone, target: StatusDone, allowed: true},
		{name: "FS does not gate start", depType: FinishToStart, predecessor: StatusTodo, target: StatusInProgress, allowed: true},
		{name: "SS blocks start while predecessor todo", depType: StartToStart, predecessor: StatusTodo, target: StatusInProgress, allowed: false},
		{name: "SS allows start once predecessor started", depType: StartToStart, predecessor: StatusInProgress, target: StatusInProgress, allowed: true},
		{name: "SS does not gate done", depType: StartToStart, predecessor: StatusTodo, target: StatusDone, allowed: true},
		{name: "FF blocks done until predecessor done", depType: FinishToFinish, predecessor: StatusInReview, target: StatusDone, allowed: false},
		{name: "FF does not gate start", depType: FinishToFinish, predecessor: StatusTodo, target: StatusInProgress, allowed: true},
		{name: "SF blocks done while predecessor todo", depType: StartToFinish, predecessor: StatusTodo, target: StatusDone, allowed: false},
		{name: "SF allows done once predecessor started", depType: StartToFinish, predecessor: StatusInReview, target: StatusDone, allowed: true},
		{name: "SF does not gate start", depType: StartToFinish, predecessor: StatusTodo, target: StatusInProgress, allowed: true},
		{name: "review is never gated", depType: FinishToStart, predecessor: StatusTodo, target: StatusInReview, allowed: true},
		{name: "todo is never gated", depType: StartToStart, predecessor: StatusTodo, target: StatusTodo, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.store.addTask(Task{ID: "p", Title: "Predecessor", Status: tt.predecessor})
			env.store.addTask(Task{ID: "t"})
			env.store.addEdge("d", "t", "p", tt.depType)

			result, err := env.service.Status.CanTransitionToStatus(context.Background(), "t", tt.target)
			if err != nil {
				t.Fatalf("can transition: %v", err)
			}
			if result.Allowed != tt.allowed {
				t.Fatalf("expected allowed=%v, got %+v", tt.allowed, result)
			}
			if !result.Allowed && result.BlockingCount != 1 {
				t.Fatalf("expected 1 blocker, got %d", result.BlockingCount)
			}
		})
	}
}

func TestCanTransitionToStatusReason(t *testing.T) {
	env := newTestEnv(t)
	env.store.addTask(Task{ID: "p1", Title: "Pour foundation", Status: StatusInProgress})
	env.store.addTask(Task{ID: "p2", Title: "Order steel", Status: StatusTodo})
	env.store.addTask(Task{ID: "t", Title: "Frame walls"})
	env.store.addEdge("d1", "t", "p1", FinishToStart)
	env.store.addEdge("d2", "t", "p2", StartToFinish)

	result, err := env.service.Status.CanTransitionToStatus(context.Background(), "t", StatusDone)
	if err != nil {
		t.Fatalf("can transition: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected transition to be blocked")
	}
	if want := "Cannot move to done: blocked by 2 dependencies"; result.Reason != want {
		t.Fatalf("expected reason %q, got %q", want, result.Reason)
	}
	if len(result.Blockers) != 2 {
		t.Fatalf("expected 2 blockers, got %d", len(result.Blockers))
	}
	if want := `Task "Pour foundation" must be completed first (FS dependency)`; result.Blockers[0].Reason != want {
		t.Fatalf("expected blocker reason %q, got %q", want, result.Blockers[0].Reason)
	}
	if want := `Task "Order steel" must be started first (SF dependency)`; result.Blockers[1].Reason != want {
		t.Fatalf("expected blocker reason %q, got %q", want, result.Blockers[1].Reason)
	}
}

func TestCanTransitionToStatusSingularReason(t *testing.T) {
	env := newTestEnv(t)
	env.store.addTask(Task{ID: "p", Title: "Kickoff"})
	env.store.addTask(Task{ID: "t"})
	env.store.addEdge("d", "t", "p", StartToStart)

	result, err := env.service.Status.CanTransitionToStatus(context.Background(), "t", StatusInProgress)
	if err != nil {
		t.Fatalf("can transition: %v", err)
	}
	if want := "Cannot move to in-progress: blocked by 1 dependency"; result.Reason != want {
		t.Fatalf("expected reason %q, got %q", want, result.Reason)
	}
}

func TestCanTransitionToStatusIgnoresDeletedEdgesAndTasks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.addTask(Task{ID: "p"})
	env.store.addTask(Task{ID: "gone", DeletedAt: day(0)})
	env.store.addTask(Task{ID: "t"})
	env.store.addEdge("d1", "t", "p", FinishToStart)
	env.store.addEdge("d2", "t", "gone", FinishToStart)
	if err := env.store.SoftDeleteDependency(ctx, "d1", "alice", testDay0); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	result, err := env.service.Status.CanTransitionToStatus(ctx, "t", StatusDone)
	if err != nil {
		t.Fatalf("can transition: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected transition to be allowed, got %+v", result)
	}
}

func TestCanTransitionToStatusErrors(t *testing.T) {
	env := newTestEnv(t)
	env.store.addTask(Task{ID: "t"})
	ctx := context.Background()

	_, err := env.service.Status.CanTransitionToStatus(ctx, "t", Status("archived"))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	assertKind(t, err, ErrInvalidArgument)

	_, err = env.service.Status.CanTransitionToStatus(ctx, "missing", StatusDone)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
