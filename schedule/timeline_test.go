package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidateTimelineValid(t *testing.T) {
	env := newTestEnv(t)
	env.store.addTask(Task{ID: "a", StartDate: day(0), DueDate: day(2)})
	env.store.addTask(Task{ID: "b", StartDate: day(2), DueDate: day(4)})
	env.store.addEdge("e1", "b", "a", FinishToStart)

	result, err := env.service.Timeline.ValidateTimeline(context.Background(), "b")
	if err != nil {
		t.Fatalf("validate timeline: %v", err)
	}
	if !result.Valid || len(result.Errors) != 0 {
		t.Fatalf("expected valid timeline, got %+v", result)
	}
}

func TestValidateTimelineConstraints(t *testing.T) {
	tests := []struct {
		name      string
		depType   DependencyType
		pred      Task
		task      Task
		violation bool
	}{
		{name: "FS start before predecessor due", depType: FinishToStart, pred: Task{StartDate: day(0), DueDate: day(3)}, task: Task{StartDate: day(2), DueDate: day(5)}, violation: true},
		{name: "FS start on predecessor due", depType: FinishToStart, pred: Task{StartDate: day(0), DueDate: day(3)}, task: Task{StartDate: day(3), DueDate: day(5)}},
		{name: "SS start before predecessor start", depType: StartToStart, pred: Task{StartDate: day(2), DueDate: day(3)}, task: Task{StartDate: day(1), DueDate: day(5)}, violation: true},
		{name: "SS start after predecessor start", depType: StartToStart, pred: Task{StartDate: day(2), DueDate: day(3)}, task: Task{StartDate: day(2), DueDate: day(5)}},
		{name: "FF due before predecessor due", depType: FinishToFinish, pred: Task{StartDate: day(0), DueDate: day(4)}, task: Task{StartDate: day(0), DueDate: day(3)}, violation: true},
		{name: "FF due after predecessor due", depType: FinishToFinish, pred: Task{StartDate: day(0), DueDate: day(4)}, task: Task{StartDate: day(0), DueDate: day(5)}},
		{name: "SF due before predecessor start", depType: StartToFinish, pred: Task{StartDate: day(3), DueDate: day(4)}, task: Task{StartDate: day(0), DueDate: day(2)}, violation: true},
		{name: "SF due after predecessor start", depType: StartToFinish, pred: Task{StartDate: day(3), DueDate: day(4)}, task: Task{StartDate: day(0), DueDate: day(3)}},
		{name: "missing dates skip the edge", depType: FinishToStart, pred: Task{StartDate: day(0)}, task: Task{StartDate: day(0), DueDate: day(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			pred := tt.pred
			pred.ID, pred.Title = "p", "Lay bricks"
			task := tt.task
			task.ID = "t"
			env.store.addTask(pred)
			env.store.addTask(task)
			env.store.addEdge("e", "t", "p", tt.depType)

			result, err := env.service.Timeline.ValidateTimeline(context.Background(), "t")
			if err != nil {
				t.Fatalf("validate timeline: %v", err)
			}
			if result.Valid == tt.violation {
				t.Fatalf("expected violation=%v, got %+v", tt.violation, result)
			}
			if tt.violation {
				if len(result.Errors) != 1 {
					t.Fatalf("expected 1 error, got %v", result.Errors)
				}
				if !strings.Contains(result.Errors[0], `"Lay bricks"`) || !strings.Contains(result.Errors[0], string(tt.depType)) {
					t.Fatalf("expected error to name the predecessor and type, got %q", result.Errors[0])
				}
			}
		})
	}
}

func TestValidateTimelineAccumulates(t *testing.T) {
	env := newTestEnv(t)
	env.store.addTask(Task{ID: "p1", Title: "First", StartDate: day(0), DueDate: day(5)})
	env.store.addTask(Task{ID: "p2", Title: "Second", StartDate: day(4), DueDate: day(6)})
	env.store.addTask(Task{ID: "t", StartDate: day(3), DueDate: day(1), IsMilestone: true})
	env.store.addEdge("e1", "t", "p1", FinishToStart)
	env.store.addEdge("e2", "t", "p2", StartToStart)

	result, err := env.service.Timeline.ValidateTimeline(context.Background(), "t")
	if err != nil {
		t.Fatalf("validate timeline: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid timeline")
	}
	want := []string{
		"Milestone must have the same start and due date (start 2025-01-09, due 2025-01-07)",
		"Start date 2025-01-09 is after due date 2025-01-07",
		`Start date 2025-01-09 must not be before the due date 2025-01-11 of "First" (FS dependency)`,
		`Start date 2025-01-09 must not be before the start date 2025-01-10 of "Second" (SS dependency)`,
	}
	if len(result.Errors) != len(want) {
		t.Fatalf("expected %d errors, got %d: %v", len(want), len(result.Errors), result.Errors)
	}
	for i := range want {
		if result.Errors[i] != want[i] {
			t.Errorf("error %d: expected %q, got %q", i, want[i], result.Errors[i])
		}
	}
}

func TestValidateTimelineMissingTask(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Timeline.ValidateTimeline(context.Background(), "missing")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
