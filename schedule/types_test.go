package schedule

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"todo":          StatusTodo,
		" In-Progress ": StatusInProgress,
		"in_review":     StatusInReview,
		"DONE":          StatusDone,
	}
	for input, want := range tests {
		got, err := ParseStatus(input)
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseStatus(%q) = %q, want %q", input, got, want)
		}
	}

	_, err := ParseStatus("archived")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if want := `invalid status: "archived" (valid: todo, in-progress, in-review, done)`; err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestParseDependencyType(t *testing.T) {
	tests := map[string]DependencyType{
		"FS":               FinishToStart,
		"ss":               StartToStart,
		"finish-to-finish": FinishToFinish,
		"Start_To_Finish":  StartToFinish,
	}
	for input, want := range tests {
		got, err := ParseDependencyType(input)
		if err != nil {
			t.Errorf("ParseDependencyType(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDependencyType(%q) = %q, want %q", input, got, want)
		}
	}

	_, err := ParseDependencyType("blocks")
	if !errors.Is(err, ErrInvalidDependencyType) {
		t.Fatalf("expected ErrInvalidDependencyType, got %v", err)
	}
	assertKind(t, err, ErrInvalidArgument)
}

func TestDependencyTypeConstraint(t *testing.T) {
	tests := []struct {
		depType     DependencyType
		successor   DateEdge
		predecessor DateEdge
	}{
		{FinishToStart, DateStart, DateFinish},
		{StartToStart, DateStart, DateStart},
		{FinishToFinish, DateFinish, DateFinish},
		{StartToFinish, DateFinish, DateStart},
	}
	for _, tt := range tests {
		successor, predecessor := tt.depType.Constraint()
		if successor != tt.successor || predecessor != tt.predecessor {
			t.Errorf("%s: expected (%s, %s), got (%s, %s)", tt.depType, tt.successor, tt.predecessor, successor, predecessor)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{fmt.Errorf("%w: abc", ErrTaskNotFound), ErrNotFound},
		{ErrDependencyNotFound, ErrNotFound},
		{ErrSelfDependency, ErrInvalidArgument},
		{ErrNotMember, ErrPermissionDenied},
		{fmt.Errorf("wrap: %w", ErrCircularDependency), ErrConflict},
		{ErrDuplicateDependency, ErrConflict},
		{errors.New("boom"), nil},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.kind)
		}
	}
}

func TestTaskClone(t *testing.T) {
	original := &Task{ID: "a", StartDate: day(1), DueDate: day(2)}
	clone := original.Clone()
	shifted := clone.StartDate.Add(testDay)
	*clone.StartDate = shifted

	assertTime(t, "original.start", original.StartDate, day(1))
}
