// Package schedule implements the task dependency and timeline engine.
//
// Tasks are linked by typed dependency edges (finish-to-start, start-to-start,
// finish-to-finish, start-to-finish). The package keeps the active edge set
// acyclic, decides whether a status change is allowed by its predecessors,
// cascades date shifts through dependents, and reports timeline violations.
//
// Storage, membership, event delivery and audit logging are collaborators
// passed in through Options:
//   - Graph creates and removes edges
//   - StatusValidator gates status transitions
//   - Scheduler cascades date changes
//   - TimelineValidator reports date inconsistencies
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the state of a task.
type Status string

const (
	// StatusTodo indicates work has not started.
	StatusTodo Status = "todo"

	// StatusInProgress indicates the task is being worked on.
	StatusInProgress Status = "in-progress"

	// StatusInReview indicates the work is awaiting review.
	StatusInReview Status = "in-review"

	// StatusDone indicates the task is finished.
	StatusDone Status = "done"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone}
}

// IsValid returns true if the status is a known valid value.
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// IsStarted reports whether work on the task has begun.
func (s Status) IsStarted() bool {
	return s != StatusTodo
}

// ParseStatus normalizes user input into a Status.
func ParseStatus(value string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	status := Status(normalized)
	if !status.IsValid() {
		return "", invalidStatusError(value)
	}
	return status, nil
}

// DependencyType is the temporal relationship carried by a dependency edge.
type DependencyType string

const (
	// FinishToStart means the successor starts after the predecessor finishes.
	FinishToStart DependencyType = "FS"

	// StartToStart means the successor starts after the predecessor starts.
	StartToStart DependencyType = "SS"

	// FinishToFinish means the successor finishes after the predecessor finishes.
	FinishToFinish DependencyType = "FF"

	// StartToFinish means the successor finishes after the predecessor starts.
	StartToFinish DependencyType = "SF"
)

// ValidDependencyTypes returns all valid dependency types.
func ValidDependencyTypes() []DependencyType {
	return []DependencyType{FinishToStart, StartToStart, FinishToFinish, StartToFinish}
}

// IsValid returns true if the dependency type is a known valid value.
func (t DependencyType) IsValid() bool {
	_, ok := dependencyRules[t]
	return ok
}

// Name returns the long name of the dependency type, e.g. "finish-to-start".
func (t DependencyType) Name() string {
	rule, ok := dependencyRules[t]
	if !ok {
		return string(t)
	}
	return rule.name
}

// ParseDependencyType accepts short ("fs") and long ("finish-to-start") forms.
func ParseDependencyType(value string) (DependencyType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	for _, depType := range ValidDependencyTypes() {
		if normalized == strings.ToLower(string(depType)) || normalized == dependencyRules[depType].name {
			return depType, nil
		}
	}
	return "", invalidDependencyTypeError(value)
}

// Task is the slice of a task record the engine reads and rewrites.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	IsMilestone bool       `json:"is_milestone,omitempty"`

	// Workspace and Project scope dependency edges: both ends must match.
	Workspace string `json:"workspace"`
	Project   string `json:"project"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the task has been soft-deleted.
func (t *Task) IsDeleted() bool {
	return t.DeletedAt != nil
}

// Summary returns the projection of the task carried in events.
func (t *Task) Summary() TaskSummary {
	return TaskSummary{ID: t.ID, Title: t.Title, Status: t.Status}
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	clone := *t
	clone.StartDate = cloneTime(t.StartDate)
	clone.DueDate = cloneTime(t.DueDate)
	clone.DeletedAt = cloneTime(t.DeletedAt)
	return &clone
}

// NormalizeDates makes a milestone's start equal its due date (or its
// start, when only that is set) and rejects a start after the due date.
func (t *Task) NormalizeDates() error {
	if t.IsMilestone {
		switch {
		case t.DueDate != nil:
			due := *t.DueDate
			t.StartDate = &due
		case t.StartDate != nil:
			start := *t.StartDate
			t.DueDate = &start
		}
	}
	if t.StartDate != nil && t.DueDate != nil && t.StartDate.After(*t.DueDate) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidDateRange,
			t.StartDate.Format(time.DateOnly), t.DueDate.Format(time.DateOnly))
	}
	return nil
}

// TaskSummary is a minimal view of a peer task.
type TaskSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}

// Dependency is a directed edge: TaskID depends on DependsOnID.
type Dependency struct {
	ID string `json:"id"`

	// TaskID is the successor, the task that has the dependency.
	TaskID string `json:"task_id"`

	// DependsOnID is the predecessor.
	DependsOnID string `json:"depends_on_id"`

	Type      DependencyType `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	CreatedBy string         `json:"created_by,omitempty"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
	DeletedBy string         `json:"deleted_by,omitempty"`
}

// IsActive reports whether the edge takes part in graph traversals.
func (d *Dependency) IsActive() bool {
	return d.DeletedAt == nil
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
