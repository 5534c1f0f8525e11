package schedule

import (
	"context"
	"time"
)

// TaskRepository loads and stores tasks.
type TaskRepository interface {
	// FindTask returns the task with the given ID, including soft-deleted
	// tasks. It returns an error matching ErrNotFound when none exists.
	FindTask(ctx context.Context, id string) (*Task, error)

	// SaveTask overwrites the stored task.
	SaveTask(ctx context.Context, task *Task) error
}

// DependencyRepository loads and stores dependency edges.
type DependencyRepository interface {
	// FindDependency returns an edge by ID, including soft-deleted edges.
	FindDependency(ctx context.Context, id string) (*Dependency, error)

	// FindActiveByTask returns active edges whose successor is taskID.
	FindActiveByTask(ctx context.Context, taskID string) ([]Dependency, error)

	// FindActiveByDependsOn returns active edges whose predecessor is taskID.
	FindActiveByDependsOn(ctx context.Context, taskID string) ([]Dependency, error)

	// FindActivePair returns the active edge from taskID to dependsOnID,
	// or an error matching ErrNotFound.
	FindActivePair(ctx context.Context, taskID, dependsOnID string) (*Dependency, error)

	// CreateDependency inserts a new edge.
	CreateDependency(ctx context.Context, dep *Dependency) error

	// SoftDeleteDependency marks an edge deleted.
	SoftDeleteDependency(ctx context.Context, id, actor string, at time.Time) error
}

// MemberChecker answers workspace membership questions.
type MemberChecker interface {
	IsMember(ctx context.Context, workspaceID, user string) (bool, error)
}

// Event names emitted by the engine.
const (
	EventDependencyAdded   = "dependency_added"
	EventDependentAdded    = "dependent_added"
	EventDependencyRemoved = "dependency_removed"
	EventDependentRemoved  = "dependent_removed"
	EventTimelineUpdated   = "timeline_updated"
)

// Event is a task-scoped notification.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaskID    string    `json:"task_id"`
	Workspace string    `json:"workspace"`
	Actor     string    `json:"actor"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// DependencyPayload accompanies the dependency events. Peer is the task on
// the other end of the edge from the event's task.
type DependencyPayload struct {
	Dependency Dependency  `json:"dependency"`
	Peer       TaskSummary `json:"peer"`
}

// TimelinePayload accompanies timeline_updated.
type TimelinePayload struct {
	SourceTaskID string        `json:"source_task_id"`
	Delta        time.Duration `json:"delta"`
	StartDate    *time.Time    `json:"start_date,omitempty"`
	DueDate      *time.Time    `json:"due_date,omitempty"`
}

// EventSink receives events. Failures are logged and otherwise ignored.
type EventSink interface {
	Emit(ctx context.Context, event Event) error
}

// Activity actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Activity is an audit record of a mutation.
type Activity struct {
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	Workspace string         `json:"workspace"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"at"`
}

// ActivityLogger records audit entries. Failures are logged and otherwise ignored.
type ActivityLogger interface {
	Record(ctx context.Context, activity Activity) error
}
