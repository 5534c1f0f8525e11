// Package store defines the persistence surface shared by the taskgraph
// backends. Implementations live in the jsonl and sqlite subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amonks/taskgraph/internal/ids"
	"github.com/amonks/taskgraph/schedule"
)

// Backend is everything the CLI and API need from storage.
type Backend interface {
	schedule.TaskRepository
	schedule.DependencyRepository
	schedule.MemberChecker

	// CreateTask validates opts and inserts a new task.
	CreateTask(ctx context.Context, opts CreateTaskOptions) (*schedule.Task, error)

	// ListTasks returns tasks matching filter ordered by creation time.
	ListTasks(ctx context.Context, filter TaskFilter) ([]schedule.Task, error)

	// UpdateTaskStatus persists a status. Callers gate the transition first.
	UpdateTaskStatus(ctx context.Context, id string, status schedule.Status) (*schedule.Task, error)

	// DeleteTask soft-deletes a task.
	DeleteTask(ctx context.Context, id string) error

	// ResolveTaskID expands a unique ID prefix to a full task ID.
	ResolveTaskID(ctx context.Context, prefix string) (string, error)

	// ListDependencies returns the active edges whose successor lives in the
	// given workspace and project.
	ListDependencies(ctx context.Context, workspace, project string) ([]schedule.Dependency, error)

	CreateWorkspace(ctx context.Context, name, owner string) (*Workspace, error)
	AddMember(ctx context.Context, workspace, user string) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)

	Close() error
}

// Workspace is a tenancy scope. Its ID is its name.
type Workspace struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether user belongs to the workspace.
func (w *Workspace) HasMember(user string) bool {
	return slices.Contains(w.Members, user)
}

var (
	// ErrEmptyTitle is returned when a task is created without a title.
	ErrEmptyTitle = schedule.NewError(schedule.ErrInvalidArgument, "title cannot be empty")

	// ErrEmptyWorkspaceName is returned when a workspace is created without a name.
	ErrEmptyWorkspaceName = schedule.NewError(schedule.ErrInvalidArgument, "workspace name cannot be empty")

	// ErrWorkspaceNotFound is returned when a workspace doesn't exist.
	ErrWorkspaceNotFound = schedule.NewError(schedule.ErrNotFound, "workspace not found")

	// ErrWorkspaceExists is returned when a workspace name is taken.
	ErrWorkspaceExists = schedule.NewError(schedule.ErrConflict, "workspace already exists")

	// ErrAmbiguousTaskID is returned when an ID prefix matches multiple tasks.
	ErrAmbiguousTaskID = schedule.NewError(schedule.ErrInvalidArgument, "ambiguous task ID prefix")
)

// CreateTaskOptions describes a new task.
type CreateTaskOptions struct {
	Title       string
	Description string
	Workspace   string
	Project     string

	// Status defaults to todo.
	Status schedule.Status

	StartDate   *time.Time
	DueDate     *time.Time
	IsMilestone bool
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	Workspace string
	Project   string
	Statuses  []schedule.Status

	// IncludeDeleted includes soft-deleted tasks.
	IncludeDeleted bool
}

// Matches reports whether task passes the filter.
func (f TaskFilter) Matches(task *schedule.Task) bool {
	if task.IsDeleted() && !f.IncludeDeleted {
		return false
	}
	if f.Workspace != "" && task.Workspace != f.Workspace {
		return false
	}
	if f.Project != "" && task.Project != f.Project {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, task.Status) {
		return false
	}
	return true
}

// NewTask validates opts and builds the task a backend should insert. The
// workspace's existence is checked by the backend.
func NewTask(opts CreateTaskOptions, now time.Time) (*schedule.Task, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if strings.TrimSpace(opts.Workspace) == "" {
		return nil, fmt.Errorf("%w: missing workspace", ErrWorkspaceNotFound)
	}

	status := opts.Status
	if status == "" {
		status = schedule.StatusTodo
	}
	status, err := schedule.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}

	task := &schedule.Task{
		ID:          ids.NewTaskID(title, now),
		Title:       title,
		Description: opts.Description,
		Status:      status,
		StartDate:   opts.StartDate,
		DueDate:     opts.DueDate,
		IsMilestone: opts.IsMilestone,
		Workspace:   opts.Workspace,
		Project:     opts.Project,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := task.NormalizeDates(); err != nil {
		return nil, err
	}
	return task, nil
}

// ResolvePrefix maps ids.Resolve errors onto store errors.
func ResolvePrefix(taskIDs []string, prefix string) (string, error) {
	id, err := ids.Resolve(taskIDs, prefix)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, ids.ErrAmbiguousPrefix):
		return "", fmt.Errorf("%w: %s", ErrAmbiguousTaskID, prefix)
	case errors.Is(err, ids.ErrNoMatch):
		return "", fmt.Errorf("%w: %s", schedule.ErrTaskNotFound, prefix)
	default:
		return "", err
	}
}
