// Package app opens a configured backend together with the event and
// activity logs and wires the scheduling engine over them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/amonks/taskgraph/events"
	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
	"github.com/amonks/taskgraph/store/jsonl"
	"github.com/amonks/taskgraph/store/sqlite"
)

// Backend names accepted by Open.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned for a backend name Open does not know.
var ErrUnknownBackend = errors.New("unknown store backend")

// ErrTransitionBlocked is returned when predecessors hold up a status change.
var ErrTransitionBlocked = schedule.NewError(schedule.ErrConflict, "status change blocked")

// Options configures Open.
type Options struct {
	// Backend is "jsonl" or "sqlite". Empty means jsonl.
	Backend string

	// DataDir holds the store files and the event and activity logs.
	DataDir string

	// Logger receives side-effect failures. Defaults to discarding.
	Logger *log.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// App is an opened data directory.
type App struct {
	Backend  store.Backend
	Service  *schedule.Service
	Events   *events.EventLog
	Activity *events.ActivityLog
	Logger   *log.Logger

	dataDir string
	now     func() time.Time
}

// Open opens the store and logs under opts.DataDir.
func Open(opts Options) (*App, error) {
	dataDir := strings.TrimSpace(opts.DataDir)
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	backend, err := openBackend(opts.Backend, dataDir, now)
	if err != nil {
		return nil, err
	}
	eventLog, err := events.OpenEventLog(filepath.Join(dataDir, events.EventsFile))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	activityLog, err := events.OpenActivityLog(filepath.Join(dataDir, events.ActivityFile))
	if err != nil {
		_ = backend.Close()
		_ = eventLog.Close()
		return nil, err
	}

	return &App{
		Backend:  backend,
		Events:   eventLog,
		Activity: activityLog,
		Logger:   logger,
		Service: schedule.New(schedule.Options{
			Tasks:        backend,
			Dependencies: backend,
			Members:      backend,
			Events:       eventLog,
			Activity:     activityLog,
			Logger:       logger,
			Now:          now,
		}),
		dataDir: dataDir,
		now:     now,
	}, nil
}

func openBackend(name, dataDir string, now func() time.Time) (store.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendJSONL:
		return jsonl.Open(dataDir, jsonl.Options{Now: now})
	case BackendSQLite:
		return sqlite.Open(filepath.Join(dataDir, sqlite.DatabaseFile), sqlite.Options{Now: now})
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s, %s)", ErrUnknownBackend, name, BackendJSONL, BackendSQLite)
	}
}

// DataDir returns the opened data directory.
func (a *App) DataDir() string {
	return a.dataDir
}

// Close closes the store and both logs.
func (a *App) Close() error {
	return errors.Join(a.Backend.Close(), a.Events.Close(), a.Activity.Close())
}

// ResolveTask expands an ID prefix and loads the live task.
func (a *App) ResolveTask(ctx context.Context, prefix string) (*schedule.Task, error) {
	id, err := a.Backend.ResolveTaskID(ctx, prefix)
	if err != nil {
		return nil, err
	}
	task, err := a.Backend.FindTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted() {
		return nil, fmt.Errorf("%w: %s", schedule.ErrTaskNotFound, id)
	}
	return task, nil
}

func (a *App) requireMember(ctx context.Context, workspace, actor string) error {
	member, err := a.Backend.IsMember(ctx, workspace, actor)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return fmt.Errorf("%w: %s in %s", schedule.ErrNotMember, actor, workspace)
	}
	return nil
}

func (a *App) record(ctx context.Context, action, workspace, taskID, actor string, details map[string]any) {
	err := a.Activity.Record(ctx, schedule.Activity{
		Action:    action,
		Entity:    "task",
		EntityID:  taskID,
		Workspace: workspace,
		Actor:     actor,
		Details:   details,
		At:        a.now(),
	})
	if err != nil {
		a.Logger.Printf("record activity for %s: %v", taskID, err)
	}
}

// CreateTask creates a task on behalf of a workspace member.
func (a *App) CreateTask(ctx context.Context, opts store.CreateTaskOptions, actor string) (*schedule.Task, error) {
	if err := a.requireMember(ctx, opts.Workspace, actor); err != nil {
		return nil, err
	}
	task, err := a.Backend.CreateTask(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.record(ctx, schedule.ActionCreate, task.Workspace, task.ID, actor, map[string]any{"title": task.Title})
	return task, nil
}

// StatusChange reports a gated status update.
type StatusChange struct {
	Task       *schedule.Task             `json:"task"`
	Transition *schedule.TransitionResult `json:"transition"`
	Forced     bool                       `json:"forced,omitempty"`
}

// ChangeStatus gates the transition on the task's predecessors and persists
// it when allowed. With force the verdict is reported but not enforced. A
// blocked change returns the verdict alongside ErrTransitionBlocked.
func (a *App) ChangeStatus(ctx context.Context, taskID string, status schedule.Status, force bool, actor string) (*StatusChange, error) {
	status, err := schedule.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	task, err := a.Backend.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted() {
		return nil, fmt.Errorf("%w: %s", schedule.ErrTaskNotFound, taskID)
	}
	if err := a.requireMember(ctx, task.Workspace, actor); err != nil {
		return nil, err
	}
	verdict, err := a.Service.Status.CanTransitionToStatus(ctx, task.ID, status)
	if err != nil {
		return nil, err
	}
	change := &StatusChange{Task: task, Transition: verdict}
	if !verdict.Allowed {
		if !force {
			return change, fmt.Errorf("%w: %s", ErrTransitionBlocked, verdict.Reason)
		}
		change.Forced = true
	}

	previous := task.Status
	updated, err := a.Backend.UpdateTaskStatus(ctx, task.ID, status)
	if err != nil {
		return nil, err
	}
	change.Task = updated
	details := map[string]any{"from": previous, "to": status}
	if change.Forced {
		details["forced"] = true
	}
	a.record(ctx, schedule.ActionUpdate, updated.Workspace, updated.ID, actor, details)
	return change, nil
}

// DeleteTask soft-deletes a task on behalf of a workspace member.
func (a *App) DeleteTask(ctx context.Context, taskID, actor string) error {
	task, err := a.Backend.FindTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := a.requireMember(ctx, task.Workspace, actor); err != nil {
		return err
	}
	if err := a.Backend.DeleteTask(ctx, task.ID); err != nil {
		return err
	}
	a.record(ctx, schedule.ActionDelete, task.Workspace, task.ID, actor, nil)
	return nil
}

// TaskEvents returns the logged events about taskID, oldest first.
func (a *App) TaskEvents(taskID string) ([]schedule.Event, error) {
	all, err := events.EventSnapshot(a.Events.Path())
	if err != nil {
		return nil, err
	}
	return events.ForTask(all, taskID), nil
}

// WorkspaceActivity returns the audit trail of workspace, oldest first.
// Only members may read it.
func (a *App) WorkspaceActivity(ctx context.Context, workspace, actor string) ([]schedule.Activity, error) {
	if err := a.requireMember(ctx, workspace, actor); err != nil {
		return nil, err
	}
	all, err := events.ActivitySnapshot(a.Activity.Path())
	if err != nil {
		return nil, err
	}
	return events.ForWorkspace(all, workspace), nil
}

// AddMember adds user to workspace on behalf of an existing member.
func (a *App) AddMember(ctx context.Context, workspace, user, actor string) (*store.Workspace, error) {
	if strings.TrimSpace(user) == "" {
		return nil, schedule.NewError(schedule.ErrInvalidArgument, "user cannot be empty")
	}
	if err := a.requireMember(ctx, workspace, actor); err != nil {
		return nil, err
	}
	ws, err := a.Backend.AddMember(ctx, workspace, user)
	if err != nil {
		return nil, err
	}
	err = a.Activity.Record(ctx, schedule.Activity{
		Action:    schedule.ActionUpdate,
		Entity:    "workspace",
		EntityID:  ws.ID,
		Workspace: ws.ID,
		Actor:     actor,
		Details:   map[string]any{"added_member": user},
		At:        a.now(),
	})
	if err != nil {
		a.Logger.Printf("record activity for workspace %s: %v", ws.ID, err)
	}
	return ws, nil
}
