// Package jsonl stores tasks, dependencies and workspaces as JSON Lines
// files in a data directory.
package jsonl

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
)

const (
	// TasksFile is the name of the JSONL file containing tasks.
	TasksFile = "tasks.jsonl"

	// DependenciesFile is the name of the JSONL file containing dependencies.
	DependenciesFile = "dependencies.jsonl"

	// WorkspacesFile is the name of the JSONL file containing workspaces.
	WorkspacesFile = "workspaces.jsonl"

	lockFile = "store.lock"
)

// Store is a file-backed store.Backend. Every call reads the files under a
// shared lock; mutations rewrite the files they touch under an exclusive
// lock, so separate processes can share a data directory.
type Store struct {
	dir string
	now func() time.Time
}

var _ store.Backend = (*Store)(nil)

// Options configures a Store.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// Open returns a store rooted at dir.
func Open(dir string, opts Options) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{dir: dir, now: opts.Now}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close is a no-op; files are not held open between calls.
func (s *Store) Close() error {
	return nil
}

type dataset struct {
	tasks      []schedule.Task
	deps       []schedule.Dependency
	workspaces []store.Workspace

	tasksDirty      bool
	depsDirty       bool
	workspacesDirty bool
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) load() (*dataset, error) {
	tasks, err := readJSONL[schedule.Task](s.path(TasksFile))
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	deps, err := readJSONL[schedule.Dependency](s.path(DependenciesFile))
	if err != nil {
		return nil, fmt.Errorf("read dependencies: %w", err)
	}
	workspaces, err := readJSONL[store.Workspace](s.path(WorkspacesFile))
	if err != nil {
		return nil, fmt.Errorf("read workspaces: %w", err)
	}
	return &dataset{tasks: tasks, deps: deps, workspaces: workspaces}, nil
}

func (s *Store) view(ctx context.Context, fn func(*dataset) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return withFileLock(s.path(lockFile), syscall.LOCK_SH, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		return fn(data)
	})
}

func (s *Store) update(ctx context.Context, fn func(*dataset) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return withFileLock(s.path(lockFile), syscall.LOCK_EX, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(data); err != nil {
			return err
		}
		if data.tasksDirty {
			if err := writeJSONL(s.path(TasksFile), data.tasks); err != nil {
				return fmt.Errorf("write tasks: %w", err)
			}
		}
		if data.depsDirty {
			if err := writeJSONL(s.path(DependenciesFile), data.deps); err != nil {
				return fmt.Errorf("write dependencies: %w", err)
			}
		}
		if data.workspacesDirty {
			if err := writeJSONL(s.path(WorkspacesFile), data.workspaces); err != nil {
				return fmt.Errorf("write workspaces: %w", err)
			}
		}
		return nil
	})
}

func (d *dataset) taskIndex(id string) int {
	return slices.IndexFunc(d.tasks, func(task schedule.Task) bool { return task.ID == id })
}

func (d *dataset) depIndex(id string) int {
	return slices.IndexFunc(d.deps, func(dep schedule.Dependency) bool { return dep.ID == id })
}

func (d *dataset) workspaceIndex(id string) int {
	return slices.IndexFunc(d.workspaces, func(ws store.Workspace) bool { return ws.ID == id })
}

func (d *dataset) activeDeps(match func(schedule.Dependency) bool) []schedule.Dependency {
	result := []schedule.Dependency{}
	for _, dep := range d.deps {
		if dep.IsActive() && match(dep) {
			result = append(result, dep)
		}
	}
	return result
}

func taskNotFound(id string) error {
	return fmt.Errorf("%w: task %s", schedule.ErrNotFound, id)
}

func dependencyNotFound(id string) error {
	return fmt.Errorf("%w: dependency %s", schedule.ErrNotFound, id)
}

// FindTask returns a task by ID, including soft-deleted tasks.
func (s *Store) FindTask(ctx context.Context, id string) (*schedule.Task, error) {
	var task *schedule.Task
	err := s.view(ctx, func(data *dataset) error {
		i := data.taskIndex(id)
		if i < 0 {
			return taskNotFound(id)
		}
		task = &data.tasks[i]
		return nil
	})
	return task, err
}

// SaveTask overwrites an existing task.
func (s *Store) SaveTask(ctx context.Context, task *schedule.Task) error {
	return s.update(ctx, func(data *dataset) error {
		i := data.taskIndex(task.ID)
		if i < 0 {
			return taskNotFound(task.ID)
		}
		data.tasks[i] = *task.Clone()
		data.tasksDirty = true
		return nil
	})
}

// CreateTask validates opts and appends a new task.
func (s *Store) CreateTask(ctx context.Context, opts store.CreateTaskOptions) (*schedule.Task, error) {
	task, err := store.NewTask(opts, s.now())
	if err != nil {
		return nil, err
	}
	err = s.update(ctx, func(data *dataset) error {
		if data.workspaceIndex(task.Workspace) < 0 {
			return fmt.Errorf("%w: %s", store.ErrWorkspaceNotFound, task.Workspace)
		}
		if data.taskIndex(task.ID) >= 0 {
			return fmt.Errorf("%w: task %s", schedule.ErrConflict, task.ID)
		}
		data.tasks = append(data.tasks, *task)
		data.tasksDirty = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns the tasks matching filter, oldest first.
func (s *Store) ListTasks(ctx context.Context, filter store.TaskFilter) ([]schedule.Task, error) {
	result := []schedule.Task{}
	err := s.view(ctx, func(data *dataset) error {
		for i := range data.tasks {
			if filter.Matches(&data.tasks[i]) {
				result = append(result, data.tasks[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(result, func(a, b schedule.Task) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return result, nil
}

// UpdateTaskStatus persists a new status.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status schedule.Status) (*schedule.Task, error) {
	status, err := schedule.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	var task *schedule.Task
	err = s.update(ctx, func(data *dataset) error {
		i := data.taskIndex(id)
		if i < 0 || data.tasks[i].IsDeleted() {
			return fmt.Errorf("%w: %s", schedule.ErrTaskNotFound, id)
		}
		data.tasks[i].Status = status
		data.tasks[i].UpdatedAt = s.now()
		data.tasksDirty = true
		task = data.tasks[i].Clone()
		return nil
	})
	return task, err
}

// DeleteTask soft-deletes a task. Its edges stay stored; the engine skips
// edges whose other end is deleted.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.update(ctx, func(data *dataset) error {
		i := data.taskIndex(id)
		if i < 0 || data.tasks[i].IsDeleted() {
			return fmt.Errorf("%w: %s", schedule.ErrTaskNotFound, id)
		}
		now := s.now()
		data.tasks[i].DeletedAt = &now
		data.tasks[i].UpdatedAt = now
		data.tasksDirty = true
		return nil
	})
}

// ResolveTaskID expands a prefix of a live task's ID.
func (s *Store) ResolveTaskID(ctx context.Context, prefix string) (string, error) {
	var taskIDs []string
	err := s.view(ctx, func(data *dataset) error {
		for _, task := range data.tasks {
			if !task.IsDeleted() {
				taskIDs = append(taskIDs, task.ID)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return store.ResolvePrefix(taskIDs, prefix)
}

// FindDependency returns an edge by ID, including soft-deleted edges.
func (s *Store) FindDependency(ctx context.Context, id string) (*schedule.Dependency, error) {
	var dep *schedule.Dependency
	err := s.view(ctx, func(data *dataset) error {
		i := data.depIndex(id)
		if i < 0 {
			return dependencyNotFound(id)
		}
		dep = &data.deps[i]
		return nil
	})
	return dep, err
}

// FindActiveByTask returns the active edges whose successor is taskID.
func (s *Store) FindActiveByTask(ctx context.Context, taskID string) ([]schedule.Dependency, error) {
	var deps []schedule.Dependency
	err := s.view(ctx, func(data *dataset) error {
		deps = data.activeDeps(func(dep schedule.Dependency) bool { return dep.TaskID == taskID })
		return nil
	})
	return deps, err
}

// FindActiveByDependsOn returns the active edges whose predecessor is taskID.
func (s *Store) FindActiveByDependsOn(ctx context.Context, taskID string) ([]schedule.Dependency, error) {
	var deps []schedule.Dependency
	err := s.view(ctx, func(data *dataset) error {
		deps = data.activeDeps(func(dep schedule.Dependency) bool { return dep.DependsOnID == taskID })
		return nil
	})
	return deps, err
}

// FindActivePair returns the active edge from taskID to dependsOnID.
func (s *Store) FindActivePair(ctx context.Context, taskID, dependsOnID string) (*schedule.Dependency, error) {
	var dep *schedule.Dependency
	err := s.view(ctx, func(data *dataset) error {
		matches := data.activeDeps(func(dep schedule.Dependency) bool {
			return dep.TaskID == taskID && dep.DependsOnID == dependsOnID
		})
		if len(matches) == 0 {
			return fmt.Errorf("%w: dependency %s -> %s", schedule.ErrNotFound, taskID, dependsOnID)
		}
		dep = &matches[0]
		return nil
	})
	return dep, err
}

// CreateDependency appends an edge.
func (s *Store) CreateDependency(ctx context.Context, dep *schedule.Dependency) error {
	return s.update(ctx, func(data *dataset) error {
		if data.depIndex(dep.ID) >= 0 {
			return fmt.Errorf("%w: dependency %s", schedule.ErrConflict, dep.ID)
		}
		data.deps = append(data.deps, *dep)
		data.depsDirty = true
		return nil
	})
}

// SoftDeleteDependency marks an edge deleted.
func (s *Store) SoftDeleteDependency(ctx context.Context, id, actor string, at time.Time) error {
	return s.update(ctx, func(data *dataset) error {
		i := data.depIndex(id)
		if i < 0 {
			return dependencyNotFound(id)
		}
		data.deps[i].DeletedAt = &at
		data.deps[i].DeletedBy = actor
		data.depsDirty = true
		return nil
	})
}

// ListDependencies returns the active edges whose successor is a live task
// in workspace and project.
func (s *Store) ListDependencies(ctx context.Context, workspace, project string) ([]schedule.Dependency, error) {
	var deps []schedule.Dependency
	err := s.view(ctx, func(data *dataset) error {
		inScope := make(map[string]bool)
		for _, task := range data.tasks {
			if !task.IsDeleted() && task.Workspace == workspace && task.Project == project {
				inScope[task.ID] = true
			}
		}
		deps = data.activeDeps(func(dep schedule.Dependency) bool { return inScope[dep.TaskID] })
		return nil
	})
	return deps, err
}

// IsMember reports whether user belongs to workspace. Unknown workspaces
// have no members.
func (s *Store) IsMember(ctx context.Context, workspace, user string) (bool, error) {
	var member bool
	err := s.view(ctx, func(data *dataset) error {
		i := data.workspaceIndex(workspace)
		member = i >= 0 && data.workspaces[i].HasMember(user)
		return nil
	})
	return member, err
}

// CreateWorkspace creates a workspace with owner as its first member.
func (s *Store) CreateWorkspace(ctx context.Context, name, owner string) (*store.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrEmptyWorkspaceName
	}
	ws := store.Workspace{ID: name, Members: []string{}, CreatedAt: s.now()}
	if owner != "" {
		ws.Members = append(ws.Members, owner)
	}
	err := s.update(ctx, func(data *dataset) error {
		if data.workspaceIndex(name) >= 0 {
			return fmt.Errorf("%w: %s", store.ErrWorkspaceExists, name)
		}
		data.workspaces = append(data.workspaces, ws)
		data.workspacesDirty = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// AddMember adds user to workspace. Adding an existing member is a no-op.
func (s *Store) AddMember(ctx context.Context, workspace, user string) (*store.Workspace, error) {
	var ws store.Workspace
	err := s.update(ctx, func(data *dataset) error {
		i := data.workspaceIndex(workspace)
		if i < 0 {
			return fmt.Errorf("%w: %s", store.ErrWorkspaceNotFound, workspace)
		}
		if !data.workspaces[i].HasMember(user) {
			data.workspaces[i].Members = append(data.workspaces[i].Members, user)
			data.workspacesDirty = true
		}
		ws = data.workspaces[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListWorkspaces returns all workspaces ordered by ID.
func (s *Store) ListWorkspaces(ctx context.Context) ([]store.Workspace, error) {
	var workspaces []store.Workspace
	err := s.view(ctx, func(data *dataset) error {
		workspaces = append([]store.Workspace{}, data.workspaces...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(workspaces, func(a, b store.Workspace) int { return cmp.Compare(a.ID, b.ID) })
	return workspaces, nil
}
