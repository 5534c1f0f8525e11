// Package sqlite is a store.Backend on a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
)

// DatabaseFile is the default database name inside a data directory.
const DatabaseFile = "taskgraph.db"

// Fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed store.Backend.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Backend = (*Store)(nil)

// Options configures a Store.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: opts.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS workspace_members (
			workspace_id TEXT NOT NULL REFERENCES workspaces(id),
			member TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (workspace_id, member)
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			start_date TEXT,
			due_date TEXT,
			is_milestone INTEGER NOT NULL DEFAULT 0,
			workspace TEXT NOT NULL,
			project TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			deleted_at TEXT
		);

		CREATE TABLE IF NOT EXISTS dependencies (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			depends_on_id TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TEXT NOT NULL,
			created_by TEXT NOT NULL DEFAULT '',
			deleted_at TEXT,
			deleted_by TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_scope ON tasks(workspace, project);
		CREATE INDEX IF NOT EXISTS idx_dependencies_task ON dependencies(task_id);
		CREATE INDEX IF NOT EXISTS idx_dependencies_depends_on ON dependencies(depends_on_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `id, title, description, status, start_date, due_date, is_milestone,
	workspace, project, created_at, updated_at, deleted_at`

func scanTask(row rowScanner) (*schedule.Task, error) {
	var (
		task                 schedule.Task
		status               string
		start, due, deleted  sql.NullString
		createdAt, updatedAt string
		milestone            bool
	)
	err := row.Scan(&task.ID, &task.Title, &task.Description, &status, &start, &due, &milestone,
		&task.Workspace, &task.Project, &createdAt, &updatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	task.Status = schedule.Status(status)
	task.IsMilestone = milestone
	if task.StartDate, err = parseNullTime(start); err != nil {
		return nil, err
	}
	if task.DueDate, err = parseNullTime(due); err != nil {
		return nil, err
	}
	if task.DeletedAt, err = parseNullTime(deleted); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if task.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &task, nil
}

const dependencyColumns = `id, task_id, depends_on_id, type, created_at, created_by, deleted_at, deleted_by`

func scanDependency(row rowScanner) (*schedule.Dependency, error) {
	var (
		dep       schedule.Dependency
		depType   string
		createdAt string
		deleted   sql.NullString
	)
	err := row.Scan(&dep.ID, &dep.TaskID, &dep.DependsOnID, &depType, &createdAt, &dep.CreatedBy, &deleted, &dep.DeletedBy)
	if err != nil {
		return nil, err
	}
	dep.Type = schedule.DependencyType(depType)
	if dep.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if dep.DeletedAt, err = parseNullTime(deleted); err != nil {
		return nil, err
	}
	return &dep, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", value.String, err)
	}
	return &parsed, nil
}

func taskNotFound(id string) error {
	return fmt.Errorf("%w: task %s", schedule.ErrNotFound, id)
}

// FindTask returns a task by ID, including soft-deleted tasks.
func (s *Store) FindTask(ctx context.Context, id string) (*schedule.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, taskNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find task %s: %w", id, err)
	}
	return task, nil
}

// SaveTask overwrites an existing task.
func (s *Store) SaveTask(ctx context.Context, task *schedule.Task) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, start_date = ?, due_date = ?,
			is_milestone = ?, workspace = ?, project = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?`,
		task.Title, task.Description, string(task.Status), formatNullTime(task.StartDate), formatNullTime(task.DueDate),
		task.IsMilestone, task.Workspace, task.Project, formatTime(task.UpdatedAt), formatNullTime(task.DeletedAt),
		task.ID)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return requireRow(result, taskNotFound(task.ID))
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (s *Store) workspaceExists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspaces WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("check workspace %s: %w", id, err)
	}
	return count > 0, nil
}

// CreateTask validates opts and inserts a new task.
func (s *Store) CreateTask(ctx context.Context, opts store.CreateTaskOptions) (*schedule.Task, error) {
	task, err := store.NewTask(opts, s.now())
	if err != nil {
		return nil, err
	}
	exists, err := s.workspaceExists(ctx, task.Workspace)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", store.ErrWorkspaceNotFound, task.Workspace)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, string(task.Status), formatNullTime(task.StartDate), formatNullTime(task.DueDate),
		task.IsMilestone, task.Workspace, task.Project, formatTime(task.CreatedAt), formatTime(task.UpdatedAt), formatNullTime(task.DeletedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: task %s", schedule.ErrConflict, task.ID)
		}
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// ListTasks returns the tasks matching filter, oldest first.
func (s *Store) ListTasks(ctx context.Context, filter store.TaskFilter) ([]schedule.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.Workspace != "" {
		clauses = append(clauses, "workspace = ?")
		args = append(args, filter.Workspace)
	}
	if filter.Project != "" {
		clauses = append(clauses, "project = ?")
		args = append(args, filter.Project)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []schedule.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus persists a new status.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status schedule.Status) (*schedule.Task, error) {
	status, err := schedule.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(status), formatTime(s.now()), id)
	if err != nil {
		return nil, fmt.Errorf("update status of %s: %w", id, err)
	}
	if err := requireRow(result, fmt.Errorf("%w: %s", schedule.ErrTaskNotFound, id)); err != nil {
		return nil, err
	}
	return s.FindTask(ctx, id)
}

// DeleteTask soft-deletes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	now := formatTime(s.now())
	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return requireRow(result, fmt.Errorf("%w: %s", schedule.ErrTaskNotFound, id))
}

// ResolveTaskID expands a prefix of a live task's ID.
func (s *Store) ResolveTaskID(ctx context.Context, prefix string) (string, error) {
	needle := strings.ToLower(strings.TrimSpace(prefix))
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks WHERE deleted_at IS NULL AND lower(id) LIKE ? || '%'`, needle)
	if err != nil {
		return "", fmt.Errorf("resolve task ID: %w", err)
	}
	defer rows.Close()

	var taskIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		taskIDs = append(taskIDs, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return store.ResolvePrefix(taskIDs, prefix)
}

func (s *Store) queryDependencies(ctx context.Context, where string, args ...any) ([]schedule.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+dependencyColumns+` FROM dependencies WHERE `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	deps := []schedule.Dependency{}
	for rows.Next() {
		dep, err := scanDependency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, *dep)
	}
	return deps, rows.Err()
}

// FindDependency returns an edge by ID, including soft-deleted edges.
func (s *Store) FindDependency(ctx context.Context, id string) (*schedule.Dependency, error) {
	deps, err := s.queryDependencies(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return nil, fmt.Errorf("%w: dependency %s", schedule.ErrNotFound, id)
	}
	return &deps[0], nil
}

// FindActiveByTask returns the active edges whose successor is taskID.
func (s *Store) FindActiveByTask(ctx context.Context, taskID string) ([]schedule.Dependency, error) {
	return s.queryDependencies(ctx, "task_id = ? AND deleted_at IS NULL", taskID)
}

// FindActiveByDependsOn returns the active edges whose predecessor is taskID.
func (s *Store) FindActiveByDependsOn(ctx context.Context, taskID string) ([]schedule.Dependency, error) {
	return s.queryDependencies(ctx, "depends_on_id = ? AND deleted_at IS NULL", taskID)
}

// FindActivePair returns the active edge from taskID to dependsOnID.
func (s *Store) FindActivePair(ctx context.Context, taskID, dependsOnID string) (*schedule.Dependency, error) {
	deps, err := s.queryDependencies(ctx, "task_id = ? AND depends_on_id = ? AND deleted_at IS NULL", taskID, dependsOnID)
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return nil, fmt.Errorf("%w: dependency %s -> %s", schedule.ErrNotFound, taskID, dependsOnID)
	}
	return &deps[0], nil
}

// CreateDependency inserts an edge.
func (s *Store) CreateDependency(ctx context.Context, dep *schedule.Dependency) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dependencies (`+dependencyColumns+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM dependencies))`,
		dep.ID, dep.TaskID, dep.DependsOnID, string(dep.Type), formatTime(dep.CreatedAt), dep.CreatedBy,
		formatNullTime(dep.DeletedAt), dep.DeletedBy)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: dependency %s", schedule.ErrConflict, dep.ID)
		}
		return fmt.Errorf("insert dependency: %w", err)
	}
	return nil
}

// SoftDeleteDependency marks an edge deleted.
func (s *Store) SoftDeleteDependency(ctx context.Context, id, actor string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE dependencies SET deleted_at = ?, deleted_by = ? WHERE id = ?`,
		formatTime(at), actor, id)
	if err != nil {
		return fmt.Errorf("delete dependency %s: %w", id, err)
	}
	return requireRow(result, fmt.Errorf("%w: dependency %s", schedule.ErrNotFound, id))
}

// ListDependencies returns the active edges whose successor is a live task
// in workspace and project.
func (s *Store) ListDependencies(ctx context.Context, workspace, project string) ([]schedule.Dependency, error) {
	return s.queryDependencies(ctx, `deleted_at IS NULL AND task_id IN (
		SELECT id FROM tasks WHERE workspace = ? AND project = ? AND deleted_at IS NULL)`, workspace, project)
}

// IsMember reports whether user belongs to workspace.
func (s *Store) IsMember(ctx context.Context, workspace, user string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspace_members WHERE workspace_id = ? AND member = ?`,
		workspace, user).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

// CreateWorkspace creates a workspace with owner as its first member.
func (s *Store) CreateWorkspace(ctx context.Context, name, owner string) (*store.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrEmptyWorkspaceName
	}
	ws := store.Workspace{ID: name, Members: []string{}, CreatedAt: s.now()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO workspaces (id, created_at) VALUES (?, ?)`, ws.ID, formatTime(ws.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", store.ErrWorkspaceExists, name)
		}
		return nil, fmt.Errorf("insert workspace: %w", err)
	}
	if owner != "" {
		if _, err := tx.ExecContext(ctx, `INSERT INTO workspace_members (workspace_id, member, position) VALUES (?, ?, 0)`,
			ws.ID, owner); err != nil {
			return nil, fmt.Errorf("insert owner: %w", err)
		}
		ws.Members = append(ws.Members, owner)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit workspace: %w", err)
	}
	return &ws, nil
}

// AddMember adds user to workspace. Adding an existing member is a no-op.
func (s *Store) AddMember(ctx context.Context, workspace, user string) (*store.Workspace, error) {
	exists, err := s.workspaceExists(ctx, workspace)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", store.ErrWorkspaceNotFound, workspace)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO workspace_members (workspace_id, member, position)
		VALUES (?, ?, (SELECT COUNT(*) FROM workspace_members WHERE workspace_id = ?))`,
		workspace, user, workspace)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return s.loadWorkspace(ctx, workspace)
}

func (s *Store) loadWorkspace(ctx context.Context, id string) (*store.Workspace, error) {
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM workspaces WHERE id = ?`, id).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrWorkspaceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", id, err)
	}
	ws := store.Workspace{ID: id, Members: []string{}}
	if ws.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT member FROM workspace_members WHERE workspace_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		ws.Members = append(ws.Members, user)
	}
	return &ws, rows.Err()
}

// ListWorkspaces returns all workspaces ordered by ID.
func (s *Store) ListWorkspaces(ctx context.Context) ([]store.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	var workspaceIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		workspaceIDs = append(workspaceIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	workspaces := make([]store.Workspace, 0, len(workspaceIDs))
	for _, id := range workspaceIDs {
		ws, err := s.loadWorkspace(ctx, id)
		if err != nil {
			return nil, err
		}
		workspaces = append(workspaces, *ws)
	}
	return workspaces, nil
}
