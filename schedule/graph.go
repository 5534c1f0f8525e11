package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/amonks/taskgraph/internal/ids"
)

// Graph validates and mutates dependency edges.
type Graph struct {
	tasks   TaskRepository
	deps    DependencyRepository
	members MemberChecker
	notify  notifier
	opts    Options
}

// NewGraph builds a dependency graph engine.
func NewGraph(opts Options) *Graph {
	opts = opts.withDefaults()
	return &Graph{
		tasks:   opts.Tasks,
		deps:    opts.Dependencies,
		members: opts.Members,
		notify:  newNotifier(opts),
		opts:    opts,
	}
}

// CreateDependency records that taskID depends on dependsOnID.
//
// Checks run in a fixed order and the first failure is returned: the type
// must be valid, both tasks must exist, the edge must not be a self-loop,
// both tasks must share workspace and project, the actor must belong to the
// workspace, the pair must not already be linked, and the edge must not
// close a cycle. Nothing is written unless every check passes.
func (g *Graph) CreateDependency(ctx context.Context, taskID, dependsOnID string, depType DependencyType, actor string) (*Dependency, error) {
	if !depType.IsValid() {
		return nil, invalidDependencyTypeError(string(depType))
	}

	task, err := loadTask(ctx, g.tasks, taskID)
	if err != nil {
		return nil, err
	}
	predecessor, err := loadTask(ctx, g.tasks, dependsOnID)
	if err != nil {
		return nil, err
	}

	if task.ID == predecessor.ID {
		return nil, fmt.Errorf("%w: %s", ErrSelfDependency, task.ID)
	}
	if task.Workspace != predecessor.Workspace {
		return nil, fmt.Errorf("%w: %s is in %q, %s is in %q",
			ErrCrossWorkspace, task.ID, task.Workspace, predecessor.ID, predecessor.Workspace)
	}
	if task.Project != predecessor.Project {
		return nil, fmt.Errorf("%w: %s is in %q, %s is in %q",
			ErrCrossProject, task.ID, task.Project, predecessor.ID, predecessor.Project)
	}
	if err := g.requireMember(ctx, task.Workspace, actor); err != nil {
		return nil, err
	}

	_, err = g.deps.FindActivePair(ctx, task.ID, predecessor.ID)
	if err == nil {
		return nil, fmt.Errorf("%w: %s already depends on %s", ErrDuplicateDependency, task.ID, predecessor.ID)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing dependency: %w", err)
	}

	cyclic, err := g.reaches(ctx, predecessor.ID, task.ID)
	if err != nil {
		return nil, fmt.Errorf("check for cycles: %w", err)
	}
	if cyclic {
		return nil, fmt.Errorf("%w: %s → %s → ... → %s", ErrCircularDependency, task.ID, predecessor.ID, task.ID)
	}

	dep := Dependency{
		ID:          ids.NewDependencyID(),
		TaskID:      task.ID,
		DependsOnID: predecessor.ID,
		Type:        depType,
		CreatedAt:   g.opts.Now(),
		CreatedBy:   actor,
	}
	if err := g.deps.CreateDependency(ctx, &dep); err != nil {
		return nil, fmt.Errorf("create dependency: %w", err)
	}

	g.notify.emit(ctx, EventDependencyAdded, task, actor, DependencyPayload{Dependency: dep, Peer: predecessor.Summary()})
	g.notify.emit(ctx, EventDependentAdded, predecessor, actor, DependencyPayload{Dependency: dep, Peer: task.Summary()})
	g.notify.record(ctx, ActionCreate, "dependency", dep.ID, task.Workspace, actor, map[string]any{
		"task_id":       dep.TaskID,
		"depends_on_id": dep.DependsOnID,
		"type":          string(dep.Type),
	})

	return &dep, nil
}

// DeleteDependency soft-deletes an edge. Removing an edge cannot create a
// cycle, so the graph is not re-checked.
func (g *Graph) DeleteDependency(ctx context.Context, id, actor string) error {
	dep, err := g.deps.FindDependency(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrDependencyNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load dependency %s: %w", id, err)
	}
	if dep == nil || !dep.IsActive() {
		return fmt.Errorf("%w: %s", ErrDependencyNotFound, id)
	}

	// Either end may have been deleted since the edge was created; the
	// surviving end still identifies the workspace.
	task, taskErr := g.tasks.FindTask(ctx, dep.TaskID)
	predecessor, predErr := g.tasks.FindTask(ctx, dep.DependsOnID)
	if taskErr != nil && !errors.Is(taskErr, ErrNotFound) {
		return fmt.Errorf("load task %s: %w", dep.TaskID, taskErr)
	}
	if predErr != nil && !errors.Is(predErr, ErrNotFound) {
		return fmt.Errorf("load task %s: %w", dep.DependsOnID, predErr)
	}
	var workspace string
	switch {
	case task != nil:
		workspace = task.Workspace
	case predecessor != nil:
		workspace = predecessor.Workspace
	default:
		return fmt.Errorf("%w: tasks of dependency %s", ErrTaskNotFound, id)
	}
	if err := g.requireMember(ctx, workspace, actor); err != nil {
		return err
	}

	now := g.opts.Now()
	if err := g.deps.SoftDeleteDependency(ctx, dep.ID, actor, now); err != nil {
		return fmt.Errorf("delete dependency: %w", err)
	}
	dep.DeletedAt = &now
	dep.DeletedBy = actor

	if task != nil && predecessor != nil {
		g.notify.emit(ctx, EventDependencyRemoved, task, actor, DependencyPayload{Dependency: *dep, Peer: predecessor.Summary()})
		g.notify.emit(ctx, EventDependentRemoved, predecessor, actor, DependencyPayload{Dependency: *dep, Peer: task.Summary()})
	}
	g.notify.record(ctx, ActionDelete, "dependency", dep.ID, workspace, actor, map[string]any{
		"task_id":       dep.TaskID,
		"depends_on_id": dep.DependsOnID,
		"type":          string(dep.Type),
	})
	return nil
}

// BlockingDependency is an incoming edge annotated with whether its
// predecessor currently holds up the task.
type BlockingDependency struct {
	Dependency  Dependency `json:"dependency"`
	Predecessor *Task      `json:"predecessor"`
	IsBlocking  bool       `json:"is_blocking"`
}

// BlockingTasks returns every active predecessor edge of taskID, marking
// the ones whose predecessor status currently blocks it.
func (g *Graph) BlockingTasks(ctx context.Context, taskID string) ([]BlockingDependency, error) {
	task, err := loadTask(ctx, g.tasks, taskID)
	if err != nil {
		return nil, err
	}
	edges, err := loadPredecessors(ctx, g.tasks, g.deps, task.ID)
	if err != nil {
		return nil, err
	}
	result := make([]BlockingDependency, 0, len(edges))
	for _, edge := range edges {
		result = append(result, BlockingDependency{
			Dependency:  edge.dependency,
			Predecessor: edge.predecessor,
			IsBlocking:  edge.dependency.Type.IsBlocking(edge.predecessor.Status),
		})
	}
	return result, nil
}

// LinkedTask pairs an edge with the task on its other end.
type LinkedTask struct {
	Dependency Dependency `json:"dependency"`
	Task       *Task      `json:"task"`
}

// Dependencies returns the active edges taskID depends on.
func (g *Graph) Dependencies(ctx context.Context, taskID string) ([]LinkedTask, error) {
	task, err := loadTask(ctx, g.tasks, taskID)
	if err != nil {
		return nil, err
	}
	edges, err := loadPredecessors(ctx, g.tasks, g.deps, task.ID)
	if err != nil {
		return nil, err
	}
	result := make([]LinkedTask, 0, len(edges))
	for _, edge := range edges {
		result = append(result, LinkedTask{Dependency: edge.dependency, Task: edge.predecessor})
	}
	return result, nil
}

// Dependents returns the active edges that depend on taskID.
func (g *Graph) Dependents(ctx context.Context, taskID string) ([]LinkedTask, error) {
	task, err := loadTask(ctx, g.tasks, taskID)
	if err != nil {
		return nil, err
	}
	edges, err := g.deps.FindActiveByDependsOn(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("load dependents of %s: %w", task.ID, err)
	}
	result := make([]LinkedTask, 0, len(edges))
	for _, edge := range edges {
		successor, err := g.tasks.FindTask(ctx, edge.TaskID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load task %s: %w", edge.TaskID, err)
		}
		if successor == nil || successor.IsDeleted() {
			continue
		}
		result = append(result, LinkedTask{Dependency: edge, Task: successor})
	}
	return result, nil
}

func (g *Graph) requireMember(ctx context.Context, workspace, actor string) error {
	return requireMember(ctx, g.members, workspace, actor)
}

// reaches reports whether target can be reached from start by following
// active "depends on" edges. Adding target → start closes a cycle exactly
// when it can.
func (g *Graph) reaches(ctx context.Context, start, target string) (bool, error) {
	visited := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		edges, err := g.deps.FindActiveByTask(ctx, current)
		if err != nil {
			return false, err
		}
		for _, edge := range edges {
			if edge.DependsOnID == target {
				return true, nil
			}
			if visited[edge.DependsOnID] {
				continue
			}
			visited[edge.DependsOnID] = true
			stack = append(stack, edge.DependsOnID)
		}
	}
	return false, nil
}
