package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/amonks/taskgraph/internal/ids"
)

// Options wires the engine to its collaborators.
type Options struct {
	Tasks        TaskRepository
	Dependencies DependencyRepository

	// Members gates mutations. When nil every actor is admitted.
	Members MemberChecker

	// Events and Activity are optional.
	Events   EventSink
	Activity ActivityLogger

	// Logger receives side-effect failures. Defaults to discarding.
	Logger *log.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service bundles the four engine components built from one Options.
type Service struct {
	Graph     *Graph
	Status    *StatusValidator
	Scheduler *Scheduler
	Timeline  *TimelineValidator
}

// New builds all engine components.
func New(opts Options) *Service {
	return &Service{
		Graph:     NewGraph(opts),
		Status:    NewStatusValidator(opts),
		Scheduler: NewScheduler(opts),
		Timeline:  NewTimelineValidator(opts),
	}
}

func (opts Options) withDefaults() Options {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// notifier delivers events and activity records. Its failures never reach
// the caller of the primary operation.
type notifier struct {
	events   EventSink
	activity ActivityLogger
	logger   *log.Logger
	now      func() time.Time
}

func newNotifier(opts Options) notifier {
	return notifier{
		events:   opts.Events,
		activity: opts.Activity,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

func (n notifier) emit(ctx context.Context, name string, task *Task, actor string, payload any) {
	if n.events == nil {
		return
	}
	event := Event{
		ID:        ids.NewEventID(),
		Name:      name,
		TaskID:    task.ID,
		Workspace: task.Workspace,
		Actor:     actor,
		Payload:   payload,
		At:        n.now(),
	}
	if err := n.events.Emit(ctx, event); err != nil {
		n.logger.Printf("emit %s for task %s: %v", name, task.ID, err)
	}
}

func (n notifier) record(ctx context.Context, action, entity, entityID, workspace, actor string, details map[string]any) {
	if n.activity == nil {
		return
	}
	activity := Activity{
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Workspace: workspace,
		Actor:     actor,
		Details:   details,
		At:        n.now(),
	}
	if err := n.activity.Record(ctx, activity); err != nil {
		n.logger.Printf("record %s %s %s: %v", action, entity, entityID, err)
	}
}

// requireMember fails with ErrNotMember unless actor belongs to workspace.
// A nil checker admits everyone.
func requireMember(ctx context.Context, members MemberChecker, workspace, actor string) error {
	if members == nil {
		return nil
	}
	ok, err := members.IsMember(ctx, workspace, actor)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %q in %q", ErrNotMember, actor, workspace)
	}
	return nil
}

// loadTask returns an active task or an error matching ErrTaskNotFound.
func loadTask(ctx context.Context, tasks TaskRepository, id string) (*Task, error) {
	task, err := tasks.FindTask(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	if task == nil || task.IsDeleted() {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task, nil
}

// predecessorEdge pairs an active edge with its loaded predecessor.
type predecessorEdge struct {
	dependency  Dependency
	predecessor *Task
}

// loadPredecessors returns the active incoming edges of taskID whose
// predecessor still exists.
func loadPredecessors(ctx context.Context, tasks TaskRepository, deps DependencyRepository, taskID string) ([]predecessorEdge, error) {
	edges, err := deps.FindActiveByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load dependencies of %s: %w", taskID, err)
	}
	result := make([]predecessorEdge, 0, len(edges))
	for _, edge := range edges {
		predecessor, err := tasks.FindTask(ctx, edge.DependsOnID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load task %s: %w", edge.DependsOnID, err)
		}
		if predecessor == nil || predecessor.IsDeleted() {
			continue
		}
		result = append(result, predecessorEdge{dependency: edge, predecessor: predecessor})
	}
	return result, nil
}
