package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Scheduler propagates date changes through the dependency graph.
type Scheduler struct {
	tasks    TaskRepository
	deps     DependencyRepository
	members  MemberChecker
	timeline *TimelineValidator
	notify   notifier
	opts     Options
}

// NewScheduler builds a timeline cascade scheduler.
func NewScheduler(opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		tasks:    opts.Tasks,
		deps:     opts.Dependencies,
		members:  opts.Members,
		timeline: NewTimelineValidator(opts),
		notify:   newNotifier(opts),
		opts:     opts,
	}
}

// CascadeResult lists the dependents a cascade rewrote, in the order they
// were written.
type CascadeResult struct {
	UpdatedCount int    `json:"updated_count"`
	Tasks        []Task `json:"tasks"`
}

// CalculateDateDelta returns newDate - oldDate, or 0 if either is absent.
func CalculateDateDelta(oldDate, newDate *time.Time) time.Duration {
	if oldDate == nil || newDate == nil {
		return 0
	}
	return newDate.Sub(*oldDate)
}

// UpdateTaskTimeline shifts every transitive dependent of taskID by delta.
//
// Each task is shifted at most once, however many paths lead to it, and a
// cycle in stored data terminates. A dependent whose dates are both unset is
// left alone and the cascade does not continue through it. Every write is
// independent: if a store call fails, the returned result lists the tasks
// already written alongside the error.
func (s *Scheduler) UpdateTaskTimeline(ctx context.Context, taskID string, delta time.Duration, actor string) (*CascadeResult, error) {
	root, err := loadTask(ctx, s.tasks, taskID)
	if err != nil {
		return nil, err
	}
	return s.cascade(ctx, root, delta, actor)
}

func (s *Scheduler) cascade(ctx context.Context, root *Task, delta time.Duration, actor string) (*CascadeResult, error) {
	result := &CascadeResult{Tasks: []Task{}}
	if delta == 0 {
		return result, nil
	}
	visited := map[string]bool{root.ID: true}

	pending := []string{root.ID}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		edges, err := s.deps.FindActiveByDependsOn(ctx, current)
		if err != nil {
			return result, fmt.Errorf("load dependents of %s: %w", current, err)
		}
		for _, edge := range edges {
			if visited[edge.TaskID] {
				continue
			}
			rule, ok := dependencyRules[edge.Type]
			if !ok {
				continue
			}
			successor, err := s.tasks.FindTask(ctx, edge.TaskID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return result, fmt.Errorf("load task %s: %w", edge.TaskID, err)
			}
			if successor == nil || successor.IsDeleted() {
				continue
			}
			if !applyShift(successor, rule, delta) {
				continue
			}
			visited[successor.ID] = true
			successor.UpdatedAt = s.opts.Now()
			if err := s.tasks.SaveTask(ctx, successor); err != nil {
				return result, fmt.Errorf("save task %s: %w", successor.ID, err)
			}
			result.UpdatedCount++
			result.Tasks = append(result.Tasks, *successor.Clone())

			s.notify.emit(ctx, EventTimelineUpdated, successor, actor, TimelinePayload{
				SourceTaskID: root.ID,
				Delta:        delta,
				StartDate:    successor.StartDate,
				DueDate:      successor.DueDate,
			})
			s.notify.record(ctx, ActionUpdate, "task", successor.ID, successor.Workspace, actor, map[string]any{
				"cascade_from": root.ID,
				"via":          edge.ID,
				"delta":        delta.String(),
			})
			pending = append(pending, successor.ID)
		}
	}
	return result, nil
}

// applyShift moves task by delta according to rule and re-establishes the
// milestone invariant. It reports whether any date was set.
func applyShift(task *Task, rule dependencyRule, delta time.Duration) bool {
	changed := rule.shift(task, delta)
	if task.IsMilestone && task.DueDate != nil {
		due := *task.DueDate
		task.StartDate = &due
	}
	return changed
}

// DateChange is a new date range for a task. Nil dates clear the field.
type DateChange struct {
	StartDate *time.Time `json:"start_date"`
	DueDate   *time.Time `json:"due_date"`

	// Milestone replaces the task's milestone flag when set.
	Milestone *bool `json:"milestone,omitempty"`
}

// RescheduleResult reports a date change and everything it touched.
type RescheduleResult struct {
	Task    *Task          `json:"task"`
	Delta   time.Duration  `json:"delta"`
	Cascade *CascadeResult `json:"cascade"`

	// Violations maps task IDs to outstanding timeline errors, covering the
	// rescheduled task and every cascaded dependent.
	Violations map[string][]string `json:"violations,omitempty"`
}

// SetTaskDates persists a new date range for taskID, cascades the shift to
// its dependents and validates every task it touched.
//
// The delta is taken from the due date when it moved, and from the start
// date otherwise.
func (s *Scheduler) SetTaskDates(ctx context.Context, taskID string, change DateChange, actor string) (*RescheduleResult, error) {
	task, err := loadTask(ctx, s.tasks, taskID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(ctx, s.members, task.Workspace, actor); err != nil {
		return nil, err
	}

	updated := task.Clone()
	updated.StartDate = cloneTime(change.StartDate)
	updated.DueDate = cloneTime(change.DueDate)
	if change.Milestone != nil {
		updated.IsMilestone = *change.Milestone
	}
	if err := updated.NormalizeDates(); err != nil {
		return nil, err
	}

	delta := CalculateDateDelta(task.DueDate, updated.DueDate)
	if delta == 0 {
		delta = CalculateDateDelta(task.StartDate, updated.StartDate)
	}

	result := &RescheduleResult{Task: updated, Delta: delta, Cascade: &CascadeResult{Tasks: []Task{}}}
	if !sameInstant(task.StartDate, updated.StartDate) || !sameInstant(task.DueDate, updated.DueDate) || task.IsMilestone != updated.IsMilestone {
		updated.UpdatedAt = s.opts.Now()
		if err := s.tasks.SaveTask(ctx, updated); err != nil {
			return nil, fmt.Errorf("save task %s: %w", updated.ID, err)
		}
		s.notify.emit(ctx, EventTimelineUpdated, updated, actor, TimelinePayload{
			SourceTaskID: updated.ID,
			Delta:        delta,
			StartDate:    updated.StartDate,
			DueDate:      updated.DueDate,
		})
		s.notify.record(ctx, ActionUpdate, "task", updated.ID, updated.Workspace, actor, map[string]any{
			"start_date": updated.StartDate,
			"due_date":   updated.DueDate,
			"milestone":  updated.IsMilestone,
		})
	}

	cascade, cascadeErr := s.cascade(ctx, updated, delta, actor)
	if cascade != nil {
		result.Cascade = cascade
	}
	if cascadeErr != nil {
		return result, cascadeErr
	}

	touched := make([]string, 0, len(cascade.Tasks)+1)
	touched = append(touched, updated.ID)
	for _, item := range cascade.Tasks {
		touched = append(touched, item.ID)
	}
	for _, id := range touched {
		check, err := s.timeline.ValidateTimeline(ctx, id)
		if err != nil {
			return result, err
		}
		if check.Valid {
			continue
		}
		if result.Violations == nil {
			result.Violations = make(map[string][]string)
		}
		result.Violations[id] = check.Errors
	}
	return result, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
