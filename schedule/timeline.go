package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/amonks/taskgraph/internal/validation"
)

// TimelineValidator checks a task's dates against itself and its
// predecessors.
type TimelineValidator struct {
	tasks TaskRepository
	deps  DependencyRepository
}

// NewTimelineValidator builds a timeline validator.
func NewTimelineValidator(opts Options) *TimelineValidator {
	return &TimelineValidator{tasks: opts.Tasks, deps: opts.Dependencies}
}

// TimelineResult lists every violation found. Valid is true when Errors is
// empty.
type TimelineResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateTimeline reports every date inconsistency on taskID without
// stopping at the first. Edges where either relevant date is unset are
// skipped.
func (v *TimelineValidator) ValidateTimeline(ctx context.Context, taskID string) (*TimelineResult, error) {
	task, err := loadTask(ctx, v.tasks, taskID)
	if err != nil {
		return nil, err
	}

	var problems []string
	if task.StartDate != nil && task.DueDate != nil {
		if task.IsMilestone && !task.StartDate.Equal(*task.DueDate) {
			problems = append(problems, fmt.Sprintf("Milestone must have the same start and due date (start %s, due %s)",
				validation.FormatDate(task.StartDate), validation.FormatDate(task.DueDate)))
		}
		if task.StartDate.After(*task.DueDate) {
			problems = append(problems, fmt.Sprintf("Start date %s is after due date %s",
				validation.FormatDate(task.StartDate), validation.FormatDate(task.DueDate)))
		}
	}

	edges, err := loadPredecessors(ctx, v.tasks, v.deps, task.ID)
	if err != nil {
		return nil, err
	}
	for _, edge := range edges {
		rule, ok := dependencyRules[edge.dependency.Type]
		if !ok {
			continue
		}
		own := task.Date(rule.successorEdge)
		theirs := edge.predecessor.Date(rule.predecessorEdge)
		if own == nil || theirs == nil || !own.Before(*theirs) {
			continue
		}
		problems = append(problems, fmt.Sprintf(`%s date %s must not be before the %s date %s of "%s" (%s dependency)`,
			capitalize(rule.successorEdge.String()), validation.FormatDate(own),
			rule.predecessorEdge, validation.FormatDate(theirs),
			edge.predecessor.Title, edge.dependency.Type))
	}

	return &TimelineResult{Valid: len(problems) == 0, Errors: nonNil(problems)}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
