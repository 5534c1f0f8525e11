package schedule

import (
	"context"
	"fmt"
)

// StatusValidator decides whether a task's predecessors allow a status
// change. It never writes.
type StatusValidator struct {
	tasks TaskRepository
	deps  DependencyRepository
}

// NewStatusValidator builds a status transition validator.
func NewStatusValidator(opts Options) *StatusValidator {
	return &StatusValidator{tasks: opts.Tasks, deps: opts.Dependencies}
}

// Blocker is one predecessor preventing a transition.
type Blocker struct {
	Dependency Dependency `json:"dependency"`
	Task       *Task      `json:"task"`
	Reason     string     `json:"reason"`
}

// TransitionResult is the verdict for a candidate status.
type TransitionResult struct {
	Allowed       bool      `json:"allowed"`
	Reason        string    `json:"reason,omitempty"`
	BlockingCount int       `json:"blocking_count,omitempty"`
	Blockers      []Blocker `json:"blockers,omitempty"`
}

// CanTransitionToStatus reports whether taskID may move to newStatus.
// Only in-progress (starting) and done (finishing) are gated.
func (v *StatusValidator) CanTransitionToStatus(ctx context.Context, taskID string, newStatus Status) (*TransitionResult, error) {
	if !newStatus.IsValid() {
		return nil, invalidStatusError(string(newStatus))
	}
	task, err := loadTask(ctx, v.tasks, taskID)
	if err != nil {
		return nil, err
	}

	var gate func(dependencyRule, Status) bool
	switch newStatus {
	case StatusInProgress:
		gate = func(rule dependencyRule, predecessor Status) bool { return rule.gatesStart(predecessor) }
	case StatusDone:
		gate = func(rule dependencyRule, predecessor Status) bool { return rule.gatesFinish(predecessor) }
	default:
		return &TransitionResult{Allowed: true}, nil
	}

	edges, err := loadPredecessors(ctx, v.tasks, v.deps, task.ID)
	if err != nil {
		return nil, err
	}

	var blockers []Blocker
	for _, edge := range edges {
		rule, ok := dependencyRules[edge.dependency.Type]
		if !ok {
			continue
		}
		if !gate(rule, edge.predecessor.Status) {
			continue
		}
		blockers = append(blockers, Blocker{
			Dependency: edge.dependency,
			Task:       edge.predecessor,
			Reason:     blockerReason(edge.predecessor, edge.dependency.Type, rule),
		})
	}

	if len(blockers) == 0 {
		return &TransitionResult{Allowed: true}, nil
	}
	return &TransitionResult{
		Allowed:       false,
		Reason:        fmt.Sprintf("Cannot move to %s: blocked by %d %s", newStatus, len(blockers), pluralize(len(blockers), "dependency", "dependencies")),
		BlockingCount: len(blockers),
		Blockers:      blockers,
	}, nil
}

func blockerReason(predecessor *Task, depType DependencyType, rule dependencyRule) string {
	return fmt.Sprintf(`Task "%s" must be %s first (%s dependency)`, predecessor.Title, rule.verb, depType)
}

func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}
