package schedule

import "time"

// DateEdge names one end of a task's date range.
type DateEdge int

const (
	// DateStart is the task's start date.
	DateStart DateEdge = iota

	// DateFinish is the task's due date.
	DateFinish
)

func (e DateEdge) String() string {
	if e == DateFinish {
		return "due"
	}
	return "start"
}

// Date returns the task date at the given edge.
func (t *Task) Date(edge DateEdge) *time.Time {
	if edge == DateFinish {
		return t.DueDate
	}
	return t.StartDate
}

// dependencyRule holds everything that differs between dependency types.
type dependencyRule struct {
	name string

	// blocking reports whether the edge currently holds up its successor.
	blocking func(predecessor Status) bool

	// gatesStart and gatesFinish report whether the predecessor's status
	// prevents the successor from moving to in-progress or done.
	gatesStart  func(predecessor Status) bool
	gatesFinish func(predecessor Status) bool

	// verb completes the blocker reason: Task "x" must be <verb> first.
	verb string

	// The successor's date at successorEdge must not precede the
	// predecessor's date at predecessorEdge.
	successorEdge   DateEdge
	predecessorEdge DateEdge

	// shift moves a dependent task when its predecessor moves by delta.
	shift func(task *Task, delta time.Duration) bool
}

var dependencyRules = map[DependencyType]dependencyRule{
	FinishToStart: {
		name:            "finish-to-start",
		blocking:        notDone,
		gatesStart:      never,
		gatesFinish:     notDone,
		verb:            "completed",
		successorEdge:   DateStart,
		predecessorEdge: DateFinish,
		shift:           shiftBoth,
	},
	StartToStart: {
		name:            "start-to-start",
		blocking:        notStarted,
		gatesStart:      notStarted,
		gatesFinish:     never,
		verb:            "started",
		successorEdge:   DateStart,
		predecessorEdge: DateStart,
		shift:           shiftBoth,
	},
	FinishToFinish: {
		name:            "finish-to-finish",
		blocking:        notDone,
		gatesStart:      never,
		gatesFinish:     notDone,
		verb:            "completed",
		successorEdge:   DateFinish,
		predecessorEdge: DateFinish,
		shift:           shiftBoth,
	},
	StartToFinish: {
		name:            "start-to-finish",
		blocking:        notStarted,
		gatesStart:      never,
		gatesFinish:     notStarted,
		verb:            "started",
		successorEdge:   DateFinish,
		predecessorEdge: DateStart,
		shift:           shiftBoth,
	},
}

func notDone(status Status) bool {
	return status != StatusDone
}

func notStarted(status Status) bool {
	return !status.IsStarted()
}

func never(Status) bool {
	return false
}

// shiftBoth moves whichever of the two dates are set. Every dependency type
// currently shifts the whole range.
func shiftBoth(task *Task, delta time.Duration) bool {
	changed := false
	if task.StartDate != nil {
		shifted := task.StartDate.Add(delta)
		task.StartDate = &shifted
		changed = true
	}
	if task.DueDate != nil {
		shifted := task.DueDate.Add(delta)
		task.DueDate = &shifted
		changed = true
	}
	return changed
}

// Constraint returns the date edges an edge of this type relates: the
// successor's date at the first edge must not precede the predecessor's
// date at the second.
func (t DependencyType) Constraint() (successor DateEdge, predecessor DateEdge) {
	rule := dependencyRules[t]
	return rule.successorEdge, rule.predecessorEdge
}

// IsBlocking reports whether an edge of this type holds up its successor
// given the predecessor's status.
func (t DependencyType) IsBlocking(predecessor Status) bool {
	rule, ok := dependencyRules[t]
	if !ok {
		return false
	}
	return rule.blocking(predecessor)
}
