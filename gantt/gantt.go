// Package gantt lays out a project's tasks on a calendar and finds its
// critical path.
package gantt

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
)

// Source is the slice of store.Backend the chart builder reads.
type Source interface {
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]schedule.Task, error)
	ListDependencies(ctx context.Context, workspace, project string) ([]schedule.Dependency, error)
}

// Chart is a project's tasks in dependency order. Day offsets count whole
// days from Origin.
type Chart struct {
	Workspace string    `json:"workspace"`
	Project   string    `json:"project"`
	Origin    time.Time `json:"origin"`

	// Days is the project length: the latest earliest-finish offset.
	Days int   `json:"days"`
	Rows []Row `json:"rows"`

	// CriticalPath lists the IDs of zero-slack tasks in row order.
	CriticalPath []string `json:"critical_path"`
}

// Predecessor is an incoming edge of a row.
type Predecessor struct {
	TaskID string                  `json:"task_id"`
	Type   schedule.DependencyType `json:"type"`
}

// Row is one task on the chart.
type Row struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Status    schedule.Status `json:"status"`
	Milestone bool            `json:"milestone"`
	StartDate *time.Time      `json:"start_date,omitempty"`
	DueDate   *time.Time      `json:"due_date,omitempty"`

	// Scheduled is false when the task has no dates. Unscheduled rows sit at
	// offset zero with no duration.
	Scheduled    bool          `json:"scheduled"`
	Predecessors []Predecessor `json:"predecessors"`

	Offset   int `json:"offset"`
	Duration int `json:"duration"`

	EarliestStart  int  `json:"earliest_start"`
	EarliestFinish int  `json:"earliest_finish"`
	LatestStart    int  `json:"latest_start"`
	LatestFinish   int  `json:"latest_finish"`
	Slack          int  `json:"slack"`
	Critical       bool `json:"critical"`
}

// ErrCycle is returned when stored dependencies form a cycle.
var ErrCycle = schedule.NewError(schedule.ErrConflict, "dependency cycle in project")

type link struct {
	from, to int
	depType  schedule.DependencyType
}

// Build loads a project and computes its chart.
func Build(ctx context.Context, source Source, workspace, project string) (*Chart, error) {
	tasks, err := source.ListTasks(ctx, store.TaskFilter{Workspace: workspace, Project: project})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	deps, err := source.ListDependencies(ctx, workspace, project)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	return Compute(workspace, project, tasks, deps)
}

// Compute builds a chart from already-loaded tasks and edges. Edges whose
// ends are not both among tasks are ignored.
func Compute(workspace, project string, tasks []schedule.Task, deps []schedule.Dependency) (*Chart, error) {
	chart := &Chart{
		Workspace:    workspace,
		Project:      project,
		Rows:         []Row{},
		CriticalPath: []string{},
	}
	if len(tasks) == 0 {
		return chart, nil
	}

	chart.Origin = origin(tasks)
	index := make(map[string]int, len(tasks))
	rows := make([]Row, len(tasks))
	for i := range tasks {
		rows[i] = newRow(&tasks[i], chart.Origin)
		index[tasks[i].ID] = i
	}

	links := make([]link, 0, len(deps))
	for _, dep := range deps {
		if !dep.IsActive() {
			continue
		}
		from, okFrom := index[dep.DependsOnID]
		to, okTo := index[dep.TaskID]
		if !okFrom || !okTo {
			continue
		}
		links = append(links, link{from: from, to: to, depType: dep.Type})
		rows[to].Predecessors = append(rows[to].Predecessors, Predecessor{TaskID: dep.DependsOnID, Type: dep.Type})
	}

	order, err := topologicalOrder(rows, links)
	if err != nil {
		return nil, err
	}
	forwardPass(rows, links, order)
	chart.Days = 0
	for i := range rows {
		chart.Days = max(chart.Days, rows[i].EarliestFinish)
	}
	backwardPass(rows, links, order, chart.Days)

	for _, i := range order {
		row := rows[i]
		row.Slack = row.LatestStart - row.EarliestStart
		row.Critical = row.Slack == 0 && row.Scheduled
		chart.Rows = append(chart.Rows, row)
		if row.Critical {
			chart.CriticalPath = append(chart.CriticalPath, row.ID)
		}
	}
	return chart, nil
}

func origin(tasks []schedule.Task) time.Time {
	var earliest time.Time
	for i := range tasks {
		start := tasks[i].StartDate
		if start == nil {
			start = tasks[i].DueDate
		}
		if start == nil {
			continue
		}
		if earliest.IsZero() || start.Before(earliest) {
			earliest = *start
		}
	}
	if earliest.IsZero() {
		return earliest
	}
	earliest = earliest.UTC()
	return time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, time.UTC)
}

func newRow(task *schedule.Task, origin time.Time) Row {
	row := Row{
		ID:           task.ID,
		Title:        task.Title,
		Status:       task.Status,
		Milestone:    task.IsMilestone,
		StartDate:    task.StartDate,
		DueDate:      task.DueDate,
		Predecessors: []Predecessor{},
	}
	start, due := task.StartDate, task.DueDate
	if start == nil {
		start = due
	}
	if due == nil {
		due = start
	}
	if start == nil {
		return row
	}
	row.Scheduled = true
	row.Offset = dayOffset(origin, *start)
	if !task.IsMilestone {
		row.Duration = max(0, dayOffset(origin, *due)-row.Offset)
	}
	return row
}

func dayOffset(origin, at time.Time) int {
	return int(math.Floor(at.Sub(origin).Hours() / 24))
}

// topologicalOrder runs Kahn's algorithm. Among ready rows the earliest
// planned start goes first, unscheduled rows last, then by ID.
func topologicalOrder(rows []Row, links []link) ([]int, error) {
	indegree := make([]int, len(rows))
	outgoing := make([][]int, len(rows))
	for _, l := range links {
		indegree[l.to]++
		outgoing[l.from] = append(outgoing[l.from], l.to)
	}
	ready := make([]int, 0, len(rows))
	for i := range rows {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	less := func(a, b int) int {
		ra, rb := rows[a], rows[b]
		if ra.Scheduled != rb.Scheduled {
			if ra.Scheduled {
				return -1
			}
			return 1
		}
		if ra.Offset != rb.Offset {
			return ra.Offset - rb.Offset
		}
		return strings.Compare(ra.ID, rb.ID)
	}

	order := make([]int, 0, len(rows))
	for len(ready) > 0 {
		slices.SortFunc(ready, less)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, to := range outgoing[next] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}
	if len(order) != len(rows) {
		stuck := make([]string, 0)
		for i := range rows {
			if indegree[i] > 0 {
				stuck = append(stuck, rows[i].ID)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}

// edgeValue returns a row's start or finish from the given pass.
func edgeValue(edge schedule.DateEdge, start, finish int) int {
	if edge == schedule.DateFinish {
		return finish
	}
	return start
}

// forwardPass computes earliest dates. A task starts no earlier than planned
// and no earlier than each incoming edge's constraint allows.
func forwardPass(rows []Row, links []link, order []int) {
	incoming := make([][]link, len(rows))
	for _, l := range links {
		incoming[l.to] = append(incoming[l.to], l)
	}
	for _, i := range order {
		row := &rows[i]
		start := row.Offset
		for _, l := range incoming[i] {
			pred := rows[l.from]
			successorEdge, predecessorEdge := l.depType.Constraint()
			bound := edgeValue(predecessorEdge, pred.EarliestStart, pred.EarliestFinish)
			if successorEdge == schedule.DateFinish {
				bound -= row.Duration
			}
			start = max(start, bound)
		}
		row.EarliestStart = start
		row.EarliestFinish = start + row.Duration
	}
}

// backwardPass computes latest dates against the project finish.
func backwardPass(rows []Row, links []link, order []int, finish int) {
	outgoing := make([][]link, len(rows))
	for _, l := range links {
		outgoing[l.from] = append(outgoing[l.from], l)
	}
	for n := len(order) - 1; n >= 0; n-- {
		i := order[n]
		row := &rows[i]
		latest := finish
		for _, l := range outgoing[i] {
			succ := rows[l.to]
			successorEdge, predecessorEdge := l.depType.Constraint()
			bound := edgeValue(successorEdge, succ.LatestStart, succ.LatestFinish)
			if predecessorEdge == schedule.DateStart {
				bound += row.Duration
			}
			latest = min(latest, bound)
		}
		row.LatestFinish = latest
		row.LatestStart = latest - row.Duration
	}
}
