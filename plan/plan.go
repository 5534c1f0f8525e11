// Package plan imports a project described in YAML: tasks keyed locally and
// the typed dependencies between them.
package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/amonks/taskgraph/internal/validation"
	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPlan wraps every problem found while validating a plan.
var ErrInvalidPlan = schedule.NewError(schedule.ErrInvalidArgument, "invalid plan")

// Plan is the top-level plan document.
type Plan struct {
	Workspace string `yaml:"workspace"`
	Project   string `yaml:"project"`
	Tasks     []Task `yaml:"tasks"`
}

// Task is one planned task. Key names it within the plan.
type Task struct {
	Key         string `yaml:"key"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Status      string `yaml:"status,omitempty"`
	Start       string `yaml:"start,omitempty"`
	Due         string `yaml:"due,omitempty"`
	Milestone   bool   `yaml:"milestone,omitempty"`
	DependsOn   []Link `yaml:"depends_on,omitempty"`
}

// Link is a dependency on another planned task. A bare scalar is shorthand
// for a finish-to-start link.
type Link struct {
	Task string `yaml:"task"`
	Type string `yaml:"type,omitempty"`
}

// UnmarshalYAML accepts either `- key` or `- {task: key, type: SS}`.
func (l *Link) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		l.Task = node.Value
		return nil
	}
	type plain Link
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*l = Link(decoded)
	return nil
}

// Parse decodes a plan. Unknown fields are errors.
func Parse(r io.Reader) (*Plan, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var plan Plan
	if err := decoder.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return &plan, nil
}

// resolved is a validated task ready to create.
type resolved struct {
	key   string
	opts  store.CreateTaskOptions
	links []resolvedLink
}

type resolvedLink struct {
	key     string
	depType schedule.DependencyType
}

// Validate checks keys, dates, statuses and dependency types. Every problem
// is reported.
func (p *Plan) Validate() error {
	_, err := p.resolve()
	return err
}

func (p *Plan) resolve() ([]resolved, error) {
	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf("%w: %s", ErrInvalidPlan, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(p.Workspace) == "" {
		fail("workspace is required")
	}
	if strings.TrimSpace(p.Project) == "" {
		fail("project is required")
	}
	if len(p.Tasks) == 0 {
		fail("no tasks")
	}

	keys := make(map[string]bool, len(p.Tasks))
	for i, task := range p.Tasks {
		key := strings.TrimSpace(task.Key)
		switch {
		case key == "":
			fail("task %d: key is required", i+1)
		case keys[key]:
			fail("task %q: duplicate key", key)
		default:
			keys[key] = true
		}
	}

	tasks := make([]resolved, 0, len(p.Tasks))
	for i, task := range p.Tasks {
		key := strings.TrimSpace(task.Key)
		label := key
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		item := resolved{
			key: key,
			opts: store.CreateTaskOptions{
				Title:       task.Title,
				Description: task.Description,
				Workspace:   p.Workspace,
				Project:     p.Project,
				IsMilestone: task.Milestone,
			},
		}
		if strings.TrimSpace(task.Title) == "" {
			fail("task %q: title is required", label)
		}
		if task.Status != "" {
			status, err := schedule.ParseStatus(task.Status)
			if err != nil {
				fail("task %q: %v", label, err)
			}
			item.opts.Status = status
		}
		start, err := validation.ParseDate(task.Start)
		if err != nil {
			fail("task %q: start: %v", label, err)
		}
		due, err := validation.ParseDate(task.Due)
		if err != nil {
			fail("task %q: due: %v", label, err)
		}
		if start != nil && due != nil && start.After(*due) {
			fail("task %q: start %s is after due %s", label, start.Format(time.DateOnly), due.Format(time.DateOnly))
		}
		item.opts.StartDate, item.opts.DueDate = start, due

		seen := make(map[string]bool, len(task.DependsOn))
		for _, link := range task.DependsOn {
			target := strings.TrimSpace(link.Task)
			switch {
			case target == "":
				fail("task %q: dependency without a task", label)
				continue
			case target == key:
				fail("task %q: depends on itself", label)
				continue
			case !keys[target]:
				fail("task %q: unknown dependency %q", label, target)
				continue
			case seen[target]:
				fail("task %q: duplicate dependency on %q", label, target)
				continue
			}
			seen[target] = true
			depType := schedule.FinishToStart
			if link.Type != "" {
				parsed, err := schedule.ParseDependencyType(link.Type)
				if err != nil {
					fail("task %q: dependency on %q: %v", label, target, err)
					continue
				}
				depType = parsed
			}
			item.links = append(item.links, resolvedLink{key: target, depType: depType})
		}
		tasks = append(tasks, item)
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return tasks, nil
}

// Store is the slice of store.Backend Import writes tasks through.
type Store interface {
	CreateTask(ctx context.Context, opts store.CreateTaskOptions) (*schedule.Task, error)
	IsMember(ctx context.Context, workspace, user string) (bool, error)
}

// Linker creates dependency edges. *schedule.Graph implements it.
type Linker interface {
	CreateDependency(ctx context.Context, taskID, dependsOnID string, depType schedule.DependencyType, actor string) (*schedule.Dependency, error)
}

// ImportedTask pairs a plan key with the task created for it.
type ImportedTask struct {
	Key  string         `json:"key"`
	Task *schedule.Task `json:"task"`
}

// Result lists what Import wrote, in creation order.
type Result struct {
	Tasks        []ImportedTask        `json:"tasks"`
	Dependencies []schedule.Dependency `json:"dependencies"`
}

// TaskID returns the ID created for key.
func (r *Result) TaskID(key string) (string, bool) {
	for _, item := range r.Tasks {
		if item.Key == key {
			return item.Task.ID, true
		}
	}
	return "", false
}

// Import validates the plan, then creates every task and finally every
// dependency through graph so the engine's edge rules apply. Nothing is
// written when validation fails. When an edge is rejected, Import stops and
// returns what it wrote so far with the error.
func Import(ctx context.Context, backend Store, graph Linker, plan *Plan, actor string) (*Result, error) {
	tasks, err := plan.resolve()
	if err != nil {
		return nil, err
	}
	member, err := backend.IsMember(ctx, plan.Workspace, actor)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("%w: %s in %s", schedule.ErrNotMember, actor, plan.Workspace)
	}

	result := &Result{Tasks: []ImportedTask{}, Dependencies: []schedule.Dependency{}}
	created := make(map[string]string, len(tasks))
	for _, item := range tasks {
		task, err := backend.CreateTask(ctx, item.opts)
		if err != nil {
			return result, fmt.Errorf("create task %q: %w", item.key, err)
		}
		created[item.key] = task.ID
		result.Tasks = append(result.Tasks, ImportedTask{Key: item.key, Task: task})
	}
	for _, item := range tasks {
		for _, link := range item.links {
			dep, err := graph.CreateDependency(ctx, created[item.key], created[link.key], link.depType, actor)
			if err != nil {
				return result, fmt.Errorf("task %q depends on %q: %w", item.key, link.key, err)
			}
			result.Dependencies = append(result.Dependencies, *dep)
		}
	}
	return result, nil
}
