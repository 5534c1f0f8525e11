package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/amonks/taskgraph/internal/app"
	"github.com/amonks/taskgraph/internal/editor"
	"github.com/amonks/taskgraph/internal/listflags"
	"github.com/amonks/taskgraph/schedule"
	"github.com/amonks/taskgraph/store"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

// task create
var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a task",
	Long: `Create a task.

Without a title, or with --edit, the task opens in $EDITOR pre-filled from
the flags.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTaskCreate,
}

var (
	taskCreateWorkspace   string
	taskCreateProject     string
	taskCreateDescription string
	taskCreateStatus      string
	taskCreateStart       *time.Time
	taskCreateDue         *time.Time
	taskCreateMilestone   bool
	taskCreateEdit        bool
	taskCreateJSON        bool
)

// task list
var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var (
	taskListWorkspace string
	taskListProject   string
	taskListStatuses  []string
	taskListAll       bool
	taskListJSON      bool
)

// task show
var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task with its dependencies and recent events",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var (
	taskShowEvents int
	taskShowJSON   bool
)

// task status
var taskStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Change a task's status (todo, in-progress, in-review, done)",
	Long: `Change a task's status.

Moving to in-progress or done is checked against the task's predecessors.
A blocked change fails unless --force is given.`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskStatus,
}

var (
	taskStatusForce bool
	taskStatusJSON  bool
)

// task dates
var taskDatesCmd = &cobra.Command{
	Use:   "dates <id>",
	Short: "Reschedule a task and cascade the shift to its dependents",
	Long: `Reschedule a task and cascade the shift to its dependents.

Dates not given keep their current value. Pass "none" to clear a date.
Every dependent, direct or transitive, moves by the same number of days.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskDates,
}

var (
	taskDatesStart     *time.Time
	taskDatesDue       *time.Time
	taskDatesMilestone bool
	taskDatesJSON      bool
)

// task delete
var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskDelete,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskShowCmd, taskStatusCmd, taskDatesCmd, taskDeleteCmd)

	// task create flags
	taskCreateCmd.Flags().StringVarP(&taskCreateWorkspace, "workspace", "w", "", "Workspace (required)")
	taskCreateCmd.Flags().StringVarP(&taskCreateProject, "project", "p", "", "Project within the workspace")
	taskCreateCmd.Flags().StringVarP(&taskCreateDescription, "description", "d", "", "Description (markdown)")
	taskCreateCmd.Flags().StringVar(&taskCreateStatus, "status", "", "Initial status (default todo)")
	taskCreateCmd.Flags().Var(newDateValue(&taskCreateStart), "start", "Start date (YYYY-MM-DD)")
	taskCreateCmd.Flags().Var(newDateValue(&taskCreateDue), "due", "Due date (YYYY-MM-DD)")
	taskCreateCmd.Flags().BoolVar(&taskCreateMilestone, "milestone", false, "Mark as a milestone (start equals due)")
	taskCreateCmd.Flags().BoolVarP(&taskCreateEdit, "edit", "e", false, "Open $EDITOR to fill in the task")
	taskCreateCmd.Flags().BoolVar(&taskCreateJSON, "json", false, "Output as JSON")

	// task list flags
	taskListCmd.Flags().StringVarP(&taskListWorkspace, "workspace", "w", "", "Filter by workspace")
	taskListCmd.Flags().StringVarP(&taskListProject, "project", "p", "", "Filter by project")
	taskListCmd.Flags().StringSliceVar(&taskListStatuses, "status", nil, "Filter by status (repeatable)")
	listflags.AddAllFlag(taskListCmd, &taskListAll)
	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output as JSON")

	// task show flags
	taskShowCmd.Flags().IntVar(&taskShowEvents, "events", 5, "Number of recent events to show")
	taskShowCmd.Flags().BoolVar(&taskShowJSON, "json", false, "Output as JSON")

	// task status flags
	taskStatusCmd.Flags().BoolVar(&taskStatusForce, "force", false, "Apply the change even when predecessors block it")
	taskStatusCmd.Flags().BoolVar(&taskStatusJSON, "json", false, "Output as JSON")

	// task dates flags
	taskDatesCmd.Flags().Var(newDateValue(&taskDatesStart), "start", "New start date (YYYY-MM-DD or none)")
	taskDatesCmd.Flags().Var(newDateValue(&taskDatesDue), "due", "New due date (YYYY-MM-DD or none)")
	taskDatesCmd.Flags().BoolVar(&taskDatesMilestone, "milestone", false, "Set or clear the milestone flag")
	taskDatesCmd.Flags().BoolVar(&taskDatesJSON, "json", false, "Output as JSON")
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	opts := store.CreateTaskOptions{
		Description: taskCreateDescription,
		Workspace:   taskCreateWorkspace,
		Project:     taskCreateProject,
		Status:      schedule.Status(taskCreateStatus),
		StartDate:   taskCreateStart,
		DueDate:     taskCreateDue,
		IsMilestone: taskCreateMilestone,
	}
	if len(args) > 0 {
		opts.Title = args[0]
	}

	if taskCreateEdit || len(args) == 0 {
		if !taskCreateEdit && !editor.IsInteractive() {
			return fmt.Errorf("title is required (or pass --edit)")
		}
		parsed, err := editor.EditTask(editor.DataFromOptions(opts))
		if err != nil {
			return err
		}
		opts = parsed.ToCreateOptions()
	}
	if strings.TrimSpace(opts.Workspace) == "" {
		return fmt.Errorf("workspace is required: pass --workspace")
	}

	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		task, err := s.CreateTask(cmd.Context(), opts, actor)
		if err != nil {
			return err
		}
		if taskCreateJSON {
			return encodeJSONToStdout(task)
		}
		fmt.Printf("Created task %s: %s\n", task.ID, task.Title)
		return nil
	})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	filter := store.TaskFilter{
		Workspace:      taskListWorkspace,
		Project:        taskListProject,
		IncludeDeleted: taskListAll,
	}
	for _, raw := range taskListStatuses {
		status, err := schedule.ParseStatus(raw)
		if err != nil {
			return err
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	return withSession(func(s *session) error {
		tasks, err := s.Backend.ListTasks(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if taskListJSON {
			return encodeJSONToStdout(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		fmt.Print(formatTaskTable(tasks))
		return nil
	})
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		detail, err := loadTaskDetail(cmd, s, args[0])
		if err != nil {
			return err
		}
		if taskShowJSON {
			return encodeJSONToStdout(detail)
		}
		fmt.Print(formatTaskDetail(detail, outputWidth(), taskShowEvents))
		return nil
	})
}

func loadTaskDetail(cmd *cobra.Command, s *session, prefix string) (*taskDetail, error) {
	ctx := cmd.Context()
	task, err := s.ResolveTask(ctx, prefix)
	if err != nil {
		return nil, err
	}
	dependencies, err := s.Service.Graph.BlockingTasks(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	dependents, err := s.Service.Graph.Dependents(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	timeline, err := s.Service.Timeline.ValidateTimeline(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	events, err := s.TaskEvents(task.ID)
	if err != nil {
		return nil, err
	}
	return &taskDetail{
		Task:         task,
		Dependencies: dependencies,
		Dependents:   dependents,
		Timeline:     timeline,
		Events:       events,
	}, nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	status, err := schedule.ParseStatus(args[1])
	if err != nil {
		return err
	}
	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		task, err := s.ResolveTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		change, err := s.ChangeStatus(cmd.Context(), task.ID, status, taskStatusForce, actor)
		if change == nil {
			return err
		}
		if taskStatusJSON {
			if encodeErr := encodeJSONToStdout(change); encodeErr != nil {
				return encodeErr
			}
			return err
		}
		if errors.Is(err, app.ErrTransitionBlocked) {
			fmt.Fprint(os.Stderr, formatBlockers(change.Transition, outputWidth()))
			return fmt.Errorf("%s (use --force to override)", change.Transition.Reason)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", change.Task.ID, change.Task.Status)
		if change.Forced {
			fmt.Fprint(os.Stderr, formatBlockers(change.Transition, outputWidth()))
			fmt.Fprintln(os.Stderr, "warning: status forced past blocking dependencies")
		}
		return nil
	})
}

func runTaskDates(cmd *cobra.Command, args []string) error {
	if !hasChangedFlags(cmd, "start", "due", "milestone") {
		return fmt.Errorf("nothing to change: pass --start, --due or --milestone")
	}
	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		task, err := s.ResolveTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		change := schedule.DateChange{StartDate: task.StartDate, DueDate: task.DueDate}
		if cmd.Flags().Changed("start") {
			change.StartDate = taskDatesStart
		}
		if cmd.Flags().Changed("due") {
			change.DueDate = taskDatesDue
		}
		if cmd.Flags().Changed("milestone") {
			milestone := taskDatesMilestone
			change.Milestone = &milestone
		}

		result, err := s.Service.Scheduler.SetTaskDates(cmd.Context(), task.ID, change, actor)
		if result != nil {
			if taskDatesJSON {
				if encodeErr := encodeJSONToStdout(result); encodeErr != nil {
					return errors.Join(err, encodeErr)
				}
			} else {
				fmt.Print(formatReschedule(result, outputWidth()))
			}
		}
		return err
	})
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		for _, prefix := range args {
			task, err := s.ResolveTask(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			if err := s.DeleteTask(cmd.Context(), task.ID, actor); err != nil {
				return err
			}
			fmt.Printf("Deleted task %s: %s\n", task.ID, task.Title)
		}
		return nil
	})
}
