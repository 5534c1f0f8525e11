package main

import (
	"fmt"

	"github.com/amonks/taskgraph/internal/ui"
	"github.com/amonks/taskgraph/schedule"
	"github.com/spf13/cobra"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage task dependencies",
}

// dep add
var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <depends-on-id>",
	Short: "Make a task depend on another",
	Long: `Make a task depend on another.

Types: FS (finish-to-start, default), SS (start-to-start),
FF (finish-to-finish), SF (start-to-finish).`,
	Args: cobra.ExactArgs(2),
	RunE: runDepAdd,
}

var (
	depAddType schedule.DependencyType
	depAddJSON bool
)

// dep rm
var depRmCmd = &cobra.Command{
	Use:   "rm <dependency-id>",
	Short: "Remove a dependency",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepRm,
}

// dep list
var depListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "List a task's predecessors and dependents",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepList,
}

var depListJSON bool

func init() {
	rootCmd.AddCommand(depCmd)
	depCmd.AddCommand(depAddCmd, depRmCmd, depListCmd)

	depAddCmd.Flags().VarP(newDependencyTypeValue(schedule.FinishToStart, &depAddType), "type", "t", "Dependency type (FS, SS, FF, SF)")
	depAddCmd.Flags().BoolVar(&depAddJSON, "json", false, "Output as JSON")
	depListCmd.Flags().BoolVar(&depListJSON, "json", false, "Output as JSON")
}

func runDepAdd(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		task, err := s.ResolveTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		dependsOn, err := s.ResolveTask(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		dep, err := s.Service.Graph.CreateDependency(cmd.Context(), task.ID, dependsOn.ID, depAddType, actor)
		if err != nil {
			return err
		}
		if depAddJSON {
			return encodeJSONToStdout(dep)
		}
		fmt.Printf("Added %s dependency %s: %s depends on %s\n", dep.Type, dep.ID, task.ID, dependsOn.ID)
		return nil
	})
}

func runDepRm(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		if err := s.Service.Graph.DeleteDependency(cmd.Context(), args[0], actor); err != nil {
			return err
		}
		fmt.Printf("Removed dependency %s\n", args[0])
		return nil
	})
}

type dependencyListing struct {
	Dependencies []schedule.BlockingDependency `json:"dependencies"`
	Dependents   []schedule.LinkedTask         `json:"dependents"`
}

func runDepList(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		task, err := s.ResolveTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		dependencies, err := s.Service.Graph.BlockingTasks(cmd.Context(), task.ID)
		if err != nil {
			return err
		}
		dependents, err := s.Service.Graph.Dependents(cmd.Context(), task.ID)
		if err != nil {
			return err
		}
		listing := dependencyListing{Dependencies: dependencies, Dependents: dependents}
		if depListJSON {
			return encodeJSONToStdout(listing)
		}
		if len(dependencies) == 0 && len(dependents) == 0 {
			fmt.Printf("%s has no dependencies.\n", task.ID)
			return nil
		}
		fmt.Print(formatDependencyListing(listing))
		return nil
	})
}

func formatDependencyListing(listing dependencyListing) string {
	builder := ui.NewTableBuilder([]string{"DEPENDENCY", "TYPE", "DIRECTION", "TASK", "STATUS", "TITLE"},
		len(listing.Dependencies)+len(listing.Dependents))
	for _, dep := range listing.Dependencies {
		status := string(dep.Predecessor.Status)
		if dep.IsBlocking {
			status += " (blocking)"
		}
		builder.AddRow(dep.Dependency.ID, string(dep.Dependency.Type), "after", dep.Predecessor.ID, status, ui.TruncateTableCell(dep.Predecessor.Title))
	}
	for _, dep := range listing.Dependents {
		builder.AddRow(dep.Dependency.ID, string(dep.Dependency.Type), "before", dep.Task.ID, string(dep.Task.Status), ui.TruncateTableCell(dep.Task.Title))
	}
	return builder.String()
}
