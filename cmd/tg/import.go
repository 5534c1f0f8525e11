package main

import (
	"fmt"
	"io"
	"os"

	"github.com/amonks/taskgraph/internal/ui"
	"github.com/amonks/taskgraph/plan"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create tasks and dependencies from a YAML plan",
	Long: `Create tasks and dependencies from a YAML plan ("-" reads stdin).

  workspace: acme
  project: launch
  tasks:
    - key: design
      title: Design
      start: 2025-01-06
      due: 2025-01-08
    - key: build
      title: Build
      depends_on: [design]
    - key: ship
      title: Ship
      milestone: true
      depends_on:
        - task: build
          type: FF`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importJSON bool

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importJSON, "json", false, "Output as JSON")
}

func runImport(cmd *cobra.Command, args []string) error {
	parsed, err := readPlan(args[0])
	if err != nil {
		return err
	}
	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		result, err := plan.Import(cmd.Context(), s.Backend, s.Service.Graph, parsed, actor)
		if result != nil {
			if importJSON {
				if encodeErr := encodeJSONToStdout(result); encodeErr != nil {
					return encodeErr
				}
			} else {
				fmt.Print(formatImport(result))
			}
		}
		return err
	})
}

func readPlan(path string) (*plan.Plan, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open plan: %w", err)
		}
		defer f.Close()
		r = f
	}
	return plan.Parse(r)
}

func formatImport(result *plan.Result) string {
	if len(result.Tasks) == 0 {
		return "Nothing imported.\n"
	}
	builder := ui.NewTableBuilder([]string{"KEY", "ID", "DATES", "TITLE"}, len(result.Tasks))
	for _, item := range result.Tasks {
		task := item.Task
		builder.AddRow(item.Key, task.ID, ui.FormatDateRange(task.StartDate, task.DueDate, task.IsMilestone), ui.TruncateTableCell(task.Title))
	}
	return fmt.Sprintf("Imported %d tasks and %d dependencies.\n%s", len(result.Tasks), len(result.Dependencies), builder.String())
}
