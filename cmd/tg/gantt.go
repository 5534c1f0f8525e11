package main

import (
	"fmt"

	"github.com/amonks/taskgraph/gantt"
	"github.com/amonks/taskgraph/internal/ui"
	"github.com/spf13/cobra"
)

var ganttCmd = &cobra.Command{
	Use:   "gantt",
	Short: "Show a project's schedule and critical path",
	Args:  cobra.NoArgs,
	RunE:  runGantt,
}

var (
	ganttWorkspace string
	ganttProject   string
	ganttWidth     int
	ganttJSON      bool
)

func init() {
	rootCmd.AddCommand(ganttCmd)

	ganttCmd.Flags().StringVarP(&ganttWorkspace, "workspace", "w", "", "Workspace (required)")
	ganttCmd.Flags().StringVarP(&ganttProject, "project", "p", "", "Project")
	ganttCmd.Flags().IntVar(&ganttWidth, "width", 0, "Chart width (default terminal width)")
	ganttCmd.Flags().BoolVar(&ganttJSON, "json", false, "Output as JSON")
	_ = ganttCmd.MarkFlagRequired("workspace")
}

func runGantt(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		chart, err := gantt.Build(cmd.Context(), s.Backend, ganttWorkspace, ganttProject)
		if err != nil {
			return err
		}
		if ganttJSON {
			return encodeJSONToStdout(chart)
		}
		width := ganttWidth
		if width <= 0 {
			width = outputWidth()
		}
		fmt.Print(gantt.Render(chart, gantt.RenderOptions{Width: width, Color: ui.ColorEnabled()}))
		return nil
	})
}
