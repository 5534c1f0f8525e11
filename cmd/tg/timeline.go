package main

import (
	"fmt"

	"github.com/amonks/taskgraph/schedule"
	"github.com/spf13/cobra"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Inspect task timelines",
}

// timeline validate
var timelineValidateCmd = &cobra.Command{
	Use:   "validate <id>...",
	Short: "Report date inconsistencies against predecessors",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTimelineValidate,
}

var timelineValidateJSON bool

func init() {
	rootCmd.AddCommand(timelineCmd)
	timelineCmd.AddCommand(timelineValidateCmd)

	timelineValidateCmd.Flags().BoolVar(&timelineValidateJSON, "json", false, "Output as JSON")
}

type timelineReport struct {
	TaskID string `json:"task_id"`
	*schedule.TimelineResult
}

func runTimelineValidate(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		reports := make([]timelineReport, 0, len(args))
		invalid := 0
		for _, prefix := range args {
			task, err := s.ResolveTask(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			result, err := s.Service.Timeline.ValidateTimeline(cmd.Context(), task.ID)
			if err != nil {
				return err
			}
			if !result.Valid {
				invalid++
			}
			reports = append(reports, timelineReport{TaskID: task.ID, TimelineResult: result})
		}

		if timelineValidateJSON {
			if err := encodeJSONToStdout(reports); err != nil {
				return err
			}
		} else {
			for _, report := range reports {
				if report.Valid {
					fmt.Printf("%s: ok\n", report.TaskID)
					continue
				}
				fmt.Printf("%s:\n", report.TaskID)
				for _, problem := range report.Errors {
					fmt.Printf("  - %s\n", problem)
				}
			}
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d tasks have timeline violations", invalid, len(reports))
		}
		return nil
	})
}
