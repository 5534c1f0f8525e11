package main

import (
	"encoding/json"
	"os"

	"github.com/amonks/taskgraph/internal/ui"
	"github.com/amonks/taskgraph/schedule"
)

func encodeJSONToStdout(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// outputWidth is the terminal width, or 80 when stdout is not a terminal.
func outputWidth() int {
	return ui.TerminalWidth(80)
}

func taskIDs(tasks []schedule.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}
