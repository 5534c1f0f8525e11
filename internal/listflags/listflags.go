// Package listflags holds flags shared by list commands.
package listflags

import "github.com/spf13/cobra"

// AddAllFlag adds a shared --all flag that includes deleted records.
func AddAllFlag(cmd *cobra.Command, target *bool) {
	if target == nil {
		cmd.Flags().Bool("all", false, "Include deleted records")
		return
	}

	cmd.Flags().BoolVar(target, "all", false, "Include deleted records")
}
