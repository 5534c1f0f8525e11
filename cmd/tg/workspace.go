package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/amonks/taskgraph/internal/ui"
	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage workspaces",
}

// workspace create
var workspaceCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a workspace with you as its first member",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceCreate,
}

var workspaceCreateJSON bool

// workspace list
var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	Args:  cobra.NoArgs,
	RunE:  runWorkspaceList,
}

var workspaceListJSON bool

// workspace add-member
var workspaceAddMemberCmd = &cobra.Command{
	Use:   "add-member <workspace> <user>",
	Short: "Add a member to a workspace",
	Args:  cobra.ExactArgs(2),
	RunE:  runWorkspaceAddMember,
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(workspaceCreateCmd, workspaceListCmd, workspaceAddMemberCmd)

	workspaceCreateCmd.Flags().BoolVar(&workspaceCreateJSON, "json", false, "Output as JSON")
	workspaceListCmd.Flags().BoolVar(&workspaceListJSON, "json", false, "Output as JSON")
}

func runWorkspaceCreate(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		ws, err := s.Backend.CreateWorkspace(cmd.Context(), args[0], actor)
		if err != nil {
			return err
		}
		if workspaceCreateJSON {
			return encodeJSONToStdout(ws)
		}
		fmt.Printf("Created workspace %s\n", ws.ID)
		return nil
	})
}

func runWorkspaceList(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		workspaces, err := s.Backend.ListWorkspaces(cmd.Context())
		if err != nil {
			return err
		}
		if workspaceListJSON {
			return encodeJSONToStdout(workspaces)
		}
		if len(workspaces) == 0 {
			fmt.Println("No workspaces.")
			return nil
		}
		now := time.Now()
		builder := ui.NewTableBuilder([]string{"NAME", "CREATED", "MEMBERS"}, len(workspaces))
		for _, ws := range workspaces {
			builder.AddRow(ws.ID, ui.FormatTimeAgo(ws.CreatedAt, now), strings.Join(ws.Members, ", "))
		}
		fmt.Print(builder.String())
		return nil
	})
}

func runWorkspaceAddMember(cmd *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		actor, err := s.requireActor()
		if err != nil {
			return err
		}
		ws, err := s.AddMember(cmd.Context(), args[0], args[1], actor)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s to %s\n", args[1], ws.ID)
		return nil
	})
}
