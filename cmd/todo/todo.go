package main

import (
	"strings"

	"todoManager/internal/handlers"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all todos as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return callTool(cmd, handlers.ToolListTodos, map[string]any{})
	},
}

var addCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Add a pending todo",
	Long: `Add a pending todo. All arguments are joined with spaces into the description.

The new record is printed as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callTool(cmd, handlers.ToolAddTodo, map[string]any{"description": strings.Join(args, " ")})
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a todo as done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callTool(cmd, handlers.ToolCompleteTodo, map[string]any{"id": args[0]})
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a todo",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return callTool(cmd, handlers.ToolDeleteTodo, map[string]any{"id": args[0]})
	},
}

var timestampCmd = &cobra.Command{
	Use:   "timestamp",
	Short: "Print the current local timestamp",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return callTool(cmd, handlers.ToolGetTimestamp, map[string]any{})
	},
}

func init() {
	rootCmd.AddCommand(listCmd, addCmd, completeCmd, deleteCmd, timestampCmd)
}
