package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gitoleg1/lucy-agent/internals/schemas"
	"github.com/gitoleg1/lucy-agent/sdk"
)

var runTitle string

var runCmd = &cobra.Command{
	Use:   "run <cmd>",
	Short: "Run a shell command through a running daemon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := sdk.NewClient()
		result, err := client.QuickRun(cmd.Context(), schemas.QuickRunRequest{
			Title: runTitle,
			Actions: []schemas.ActionInput{
				{Type: schemas.ActionTypeShell, Params: map[string]any{"cmd": args[0]}},
			},
		})
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
		if result.Task.Status != schemas.TaskStatusSucceeded {
			return fmt.Errorf("task %s finished %s", result.Task.ID, result.Task.Status)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runTitle, "title", "quick-run", "Task title")
	rootCmd.AddCommand(runCmd)
}
