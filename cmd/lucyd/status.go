package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitoleg1/lucy-agent/internals/timeouts"
	"github.com/gitoleg1/lucy-agent/sdk"
)

var statusWait bool

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := sdk.NewClient()
		task, err := client.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for statusWait && !task.Status.Terminal() {
			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case <-time.After(timeouts.PollInterval):
			}
			task, err = client.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(task)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <task-id>",
	Short: "Print a task's audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := sdk.NewClient()
		events, err := client.Audit(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(events)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "poll until the task reaches a terminal status")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(auditCmd)
}
