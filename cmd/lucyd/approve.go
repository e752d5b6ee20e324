package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitoleg1/lucy-agent/internals/schemas"
	"github.com/gitoleg1/lucy-agent/sdk"
)

var (
	approveReject bool
	approveBy     string
)

var approveCmd = &cobra.Command{
	Use:   "approve <task-id> <token>",
	Short: "Decide a task's approval",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		decision := schemas.DecisionApprove
		if approveReject {
			decision = schemas.DecisionReject
		}
		client := sdk.NewClient()
		task, err := client.Approve(cmd.Context(), args[0], schemas.ApprovalRequest{
			Token:     args[1],
			Decision:  decision,
			DecidedBy: approveBy,
		})
		if err != nil {
			return err
		}
		fmt.Printf("task %s is now %s\n", task.ID, task.Status)
		return nil
	},
}

func init() {
	approveCmd.Flags().BoolVar(&approveReject, "reject", false, "Reject instead of approve")
	approveCmd.Flags().StringVar(&approveBy, "by", "cli", "Decision author")
	rootCmd.AddCommand(approveCmd)
}
