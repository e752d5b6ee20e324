package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitoleg1/lucy-agent/internals/conf"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(conf.GetConfig().Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
