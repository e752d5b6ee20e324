package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gitoleg1/lucy-agent/agentd/server"
	"github.com/gitoleg1/lucy-agent/internals/env"
	"github.com/gitoleg1/lucy-agent/sdk"
)

var serveDetach bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sdk.IsRunning(env.Get().BASE_URL) {
			fmt.Println("daemon already running")
			return nil
		}
		if serveDetach {
			return startDetached()
		}
		serverInstance := server.New()

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-signals
			serverInstance.Shutdown()
		}()

		return serverInstance.Start()
	},
}

// startDetached re-executes the binary as a foreground daemon, releases
// the child and waits until the daemon answers version pings.
func startDetached() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	child := exec.Command(executable, "serve")
	if err := child.Start(); err != nil {
		return err
	}
	if err := child.Process.Release(); err != nil {
		return err
	}
	if !sdk.WaitForStart(env.Get().BASE_URL, slog.Default()) {
		return errors.New("daemon did not start in time")
	}
	fmt.Println("daemon started")
	return nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveDetach, "detach", false, "start the daemon in the background and wait until it responds")
	rootCmd.AddCommand(serveCmd)
}
