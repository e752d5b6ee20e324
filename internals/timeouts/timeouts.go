// Package timeouts centralizes the wait durations used by the client side.
package timeouts

import "time"

const (
	// Probe bounds a liveness ping against a local daemon.
	Probe = 300 * time.Millisecond
	// PollInterval spaces task status polls.
	PollInterval = 3 * time.Second
	// Shutdown bounds a graceful server shutdown.
	Shutdown = 2 * time.Second
)
