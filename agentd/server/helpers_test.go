package server

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gitoleg1/lucy-agent/agentd/baseserver"
	"github.com/gitoleg1/lucy-agent/agentd/core"
	"github.com/gitoleg1/lucy-agent/agentd/store"
	"github.com/gitoleg1/lucy-agent/internals/conf"
	"github.com/gitoleg1/lucy-agent/internals/env"
	"github.com/gitoleg1/lucy-agent/internals/logbuf"
	"github.com/gitoleg1/lucy-agent/internals/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	config := conf.GetConfig()
	origDataDir := config.Server.DataDir
	origVersion := config.Version
	config.Server.DataDir = t.TempDir()
	config.Version = "test-version"

	dataEnv := env.Get()
	origAPIKey := dataEnv.API_KEY
	origHeartbeat := dataEnv.HEARTBEAT_SECONDS
	dataEnv.API_KEY = ""
	dataEnv.HEARTBEAT_SECONDS = 0.05

	t.Cleanup(func() {
		config.Server.DataDir = origDataDir
		config.Version = origVersion
		dataEnv.API_KEY = origAPIKey
		dataEnv.HEARTBEAT_SECONDS = origHeartbeat
	})

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	taskStore, err := store.Open(testutil.TempDBPath(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { taskStore.Close() })

	guard := core.NewGuardrail(core.PolicyConfig{})
	runner := &core.Runner{
		BaseDir: testutil.TempRunsDir(t),
		Shell:   "/bin/sh",
		Timeout: 5 * time.Second,
		Logger:  logger,
	}
	audit := core.NewAudit(taskStore, logger)
	broadcaster := core.NewBroadcaster()
	orchestrator := core.NewOrchestrator(taskStore, guard, runner, audit, broadcaster, logger)

	return &Server{
		Base: &baseserver.BaseServer{
			Config: config,
			Env:    dataEnv,
			Logger: logger,
		},
		Logbuf:       logbuf.New(),
		store:        taskStore,
		guard:        guard,
		broadcaster:  broadcaster,
		orchestrator: orchestrator,
	}
}
