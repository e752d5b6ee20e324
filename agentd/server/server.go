package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gitoleg1/lucy-agent/agentd/baseserver"
	"github.com/gitoleg1/lucy-agent/agentd/core"
	"github.com/gitoleg1/lucy-agent/agentd/store"
	"github.com/gitoleg1/lucy-agent/internals/assert"
	"github.com/gitoleg1/lucy-agent/internals/env"
	"github.com/gitoleg1/lucy-agent/internals/logbuf"
	"github.com/gitoleg1/lucy-agent/internals/timeouts"
)

type Server struct {
	Base         *baseserver.BaseServer
	Logbuf       *logbuf.Logger
	store        *store.Store
	guard        *core.Guardrail
	broadcaster  *core.Broadcaster
	orchestrator *core.Orchestrator
	httpServer   *http.Server
}

func New() *Server {
	base := baseserver.New()
	buffer := logbuf.New(
		slog.String("version", base.Config.Version),
		slog.Int("port", base.Env.PORT),
	)

	dbPath := base.Env.DB_PATH
	if dbPath == "" {
		dbPath = filepath.Join(base.Config.Server.DataDir, "agent.db")
	}
	taskStore, err := store.Open(dbPath)
	assert.AssertNil(err, "[SERVER] Failed to initialize store")

	guard := core.NewGuardrail(core.PolicyConfig{
		AllowPrefixes:  env.SplitList(base.Env.ALLOW_PREFIXES),
		DenySubstrings: env.SplitList(base.Env.DENY_SUBSTRINGS),
		MinInterval:    time.Duration(base.Env.MIN_INTERVAL_SEC * float64(time.Second)),
	})

	runner := &core.Runner{
		BaseDir: filepath.Join(base.Config.Server.DataDir, "runs"),
		Shell:   base.Config.Runner.Shell,
		Timeout: time.Duration(base.Env.TIMEOUT_SECONDS) * time.Second,
		Limits: core.Limits{
			CPUSeconds:        uint64(base.Env.TIMEOUT_SECONDS),
			AddressSpaceBytes: uint64(base.Env.MAX_AS_MB) << 20,
			OutputFileBytes:   uint64(base.Env.MAX_FSIZE_MB) << 20,
		},
		Logger: base.Logger,
	}

	audit := core.NewAudit(taskStore, base.Logger)
	broadcaster := core.NewBroadcaster()
	orchestrator := core.NewOrchestrator(taskStore, guard, runner, audit, broadcaster, base.Logger)

	return &Server{
		Base:         base,
		Logbuf:       buffer,
		store:        taskStore,
		guard:        guard,
		broadcaster:  broadcaster,
		orchestrator: orchestrator,
	}
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Base.Env.LISTEN_ADDR)
	if err != nil {
		return err
	}
	s.Base.Logger.Info("listening", "addr", s.Base.Env.LISTEN_ADDR)
	server := &http.Server{
		Handler: s.Router(),
	}
	s.httpServer = server
	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if s.httpServer == nil {
		s.Base.Logger.Error("shutdown failed", "error", errors.New("server not initialized"))
		return
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Base.Logger.Error("shutdown failed", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.Base.Logger.Error("failed to close store", "error", err)
	}
}
