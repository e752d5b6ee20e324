package baseserver

import (
	"log/slog"

	"github.com/gitoleg1/lucy-agent/agentd/core"
	"github.com/gitoleg1/lucy-agent/internals/conf"
	"github.com/gitoleg1/lucy-agent/internals/env"
)

type BaseServer struct {
	Config *conf.Config
	Env    *env.EnvStruct
	Logger *slog.Logger
}

func New() *BaseServer {
	env := env.Get()
	config := conf.GetConfig()
	logger, _ := core.InitLogger(config)

	return &BaseServer{
		Config: config,
		Env:    env,
		Logger: logger,
	}
}
