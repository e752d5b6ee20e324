package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.MiddlewareLogger)
	r.Use(s.MiddlewareCORS)
	r.Use(s.MiddlewareAuth)
	r.Get("/health", s.HandlerHealth)
	r.Get("/version", s.HandlerVersion)
	r.Post("/tasks", s.HandlerCreateTask)
	r.Get("/tasks/{id}", s.HandlerGetTask)
	r.Post("/tasks/{id}/approve", s.HandlerApproveTask)
	r.Post("/tasks/{id}/run", s.HandlerRunTask)
	r.Get("/tasks/{id}/runs", s.HandlerListRuns)
	r.Get("/tasks/{id}/audit", s.HandlerTaskAudit)
	r.Post("/tasks/quick-run", s.HandlerQuickRun)
	r.Post("/agent/shell", s.HandlerAgentShell)
	r.Get("/stream/tasks/{id}", s.HandlerStreamTask)
	return r
}
