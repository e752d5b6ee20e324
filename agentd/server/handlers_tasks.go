package server

import (
	"encoding/json"
	"net/http"

	z "github.com/Oudwins/zog"
	"github.com/go-chi/chi/v5"

	"github.com/gitoleg1/lucy-agent/internals/schemas"
)

func (s *Server) HandlerCreateTask(w http.ResponseWriter, r *http.Request) {
	var request schemas.TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if issues := schemas.TaskCreateSchema.Validate(&request); len(issues) > 0 {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues)), Render.Status(http.StatusBadRequest))
		return
	}
	if len(request.Actions) == 0 {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "at least one action is required", nil), Render.Status(http.StatusBadRequest))
		return
	}

	task, err := s.orchestrator.CreateTask(r.Context(), request)
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	RenderJSON(w, r, task, Render.Status(http.StatusCreated))
}

func (s *Server) HandlerGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.orchestrator.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	RenderJSON(w, r, task)
}

func (s *Server) HandlerApproveTask(w http.ResponseWriter, r *http.Request) {
	var request schemas.ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if issues := schemas.ApprovalSchema.Validate(&request); len(issues) > 0 {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues)), Render.Status(http.StatusBadRequest))
		return
	}

	task, err := s.orchestrator.Approve(r.Context(), chi.URLParam(r, "id"), request)
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	RenderJSON(w, r, task)
}

func (s *Server) HandlerRunTask(w http.ResponseWriter, r *http.Request) {
	runs, err := s.orchestrator.RunTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	RenderJSON(w, r, map[string]any{"runs": runs})
}

func (s *Server) HandlerListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.orchestrator.ListRuns(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	RenderJSON(w, r, map[string]any{"runs": runs})
}

func (s *Server) HandlerTaskAudit(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if _, err := s.orchestrator.GetTask(r.Context(), taskID); err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	events, err := s.orchestrator.Audit().List(r.Context(), taskID)
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	RenderJSON(w, r, map[string]any{"events": events})
}

func (s *Server) HandlerQuickRun(w http.ResponseWriter, r *http.Request) {
	var request schemas.QuickRunRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if issues := schemas.QuickRunSchema.Validate(&request); len(issues) > 0 {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues)), Render.Status(http.StatusBadRequest))
		return
	}
	if len(request.Actions) == 0 {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "at least one action is required", nil), Render.Status(http.StatusBadRequest))
		return
	}

	result, err := s.orchestrator.QuickRun(r.Context(), request)
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	RenderJSON(w, r, result)
}
