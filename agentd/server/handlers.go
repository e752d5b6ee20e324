package server

import (
	"encoding/json"
	"errors"
	"net/http"

	z "github.com/Oudwins/zog"

	"github.com/gitoleg1/lucy-agent/agentd/core"
	"github.com/gitoleg1/lucy-agent/agentd/store"
	"github.com/gitoleg1/lucy-agent/internals/schemas"
)

func (s *Server) HandlerHealth(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) HandlerVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.Base.Config.Version))
}

// HandlerAgentShell is the one-command convenience surface: a single shell
// action wrapped in an auto-approved task, executed synchronously.
func (s *Server) HandlerAgentShell(w http.ResponseWriter, r *http.Request) {
	var request schemas.AgentShellRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}
	if issues := schemas.AgentShellSchema.Validate(&request); len(issues) > 0 {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues)), Render.Status(http.StatusBadRequest))
		return
	}

	result, err := s.orchestrator.QuickRun(r.Context(), schemas.QuickRunRequest{
		Title: request.Title,
		Actions: []schemas.ActionInput{
			{Type: schemas.ActionTypeShell, Params: map[string]any{"cmd": request.Cmd}},
		},
	})
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}
	RenderJSON(w, r, result)
}

// renderCoreError maps orchestrator sentinels onto the HTTP error
// envelope.
func (s *Server) renderCoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrRateLimited):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeRateLimited, err.Error(), nil), Render.Status(http.StatusTooManyRequests))
	case errors.Is(err, core.ErrPolicyRejected):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodePolicyRejected, err.Error(), nil), Render.Status(http.StatusBadRequest))
	case errors.Is(err, core.ErrTaskNotFound):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "Task not found", nil), Render.Status(http.StatusNotFound))
	case errors.Is(err, core.ErrInvalidToken):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, err.Error(), nil), Render.Status(http.StatusBadRequest))
	case errors.Is(err, store.ErrAlreadyDecided):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeConflict, err.Error(), nil), Render.Status(http.StatusConflict))
	case errors.Is(err, core.ErrApprovalRequired), errors.Is(err, core.ErrNotRunnable):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeConflict, err.Error(), nil), Render.Status(http.StatusConflict))
	case errors.Is(err, core.ErrNoActions), errors.Is(err, core.ErrUnsupportedAction), errors.Is(err, core.ErrMissingCmd):
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, err.Error(), nil), Render.Status(http.StatusBadRequest))
	default:
		s.Base.Logger.Error("request failed", "error", err)
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Internal error", nil), Render.Status(http.StatusInternalServerError))
	}
}
