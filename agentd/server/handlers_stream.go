package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HandlerStreamTask serves task progress as server-sent events. The stream
// opens with a "started" event, emits "update" events as actions progress,
// "heartbeat" events while idle, and closes after a terminal "done" event.
// A consumer disconnect ends the stream only; execution is unaffected.
func (s *Server) HandlerStreamTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	task, err := s.orchestrator.GetTask(r.Context(), taskID)
	if err != nil {
		s.renderCoreError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Streaming unsupported", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	// Subscribe before the terminal check so no event published in between
	// is missed.
	events, cancel := s.broadcaster.Subscribe(taskID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "retry: 3000\n\n")

	// Every frame carries the task id and an RFC3339 UTC timestamp.
	seq := 0
	write := func(event string, payload map[string]any) {
		seq++
		payload["ts"] = time.Now().UTC().Format(time.RFC3339)
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		_, _ = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, event, data)
		flusher.Flush()
	}

	write("started", map[string]any{"task_id": taskID, "status": task.Status})
	if task.Status.Terminal() {
		write("done", map[string]any{"task_id": taskID, "status": task.Status})
		return
	}

	heartbeat := time.Duration(s.Base.Env.HEARTBEAT_SECONDS * float64(time.Second))
	if heartbeat <= 0 {
		heartbeat = time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			write("heartbeat", map[string]any{"task_id": taskID})
		case event, ok := <-events:
			if !ok {
				// Terminal publish closed the stream before this consumer
				// drained its buffer; report the final state directly.
				if final, err := s.orchestrator.GetTask(r.Context(), taskID); err == nil {
					write("done", map[string]any{"task_id": taskID, "status": final.Status})
				}
				return
			}
			payload := map[string]any{"task_id": taskID}
			for key, value := range event.Data {
				payload[key] = value
			}
			if event.Terminal {
				write("done", payload)
				return
			}
			write(event.Type, payload)
		}
	}
}
