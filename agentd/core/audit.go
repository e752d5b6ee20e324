package core

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gitoleg1/lucy-agent/agentd/store"
	"github.com/gitoleg1/lucy-agent/internals/schemas"
)

const (
	EventTaskCreated     = "task_created"
	EventApprovalDecided = "approval_decided"
	EventActionStart     = "action_start"
	EventActionEnd       = "action_end"
	EventActionError     = "action_error"
	EventTaskFinished    = "task_finished"
)

// AuditEvent is one fact to append to a task's trail.
type AuditEvent struct {
	TaskID   string
	ActionID string
	RunID    string
	Type     string
	Message  string
	Data     map[string]any
}

// Audit is the append-only trail over the store. Writes are best-effort:
// the authoritative status lives on the task and run rows, so a failed
// audit write is logged and never fails the execution path.
type Audit struct {
	store  *store.Store
	logger *slog.Logger
}

func NewAudit(s *store.Store, logger *slog.Logger) *Audit {
	return &Audit{store: s, logger: logger}
}

func (a *Audit) Record(ctx context.Context, event AuditEvent) store.AuditRecord {
	data := event.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		a.logger.Error("failed to encode audit payload", "task_id", event.TaskID, "event", event.Type, "error", err)
		dataJSON = []byte("{}")
	}

	record := store.AuditRecord{
		ID:        uuid.NewString(),
		TaskID:    event.TaskID,
		ActionID:  event.ActionID,
		RunID:     event.RunID,
		EventType: event.Type,
		Message:   event.Message,
		DataJSON:  string(dataJSON),
		CreatedAt: schemas.NowISO(),
	}
	if err := a.store.AppendAudit(ctx, record); err != nil {
		a.logger.Error("failed to append audit event", "task_id", event.TaskID, "event", event.Type, "error", err)
	}
	return record
}

// List returns a task's trail oldest first. For any terminal run missing
// an action_end event (crash path), a synthetic action_end is appended so
// consumers never see a started-but-never-ended action.
func (a *Audit) List(ctx context.Context, taskID string) ([]schemas.AuditOut, error) {
	records, err := a.store.ListAudit(ctx, taskID)
	if err != nil {
		return nil, err
	}

	out := make([]schemas.AuditOut, 0, len(records))
	endedRuns := map[string]bool{}
	for _, record := range records {
		if record.EventType == EventActionEnd && record.RunID != "" {
			endedRuns[record.RunID] = true
		}
		out = append(out, auditToOut(record))
	}

	runs, err := a.store.ListRunsForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if !run.Status.Terminal() || endedRuns[run.ID] {
			continue
		}
		synthetic := AuditEvent{
			TaskID:   taskID,
			ActionID: run.ActionID,
			RunID:    run.ID,
			Type:     EventActionEnd,
			Message:  "action ended (synthesized at read)",
			Data: map[string]any{
				"action_id":   run.ActionID,
				"exit_code":   exitCodeValue(run.ExitCode),
				"stdout_tail": tailBytes(run.StdoutPath, tailLimit),
				"stderr_tail": tailBytes(run.StderrPath, tailLimit),
				"synthetic":   true,
			},
		}
		out = append(out, auditToOut(a.Record(ctx, synthetic)))
	}
	return out, nil
}

func auditToOut(record store.AuditRecord) schemas.AuditOut {
	data := map[string]any{}
	if record.DataJSON != "" {
		if err := json.Unmarshal([]byte(record.DataJSON), &data); err != nil {
			data = map[string]any{"raw": record.DataJSON}
		}
	}
	return schemas.AuditOut{
		ID:        record.ID,
		TaskID:    record.TaskID,
		ActionID:  record.ActionID,
		RunID:     record.RunID,
		Event:     record.EventType,
		Message:   record.Message,
		Data:      data,
		CreatedAt: record.CreatedAt,
	}
}

func exitCodeValue(code *int) any {
	if code == nil {
		return nil
	}
	return *code
}
