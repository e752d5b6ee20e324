package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gitoleg1/lucy-agent/agentd/store"
	"github.com/gitoleg1/lucy-agent/internals/schemas"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidToken      = errors.New("invalid approval token")
	ErrApprovalRequired  = errors.New("task requires approval")
	ErrNoActions         = errors.New("task has no actions")
	ErrNotRunnable       = errors.New("task is not in a runnable state")
	ErrUnsupportedAction = errors.New("unsupported action type")
	ErrMissingCmd        = errors.New("shell action missing 'cmd'")
)

// Orchestrator owns the task lifecycle: creation, approval gating,
// sequential action execution and terminal aggregation. Execution and
// storage failures never escape as errors; they become run rows and audit
// events.
type Orchestrator struct {
	store       *store.Store
	guard       *Guardrail
	runner      *Runner
	audit       *Audit
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewOrchestrator(s *store.Store, guard *Guardrail, runner *Runner, audit *Audit, broadcaster *Broadcaster, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:       s,
		guard:       guard,
		runner:      runner,
		audit:       audit,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (o *Orchestrator) Audit() *Audit { return o.audit }

func (o *Orchestrator) CreateTask(ctx context.Context, req schemas.TaskCreateRequest) (*schemas.TaskOut, error) {
	if err := o.guard.ReserveSlot(); err != nil {
		return nil, err
	}
	return o.createTask(ctx, req)
}

func (o *Orchestrator) createTask(ctx context.Context, req schemas.TaskCreateRequest) (*schemas.TaskOut, error) {
	if err := o.validateActions(req.Actions); err != nil {
		return nil, err
	}

	now := schemas.NowISO()
	status := schemas.TaskStatusPending
	if req.RequireApproval {
		status = schemas.TaskStatusWaitingApproval
	}

	task := store.TaskRecord{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		Status:          status,
		RequireApproval: req.RequireApproval,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	actions := make([]store.ActionRecord, 0, len(req.Actions))
	for i, input := range req.Actions {
		paramsJSON, err := json.Marshal(input.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode action params: %w", err)
		}
		actions = append(actions, store.ActionRecord{
			ID:         uuid.NewString(),
			TaskID:     task.ID,
			Idx:        i,
			Type:       input.Type,
			ParamsJSON: string(paramsJSON),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	var approval *store.ApprovalRecord
	if req.RequireApproval {
		approval = &store.ApprovalRecord{
			ID:        uuid.NewString(),
			TaskID:    task.ID,
			Token:     uuid.NewString(),
			CreatedAt: now,
		}
	}

	if err := o.store.CreateTask(ctx, task, actions, approval); err != nil {
		return nil, err
	}

	o.audit.Record(ctx, AuditEvent{
		TaskID: task.ID,
		Type:   EventTaskCreated,
		Data: map[string]any{
			"title":            task.Title,
			"require_approval": task.RequireApproval,
			"actions_count":    len(actions),
		},
	})

	return o.taskOut(ctx, task.ID)
}

// validateActions rejects unsupported types, empty commands and policy
// violations before anything is persisted.
func (o *Orchestrator) validateActions(actions []schemas.ActionInput) error {
	for _, action := range actions {
		if action.Type != schemas.ActionTypeShell {
			return fmt.Errorf("%w: %s", ErrUnsupportedAction, action.Type)
		}
		cmd := action.Cmd()
		if cmd == "" {
			return ErrMissingCmd
		}
		if err := o.guard.Check(cmd); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) GetTask(ctx context.Context, taskID string) (*schemas.TaskOut, error) {
	return o.taskOut(ctx, taskID)
}

func (o *Orchestrator) Approve(ctx context.Context, taskID string, req schemas.ApprovalRequest) (*schemas.TaskOut, error) {
	task, err := o.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	approvals, err := o.store.ListApprovals(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var match *store.ApprovalRecord
	for i := range approvals {
		if approvals[i].Token == req.Token {
			match = &approvals[i]
			break
		}
	}
	if match == nil {
		return nil, ErrInvalidToken
	}

	if err := o.store.DecideApproval(ctx, match.ID, req.Decision, req.DecidedBy, schemas.NowISO()); err != nil {
		return nil, err
	}

	status := schemas.TaskStatusApproved
	if req.Decision == schemas.DecisionReject {
		status = schemas.TaskStatusRejected
	}
	if err := o.store.SetTaskStatus(ctx, task.ID, status, schemas.NowISO()); err != nil {
		return nil, err
	}

	o.audit.Record(ctx, AuditEvent{
		TaskID:  taskID,
		Type:    EventApprovalDecided,
		Message: "approval decided",
		Data:    map[string]any{"decision": req.Decision, "by": req.DecidedBy},
	})

	return o.taskOut(ctx, taskID)
}

// RunTask executes every action of the task in index order and returns
// once the task is terminal. A disconnecting caller does not cancel the
// execution.
func (o *Orchestrator) RunTask(ctx context.Context, taskID string) ([]schemas.RunOut, error) {
	ctx = context.WithoutCancel(ctx)

	task, err := o.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	switch task.Status {
	case schemas.TaskStatusPending, schemas.TaskStatusApproved:
	case schemas.TaskStatusWaitingApproval, schemas.TaskStatusRejected:
		return nil, ErrApprovalRequired
	default:
		return nil, ErrNotRunnable
	}

	actions, err := o.store.ListActions(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, ErrNoActions
	}
	for _, action := range actions {
		if action.Type != schemas.ActionTypeShell {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedAction, action.Type)
		}
		if cmd, _ := actionCmd(action); cmd == "" {
			return nil, ErrMissingCmd
		}
	}

	startedAt := schemas.NowISO()
	if err := o.store.MarkTaskStarted(ctx, taskID, startedAt); err != nil {
		if errors.Is(err, store.ErrNotStartable) {
			return nil, ErrNotRunnable
		}
		return nil, err
	}
	o.publish(taskID, "update", map[string]any{"status": schemas.TaskStatusRunning}, false)

	results := make([]schemas.RunOut, 0, len(actions))
	failed := false
	for _, action := range actions {
		run := o.runAction(ctx, taskID, action)
		if run.Status != schemas.RunStatusSucceeded {
			failed = true
		}
		results = append(results, run)
	}

	finalStatus := schemas.TaskStatusSucceeded
	if failed {
		finalStatus = schemas.TaskStatusFailed
	}
	if err := o.store.MarkTaskFinished(ctx, taskID, finalStatus, schemas.NowISO()); err != nil {
		o.logger.Error("failed to finalize task", "task_id", taskID, "error", err)
	}
	o.audit.Record(ctx, AuditEvent{
		TaskID: taskID,
		Type:   EventTaskFinished,
		Data:   map[string]any{"status": finalStatus, "runs": len(results)},
	})
	o.publish(taskID, "done", map[string]any{"status": finalStatus}, true)

	return results, nil
}

// runAction performs one execution attempt. Every failure mode ends in a
// terminal run row plus audit events; nothing is returned as an error.
func (o *Orchestrator) runAction(ctx context.Context, taskID string, action store.ActionRecord) schemas.RunOut {
	runID := uuid.NewString()
	runDir := o.runner.RunDir(runID)
	record := store.RunRecord{
		ID:         runID,
		ActionID:   action.ID,
		Status:     schemas.RunStatusRunning,
		StartedAt:  schemas.NowISO(),
		StdoutPath: runDir + "/stdout.log",
		StderrPath: runDir + "/stderr.log",
	}

	cmd, _ := actionCmd(action)

	if err := o.store.CreateRun(ctx, record); err != nil {
		o.logger.Error("failed to create run", "task_id", taskID, "action_id", action.ID, "error", err)
	}

	startEvent := o.audit.Record(ctx, AuditEvent{
		TaskID:   taskID,
		ActionID: action.ID,
		RunID:    runID,
		Type:     EventActionStart,
		Message:  "action started",
		Data:     map[string]any{"action_id": action.ID, "type": action.Type, "cmd": cmd},
	})
	o.publishAudit(startEvent, false)

	// Policy re-check right before execution catches config changes
	// between enqueue and run.
	if err := o.guard.Check(cmd); err != nil {
		return o.finishRun(ctx, taskID, action.ID, record, Outcome{
			ExitCode:   FailureExitCode,
			StdoutPath: record.StdoutPath,
			StderrPath: record.StderrPath,
			Err:        err.Error(),
		})
	}

	outcome := o.runner.Execute(ctx, runID, cmd)
	return o.finishRun(ctx, taskID, action.ID, record, outcome)
}

func (o *Orchestrator) finishRun(ctx context.Context, taskID string, actionID string, record store.RunRecord, outcome Outcome) schemas.RunOut {
	status := schemas.RunStatusSucceeded
	if !outcome.Succeeded() {
		status = schemas.RunStatusFailed
	}
	endedAt := schemas.NowISO()

	meta := map[string]any{}
	if outcome.TimedOut {
		meta["timeout"] = true
	}
	if outcome.Err != "" {
		meta["error"] = outcome.Err
	}
	metaJSON := ""
	if len(meta) > 0 {
		encoded, err := json.Marshal(meta)
		if err == nil {
			metaJSON = string(encoded)
		}
	}

	if err := o.store.FinishRun(ctx, record.ID, status, endedAt, outcome.ExitCode, metaJSON); err != nil {
		o.logger.Error("failed to finish run", "run_id", record.ID, "error", err)
	}

	if outcome.Err != "" || outcome.TimedOut {
		reason := outcome.Err
		if outcome.TimedOut {
			reason = fmt.Sprintf("timeout(%s)", o.runner.Timeout)
		}
		errEvent := o.audit.Record(ctx, AuditEvent{
			TaskID:   taskID,
			ActionID: actionID,
			RunID:    record.ID,
			Type:     EventActionError,
			Message:  "action error: " + reason,
			Data:     map[string]any{"action_id": actionID, "error": reason},
		})
		o.publishAudit(errEvent, false)
	}

	endEvent := o.audit.Record(ctx, AuditEvent{
		TaskID:   taskID,
		ActionID: actionID,
		RunID:    record.ID,
		Type:     EventActionEnd,
		Message:  "action ended",
		Data: map[string]any{
			"action_id":   actionID,
			"exit_code":   outcome.ExitCode,
			"stdout_tail": outcome.StdoutTail,
			"stderr_tail": outcome.StderrTail,
			"timeout":     outcome.TimedOut,
		},
	})
	o.publishAudit(endEvent, false)

	exitCode := outcome.ExitCode
	return schemas.RunOut{
		ID:         record.ID,
		TaskID:     taskID,
		ActionID:   actionID,
		Status:     status,
		StartedAt:  record.StartedAt,
		EndedAt:    endedAt,
		StdoutPath: outcome.StdoutPath,
		StderrPath: outcome.StderrPath,
		ExitCode:   &exitCode,
	}
}

// QuickRun creates an auto-approved task and runs it in one call.
func (o *Orchestrator) QuickRun(ctx context.Context, req schemas.QuickRunRequest) (*schemas.QuickRunOut, error) {
	if err := o.guard.ReserveSlot(); err != nil {
		return nil, err
	}

	task, err := o.createTask(ctx, schemas.TaskCreateRequest{
		Title:   req.Title,
		Actions: req.Actions,
	})
	if err != nil {
		return nil, err
	}

	runs, err := o.RunTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	audit, err := o.audit.List(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	final, err := o.taskOut(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	return &schemas.QuickRunOut{Task: *final, Runs: runs, Audit: audit}, nil
}

// ListRuns returns a task's runs in action order.
func (o *Orchestrator) ListRuns(ctx context.Context, taskID string) ([]schemas.RunOut, error) {
	if _, err := o.getTask(ctx, taskID); err != nil {
		return nil, err
	}
	records, err := o.store.ListRunsForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	runs := make([]schemas.RunOut, 0, len(records))
	for _, record := range records {
		runs = append(runs, schemas.RunOut{
			ID:         record.ID,
			TaskID:     taskID,
			ActionID:   record.ActionID,
			Status:     record.Status,
			StartedAt:  record.StartedAt,
			EndedAt:    record.EndedAt,
			StdoutPath: record.StdoutPath,
			StderrPath: record.StderrPath,
			ExitCode:   record.ExitCode,
		})
	}
	return runs, nil
}

func (o *Orchestrator) getTask(ctx context.Context, taskID string) (*store.TaskRecord, error) {
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (o *Orchestrator) taskOut(ctx context.Context, taskID string) (*schemas.TaskOut, error) {
	task, err := o.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	approvals, err := o.store.ListApprovals(ctx, taskID)
	if err != nil {
		return nil, err
	}

	out := &schemas.TaskOut{
		ID:              task.ID,
		Title:           task.Title,
		Description:     task.Description,
		Status:          task.Status,
		RequireApproval: task.RequireApproval,
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
		StartedAt:       task.StartedAt,
		EndedAt:         task.EndedAt,
		Approvals:       []schemas.ApprovalOut{},
	}
	for _, approval := range approvals {
		out.Approvals = append(out.Approvals, schemas.ApprovalOut{
			ID:        approval.ID,
			TaskID:    approval.TaskID,
			Token:     approval.Token,
			Decision:  approval.Decision,
			DecidedBy: approval.DecidedBy,
			DecidedAt: approval.DecidedAt,
			CreatedAt: approval.CreatedAt,
			ExpiresAt: approval.ExpiresAt,
		})
	}
	return out, nil
}

func (o *Orchestrator) publish(taskID string, eventType string, data map[string]any, terminal bool) {
	o.broadcaster.Publish(StreamEvent{
		TaskID:   taskID,
		Type:     eventType,
		Data:     data,
		At:       time.Now().UTC(),
		Terminal: terminal,
	})
}

func (o *Orchestrator) publishAudit(record store.AuditRecord, terminal bool) {
	data := map[string]any{"event": record.EventType}
	if record.DataJSON != "" {
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(record.DataJSON), &payload); err == nil {
			data["data"] = payload
		}
	}
	o.publish(record.TaskID, "update", data, terminal)
}

func actionCmd(action store.ActionRecord) (string, error) {
	params := map[string]any{}
	if action.ParamsJSON != "" {
		if err := json.Unmarshal([]byte(action.ParamsJSON), &params); err != nil {
			return "", err
		}
	}
	cmd, _ := params["cmd"].(string)
	return cmd, nil
}
