package store

import (
	"context"
	"database/sql"

	"github.com/gitoleg1/lucy-agent/internals/schemas"
)

type TaskRecord struct {
	ID              string
	Title           string
	Description     string
	Status          schemas.TaskStatus
	RequireApproval bool
	CreatedAt       string
	UpdatedAt       string
	StartedAt       string
	EndedAt         string
}

type ActionRecord struct {
	ID         string
	TaskID     string
	Idx        int
	Type       schemas.ActionType
	ParamsJSON string
	CreatedAt  string
	UpdatedAt  string
}

// CreateTask inserts the task, its actions and an optional approval in one
// transaction so a half-created task is never visible.
func (s *Store) CreateTask(ctx context.Context, task TaskRecord, actions []ActionRecord, approval *ApprovalRecord) error {
	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
INSERT INTO tasks (id, title, description, status, require_approval, created_at, updated_at, started_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL)
`, task.ID, task.Title, nullIfEmpty(task.Description), task.Status, boolToInt(task.RequireApproval), task.CreatedAt, task.UpdatedAt)
		if err != nil {
			return err
		}

		for _, action := range actions {
			_, err = tx.ExecContext(ctx, `
INSERT INTO actions (id, task_id, idx, type, params_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, action.ID, action.TaskID, action.Idx, action.Type, action.ParamsJSON, action.CreatedAt, action.UpdatedAt)
			if err != nil {
				return err
			}
		}

		if approval != nil {
			_, err = tx.ExecContext(ctx, `
INSERT INTO approvals (id, task_id, token, decision, decided_by, decided_at, created_at, expires_at)
VALUES (?, ?, ?, NULL, NULL, NULL, ?, ?)
`, approval.ID, approval.TaskID, approval.Token, approval.CreatedAt, nullIfEmpty(approval.ExpiresAt))
			if err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

func (s *Store) GetTask(ctx context.Context, id string) (*TaskRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, description, status, require_approval, created_at, updated_at, started_at, ended_at
FROM tasks
WHERE id = ?
`, id)

	var record TaskRecord
	var description, startedAt, endedAt sql.NullString
	var requireApproval int
	if err := row.Scan(&record.ID, &record.Title, &description, &record.Status, &requireApproval, &record.CreatedAt, &record.UpdatedAt, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	record.Description = description.String
	record.RequireApproval = requireApproval != 0
	record.StartedAt = startedAt.String
	record.EndedAt = endedAt.String
	return &record, nil
}

func (s *Store) SetTaskStatus(ctx context.Context, id string, status schemas.TaskStatus, updatedAt string) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?
`, status, updatedAt, id)
		return err
	})
}

// MarkTaskStarted transitions the task to RUNNING only from a startable
// status. The guarded UPDATE makes concurrent start attempts race on the
// database row; the loser gets ErrNotStartable.
func (s *Store) MarkTaskStarted(ctx context.Context, id string, startedAt string) error {
	return s.withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status = ?, started_at = ?, updated_at = ?
WHERE id = ? AND status IN (?, ?)
`, schemas.TaskStatusRunning, startedAt, startedAt, id, schemas.TaskStatusPending, schemas.TaskStatusApproved)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotStartable
		}
		return nil
	})
}

func (s *Store) MarkTaskFinished(ctx context.Context, id string, status schemas.TaskStatus, endedAt string) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status = ?, ended_at = ?, updated_at = ? WHERE id = ?
`, status, endedAt, endedAt, id)
		return err
	})
}

// ListActions returns a task's actions in execution order.
func (s *Store) ListActions(ctx context.Context, taskID string) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, task_id, idx, type, params_json, created_at, updated_at
FROM actions
WHERE task_id = ?
ORDER BY idx ASC
`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ActionRecord
	for rows.Next() {
		var action ActionRecord
		if err := rows.Scan(&action.ID, &action.TaskID, &action.Idx, &action.Type, &action.ParamsJSON, &action.CreatedAt, &action.UpdatedAt); err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
