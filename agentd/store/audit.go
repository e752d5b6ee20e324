package store

import (
	"context"
	"database/sql"
)

type AuditRecord struct {
	ID        string
	TaskID    string
	ActionID  string
	RunID     string
	EventType string
	Message   string
	DataJSON  string
	CreatedAt string
}

// AppendAudit inserts one audit event. Events are never updated or deleted.
func (s *Store) AppendAudit(ctx context.Context, record AuditRecord) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO audit_events (id, task_id, action_id, run_id, event_type, message, data_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, record.ID, record.TaskID, nullIfEmpty(record.ActionID), nullIfEmpty(record.RunID), record.EventType, record.Message, nullIfEmpty(record.DataJSON), record.CreatedAt)
		return err
	})
}

// ListAudit returns a task's audit events oldest first. Creation order is
// preserved for events sharing a timestamp via rowid.
func (s *Store) ListAudit(ctx context.Context, taskID string) ([]AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, task_id, action_id, run_id, event_type, message, data_json, created_at
FROM audit_events
WHERE task_id = ?
ORDER BY created_at ASC, rowid ASC
`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditRecord
	for rows.Next() {
		var record AuditRecord
		var actionID, runID, dataJSON sql.NullString
		if err := rows.Scan(&record.ID, &record.TaskID, &actionID, &runID, &record.EventType, &record.Message, &dataJSON, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.ActionID = actionID.String
		record.RunID = runID.String
		record.DataJSON = dataJSON.String
		events = append(events, record)
	}
	return events, rows.Err()
}
