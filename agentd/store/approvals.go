package store

import (
	"context"
	"database/sql"

	"github.com/gitoleg1/lucy-agent/internals/schemas"
)

type ApprovalRecord struct {
	ID        string
	TaskID    string
	Token     string
	Decision  schemas.Decision
	DecidedBy string
	DecidedAt string
	CreatedAt string
	ExpiresAt string
}

// ListApprovals returns a task's approvals, oldest first.
func (s *Store) ListApprovals(ctx context.Context, taskID string) ([]ApprovalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, task_id, token, decision, decided_by, decided_at, created_at, expires_at
FROM approvals
WHERE task_id = ?
ORDER BY created_at ASC
`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []ApprovalRecord
	for rows.Next() {
		var record ApprovalRecord
		var decision, decidedBy, decidedAt, expiresAt sql.NullString
		if err := rows.Scan(&record.ID, &record.TaskID, &record.Token, &decision, &decidedBy, &decidedAt, &record.CreatedAt, &expiresAt); err != nil {
			return nil, err
		}
		record.Decision = schemas.Decision(decision.String)
		record.DecidedBy = decidedBy.String
		record.DecidedAt = decidedAt.String
		record.ExpiresAt = expiresAt.String
		approvals = append(approvals, record)
	}
	return approvals, rows.Err()
}

// DecideApproval sets the decision exactly once. A second decision attempt
// returns ErrAlreadyDecided and leaves the row untouched.
func (s *Store) DecideApproval(ctx context.Context, id string, decision schemas.Decision, decidedBy string, decidedAt string) error {
	return s.withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
UPDATE approvals SET decision = ?, decided_by = ?, decided_at = ?
WHERE id = ? AND decision IS NULL
`, decision, decidedBy, decidedAt, id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrAlreadyDecided
		}
		return nil
	})
}
