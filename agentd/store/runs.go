package store

import (
	"context"
	"database/sql"

	"github.com/gitoleg1/lucy-agent/internals/schemas"
)

type RunRecord struct {
	ID         string
	ActionID   string
	Status     schemas.RunStatus
	StartedAt  string
	EndedAt    string
	ExitCode   *int
	StdoutPath string
	StderrPath string
	MetaJSON   string
}

func (s *Store) CreateRun(ctx context.Context, record RunRecord) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, action_id, status, started_at, ended_at, exit_code, stdout_path, stderr_path, meta_json)
VALUES (?, ?, ?, ?, NULL, NULL, ?, ?, ?)
`, record.ID, record.ActionID, record.Status, nullIfEmpty(record.StartedAt), nullIfEmpty(record.StdoutPath), nullIfEmpty(record.StderrPath), nullIfEmpty(record.MetaJSON))
		return err
	})
}

// FinishRun records the terminal outcome of a run. Finished runs are never
// mutated again.
func (s *Store) FinishRun(ctx context.Context, id string, status schemas.RunStatus, endedAt string, exitCode int, metaJSON string) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
UPDATE runs SET status = ?, ended_at = ?, exit_code = ?, meta_json = ? WHERE id = ?
`, status, endedAt, exitCode, nullIfEmpty(metaJSON), id)
		return err
	})
}

func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, action_id, status, started_at, ended_at, exit_code, stdout_path, stderr_path, meta_json
FROM runs
WHERE id = ?
`, id)
	record, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRunsForTask returns all runs of a task ordered by action index, then
// by start time for repeated runs of the same action.
func (s *Store) ListRunsForTask(ctx context.Context, taskID string) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.action_id, r.status, r.started_at, r.ended_at, r.exit_code, r.stdout_path, r.stderr_path, r.meta_json
FROM runs r
JOIN actions a ON a.id = r.action_id
WHERE a.task_id = ?
ORDER BY a.idx ASC, r.started_at ASC
`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *record)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var record RunRecord
	var startedAt, endedAt, stdoutPath, stderrPath, metaJSON sql.NullString
	var exitCode sql.NullInt64
	if err := row.Scan(&record.ID, &record.ActionID, &record.Status, &startedAt, &endedAt, &exitCode, &stdoutPath, &stderrPath, &metaJSON); err != nil {
		return nil, err
	}
	record.StartedAt = startedAt.String
	record.EndedAt = endedAt.String
	record.StdoutPath = stdoutPath.String
	record.StderrPath = stderrPath.String
	record.MetaJSON = metaJSON.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		record.ExitCode = &code
	}
	return &record, nil
}
