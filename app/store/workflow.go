package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

const workflowColumns = `id, workflow, email, next_step, resume_at, attempts, status, COALESCE(last_error, ''), result, created_at, updated_at`

func scanWorkflowRun(row interface{ Scan(...any) error }) (models.WorkflowRun, error) {
	var r models.WorkflowRun
	err := row.Scan(
		&r.ID,
		&r.Workflow,
		&r.Email,
		&r.NextStep,
		&r.ResumeAt,
		&r.Attempts,
		&r.Status,
		&r.LastError,
		&r.Result,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (s *Store) CreateWorkflowRun(ctx context.Context, r models.WorkflowRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (id, workflow, email, next_step, resume_at, attempts, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`, r.ID, r.Workflow, r.Email, r.NextStep, r.ResumeAt, r.Attempts, r.Status)
	return err
}

// ClaimDueWorkflowRuns leases up to limit running rows whose resume time has
// passed by pushing resume_at to now+lease. Concurrent workers skip rows that
// another transaction holds.
func (s *Store) ClaimDueWorkflowRuns(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.WorkflowRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE workflow_runs
		SET resume_at = $2, updated_at = now()
		WHERE id IN (
			SELECT id FROM workflow_runs
			WHERE status = 'running' AND resume_at <= $1
			ORDER BY resume_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+workflowColumns+`;
	`, now, now.Add(lease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WorkflowRun
	for rows.Next() {
		r, err := scanWorkflowRun(rows)
		if err != nil {
			return nil, err
		}
		// the stored time is the lease; callers want the due time it was claimed at
		r.ResumeAt = now
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimWorkflowRun leases a single run if it is due.
func (s *Store) ClaimWorkflowRun(ctx context.Context, id string, now time.Time, lease time.Duration) (models.WorkflowRun, bool, error) {
	r, err := scanWorkflowRun(s.db.QueryRowContext(ctx, `
		UPDATE workflow_runs
		SET resume_at = $3, updated_at = now()
		WHERE id = (
			SELECT id FROM workflow_runs
			WHERE id = $1 AND status = 'running' AND resume_at <= $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+workflowColumns+`;
	`, id, now, now.Add(lease)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.WorkflowRun{}, false, nil
	}
	if err != nil {
		return models.WorkflowRun{}, false, err
	}
	r.ResumeAt = now
	return r, true, nil
}

func (s *Store) SaveWorkflowRun(ctx context.Context, r models.WorkflowRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workflow_runs
		SET next_step = $1, resume_at = $2, attempts = $3, status = $4,
		    last_error = $5, result = $6, updated_at = now()
		WHERE id = $7;
	`, r.NextStep, r.ResumeAt, r.Attempts, r.Status, nullIfEmpty(r.LastError), nullJSON(r.Result), r.ID)
	return err
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
