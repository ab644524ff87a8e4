package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetDLQ lists dead-letter entries, most recently failed first.
// A limit <= 0 applies a default of 50.
func (q *Queue) GetDLQ(ctx context.Context, limit int) ([]DeadJob, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT id, command, attempts, max_retries, created_at, failed_at, error_message
		 FROM dead_letter_queue
		 ORDER BY failed_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dead-letter queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DeadJob
	for rows.Next() {
		var (
			d         DeadJob
			createdAt string
			failedAt  string
			errMsg    sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Command, &d.Attempts, &d.MaxRetries,
			&createdAt, &failedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("scan dead-letter row: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		d.FailedAt = parseTime(failedAt)
		if errMsg.Valid {
			d.ErrorMessage = errMsg.String
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead-letter rows: %w", err)
	}
	return out, nil
}

// RetryDead revives a dead-letter entry as a fresh pending job: attempts
// reset to zero, id and command preserved, DLQ row removed. The move is a
// single transaction so the job is never in both tables or neither.
func (q *Queue) RetryDead(ctx context.Context, id string) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		command    string
		maxRetries int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT command, max_retries FROM dead_letter_queue WHERE id = ?`, id).
		Scan(&command, &maxRetries)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dead-letter job not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load dead-letter job: %w", err)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:             id,
		Command:        command,
		State:          StatePending,
		MaxRetries:     maxRetries,
		TimeoutSeconds: DefaultTimeoutSeconds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs
		 (id, command, state, attempts, max_retries, priority, timeout_seconds,
		  run_at, next_retry_at, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, 0, ?, NULL, NULL, ?, ?)`,
		job.ID, job.Command, string(job.State), job.MaxRetries,
		job.TimeoutSeconds, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("requeue dead-letter job: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dead_letter_queue WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("remove dead-letter row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit retry tx: %w", err)
	}
	return job, nil
}
