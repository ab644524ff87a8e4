// Package queue implements the invariant-preserving coordination layer of
// queuectl: job lifecycle, atomic claim, retry scheduling with exponential
// backoff, and dead-letter promotion.
//
// All job mutations go through Queue. Workers observe job values but never
// write to the store directly, so every cross-worker invariant is enforced
// in one place by conditional updates.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue executes job-state transitions against the backing store.
//
// Queue is safe for concurrent use; correctness across workers relies on
// the guarded UPDATE inside Claim, not on in-process locks.
type Queue struct {
	db  *sql.DB
	log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{db: db, log: log}
}

// EnqueueParams describes a job to add. Command is required; everything
// else falls back to documented defaults.
type EnqueueParams struct {
	ID             string
	Command        string
	Priority       int
	TimeoutSeconds int        // <=0 means DefaultTimeoutSeconds
	MaxRetries     *int       // nil means DefaultMaxRetries
	RunAt          *time.Time // nil means immediately eligible
}

const jobColumns = `id, command, state, attempts, max_retries, priority,
	timeout_seconds, run_at, next_retry_at, created_at, updated_at,
	started_at, completed_at, error_message, output, execution_time_ms`

// Enqueue persists a new pending job and returns it.
//
// Callers supplying a duplicate id receive the store's uniqueness error.
func (q *Queue) Enqueue(ctx context.Context, params EnqueueParams) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	command := strings.TrimSpace(params.Command)
	if command == "" {
		return nil, errors.New("command is required")
	}

	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.New().String()
	}

	maxRetries := DefaultMaxRetries
	if params.MaxRetries != nil {
		maxRetries = *params.MaxRetries
	}
	timeoutSeconds := params.TimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}

	now := time.Now().UTC()
	job := &Job{
		ID:             id,
		Command:        command,
		State:          StatePending,
		MaxRetries:     maxRetries,
		Priority:       params.Priority,
		TimeoutSeconds: timeoutSeconds,
		RunAt:          params.RunAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := q.db.ExecContext(ctx,
		`INSERT INTO jobs
		 (id, command, state, attempts, max_retries, priority, timeout_seconds,
		  run_at, next_retry_at, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?, NULL, ?, ?)`,
		job.ID, job.Command, string(job.State), job.MaxRetries, job.Priority,
		job.TimeoutSeconds, formatOptionalTime(job.RunAt),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return job, nil
}

// Claim atomically transitions one eligible pending job to processing and
// returns it, or (nil, nil) when no job is eligible.
//
// Eligibility: state is pending, run_at has passed (or is unset), and
// next_retry_at has passed (or is unset). Ordering is priority DESC then
// created_at ASC. The guarded UPDATE is the linearization point: when two
// workers pick the same candidate, the one whose update changes a row owns
// the job and the loser sees (nil, nil) and polls again.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now().UTC()
	nowStr := formatTime(now)

	row := q.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+`
		 FROM jobs
		 WHERE state = ?
		   AND (run_at IS NULL OR run_at <= ?)
		   AND (next_retry_at IS NULL OR next_retry_at <= ?)
		 ORDER BY priority DESC, created_at ASC
		 LIMIT 1`,
		string(StatePending), nowStr, nowStr)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, started_at = ?, updated_at = ?
		 WHERE id = ? AND state = ?`,
		string(StateProcessing), nowStr, nowStr, job.ID, string(StatePending))
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim rows affected: %w", err)
	}
	if changed == 0 {
		// Another worker won the race; the caller retries.
		return nil, nil
	}

	job.MarkProcessing(now)
	return job, nil
}

// Complete transitions a job to completed, recording its captured stdout
// and wall-clock duration. Completing a job that is not processing is
// tolerated but logged; it should never occur under normal flow.
func (q *Queue) Complete(ctx context.Context, id string, output string, executionMS int64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var state string
	err := q.db.QueryRowContext(ctx, `SELECT state FROM jobs WHERE id = ?`, id).Scan(&state)
	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("load job state: %w", err)
	}
	if State(state) != StateProcessing {
		q.log.Warn("completing job that is not processing",
			zap.String("job_id", id),
			zap.String("state", state))
	}

	now := time.Now().UTC()
	_, err = q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, output = ?, execution_time_ms = ?,
			completed_at = ?, updated_at = ?, error_message = NULL,
			next_retry_at = NULL
		 WHERE id = ?`,
		string(StateCompleted), output, executionMS,
		formatTime(now), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail records a failed attempt and either reschedules the job with
// exponential backoff or promotes it to the dead-letter queue.
//
// The DLQ promotion (insert snapshot, delete main row) happens inside one
// transaction, so external observers see either both writes or neither.
// The transient failed state is never visible outside the transaction.
func (q *Queue) Fail(ctx context.Context, id string, errorMessage string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	now := time.Now().UTC()
	canRetry := job.CanRetry()
	job.MarkFailed(now, errorMessage)

	if canRetry {
		base, err := backoffBaseTx(ctx, tx)
		if err != nil {
			return err
		}
		job.ScheduleRetry(now, job.RetryDelay(base))

		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, attempts = ?, error_message = ?,
				next_retry_at = ?, updated_at = ?
			 WHERE id = ?`,
			string(StatePending), job.Attempts, job.ErrorMessage,
			formatOptionalTime(job.NextRetryAt), formatTime(now), job.ID)
		if err != nil {
			return fmt.Errorf("schedule retry: %w", err)
		}
	} else {
		job.MarkDead(now)

		_, err = tx.ExecContext(ctx,
			`INSERT INTO dead_letter_queue
			 (id, command, attempts, max_retries, created_at, failed_at, error_message)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			job.ID, job.Command, job.Attempts, job.MaxRetries,
			formatTime(job.CreatedAt), formatTime(now), job.ErrorMessage)
		if err != nil {
			return fmt.Errorf("insert dead-letter row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
			return fmt.Errorf("remove exhausted job: %w", err)
		}

		q.log.Info("job exhausted retries, moved to dead-letter queue",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fail tx: %w", err)
	}
	return nil
}

// ReapStale returns processing jobs whose claim is older than the given
// threshold back to pending. A reaped run does not count as an attempt.
//
// Intended for worker-pool startup, where a stuck processing row means a
// previous worker process died between claim and report.
func (q *Queue) ReapStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if olderThan <= 0 {
		return 0, errors.New("reaper threshold must be positive")
	}

	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)

	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, started_at = NULL, updated_at = ?
		 WHERE state = ? AND started_at <= ?`,
		string(StatePending), formatTime(now),
		string(StateProcessing), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("reap stale jobs: %w", err)
	}
	reaped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reap rows affected: %w", err)
	}
	if reaped > 0 {
		q.log.Warn("requeued stale processing jobs", zap.Int64("count", reaped))
	}
	return reaped, nil
}
