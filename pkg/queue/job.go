package queue

import (
	"math"
	"time"
)

// State is the lifecycle state of a job.
//
// NOTE: These values are persisted in the jobs table and are part of the
// stable on-disk contract.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateDead       State = "dead"
)

// Defaults applied at enqueue time when the caller leaves a field unset.
const (
	DefaultMaxRetries     = 3
	DefaultPriority       = 0
	DefaultTimeoutSeconds = 300
	DefaultBackoffBase    = 2.0
)

// Job is a single unit of work: a shell command plus its lifecycle state.
//
// The schema is designed for backward-compatible extension (additive fields).
type Job struct {
	ID             string     `json:"id"`
	Command        string     `json:"command"`
	State          State      `json:"state"`
	Attempts       int        `json:"attempts"`
	MaxRetries     int        `json:"max_retries"`
	Priority       int        `json:"priority"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	RunAt          *time.Time `json:"run_at,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	Output         string     `json:"output,omitempty"`
	ExecutionMS    *int64     `json:"execution_time_ms,omitempty"`
}

// DeadJob is the reduced snapshot kept in the dead-letter queue after a job
// exhausts its retries. The id is preserved from the original job.
type DeadJob struct {
	ID           string    `json:"id"`
	Command      string    `json:"command"`
	Attempts     int       `json:"attempts"`
	MaxRetries   int       `json:"max_retries"`
	CreatedAt    time.Time `json:"created_at"`
	FailedAt     time.Time `json:"failed_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// CanRetry reports whether another execution attempt is allowed.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxRetries
}

// RetryDelay returns the exponential backoff delay for the current attempt
// count: base^attempts seconds. No jitter, no cap.
func (j *Job) RetryDelay(base float64) time.Duration {
	return RetryDelay(j.Attempts, base)
}

// RetryDelay is the backoff contract: base^attempts seconds.
func RetryDelay(attempts int, base float64) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	secs := math.Pow(base, float64(attempts))
	return time.Duration(secs * float64(time.Second))
}

// MarkProcessing flips the in-memory value to processing. Persistence is
// always via Queue; the store-side claim is the authoritative transition.
func (j *Job) MarkProcessing(now time.Time) {
	j.State = StateProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted records a successful run.
func (j *Job) MarkCompleted(now time.Time, output string, executionMS int64) {
	j.State = StateCompleted
	j.Output = output
	j.ExecutionMS = &executionMS
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.ErrorMessage = ""
	j.NextRetryAt = nil
}

// MarkFailed records a failed attempt without deciding its fate; callers
// follow with ScheduleRetry or MarkDead.
func (j *Job) MarkFailed(now time.Time, errorMessage string) {
	j.State = StateFailed
	j.Attempts++
	j.ErrorMessage = errorMessage
	j.UpdatedAt = now
}

// ScheduleRetry re-enters pending with a future next_retry_at.
func (j *Job) ScheduleRetry(now time.Time, delay time.Duration) {
	j.State = StatePending
	next := now.Add(delay)
	j.NextRetryAt = &next
	j.UpdatedAt = now
}

// MarkDead marks the job as exhausted. The store-side transition migrates
// the row to the dead-letter queue.
func (j *Job) MarkDead(now time.Time) {
	j.State = StateDead
	j.UpdatedAt = now
}
