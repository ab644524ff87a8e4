package queue

import (
	"database/sql"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads a full job row in jobColumns order.
func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		state        string
		runAt        sql.NullString
		nextRetryAt  sql.NullString
		createdAt    string
		updatedAt    string
		startedAt    sql.NullString
		completedAt  sql.NullString
		errorMessage sql.NullString
		output       sql.NullString
		executionMS  sql.NullInt64
	)

	err := row.Scan(&job.ID, &job.Command, &state, &job.Attempts,
		&job.MaxRetries, &job.Priority, &job.TimeoutSeconds,
		&runAt, &nextRetryAt, &createdAt, &updatedAt,
		&startedAt, &completedAt, &errorMessage, &output, &executionMS)
	if err != nil {
		return nil, err
	}

	job.State = State(state)
	job.RunAt = parseOptionalTime(runAt)
	job.NextRetryAt = parseOptionalTime(nextRetryAt)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	job.StartedAt = parseOptionalTime(startedAt)
	job.CompletedAt = parseOptionalTime(completedAt)
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	if output.Valid {
		job.Output = output.String
	}
	if executionMS.Valid {
		v := executionMS.Int64
		job.ExecutionMS = &v
	}

	return &job, nil
}

// Timestamps are stored as fixed-width RFC 3339 UTC TEXT so lexicographic
// comparison in SQL matches chronological order. RFC3339Nano trims trailing
// zeros and would break that property.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseOptionalTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
