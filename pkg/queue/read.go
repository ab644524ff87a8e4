package queue

import (
	"context"
	"database/sql"
	"fmt"
)

// Get retrieves a single job by id. Returns nil when the id is unknown to
// the main table (it may still exist in the dead-letter queue).
func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	row := q.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs, optionally filtered by state, newest first.
// A limit <= 0 applies a default of 50.
func (q *Queue) List(ctx context.Context, state State, limit int) ([]Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return out, nil
}

// Stats holds per-state job counts. Dead jobs live in the dead-letter
// queue, not the main table.
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
}

// Stats counts jobs in each lifecycle state.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var s Stats
	err := q.db.QueryRowContext(ctx,
		`SELECT
			SUM(CASE WHEN state = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN state = 'processing' THEN 1 ELSE 0 END),
			SUM(CASE WHEN state = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN state = 'failed' THEN 1 ELSE 0 END)
		 FROM jobs`).Scan(
		&nullInt{&s.Pending}, &nullInt{&s.Processing},
		&nullInt{&s.Completed}, &nullInt{&s.Failed})
	if err != nil {
		return nil, fmt.Errorf("count job states: %w", err)
	}

	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dead_letter_queue`).Scan(&s.Dead); err != nil {
		return nil, fmt.Errorf("count dead-letter jobs: %w", err)
	}

	return &s, nil
}

// Metrics are the derived execution statistics consumed by the metrics
// command and the dashboard.
type Metrics struct {
	TotalCompleted int64 `json:"totalCompleted"`
	// AvgExecutionMS averages the 100 most recent completed jobs.
	AvgExecutionMS int64 `json:"avgExecutionTime"`
	// SuccessRate is completed / (completed + failed + dead) as a floor
	// integer percent; 0 when nothing has finished yet.
	SuccessRate int `json:"successRate"`
}

func (q *Queue) Metrics(ctx context.Context) (*Metrics, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		return nil, err
	}

	m := &Metrics{TotalCompleted: stats.Completed}

	finished := stats.Completed + stats.Failed + stats.Dead
	if finished > 0 {
		m.SuccessRate = int(stats.Completed * 100 / finished)
	}

	var avg sql.NullFloat64
	err = q.db.QueryRowContext(ctx,
		`SELECT AVG(execution_time_ms) FROM (
			SELECT execution_time_ms FROM jobs
			WHERE state = 'completed' AND execution_time_ms IS NOT NULL
			ORDER BY completed_at DESC LIMIT 100
		 )`).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average execution time: %w", err)
	}
	if avg.Valid {
		m.AvgExecutionMS = int64(avg.Float64)
	}

	return m, nil
}

// nullInt scans a nullable aggregate into an int64, treating NULL as zero.
type nullInt struct{ v *int64 }

func (n *nullInt) Scan(src any) error {
	var ni sql.NullInt64
	if err := ni.Scan(src); err != nil {
		return err
	}
	if ni.Valid {
		*n.v = ni.Int64
	} else {
		*n.v = 0
	}
	return nil
}
