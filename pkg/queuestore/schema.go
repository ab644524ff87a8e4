package queuestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const SchemaVersion = 2

// Migrate creates (or upgrades) the queue schema in-place.
//
// v1 is the minimal durable queue: jobs, dead_letter_queue, config.
// v2 adds priority, per-job timeouts, scheduled execution, and output
// capture as additive columns with documented defaults.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			state TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 3,
			priority INTEGER NOT NULL DEFAULT 0,
			timeout_seconds INTEGER NOT NULL DEFAULT 300,
			run_at TEXT,
			next_retry_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			error_message TEXT,
			output TEXT,
			execution_time_ms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);`,

		`CREATE TABLE IF NOT EXISTS dead_letter_queue (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			max_retries INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			failed_at TEXT NOT NULL,
			error_message TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_failed_at ON dead_letter_queue(failed_at);`,

		`CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	// v2: scheduling, priority, and output-capture columns for databases
	// created before those features existed.
	if current > 0 && current < 2 {
		alters := []string{
			`ALTER TABLE jobs ADD COLUMN priority INTEGER NOT NULL DEFAULT 0;`,
			`ALTER TABLE jobs ADD COLUMN timeout_seconds INTEGER NOT NULL DEFAULT 300;`,
			`ALTER TABLE jobs ADD COLUMN run_at TEXT;`,
			`ALTER TABLE jobs ADD COLUMN output TEXT;`,
			`ALTER TABLE jobs ADD COLUMN execution_time_ms INTEGER;`,
		}
		for _, stmt := range alters {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				msg := err.Error()
				// SQLite reports duplicate columns as an error; treat as idempotent.
				if strings.Contains(msg, "duplicate column name") || strings.Contains(msg, "already exists") {
					continue
				}
				return fmt.Errorf("exec migration statement: %w", err)
			}
		}
	}

	// The claim index covers priority, so it can only exist once v2 columns do.
	if _, err := tx.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(state, priority, created_at);`); err != nil {
		return fmt.Errorf("create claim index: %w", err)
	}

	if current != SchemaVersion {
		if _, err := tx.ExecContext(ctx, `UPDATE schema_meta SET schema_version=? WHERE id=1`, SchemaVersion); err != nil {
			return fmt.Errorf("update schema_version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
