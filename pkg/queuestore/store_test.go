package queuestore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func TestOpenCreatesParentDirs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "queue.db")

	db, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpenInMemory(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	// Writes must stay visible across subsequent pool checkouts: a
	// ":memory:" database is private per connection, so this only holds
	// with the pool pinned to one connection.
	for i := 0; i < 20; i++ {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO config (key, value, updated_at) VALUES (?, 'v', '2026-01-01T00:00:00Z')`,
			fmt.Sprintf("key-%d", i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config`).Scan(&count); err != nil {
		t.Fatalf("count config rows: %v", err)
	}
	if count != 20 {
		t.Fatalf("config rows = %d, want 20 (connection pool split the in-memory database?)", count)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	db, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("first Migrate() error: %v", err)
	}
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}

	var version int
	if err := db.QueryRow(`SELECT schema_version FROM schema_meta WHERE id=1`).Scan(&version); err != nil {
		t.Fatalf("read schema_version: %v", err)
	}
	if version != SchemaVersion {
		t.Fatalf("schema_version mismatch: got=%d want=%d", version, SchemaVersion)
	}
}

func TestMigrateUpgradesV1Schema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	db, err := Open(ctx, Config{Path: path})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Hand-build a v1 database: no priority/timeout/run_at/output columns.
	v1 := []string{
		`CREATE TABLE schema_meta (id INTEGER PRIMARY KEY CHECK (id = 1), schema_version INTEGER NOT NULL);`,
		`INSERT INTO schema_meta (id, schema_version) VALUES (1, 1);`,
		`CREATE TABLE jobs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			state TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 3,
			next_retry_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			error_message TEXT
		);`,
		`INSERT INTO jobs (id, command, state, created_at, updated_at)
			VALUES ('old-1', 'echo legacy', 'pending', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z');`,
	}
	for _, stmt := range v1 {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("build v1 schema: %v", err)
		}
	}

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	// Pre-existing rows survive with the documented column defaults.
	var priority, timeoutSeconds int
	err = db.QueryRow(`SELECT priority, timeout_seconds FROM jobs WHERE id='old-1'`).
		Scan(&priority, &timeoutSeconds)
	if err != nil {
		t.Fatalf("read migrated row: %v", err)
	}
	if priority != 0 {
		t.Fatalf("priority default mismatch: got=%d want=0", priority)
	}
	if timeoutSeconds != 300 {
		t.Fatalf("timeout_seconds default mismatch: got=%d want=300", timeoutSeconds)
	}
}
