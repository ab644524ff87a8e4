// Package queuestore opens and migrates the on-disk SQLite database backing
// the job queue.
//
// The store intentionally exposes a bare *sql.DB: all queue semantics
// (atomic claim, retry scheduling, DLQ promotion) live in pkg/queue, which
// relies on the transactional guarantees configured here.
package queuestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
)

// DefaultPath is the database file used when no --db-path is given.
const DefaultPath = "queue.db"

const driverName = "queuectl-sqlite"

func init() {
	sql.Register(driverName, &sqlite.Driver{})
}

type Config struct {
	// Path is a local filesystem path to the queue database.
	// ":memory:" opens an in-memory database (tests).
	Path string
}

// Open opens (and creates if needed) the queue database.
//
// Every database is pinned to a single connection so SQLite's own locking
// serializes writers within the process, and so ":memory:" remains one
// shared database instead of one per pooled connection. File-backed
// databases additionally get WAL and a busy timeout for predictable
// multi-process CLI behavior.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping queue store: %w", err)
	}

	if err := configureLocalSQLite(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func buildDSN(cfg Config) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("queue store path is required")
	}
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	if db == nil {
		return errors.New("store connection is nil")
	}

	// Keep a single connection: it reduces lock contention on file
	// databases, and a ":memory:" database is private per connection, so
	// a second pooled connection would see a different, empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// WAL and busy_timeout only apply to file-backed databases.
	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	return nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
