// Package storage opens the SQLite database backing the audit journal.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := Bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap creates the journal tables/indexes if missing.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sweep_run (
  id                     TEXT PRIMARY KEY,
  started_at             TEXT NOT NULL,
  finished_at            TEXT,
  dry_run                INTEGER NOT NULL,
  config_fingerprint     TEXT,
  exceptions_fingerprint TEXT,
  workspaces             INTEGER NOT NULL DEFAULT 0,
  workspaces_failed      INTEGER NOT NULL DEFAULT 0
);`,
		`CREATE TABLE IF NOT EXISTS sweep_action (
  id          TEXT PRIMARY KEY,
  run_id      TEXT NOT NULL REFERENCES sweep_run(id),
  workspace   TEXT NOT NULL,
  app_name    TEXT NOT NULL,
  app_url     TEXT NOT NULL,
  decision    TEXT NOT NULL,
  age_days    INTEGER NOT NULL,
  applied     INTEGER NOT NULL,
  error       TEXT,
  recorded_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS sweep_action_run_id_idx ON sweep_action(run_id);`,
		`CREATE INDEX IF NOT EXISTS sweep_action_app_url_idx ON sweep_action(app_url, recorded_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
