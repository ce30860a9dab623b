package jobstore

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is recorded in schema_meta so future migrations can detect
// the installed schema generation.
const SchemaVersion = 1

// Migrate creates the jobs table and its supporting index if they don't
// already exist. It is idempotent and safe to call on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version) VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,
		`CREATE TABLE IF NOT EXISTS jobs (
			job_id               TEXT PRIMARY KEY,
			version              TEXT NOT NULL,
			state                TEXT NOT NULL,
			created_time         TEXT NOT NULL,
			claimed_time         TEXT,
			finished_time        TEXT,
			last_heartbeat_time  TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_state_created ON jobs(state, created_time);`,
		`UPDATE schema_meta SET schema_version = ? WHERE id = 1;`,
	}

	for i, stmt := range stmts {
		if i == len(stmts)-1 {
			if _, err := tx.ExecContext(ctx, stmt, SchemaVersion); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration statement %d: %w", i, err)
		}
	}

	return tx.Commit()
}
