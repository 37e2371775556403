package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Statements are idempotent; ALTER
// TABLE duplicates are tolerated so the list can be re-run on every open.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS time_events (
		id           TEXT PRIMARY KEY,
		subject_id   TEXT NOT NULL,
		job_id       TEXT NOT NULL,
		start_at     TEXT NOT NULL,
		end_at       TEXT NOT NULL,
		duration_min INTEGER NOT NULL CHECK (duration_min >= 0),
		week_label   TEXT NOT NULL,
		note         TEXT NOT NULL DEFAULT '',
		deleted_at   TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,

	// Indexed week lookup: recompute/backfill must never linear-scan.
	`CREATE INDEX IF NOT EXISTS idx_time_events_week
		ON time_events (week_label, subject_id)`,

	`CREATE TABLE IF NOT EXISTS work_sessions (
		id                   TEXT PRIMARY KEY,
		subject_id           TEXT NOT NULL,
		job_id               TEXT NOT NULL,
		clock_in_at          TEXT NOT NULL,
		clock_out_at         TEXT,
		status               TEXT NOT NULL CHECK (status IN ('active', 'on_break', 'completed')),
		breaks               TEXT NOT NULL DEFAULT '[]',
		accumulated_break_ms INTEGER NOT NULL DEFAULT 0,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL
	)`,

	// The storage-level guarantee behind "at most one open session per
	// subject"; the state machine enforces it first.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_work_sessions_open
		ON work_sessions (subject_id) WHERE status != 'completed'`,

	// Atomic whole-value replace per key; snapshot persistence rides on it.
	`CREATE TABLE IF NOT EXISTS kv_store (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}
