package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS cycles (
		id          TEXT    PRIMARY KEY,
		number      INTEGER NOT NULL,
		started_at  TEXT    NOT NULL,
		finished_at TEXT    NOT NULL,
		accounts    INTEGER NOT NULL DEFAULT 0,
		succeeded   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at)`,

	`CREATE TABLE IF NOT EXISTS account_results (
		cycle_id    TEXT    NOT NULL REFERENCES cycles(id) ON DELETE CASCADE,
		idx         INTEGER NOT NULL,
		address     TEXT    NOT NULL,
		proxy       TEXT    NOT NULL DEFAULT '',
		running     INTEGER NOT NULL DEFAULT 0,
		steps       TEXT    NOT NULL DEFAULT '[]',
		points      INTEGER NOT NULL DEFAULT 0,
		failed_step TEXT    NOT NULL DEFAULT '',
		error       TEXT    NOT NULL DEFAULT '',
		started_at  TEXT    NOT NULL,
		finished_at TEXT    NOT NULL,
		PRIMARY KEY (cycle_id, idx)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_account_results_address ON account_results(address, started_at)`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("store: record schema version: %w", err)
	}
	return nil
}
