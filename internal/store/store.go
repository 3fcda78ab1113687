// Package store keeps the run history (cycles and per-account results)
// in a SQLite database. It uses modernc.org/sqlite (pure Go, no CGO).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flemzord/edgecycle/internal/scheduler"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// CycleRecord is a stored cycle summary.
type CycleRecord struct {
	ID         string    `json:"id"`
	Number     int       `json:"number"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Accounts   int       `json:"accounts"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// AccountRecord is one stored account outcome.
type AccountRecord struct {
	CycleID    string    `json:"cycle_id"`
	Index      int       `json:"index"`
	Address    string    `json:"address"`
	Proxy      string    `json:"proxy"`
	Running    bool      `json:"running"`
	Steps      []string  `json:"steps"`
	Points     int64     `json:"points"`
	FailedStep string    `json:"failed_step,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store is the SQLite run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates the
// schema. The database uses WAL mode, a 5 s busy timeout and a single
// connection.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout),
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse time %q: %w", s, err)
	}
	return t, nil
}

// RecordCycle stores a cycle and all its account results in one
// transaction. Recording the same cycle twice replaces it.
func (s *Store) RecordCycle(ctx context.Context, report scheduler.CycleReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM account_results WHERE cycle_id = ?", report.ID); err != nil {
		return fmt.Errorf("store: clear results: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO cycles (id, number, started_at, finished_at, accounts, succeeded, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Number,
		formatTime(report.StartedAt), formatTime(report.FinishedAt),
		len(report.Results), report.Succeeded(), report.Failed(),
	)
	if err != nil {
		return fmt.Errorf("store: insert cycle: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO account_results
			(cycle_id, idx, address, proxy, running, steps, points, failed_step, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare result insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range report.Results {
		steps := make([]string, len(r.Steps))
		for i, st := range r.Steps {
			steps[i] = string(st)
		}
		stepsJSON, err := json.Marshal(steps)
		if err != nil {
			return fmt.Errorf("store: marshal steps: %w", err)
		}

		var errMsg string
		if r.Err != nil {
			errMsg = r.Err.Error()
		}

		_, err = stmt.ExecContext(ctx,
			report.ID, r.Index, r.Address, r.Proxy.Redacted(), r.Running,
			string(stepsJSON), r.Points, string(scheduler.FailedStep(r.Err)), errMsg,
			formatTime(r.StartedAt), formatTime(r.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("store: insert result for %s: %w", r.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// RecentCycles returns up to n cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, n int) ([]CycleRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, started_at, finished_at, accounts, succeeded, failed
		FROM cycles
		ORDER BY started_at DESC, number DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: query cycles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CycleRecord
	for rows.Next() {
		var (
			c                 CycleRecord
			started, finished string
		)
		if err := rows.Scan(&c.ID, &c.Number, &started, &finished, &c.Accounts, &c.Succeeded, &c.Failed); err != nil {
			return nil, fmt.Errorf("store: scan cycle: %w", err)
		}
		if c.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if c.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan cycles rows: %w", err)
	}
	return out, nil
}

// AccountHistory returns up to n results for address, newest first.
// Addresses are matched case-insensitively.
func (s *Store) AccountHistory(ctx context.Context, address string, n int) ([]AccountRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_id, idx, address, proxy, running, steps, points, failed_step, error, started_at, finished_at
		FROM account_results
		WHERE lower(address) = ?
		ORDER BY started_at DESC
		LIMIT ?`, strings.ToLower(strings.TrimSpace(address)), n)
	if err != nil {
		return nil, fmt.Errorf("store: query account history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AccountRecord
	for rows.Next() {
		var (
			r                            AccountRecord
			stepsJSON, started, finished string
		)
		if err := rows.Scan(&r.CycleID, &r.Index, &r.Address, &r.Proxy, &r.Running, &stepsJSON,
			&r.Points, &r.FailedStep, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("store: scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(stepsJSON), &r.Steps); err != nil {
			return nil, fmt.Errorf("store: unmarshal steps: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan result rows: %w", err)
	}
	return out, nil
}

// Prune deletes cycles that started before cutoff, with their results.
// It returns the number of cycles removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := formatTime(cutoff)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM account_results
		WHERE cycle_id IN (SELECT id FROM cycles WHERE started_at < ?)`, ts); err != nil {
		return 0, fmt.Errorf("store: prune results: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM cycles WHERE started_at < ?", ts)
	if err != nil {
		return 0, fmt.Errorf("store: prune cycles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return n, nil
}
