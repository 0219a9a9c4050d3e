// Package ledger persists a record of past migration runs to a local
// SQLite database, the supplemented run-history feature whose runs table the
// dbferry-mcp "list past runs" tool reads. Grounded on the
// teacher's own use of modernc.org/sqlite as a migration source
// (source_sqlite.go) for driver registration and plain database/sql query
// style; here the same driver is repurposed as a small embedded store
// rather than a source engine, since the specification is MySQL-to-
// PostgreSQL only and has no SQLite source role to fill.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dbferry/dbferry/internal/descriptor"
)

// Store is a handle to the run-history database. Its methods are not
// nil-safe; a Store is never constructed from a disabled ledger config, so
// callers holding a non-nil *Store can always assume it is usable.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the SQLite database at path, applying
// the ledger schema. modernc.org/sqlite is a pure-Go driver, so this needs
// no cgo toolchain even when the rest of the migration targets CGO-free
// container builds.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // matches the teacher's single-writer sqlite caution

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	config_path   TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	duration_ms   INTEGER NOT NULL,
	total_rows    INTEGER NOT NULL,
	success_count INTEGER NOT NULL,
	failed_count  INTEGER NOT NULL,
	skipped_count INTEGER NOT NULL,
	cancel_count  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS table_results (
	run_id       TEXT NOT NULL REFERENCES runs(run_id),
	table_name   TEXT NOT NULL,
	status       TEXT NOT NULL,
	rows_copied  INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	batch_offset INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_table_results_run ON table_results(run_id);
`

// RecordRun persists the outcome of a completed (or partially completed)
// migration run, including every table's terminal result.
func (s *Store) RecordRun(ctx context.Context, configPath string, result *descriptor.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, config_path, started_at, duration_ms, total_rows, success_count, failed_count, skipped_count, cancel_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, configPath, result.Started.UTC().Format(time.RFC3339Nano), result.Duration.Milliseconds(),
		result.TotalRows, result.SuccessCount, result.FailedCount, result.SkippedCount, result.CancelCount)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, tr := range result.Tables {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO table_results (run_id, table_name, status, rows_copied, duration_ms, error, batch_offset)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, tr.Table, string(tr.Status), tr.RowsCopied, tr.Duration.Milliseconds(), tr.Error, tr.BatchOffset)
		if err != nil {
			return fmt.Errorf("insert table result for %s: %w", tr.Table, err)
		}
	}

	return tx.Commit()
}

// RunSummary is one row of run history, as returned by ListRuns.
type RunSummary struct {
	RunID        string
	ConfigPath   string
	StartedAt    time.Time
	Duration     time.Duration
	TotalRows    int64
	SuccessCount int
	FailedCount  int
	SkippedCount int
	CancelCount  int
}

// ListRuns returns the most recent runs, newest first, capped at limit (0
// means no cap).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT run_id, config_path, started_at, duration_ms, total_rows, success_count, failed_count, skipped_count, cancel_count
	          FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		var durationMs int64
		if err := rows.Scan(&r.RunID, &r.ConfigPath, &started, &durationMs, &r.TotalRows,
			&r.SuccessCount, &r.FailedCount, &r.SkippedCount, &r.CancelCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetTableResults returns the per-table outcomes recorded for one run.
func (s *Store) GetTableResults(ctx context.Context, runID string) ([]descriptor.TableResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, status, rows_copied, duration_ms, error, batch_offset
		FROM table_results WHERE run_id = ? ORDER BY table_name`, runID)
	if err != nil {
		return nil, fmt.Errorf("get table results: %w", err)
	}
	defer rows.Close()

	var out []descriptor.TableResult
	for rows.Next() {
		var tr descriptor.TableResult
		var status string
		var durationMs int64
		if err := rows.Scan(&tr.Table, &status, &tr.RowsCopied, &durationMs, &tr.Error, &tr.BatchOffset); err != nil {
			return nil, fmt.Errorf("scan table result: %w", err)
		}
		tr.Status = descriptor.Status(status)
		tr.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, tr)
	}
	return out, rows.Err()
}
