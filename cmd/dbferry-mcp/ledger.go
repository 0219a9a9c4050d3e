package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// queryLedger opens the run-history database for the duration of one call
// and returns rows as generic maps, the same MapScan idiom the pack's
// mcp-database sqlite connector uses for its query tool. It is independent
// of internal/ledger.Store: the MCP server only ever reads the ledger, and
// it runs one fixed SELECT of the newest runs, newest first, capped at
// limit (20 when limit is not positive).
func queryLedger(ctx context.Context, path string, limit int) ([]map[string]any, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryxContext(ctx, `
		SELECT run_id, config_path, started_at, duration_ms, total_rows,
		       success_count, failed_count, skipped_count, cancel_count
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
