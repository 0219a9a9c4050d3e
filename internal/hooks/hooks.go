// Package hooks executes user-supplied SQL files at the before_data,
// after_data, before_fk and after_all points in a migration run, ported
// from the teacher's hooks.go.
package hooks

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs SQL against the target pool, resolving hook file paths and
// substituting {{schema}} the way the teacher's loadAndExecSQLFiles does.
type Executor struct {
	Pool   *pgxpool.Pool
	Schema string
	// ResolvePath maps a configured hook path to an absolute path,
	// normally config.Config.ResolvePath.
	ResolvePath func(string) string
}

// Run executes every file in files in order, for the given phase name
// (used only for log output).
func (e *Executor) Run(ctx context.Context, files []string, phase string) error {
	if len(files) == 0 {
		return nil
	}
	log.Printf("running %s hooks (%d files)", phase, len(files))

	for _, f := range files {
		path := e.ResolvePath(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("hook %s: read %s: %w", phase, f, err)
		}

		sql := strings.ReplaceAll(string(data), "{{schema}}", e.Schema)
		stmts := SplitStatements(sql)

		log.Printf("  %s: %d statements", f, len(stmts))
		for i, stmt := range stmts {
			if _, err := e.Pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("hook %s: %s: statement %d: %w", phase, f, i+1, err)
			}
		}
	}
	return nil
}

// SplitStatements splits SQL text on semicolons, ignoring semicolons inside
// single-quoted strings, ported verbatim in logic from the teacher's
// splitStatements.
func SplitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	inQuote := false

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' && !inQuote:
			inQuote = true
			current.WriteByte(c)
		case c == '\'' && inQuote:
			if i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteByte(c)
				current.WriteByte(c)
				i++
			} else {
				inQuote = false
				current.WriteByte(c)
			}
		case c == ';' && !inQuote:
			if s := strings.TrimSpace(current.String()); s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
