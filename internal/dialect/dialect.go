// Package dialect defines the Adapter boundary between the migration engine
// and a concrete database engine (source or target), plus the identifier
// quoting rules shared by both sides. It generalizes the teacher's flat
// SourceDB interface (source.go) into a two-sided Source/Target split, since
// the specification requires writing to PostgreSQL as well as reading from
// MySQL.
package dialect

import (
	"context"
	"database/sql"
	"unicode"

	"github.com/dbferry/dbferry/internal/descriptor"
)

// Source is implemented by a source-engine adapter (MySQL only, currently;
// the interface stays engine-neutral so a second source could be added
// without touching the orchestrator).
type Source interface {
	// Name is a human-readable engine name, used in logs and errors.
	Name() string

	// Open opens a connection pool against dsn.
	Open(ctx context.Context, dsn string) (*sql.DB, error)

	// DatabaseName extracts the logical database/schema name from dsn.
	DatabaseName(dsn string) (string, error)

	// IntrospectTables lists the base tables in schemaName, in no particular order.
	IntrospectTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error)

	// IntrospectTable reads full column/index/FK metadata for one table.
	IntrospectTable(ctx context.Context, db *sql.DB, schemaName, tableName string) (descriptor.Table, error)

	// RowCount estimates the row count of a table for progress reporting.
	RowCount(ctx context.Context, db *sql.DB, schemaName, tableName string) (int64, error)

	// StreamRows opens a forward-only cursor over a table's rows in the
	// source's natural order (no ORDER BY), for the Producer stage. db may be
	// a plain *sql.DB or a *sql.Tx opened by BeginSnapshot, so a caller can
	// run the scan inside a consistent snapshot transaction.
	StreamRows(ctx context.Context, db Queryer, schemaName, tableName string, columns []string) (*sql.Rows, error)

	// BeginSnapshot opens a transaction suitable for a consistent row scan
	// (REPEATABLE READ where the engine supports it), used when
	// options.source_snapshot_mode = "single_tx".
	BeginSnapshot(ctx context.Context, db *sql.DB) (*sql.Tx, error)

	// QuoteIdent quotes a source-side identifier for interpolation into SQL
	// this adapter builds.
	QuoteIdent(name string) string
}

// Queryer is satisfied by both *sql.DB and *sql.Tx, letting StreamRows run
// either as a plain autocommit query or inside a caller-managed snapshot
// transaction.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Target is implemented by a target-engine adapter (PostgreSQL only). It is
// the write side of the pipeline: DDL emission, bulk load, and post-step
// constraint/sequence work.
type Target interface {
	Name() string

	Open(ctx context.Context, dsn string) (TargetConn, error)

	QuoteIdent(name string) string

	// ReservedWord reports whether name must be quoted even absent special characters.
	ReservedWord(name string) bool

	// BulkInsertSQL renders a parameterized multi-row INSERT for rowCount
	// rows of t's target columns, with placeholders numbered from 1, for the
	// Writer stage of the row pipeline.
	BulkInsertSQL(schema string, t descriptor.Table, rowCount int) string

	// Capabilities reports optional target-engine behavior the rest of the
	// engine can branch on.
	Capabilities() Capabilities
}

// Capabilities flags optional target-engine behavior.
type Capabilities struct {
	DeferrableConstraints bool // constraints can be declared DEFERRABLE INITIALLY DEFERRED
	TruncateCascade       bool // TRUNCATE ... CASCADE is available
	NativeEnum            bool // a native enumerated type exists (vs. varchar+CHECK)
}

// TargetConn is a single connection/pool handle to the target, wide enough
// to cover both a *sql.DB style pool and a driver-native pool (pgxpool),
// implemented per-adapter.
type TargetConn interface {
	Close()

	// Begin opens a transaction for a batch of writes, committed or rolled
	// back by the caller.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single transaction against the target, spanning one or more
// batches between an explicit Begin and Commit/Rollback.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ToSnakeCase converts a camelCase or PascalCase identifier to snake_case,
// ported from the teacher's schema.go toSnakeCase.
func ToSnakeCase(s string) string {
	var result []byte
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result = append(result, '_')
			}
			result = append(result, byte(unicode.ToLower(r)))
		} else {
			result = append(result, byte(r))
		}
	}
	return string(result)
}

// NeedsQuoting reports whether name contains characters that require
// double-quoting in PostgreSQL regardless of reserved-word status.
func NeedsQuoting(name string) bool {
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '$') {
			continue
		}
		return true
	}
	return len(name) == 0
}
