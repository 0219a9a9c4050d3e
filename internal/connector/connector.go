// Package connector owns connection lifecycle: opening retried, validated
// connections to source and target, and preparing the target schema per the
// configured on_schema_exists policy. Grounded on the teacher's main.go
// steps 1-4 (connect MySQL, extract db name, connect PostgreSQL, prepare
// schema), generalized to use retry.Do around each dial.
package connector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dbferry/dbferry/internal/dialect/mysqldialect"
	"github.com/dbferry/dbferry/internal/dialect/pgdialect"
	"github.com/dbferry/dbferry/internal/retry"
)

// OpenSource dials MySQL with retry, returning a pool capped at maxConns
// (the teacher opens the introspection connection with SetMaxOpenConns(1);
// this generalizes that cap to the worker pool's per-worker connections).
func OpenSource(ctx context.Context, adapter *mysqldialect.Adapter, dsn string, maxConns int, policy retry.Policy) (*sql.DB, error) {
	var db *sql.DB
	err := retry.Do(ctx, policy, func() error {
		var err error
		db, err = adapter.Open(ctx, dsn)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect source: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	return db, nil
}

// OpenTarget dials PostgreSQL with retry via pgxpool.
func OpenTarget(ctx context.Context, adapter *pgdialect.Adapter, dsn string, policy retry.Policy) (*pgdialect.Conn, error) {
	var conn *pgdialect.Conn
	err := retry.Do(ctx, policy, func() error {
		c, err := adapter.Open(ctx, dsn)
		if err != nil {
			return err
		}
		conn = c.(*pgdialect.Conn)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect target: %w", err)
	}
	return conn, nil
}

// schemaExecutor is satisfied by *pgxpool.Pool, narrowed the way the
// teacher's main.go narrows it for prepareTargetSchema/testability.
type schemaExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PrepareSchema creates or recreates the target schema per onSchemaExists
// ("recreate" | "error" | "skip"), ported from the teacher's
// prepareTargetSchema.
func PrepareSchema(ctx context.Context, exec schemaExecutor, adapter *pgdialect.Adapter, schema, onSchemaExists string) error {
	switch onSchemaExists {
	case "recreate":
		if _, err := exec.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", adapter.QuoteIdent(schema))); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", adapter.QuoteIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	case "error":
		var exists bool
		if err := exec.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)", schema).Scan(&exists); err != nil {
			return fmt.Errorf("check schema existence: %w", err)
		}
		if exists {
			return fmt.Errorf("schema %q already exists in target database (on_schema_exists=error)", schema)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", adapter.QuoteIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	case "skip":
		var exists bool
		if err := exec.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)", schema).Scan(&exists); err != nil {
			return fmt.Errorf("check schema existence: %w", err)
		}
		if exists {
			return nil
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", adapter.QuoteIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported on_schema_exists value %q", onSchemaExists)
	}
}

// ExtractMySQLDBName pulls the database name out of a MySQL DSN, ported
// from the teacher's extractMySQLDBName/indexOf/lastIndexOf byte scan
// (kept for DSNs mysqldialect.Adapter.DatabaseName can't parse, e.g. the
// legacy user:pass@host:port/db shorthand without the tcp() wrapper).
func ExtractMySQLDBName(dsn string) (string, error) {
	paramIdx := len(dsn)
	if i := indexOf(dsn, '?'); i >= 0 {
		paramIdx = i
	}
	slashIdx := lastIndexOf(dsn[:paramIdx], '/')
	if slashIdx < 0 {
		return "", fmt.Errorf("cannot extract database name from DSN: no '/' found")
	}
	dbName := dsn[slashIdx+1 : paramIdx]
	if dbName == "" {
		return "", fmt.Errorf("cannot extract database name from DSN: empty name")
	}
	return dbName, nil
}

func indexOf(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func lastIndexOf(s string, c byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == c {
			return i
		}
	}
	return -1
}
