package connector

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dbferry/dbferry/internal/dialect/pgdialect"
)

// fakeExec is a schemaExecutor test double, standing in for the pgxpool.Pool
// PrepareSchema drives in production.
type fakeExec struct {
	schemaExists bool
	execs        []string
}

func (f *fakeExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if strings.Contains(sql, "CREATE SCHEMA") {
		f.schemaExists = true
	}
	if strings.Contains(sql, "DROP SCHEMA") {
		f.schemaExists = false
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeExec) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{exists: f.schemaExists}
}

type fakeRow struct{ exists bool }

func (r fakeRow) Scan(dest ...any) error {
	*dest[0].(*bool) = r.exists
	return nil
}

func TestPrepareSchema_Recreate(t *testing.T) {
	f := &fakeExec{schemaExists: true}
	a := &pgdialect.Adapter{}
	if err := PrepareSchema(context.Background(), f, a, "app", "recreate"); err != nil {
		t.Fatalf("PrepareSchema() error: %v", err)
	}
	if len(f.execs) != 2 || !strings.Contains(f.execs[0], "DROP SCHEMA") || !strings.Contains(f.execs[1], "CREATE SCHEMA") {
		t.Errorf("PrepareSchema(recreate) execs = %v, want drop then create", f.execs)
	}
}

func TestPrepareSchema_ErrorWhenExists(t *testing.T) {
	f := &fakeExec{schemaExists: true}
	a := &pgdialect.Adapter{}
	err := PrepareSchema(context.Background(), f, a, "app", "error")
	if err == nil {
		t.Fatal("expected error when schema already exists and on_schema_exists=error")
	}
}

func TestPrepareSchema_ErrorWhenAbsentCreates(t *testing.T) {
	f := &fakeExec{schemaExists: false}
	a := &pgdialect.Adapter{}
	if err := PrepareSchema(context.Background(), f, a, "app", "error"); err != nil {
		t.Fatalf("PrepareSchema() error: %v", err)
	}
	if len(f.execs) != 1 || !strings.Contains(f.execs[0], "CREATE SCHEMA") {
		t.Errorf("PrepareSchema(error, absent) execs = %v, want a single create", f.execs)
	}
}

func TestPrepareSchema_SkipWhenExists(t *testing.T) {
	f := &fakeExec{schemaExists: true}
	a := &pgdialect.Adapter{}
	if err := PrepareSchema(context.Background(), f, a, "app", "skip"); err != nil {
		t.Fatalf("PrepareSchema() error: %v", err)
	}
	if len(f.execs) != 0 {
		t.Errorf("PrepareSchema(skip, exists) execs = %v, want none", f.execs)
	}
}

func TestPrepareSchema_SkipWhenAbsentCreates(t *testing.T) {
	f := &fakeExec{schemaExists: false}
	a := &pgdialect.Adapter{}
	if err := PrepareSchema(context.Background(), f, a, "app", "skip"); err != nil {
		t.Fatalf("PrepareSchema() error: %v", err)
	}
	if len(f.execs) != 1 || !strings.Contains(f.execs[0], "CREATE SCHEMA") {
		t.Errorf("PrepareSchema(skip, absent) execs = %v, want a single create", f.execs)
	}
}

func TestPrepareSchema_UnsupportedPolicy(t *testing.T) {
	f := &fakeExec{}
	a := &pgdialect.Adapter{}
	if err := PrepareSchema(context.Background(), f, a, "app", "bogus"); err == nil {
		t.Fatal("expected error for unsupported on_schema_exists value")
	}
}

func TestExtractMySQLDBName(t *testing.T) {
	cases := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{"root:root@tcp(127.0.0.1:3306)/example_db", "example_db", false},
		{"root:root@tcp(127.0.0.1:3306)/example_db?parseTime=true", "example_db", false},
		{"root:root@tcp(127.0.0.1:3306)/", "", true},
		{"no-slash-here", "", true},
	}
	for _, c := range cases {
		got, err := ExtractMySQLDBName(c.dsn)
		if c.wantErr {
			if err == nil {
				t.Errorf("ExtractMySQLDBName(%q) expected error, got none", c.dsn)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ExtractMySQLDBName(%q) error: %v", c.dsn, err)
		}
		if got != c.want {
			t.Errorf("ExtractMySQLDBName(%q) = %q, want %q", c.dsn, got, c.want)
		}
	}
}
