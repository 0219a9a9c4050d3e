package dbferry

import (
	"testing"

	"github.com/dbferry/dbferry/internal/descriptor"
)

func TestNewMigrator_RequiresSourceDSN(t *testing.T) {
	_, err := NewMigrator(ConnConfig{}, ConnConfig{DSN: "postgres://localhost/app"})
	if err == nil {
		t.Fatal("expected error for missing source dsn")
	}
}

func TestNewMigrator_RequiresTargetDSN(t *testing.T) {
	_, err := NewMigrator(ConnConfig{DSN: "root@tcp(127.0.0.1:3306)/app"}, ConnConfig{})
	if err == nil {
		t.Fatal("expected error for missing target dsn")
	}
}

func TestNewMigrator_OK(t *testing.T) {
	m, err := NewMigrator(
		ConnConfig{DSN: "root@tcp(127.0.0.1:3306)/app"},
		ConnConfig{DSN: "postgres://localhost/app", Schema: "public"},
	)
	if err != nil {
		t.Fatalf("NewMigrator() error: %v", err)
	}
	if m == nil {
		t.Fatal("NewMigrator() returned nil Migrator with no error")
	}
}

func TestSourceDSN_NoCharset(t *testing.T) {
	dsn, err := sourceDSN(ConnConfig{DSN: "root@tcp(127.0.0.1:3306)/app"})
	if err != nil {
		t.Fatalf("sourceDSN() error: %v", err)
	}
	if dsn != "root@tcp(127.0.0.1:3306)/app" {
		t.Errorf("sourceDSN() = %q, want unchanged dsn", dsn)
	}
}

func TestSourceDSN_WithCharset(t *testing.T) {
	dsn, err := sourceDSN(ConnConfig{DSN: "root@tcp(127.0.0.1:3306)/app", Charset: "utf8mb4"})
	if err != nil {
		t.Fatalf("sourceDSN() error: %v", err)
	}
	if dsn != "root@tcp(127.0.0.1:3306)/app?charset=utf8mb4" {
		t.Errorf("sourceDSN() = %q, want charset param appended", dsn)
	}
}

func TestSourceDSN_InvalidDSNWithCharset(t *testing.T) {
	if _, err := sourceDSN(ConnConfig{DSN: "://bad-dsn", Charset: "utf8mb4"}); err == nil {
		t.Fatal("expected error for invalid dsn with charset set")
	}
}

func TestTableNames(t *testing.T) {
	tables := []descriptor.Table{
		{SourceName: "orders"},
		{SourceName: "customers"},
	}
	got := tableNames(tables)
	want := []string{"orders", "customers"}
	if len(got) != len(want) {
		t.Fatalf("tableNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tableNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSetSelectionAndSetOptions(t *testing.T) {
	m, err := NewMigrator(
		ConnConfig{DSN: "root@tcp(127.0.0.1:3306)/app"},
		ConnConfig{DSN: "postgres://localhost/app"},
	)
	if err != nil {
		t.Fatalf("NewMigrator() error: %v", err)
	}
	m.SetSelection([]string{"orders*"}, []string{"orders_archive"})
	if len(m.include) != 1 || m.include[0] != "orders*" {
		t.Errorf("SetSelection() include = %v", m.include)
	}
	if len(m.exclude) != 1 || m.exclude[0] != "orders_archive" {
		t.Errorf("SetSelection() exclude = %v", m.exclude)
	}

	m.SetOptions(Options{Workers: 4, BatchSize: 500})
	if m.opts.Workers != 4 || m.opts.BatchSize != 500 {
		t.Errorf("SetOptions() opts = %+v", m.opts)
	}
}
