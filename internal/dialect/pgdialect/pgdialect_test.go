package pgdialect

import (
	"strings"
	"testing"

	"github.com/dbferry/dbferry/internal/descriptor"
)

func TestQuoteIdent(t *testing.T) {
	a := New()
	tests := []struct {
		name string
		want string
	}{
		{"users", "users"},
		{"order", `"order"`},
		{"User", `"User"`},
		{"my-table", `"my-table"`},
	}
	for _, tt := range tests {
		if got := a.QuoteIdent(tt.name); got != tt.want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCreateTableSQL(t *testing.T) {
	a := New()
	tbl := descriptor.Table{
		TargetName: "users",
		Columns: []descriptor.Column{
			{TargetName: "id", TargetType: "integer", Nullable: false},
			{TargetName: "email", TargetType: "varchar(255)", Nullable: true},
		},
		PrimaryKey: &descriptor.Index{Columns: []string{"id"}},
	}
	got := a.CreateTableSQL("public", tbl, false)
	for _, want := range []string{`CREATE TABLE "public".users`, "id integer NOT NULL", "email varchar(255)", "PRIMARY KEY (id)"} {
		if !strings.Contains(got, want) {
			t.Errorf("CreateTableSQL missing %q in:\n%s", want, got)
		}
	}
}

func TestIndexCompatibilityWarnings(t *testing.T) {
	tables := []descriptor.Table{
		{
			TargetName: "orders",
			Indexes: []descriptor.Index{
				{TargetName: "idx_prefix", HasPrefix: true, Columns: []string{"name"}},
				{TargetName: "idx_ok", Columns: []string{"id"}, Type: "BTREE"},
			},
		},
	}
	warnings := IndexCompatibilityWarnings(tables)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0], "prefix") {
		t.Errorf("warning %q does not mention prefix", warnings[0])
	}
}

func TestBulkInsertSQL(t *testing.T) {
	a := New()
	tbl := descriptor.Table{
		TargetName: "widgets",
		Columns: []descriptor.Column{
			{TargetName: "id"},
			{TargetName: "name"},
		},
	}
	got := a.BulkInsertSQL("public", tbl, 2)
	want := `INSERT INTO "public".widgets (id, name) VALUES ($1, $2), ($3, $4)`
	if got != want {
		t.Errorf("BulkInsertSQL = %q, want %q", got, want)
	}
}

func TestMaxColumnValueSQL(t *testing.T) {
	a := New()
	got := a.MaxColumnValueSQL("public", "users", "id")
	want := `SELECT COALESCE(MAX(id), 0) FROM "public".users`
	if got != want {
		t.Errorf("MaxColumnValueSQL = %q, want %q", got, want)
	}
}

func TestIdentityRestartSQL(t *testing.T) {
	a := New()
	got := a.IdentityRestartSQL("public", "users", "id", 43)
	want := `ALTER TABLE "public".users ALTER COLUMN id RESTART WITH 43`
	if got != want {
		t.Errorf("IdentityRestartSQL = %q, want %q", got, want)
	}
}

func TestCapabilities(t *testing.T) {
	a := New()
	caps := a.Capabilities()
	if !caps.DeferrableConstraints || !caps.TruncateCascade || !caps.NativeEnum {
		t.Errorf("Capabilities() = %+v, want all true", caps)
	}
}

func TestCollationClause(t *testing.T) {
	col := descriptor.Column{Collation: "utf8mb4_bin"}
	if got := CollationClause(col, "auto", nil); got != `COLLATE "C"` {
		t.Errorf("CollationClause = %q, want COLLATE \"C\"", got)
	}
	if got := CollationClause(col, "off", nil); got != "" {
		t.Errorf("CollationClause with mode off = %q, want empty", got)
	}
}
