package mysqldialect

import (
	"strings"
	"testing"

	"github.com/dbferry/dbferry/internal/typemap"
)

func TestWithCharset(t *testing.T) {
	dsn, err := WithCharset("root:root@tcp(127.0.0.1:3306)/example_db", "utf8mb4")
	if err != nil {
		t.Fatalf("WithCharset() error: %v", err)
	}
	want := "root:root@tcp(127.0.0.1:3306)/example_db?charset=utf8mb4"
	if dsn != want {
		t.Errorf("WithCharset() = %q, want %q", dsn, want)
	}
}

func TestWithCharset_InvalidDSN(t *testing.T) {
	if _, err := WithCharset("://bad-dsn", "utf8mb4"); err == nil {
		t.Fatal("expected error for invalid DSN")
	}
}

func TestAdapter_DatabaseName(t *testing.T) {
	a := New(typemap.DefaultOptions())
	name, err := a.DatabaseName("root:root@tcp(127.0.0.1:3306)/example_db")
	if err != nil {
		t.Fatalf("DatabaseName() error: %v", err)
	}
	if name != "example_db" {
		t.Errorf("DatabaseName() = %q, want %q", name, "example_db")
	}
}

func TestAdapter_DatabaseName_Missing(t *testing.T) {
	a := New(typemap.DefaultOptions())
	if _, err := a.DatabaseName("root:root@tcp(127.0.0.1:3306)/"); err == nil {
		t.Fatal("expected error for dsn with no database name")
	}
}

func TestAdapter_QuoteIdent(t *testing.T) {
	a := New(typemap.DefaultOptions())
	got := a.QuoteIdent("my`table")
	want := "`my``table`"
	if got != want {
		t.Errorf("QuoteIdent() = %q, want %q", got, want)
	}
}

func TestIsGeneratedColumn(t *testing.T) {
	cases := []struct {
		extra string
		want  bool
	}{
		{"", false},
		{"auto_increment", false},
		{"VIRTUAL GENERATED", true},
		{"STORED GENERATED", true},
		{"DEFAULT_GENERATED", false},
	}
	for _, c := range cases {
		if got := isGeneratedColumn(c.extra); got != c.want {
			t.Errorf("isGeneratedColumn(%q) = %v, want %v", c.extra, got, c.want)
		}
	}
}

func TestIsAutoIncrement(t *testing.T) {
	if !isAutoIncrement("auto_increment") {
		t.Error("isAutoIncrement(\"auto_increment\") = false, want true")
	}
	if isAutoIncrement("STORED GENERATED") {
		t.Error("isAutoIncrement(\"STORED GENERATED\") = true, want false")
	}
}

func TestIsOnUpdateCurrentTimestamp(t *testing.T) {
	if !isOnUpdateCurrentTimestamp("on update CURRENT_TIMESTAMP") {
		t.Error("isOnUpdateCurrentTimestamp() = false, want true")
	}
	if isOnUpdateCurrentTimestamp("auto_increment") {
		t.Error("isOnUpdateCurrentTimestamp() = true, want false")
	}
}

func TestAdapter_GeneratedColumns(t *testing.T) {
	a := New(typemap.DefaultOptions())
	if got := a.GeneratedColumns("orders"); got != nil {
		t.Fatalf("GeneratedColumns() before any note = %v, want nil", got)
	}
	a.noteGeneratedColumn("orders", "total_with_tax")
	a.noteGeneratedColumn("orders", "full_name")
	a.noteGeneratedColumn("customers", "display_name")

	got := a.GeneratedColumns("orders")
	want := []string{"total_with_tax", "full_name"}
	if len(got) != len(want) {
		t.Fatalf("GeneratedColumns(orders) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GeneratedColumns(orders)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if got := a.GeneratedColumns("nonexistent"); got != nil {
		t.Errorf("GeneratedColumns(nonexistent) = %v, want nil", got)
	}
}

func TestSourceObjectsWarnings(t *testing.T) {
	objs := SourceObjects{
		Views:    []string{"active_users"},
		Routines: []string{"PROCEDURE recalc_totals"},
		Triggers: []string{"trg_orders_after_insert"},
	}
	warnings := SourceObjectsWarnings(objs)
	if len(warnings) != 3 {
		t.Fatalf("got %d warnings, want 3: %v", len(warnings), warnings)
	}
	for _, want := range []string{"active_users", "PROCEDURE recalc_totals", "trg_orders_after_insert"} {
		found := false
		for _, w := range warnings {
			if strings.Contains(w, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no warning mentions %q: %v", want, warnings)
		}
	}
}

func TestSourceObjectsWarnings_Empty(t *testing.T) {
	if got := SourceObjectsWarnings(SourceObjects{}); got != nil {
		t.Errorf("SourceObjectsWarnings(empty) = %v, want nil", got)
	}
}
