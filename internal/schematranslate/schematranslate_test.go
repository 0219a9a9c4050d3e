package schematranslate

import (
	"strings"
	"testing"

	"github.com/dbferry/dbferry/internal/descriptor"
)

func sampleTable() descriptor.Table {
	return descriptor.Table{
		SourceName: "users",
		TargetName: "users",
		Columns: []descriptor.Column{
			{SourceName: "id", TargetName: "id", TargetType: "integer", IsIdentity: true},
			{SourceName: "email", TargetName: "email", TargetType: "varchar(255)"},
		},
		PrimaryKey: &descriptor.Index{Columns: []string{"id"}},
		Indexes: []descriptor.Index{
			{TargetName: "email_idx", Columns: []string{"email"}, Unique: true},
		},
		ForeignKeys: []descriptor.ForeignKey{
			{TargetName: "org_fk", Columns: []string{"org_id"}, RefTable: "orgs", RefColumns: []string{"id"}, OnDelete: "CASCADE"},
		},
	}
}

func TestTranslateSerialIdentity(t *testing.T) {
	plan, err := Translate("public", sampleTable(), Options{IdentityStyle: "serial"})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if !strings.Contains(plan.CreateTable, "id integer") {
		t.Errorf("CreateTable = %q, want plain integer id column", plan.CreateTable)
	}
	if len(plan.IndexStmts) != 1 {
		t.Fatalf("IndexStmts = %v", plan.IndexStmts)
	}
	if len(plan.DeferredFKs) != 1 {
		t.Fatalf("DeferredFKs = %v", plan.DeferredFKs)
	}
	if len(plan.SequenceStmts) == 0 {
		t.Errorf("expected sequence resync statements for identity column")
	}
}

func TestTranslateSQLStandardIdentity(t *testing.T) {
	plan, err := Translate("public", sampleTable(), Options{IdentityStyle: "sql_standard"})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if !strings.Contains(plan.CreateTable, "GENERATED BY DEFAULT AS IDENTITY") {
		t.Errorf("CreateTable = %q, want inline identity clause", plan.CreateTable)
	}
	if len(plan.SequenceStmts) != 0 {
		t.Errorf("sql_standard identity should not use setval-style sequence resync, got %v", plan.SequenceStmts)
	}
	if want := []string{"id"}; len(plan.IdentityRestartColumns) != 1 || plan.IdentityRestartColumns[0] != want[0] {
		t.Errorf("IdentityRestartColumns = %v, want %v", plan.IdentityRestartColumns, want)
	}
}

func TestTranslateDropTarget(t *testing.T) {
	plan, err := Translate("public", sampleTable(), Options{DropTarget: true, IdentityStyle: "serial"})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if !strings.Contains(plan.DropStmt, "DROP TABLE IF EXISTS") {
		t.Errorf("DropStmt = %q", plan.DropStmt)
	}
}

func TestTranslateUnmappedColumn(t *testing.T) {
	tbl := sampleTable()
	tbl.Columns[0].TargetType = ""
	if _, err := Translate("public", tbl, Options{IdentityStyle: "serial"}); err == nil {
		t.Fatal("expected error for unmapped column")
	}
}

func TestTranslatePreserveDefaults(t *testing.T) {
	tbl := sampleTable()
	tbl.Columns = append(tbl.Columns, descriptor.Column{
		SourceName: "status", TargetName: "status", TargetType: "smallint",
		Default: &descriptor.Default{Raw: "1"},
	})
	plan, err := Translate("public", tbl, Options{IdentityStyle: "serial", PreserveDefaults: true})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if !strings.Contains(plan.CreateTable, "status smallint DEFAULT 1") {
		t.Errorf("CreateTable = %q, want status column with DEFAULT 1", plan.CreateTable)
	}
}

func TestTranslateDefaultsDroppedWhenNotPreserved(t *testing.T) {
	tbl := sampleTable()
	tbl.Columns = append(tbl.Columns, descriptor.Column{
		SourceName: "status", TargetName: "status", TargetType: "smallint",
		Default: &descriptor.Default{Raw: "1"},
	})
	plan, err := Translate("public", tbl, Options{IdentityStyle: "serial"})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if strings.Contains(plan.CreateTable, "DEFAULT") {
		t.Errorf("CreateTable = %q, want no DEFAULT clause when preserve_defaults is unset", plan.CreateTable)
	}
}

func TestTranslateCollationClause(t *testing.T) {
	tbl := sampleTable()
	tbl.Columns[1].Collation = "utf8mb4_bin"
	plan, err := Translate("public", tbl, Options{IdentityStyle: "serial", CollationMode: "auto"})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if !strings.Contains(plan.CreateTable, `COLLATE "C"`) {
		t.Errorf("CreateTable = %q, want a COLLATE \"C\" clause for the _bin column", plan.CreateTable)
	}
}

func TestTranslateOnUpdateTrigger(t *testing.T) {
	tbl := sampleTable()
	tbl.Columns = append(tbl.Columns, descriptor.Column{
		SourceName: "updated_at", TargetName: "updated_at", TargetType: "timestamptz",
		OnUpdateCurrentTimestamp: true,
	})
	plan, err := Translate("public", tbl, Options{IdentityStyle: "serial", ReplicateOnUpdate: true})
	if err != nil {
		t.Fatalf("Translate error: %v", err)
	}
	if len(plan.TriggerStmts) == 0 {
		t.Errorf("expected trigger statements for ON UPDATE CURRENT_TIMESTAMP column")
	}
}
