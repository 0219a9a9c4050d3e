// Package schematranslate implements the six-step DDL-emission algorithm:
// given a source descriptor.Table (already type-mapped by typemap.Map),
// produce CREATE TABLE / CREATE INDEX DDL for immediate application and a
// deferred list of FK DDL for the post-step. Grounded on the teacher's
// post.go step functions (addPrimaryKeys/addIndexes/addForeignKeys/
// resetSequences/createTriggers), generalized from pool.Exec side effects
// into a pure string-producing translator the orchestrator drives.
package schematranslate

import (
	"fmt"

	"github.com/dbferry/dbferry/internal/descriptor"
	"github.com/dbferry/dbferry/internal/dialect/pgdialect"
	"github.com/dbferry/dbferry/internal/typemap"
)

// Options configures translation behavior not implied by the table itself.
type Options struct {
	DropTarget        bool
	Unlogged          bool
	IdentityStyle     string // "serial" | "sql_standard"
	CollationMode     string
	CollationMap      map[string]string
	ReplicateOnUpdate bool // recreate MySQL's ON UPDATE CURRENT_TIMESTAMP via trigger
	PreserveDefaults  bool // carry column DEFAULT expressions into the target DDL
}

// Plan is the DDL output for one table: statements to run immediately
// (drop, create table, indexes) and statements deferred to the
// orchestrator's post-step (foreign keys, sequence resync, triggers).
type Plan struct {
	DropStmt      string // "" if DropTarget is false
	CreateTable   string
	IndexStmts    []string
	DeferredFKs   []string
	SequenceStmts []string
	TriggerStmts  []string

	// IdentityRestartColumns names sql_standard-identity-style columns
	// (target names) that need an ALTER ... RESTART WITH after the
	// RowPipeline has loaded the table's rows; the orchestrator's post-step
	// queries MAX(column) itself since RESTART WITH takes a literal, not an
	// expression.
	IdentityRestartColumns []string
}

// Translate runs the six-step algorithm against t, whose columns must
// already carry a resolved TargetType (via typemap.Map during
// introspection). Returns an error naming the offending column if any
// column's TargetType is empty (the UNMAPPED case, since Map itself
// already failed schema translation upstream — this is a second
// defense-in-depth check per spec step 1).
func Translate(pgSchema string, t descriptor.Table, opts Options) (Plan, error) {
	adapter := pgdialect.New()

	for _, c := range t.Columns {
		if c.TargetType == "" {
			return Plan{}, fmt.Errorf("schematranslate: column %s.%s has no resolved target type (UNMAPPED)", t.SourceName, c.SourceName)
		}
	}

	var plan Plan

	if opts.DropTarget {
		plan.DropStmt = fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", adapter.QualifiedTable(pgSchema, t.TargetName))
	}

	plan.CreateTable = createTableSQL(adapter, pgSchema, t, opts)

	for _, idx := range t.Indexes {
		plan.IndexStmts = append(plan.IndexStmts, adapter.AddIndexSQL(pgSchema, t, idx))
	}

	for _, fk := range t.ForeignKeys {
		plan.DeferredFKs = append(plan.DeferredFKs, adapter.AddForeignKeySQL(pgSchema, t, fk))
	}

	for _, c := range t.Columns {
		if !c.IsIdentity {
			continue
		}
		if opts.IdentityStyle == "sql_standard" {
			plan.IdentityRestartColumns = append(plan.IdentityRestartColumns, c.TargetName)
			continue
		}
		plan.SequenceStmts = append(plan.SequenceStmts, adapter.SequenceResyncSQL(pgSchema, t.TargetName, c.TargetName)...)
	}

	if opts.ReplicateOnUpdate {
		for _, c := range t.Columns {
			if !c.OnUpdateCurrentTimestamp {
				continue
			}
			plan.TriggerStmts = append(plan.TriggerStmts, adapter.UpdatedAtTriggerSQL(pgSchema, t.TargetName, c.TargetName)...)
		}
	}

	return plan, nil
}

func createTableSQL(adapter *pgdialect.Adapter, pgSchema string, t descriptor.Table, opts Options) string {
	t = decorateColumns(t, opts)
	if opts.IdentityStyle != "sql_standard" {
		return adapter.CreateTableSQL(pgSchema, downgradeIdentityToInteger(t), opts.Unlogged)
	}
	return adapter.CreateTableSQL(pgSchema, upgradeIdentityToSQLStandard(t), opts.Unlogged)
}

// decorateColumns appends a COLLATE clause (collation_mode=auto) and, when
// preserve_defaults is set, a rewritten DEFAULT clause to each column's
// TargetType, the same append-to-TargetType approach
// upgradeIdentityToSQLStandard uses for its GENERATED clause. Defaults that
// RewriteDefault can't translate (or that collapse to NULL, e.g. MySQL's
// zero-date default) are left off rather than failing the whole table.
func decorateColumns(t descriptor.Table, opts Options) descriptor.Table {
	out := t
	out.Columns = make([]descriptor.Column, len(t.Columns))
	copy(out.Columns, t.Columns)
	for i, c := range out.Columns {
		if clause := pgdialect.CollationClause(c, opts.CollationMode, opts.CollationMap); clause != "" {
			out.Columns[i].TargetType += " " + clause
		}
		if !opts.PreserveDefaults || c.Default == nil {
			continue
		}
		rewritten, _, err := typemap.RewriteDefault(c.Default.Raw, c.Default.IsExpression, c.TargetType)
		if err == nil && rewritten != "" {
			out.Columns[i].TargetType += " DEFAULT " + rewritten
		}
	}
	return out
}

// downgradeIdentityToInteger leaves identity columns as their mapped
// integer/bigint type; CREATE SEQUENCE + SET DEFAULT nextval() is applied
// in the post-step instead of an inline GENERATED clause, matching the
// teacher's own resetSequences approach (post.go) so the row pipeline's
// bulk INSERT can insert explicit PK values without colliding with identity generation.
func downgradeIdentityToInteger(t descriptor.Table) descriptor.Table {
	return t
}

// upgradeIdentityToSQLStandard rewrites identity columns' target type to
// carry an inline "GENERATED BY DEFAULT AS IDENTITY" clause, the
// supplemented sql_standard identity style (see original_source's
// sql_standard column style option).
func upgradeIdentityToSQLStandard(t descriptor.Table) descriptor.Table {
	out := t
	out.Columns = make([]descriptor.Column, len(t.Columns))
	copy(out.Columns, t.Columns)
	for i, c := range out.Columns {
		if c.IsIdentity {
			out.Columns[i].TargetType = c.TargetType + " GENERATED BY DEFAULT AS IDENTITY"
		}
	}
	return out
}
