// Package pgdialect is the target-side dialect.Target implementation for
// PostgreSQL: identifier quoting, DDL statement builders, and the
// compatibility-warning collectors ported from the teacher's schema.go,
// collation_compat.go, index_compat.go and generated_columns.go.
package pgdialect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbferry/dbferry/internal/descriptor"
	"github.com/dbferry/dbferry/internal/dialect"
)

var reservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "authorization": true, "between": true,
	"binary": true, "both": true, "case": true, "cast": true, "check": true,
	"collate": true, "column": true, "constraint": true, "create": true, "cross": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true, "deferrable": true,
	"desc": true, "distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "freeze": true,
	"from": true, "full": true, "grant": true, "group": true, "having": true,
	"ilike": true, "in": true, "initially": true, "inner": true, "intersect": true,
	"into": true, "is": true, "isnull": true, "join": true, "lateral": true,
	"leading": true, "left": true, "like": true, "limit": true, "localtime": true,
	"localtimestamp": true, "natural": true, "not": true, "notnull": true, "null": true,
	"offset": true, "on": true, "only": true, "or": true, "order": true, "outer": true,
	"overlaps": true, "placing": true, "primary": true, "references": true,
	"returning": true, "right": true, "select": true, "session_user": true,
	"similar": true, "some": true, "symmetric": true, "table": true, "then": true,
	"to": true, "trailing": true, "true": true, "union": true, "unique": true,
	"user": true, "using": true, "variadic": true, "verbose": true, "when": true,
	"where": true, "window": true, "with": true,
}

// Adapter implements dialect.Target against a PostgreSQL server via pgx.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return "PostgreSQL" }

func (a *Adapter) ReservedWord(name string) bool { return reservedWords[name] }

// QuoteIdent quotes a PostgreSQL identifier when it's a reserved word or
// contains characters invalid in an unquoted identifier, ported from the
// teacher's pgIdent.
func (a *Adapter) QuoteIdent(name string) string {
	if reservedWords[name] || dialect.NeedsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

// Conn wraps a pgxpool.Pool to satisfy dialect.TargetConn.
type Conn struct {
	Pool *pgxpool.Pool
}

func (c *Conn) Close() { c.Pool.Close() }

// Begin opens a pgx transaction on the pool, wrapped to satisfy dialect.Tx.
func (c *Conn) Begin(ctx context.Context) (dialect.Tx, error) {
	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin postgres transaction: %w", err)
	}
	return pgTx{tx: tx}, nil
}

// pgTx adapts a pgx.Tx to dialect.Tx.
type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := t.tx.Exec(ctx, sql, args...)
	return err
}

func (t pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// Capabilities reports the PostgreSQL behavior the rest of the engine can
// rely on: deferrable constraints, TRUNCATE ... CASCADE, and a native
// CREATE TYPE ... AS ENUM are all available on every server this adapter
// targets.
func (a *Adapter) Capabilities() dialect.Capabilities {
	return dialect.Capabilities{
		DeferrableConstraints: true,
		TruncateCascade:       true,
		NativeEnum:            true,
	}
}

func (a *Adapter) Open(ctx context.Context, dsn string) (dialect.TargetConn, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Conn{Pool: pool}, nil
}

// QualifiedTable returns the schema-qualified name "schema".table: the schema
// is always quoted, the table only where QuoteIdent requires it.
func (a *Adapter) QualifiedTable(schema, table string) string {
	return `"` + strings.ReplaceAll(schema, `"`, `""`) + `"` + "." + a.QuoteIdent(table)
}

// CreateTableSQL renders a full CREATE TABLE statement for t, including
// inline column defaults but excluding indexes/FKs (those are separate
// post-step statements so cyclic FK groups can defer creation).
func (a *Adapter) CreateTableSQL(pgSchema string, t descriptor.Table, unlogged bool) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if unlogged {
		b.WriteString("UNLOGGED ")
	}
	fmt.Fprintf(&b, "TABLE %s (\n", a.QualifiedTable(pgSchema, t.TargetName))

	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		lines = append(lines, "  "+a.columnDefSQL(c))
	}
	if t.PrimaryKey != nil && len(t.PrimaryKey.Columns) > 0 {
		quoted := make([]string, len(t.PrimaryKey.Columns))
		for i, c := range t.PrimaryKey.Columns {
			quoted[i] = a.QuoteIdent(c)
		}
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

func (a *Adapter) columnDefSQL(c descriptor.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", a.QuoteIdent(c.TargetName), c.TargetType)
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// BulkInsertSQL renders a single parameterized multi-row INSERT for
// rowCount rows of t's target columns, e.g. "INSERT INTO s.t (a, b) VALUES
// ($1, $2), ($3, $4)". The Writer stage flattens each batch of row tuples
// into one positional argument slice in the same column order.
func (a *Adapter) BulkInsertSQL(pgSchema string, t descriptor.Table, rowCount int) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = a.QuoteIdent(c.TargetName)
	}

	rows := make([]string, rowCount)
	n := 1
	for r := 0; r < rowCount; r++ {
		placeholders := make([]string, len(t.Columns))
		for i := range t.Columns {
			placeholders[i] = fmt.Sprintf("$%d", n)
			n++
		}
		rows[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		a.QualifiedTable(pgSchema, t.TargetName), strings.Join(cols, ", "), strings.Join(rows, ", "))
}

func (a *Adapter) AddIndexSQL(pgSchema string, t descriptor.Table, idx descriptor.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		order := ""
		if i < len(idx.ColumnOrders) && idx.ColumnOrders[i] == "DESC" {
			order = " DESC"
		}
		cols[i] = a.QuoteIdent(c) + order
	}
	name := a.QuoteIdent(t.TargetName + "_" + idx.TargetName + "_idx")
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, name, a.QualifiedTable(pgSchema, t.TargetName), strings.Join(cols, ", "))
}

func (a *Adapter) AddForeignKeySQL(pgSchema string, t descriptor.Table, fk descriptor.ForeignKey) string {
	cols := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		cols[i] = a.QuoteIdent(c)
	}
	refCols := make([]string, len(fk.RefColumns))
	for i, c := range fk.RefColumns {
		refCols[i] = a.QuoteIdent(c)
	}
	constraint := a.QuoteIdent(t.TargetName + "_" + fk.TargetName + "_fkey")
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		a.QualifiedTable(pgSchema, t.TargetName), constraint, strings.Join(cols, ", "),
		a.QualifiedTable(pgSchema, fk.RefTable), strings.Join(refCols, ", "))
	if fk.OnUpdate != "" && fk.OnUpdate != "RESTRICT" {
		stmt += " ON UPDATE " + fk.OnUpdate
	}
	if fk.OnDelete != "" && fk.OnDelete != "RESTRICT" {
		stmt += " ON DELETE " + fk.OnDelete
	}
	return stmt
}

// SequenceResyncSQL returns the CREATE SEQUENCE / ALTER COLUMN SET DEFAULT /
// ALTER SEQUENCE OWNED BY / setval statements needed to make column an auto-incrementing identity
// backed by an explicit sequence, ported from the teacher's post.go
// resetSequences step (which uses setval against MAX(col)+1 rather than
// GENERATED ... AS IDENTITY, so an explicitly-inserted PK during data load
// doesn't collide with the identity sequence).
func (a *Adapter) SequenceResyncSQL(pgSchema, table, column string) []string {
	seqName := a.QuoteIdent(table + "_" + column + "_seq")
	qualifiedTable := a.QualifiedTable(pgSchema, table)
	qualifiedCol := a.QuoteIdent(column)
	return []string{
		fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s.%s", a.QuoteIdent(pgSchema), seqName),
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT nextval('%s.%s')", qualifiedTable, qualifiedCol, pgSchema, strings.Trim(seqName, `"`)),
		fmt.Sprintf("ALTER SEQUENCE %s.%s OWNED BY %s.%s", a.QuoteIdent(pgSchema), seqName, qualifiedTable, qualifiedCol),
		fmt.Sprintf("SELECT setval('%s.%s', COALESCE((SELECT MAX(%s) FROM %s), 0) + 1, false)", pgSchema, strings.Trim(seqName, `"`), qualifiedCol, qualifiedTable),
	}
}

// MaxColumnValueSQL returns a query yielding column's current maximum value
// (0 if the table is empty), the value a sql_standard identity column's
// generator must be restarted past so the next default-generated insert
// doesn't collide with an explicit value the RowPipeline loaded.
func (a *Adapter) MaxColumnValueSQL(pgSchema, table, column string) string {
	return fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", a.QuoteIdent(column), a.QualifiedTable(pgSchema, table))
}

// IdentityRestartSQL returns the ALTER TABLE statement that restarts a
// GENERATED ... AS IDENTITY column's generator at restartAt, the
// sql_standard-identity-style counterpart to SequenceResyncSQL's setval
// call: identity generators don't advance on explicit-value inserts, so
// this must run once the RowPipeline has loaded the table's rows.
func (a *Adapter) IdentityRestartSQL(pgSchema, table, column string, restartAt int64) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s RESTART WITH %d",
		a.QualifiedTable(pgSchema, table), a.QuoteIdent(column), restartAt)
}

// UpdatedAtTriggerSQL returns the plpgsql function + trigger pair that
// reproduces MySQL's "ON UPDATE CURRENT_TIMESTAMP" column behavior, ported
// from the teacher's createTriggers.
func (a *Adapter) UpdatedAtTriggerSQL(pgSchema, table, column string) []string {
	fnName := a.QuoteIdent("set_" + table + "_" + column)
	triggerName := a.QuoteIdent(table + "_" + column + "_trg")
	qualifiedTable := a.QualifiedTable(pgSchema, table)
	fn := fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s.%s() RETURNS trigger AS $$
BEGIN
  NEW.%s = now();
  RETURN NEW;
END;
$$ LANGUAGE plpgsql`, a.QuoteIdent(pgSchema), fnName, a.QuoteIdent(column))
	trg := fmt.Sprintf("CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION %s.%s()",
		triggerName, qualifiedTable, a.QuoteIdent(pgSchema), fnName)
	return []string{fn, trg}
}
