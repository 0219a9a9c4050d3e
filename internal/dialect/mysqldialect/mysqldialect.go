// Package mysqldialect is the source-side dialect.Source implementation for
// MySQL and MariaDB. Introspection queries and DSN handling are ported from
// the teacher's source_mysql.go and mysql_dsn.go, generalized to populate
// descriptor.Table instead of the teacher's flat Column/Index/ForeignKey
// model, and to feed typemap.Map instead of inlining the type switch.
package mysqldialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/dbferry/dbferry/internal/dialect"
	"github.com/dbferry/dbferry/internal/typemap"
)

// Adapter implements dialect.Source against a MySQL/MariaDB server.
type Adapter struct {
	// TypeOptions configures typemap.Map for every column this adapter maps.
	TypeOptions typemap.Options

	mu            sync.Mutex
	generatedCols map[string][]string // source table name -> dropped generated columns
}

func New(opts typemap.Options) *Adapter {
	return &Adapter{TypeOptions: opts}
}

// GeneratedColumns returns the generated columns IntrospectTable dropped
// from tableName, for the plan-phase compatibility warning.
func (a *Adapter) GeneratedColumns(tableName string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generatedCols[tableName]
}

func (a *Adapter) noteGeneratedColumn(tableName, columnName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generatedCols == nil {
		a.generatedCols = make(map[string][]string)
	}
	a.generatedCols[tableName] = append(a.generatedCols[tableName], columnName)
}

func (a *Adapter) Name() string { return "MySQL" }

// Open normalizes the DSN the way the teacher's OpenDB does: force
// ParseTime and UTC so driver-returned time.Time values are unambiguous,
// and InterpolateParams for the bulk-read query path.
func (a *Adapter) Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.InterpolateParams = true
	cfg.Loc = time.UTC
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// WithCharset injects a charset/collation parameter into dsn, used by
// orchestrator.Run and the Migrator's source DSN helper when a source
// charset is set.
func WithCharset(dsn, charset string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = charset
	return cfg.FormatDSN(), nil
}

func (a *Adapter) DatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("mysql dsn has no database name")
	}
	return cfg.DBName, nil
}

func (a *Adapter) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (a *Adapter) IntrospectTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (a *Adapter) RowCount(ctx context.Context, db *sql.DB, schemaName, tableName string) (int64, error) {
	var n sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT TABLE_ROWS FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`, schemaName, tableName).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n.Int64, nil
}

func (a *Adapter) StreamRows(ctx context.Context, db dialect.Queryer, schemaName, tableName string, columns []string) (*sql.Rows, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = a.QuoteIdent(c)
	}
	q := fmt.Sprintf("SELECT %s FROM %s.%s", strings.Join(quoted, ", "), a.QuoteIdent(schemaName), a.QuoteIdent(tableName))
	return db.QueryContext(ctx, q)
}

// BeginSnapshot opens a REPEATABLE READ, read-only transaction so a table's
// StreamRows scan sees a consistent snapshot, used when
// options.source_snapshot_mode = "single_tx".
func (a *Adapter) BeginSnapshot(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
	return db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

// rawColumn is the wire shape read straight off INFORMATION_SCHEMA.COLUMNS,
// kept separate from typemap.SourceColumn because it also carries the
// fields (Extra, Default, Nullable) that typemap doesn't need but
// descriptor.Column does.
type rawColumn struct {
	Name       string
	DataType   string
	ColumnType string
	CharMaxLen int64
	Precision  int64
	Scale      int64
	Nullable   bool
	Default    *string
	Extra      string
	OrdinalPos int
	Charset    string
	Collation  string
}

func introspectColumns(ctx context.Context, db *sql.DB, dbName, tableName string) ([]rawColumn, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
		        COALESCE(CHARACTER_MAXIMUM_LENGTH, 0),
		        COALESCE(NUMERIC_PRECISION, 0),
		        COALESCE(NUMERIC_SCALE, 0),
		        IS_NULLABLE, COLUMN_DEFAULT, EXTRA, ORDINAL_POSITION,
		        COALESCE(CHARACTER_SET_NAME, ''), COALESCE(COLLATION_NAME, '')
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`, dbName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []rawColumn
	for rows.Next() {
		var c rawColumn
		var nullable string
		var dflt sql.NullString
		if err := rows.Scan(&c.Name, &c.DataType, &c.ColumnType, &c.CharMaxLen, &c.Precision, &c.Scale,
			&nullable, &dflt, &c.Extra, &c.OrdinalPos, &c.Charset, &c.Collation); err != nil {
			return nil, err
		}
		c.Nullable = nullable == "YES"
		if dflt.Valid {
			c.Default = &dflt.String
		}
		c.DataType = strings.ToLower(c.DataType)
		c.ColumnType = strings.ToLower(c.ColumnType)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func isGeneratedColumn(extra string) bool {
	e := strings.ToLower(extra)
	return strings.Contains(e, "virtual generated") || strings.Contains(e, "stored generated")
}

func isAutoIncrement(extra string) bool {
	return strings.Contains(strings.ToLower(extra), "auto_increment")
}

func isOnUpdateCurrentTimestamp(extra string) bool {
	return strings.Contains(strings.ToLower(extra), "on update current_timestamp")
}

type rawIndex struct {
	Name          string
	Columns       []string
	ColumnOrders  []string
	Unique        bool
	IsPrimary     bool
	Type          string
	HasPrefix     bool
	HasExpression bool
}

func introspectIndexes(ctx context.Context, db *sql.DB, dbName, tableName string) ([]rawIndex, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE, SEQ_IN_INDEX, INDEX_TYPE, COLLATION, SUB_PART
		 FROM INFORMATION_SCHEMA.STATISTICS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY INDEX_NAME, SEQ_IN_INDEX`, dbName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexMap := make(map[string]*rawIndex)
	var order []string

	for rows.Next() {
		var idxName, indexType string
		var colName, collation sql.NullString
		var subPart sql.NullInt64
		var nonUnique, seqInIndex int
		if err := rows.Scan(&idxName, &colName, &nonUnique, &seqInIndex, &indexType, &collation, &subPart); err != nil {
			return nil, err
		}

		idx, ok := indexMap[idxName]
		if !ok {
			idx = &rawIndex{
				Name:      idxName,
				Unique:    nonUnique == 0,
				IsPrimary: idxName == "PRIMARY",
				Type:      strings.ToUpper(indexType),
			}
			indexMap[idxName] = idx
			order = append(order, idxName)
		}
		if subPart.Valid {
			idx.HasPrefix = true
		}
		if !colName.Valid {
			idx.HasExpression = true
			continue
		}
		idx.Columns = append(idx.Columns, colName.String)
		if collation.Valid && strings.EqualFold(collation.String, "D") {
			idx.ColumnOrders = append(idx.ColumnOrders, "DESC")
		} else {
			idx.ColumnOrders = append(idx.ColumnOrders, "ASC")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]rawIndex, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *indexMap[name])
	}
	return indexes, nil
}

type rawFK struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	UpdateRule string
	DeleteRule string
}

func introspectForeignKeys(ctx context.Context, db *sql.DB, dbName, tableName string) ([]rawFK, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT kcu.CONSTRAINT_NAME, kcu.COLUMN_NAME,
		        kcu.REFERENCED_TABLE_NAME, kcu.REFERENCED_COLUMN_NAME,
		        rc.UPDATE_RULE, rc.DELETE_RULE
		 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		 JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		   ON kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
		   AND kcu.TABLE_SCHEMA = rc.CONSTRAINT_SCHEMA
		 WHERE kcu.TABLE_SCHEMA = ? AND kcu.TABLE_NAME = ?
		   AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		 ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`, dbName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fkMap := make(map[string]*rawFK)
	var order []string
	for rows.Next() {
		var fkName, colName, refTable, refCol, updateRule, deleteRule string
		if err := rows.Scan(&fkName, &colName, &refTable, &refCol, &updateRule, &deleteRule); err != nil {
			return nil, err
		}
		fk, ok := fkMap[fkName]
		if !ok {
			fk = &rawFK{Name: fkName, RefTable: refTable, UpdateRule: updateRule, DeleteRule: deleteRule}
			fkMap[fkName] = fk
			order = append(order, fkName)
		}
		fk.Columns = append(fk.Columns, colName)
		fk.RefColumns = append(fk.RefColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	fks := make([]rawFK, 0, len(order))
	for _, name := range order {
		fks = append(fks, *fkMap[name])
	}
	return fks, nil
}
