package mysqldialect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbferry/dbferry/internal/descriptor"
	"github.com/dbferry/dbferry/internal/dialect"
	"github.com/dbferry/dbferry/internal/typemap"
)

// IntrospectTable reads full column/index/FK metadata for one table and
// resolves each column's target type via typemap.Map, matching the
// teacher's introspectMySQLSchema loop (source_mysql.go) but populating
// descriptor.Table instead of the flat teacher Schema/Table/Column model.
func (a *Adapter) IntrospectTable(ctx context.Context, db *sql.DB, schemaName, tableName string) (descriptor.Table, error) {
	table := descriptor.Table{
		SourceSchema: schemaName,
		SourceName:   tableName,
		TargetName:   dialect.ToSnakeCase(tableName),
	}

	rawCols, err := introspectColumns(ctx, db, schemaName, tableName)
	if err != nil {
		return table, fmt.Errorf("introspect columns for %s: %w", tableName, err)
	}

	pkCols := make(map[string]bool)
	rawIdx, err := introspectIndexes(ctx, db, schemaName, tableName)
	if err != nil {
		return table, fmt.Errorf("introspect indexes for %s: %w", tableName, err)
	}
	for _, idx := range rawIdx {
		if idx.IsPrimary {
			for _, c := range idx.Columns {
				pkCols[c] = true
			}
		}
	}

	for _, rc := range rawCols {
		if isGeneratedColumn(rc.Extra) {
			// Generated columns are recomputed by the source engine, not
			// copied; the orchestrator surfaces GeneratedColumns as a
			// plan-phase warning.
			a.noteGeneratedColumn(tableName, rc.Name)
			continue
		}

		col := descriptor.Column{
			SourceName:               rc.Name,
			TargetName:               dialect.ToSnakeCase(rc.Name),
			DataType:                 rc.DataType,
			ColumnType:               rc.ColumnType,
			CharMaxLen:               rc.CharMaxLen,
			Precision:                rc.Precision,
			Scale:                    rc.Scale,
			Nullable:                 rc.Nullable,
			OrdinalPos:               rc.OrdinalPos,
			IsIdentity:               isAutoIncrement(rc.Extra) && pkCols[rc.Name],
			OnUpdateCurrentTimestamp: isOnUpdateCurrentTimestamp(rc.Extra),
			Charset:                  rc.Charset,
			Collation:                rc.Collation,
		}
		if rc.Default != nil {
			col.Default = &descriptor.Default{Raw: *rc.Default}
		}

		res, err := typemap.Map(typemap.SourceColumn{
			DataType:   col.DataType,
			ColumnType: col.ColumnType,
			CharMaxLen: col.CharMaxLen,
			Precision:  col.Precision,
			Scale:      col.Scale,
			IsIdentity: col.IsIdentity,
		}, a.TypeOptions)
		if err != nil {
			return table, fmt.Errorf("map type for %s.%s: %w", tableName, rc.Name, err)
		}
		col.TargetType = res.TargetType

		table.Columns = append(table.Columns, col)
	}

	for _, idx := range rawIdx {
		converted := descriptor.Index{
			SourceName:    idx.Name,
			TargetName:    dialect.ToSnakeCase(idx.Name),
			Unique:        idx.Unique,
			IsPrimary:     idx.IsPrimary,
			Type:          idx.Type,
			HasPrefix:     idx.HasPrefix,
			HasExpression: idx.HasExpression,
		}
		for _, c := range idx.Columns {
			converted.Columns = append(converted.Columns, dialect.ToSnakeCase(c))
		}
		converted.ColumnOrders = idx.ColumnOrders

		if idx.IsPrimary {
			pk := converted
			table.PrimaryKey = &pk
			continue
		}
		table.Indexes = append(table.Indexes, converted)
	}

	rawFKs, err := introspectForeignKeys(ctx, db, schemaName, tableName)
	if err != nil {
		return table, fmt.Errorf("introspect foreign keys for %s: %w", tableName, err)
	}
	for _, fk := range rawFKs {
		converted := descriptor.ForeignKey{
			SourceName: fk.Name,
			TargetName: dialect.ToSnakeCase(fk.Name),
			RefTable:   dialect.ToSnakeCase(fk.RefTable),
			OnUpdate:   fk.UpdateRule,
			OnDelete:   fk.DeleteRule,
		}
		for _, c := range fk.Columns {
			converted.Columns = append(converted.Columns, dialect.ToSnakeCase(c))
		}
		for _, c := range fk.RefColumns {
			converted.RefColumns = append(converted.RefColumns, dialect.ToSnakeCase(c))
		}
		table.ForeignKeys = append(table.ForeignKeys, converted)
	}

	return table, nil
}

// SourceObjects lists views, routines and triggers that migrate manually
// (schema-only warning, no automatic DDL translation), ported from the
// teacher's introspectMySQLSourceObjects / source_objects.go.
type SourceObjects struct {
	Views    []string
	Routines []string
	Triggers []string
}

func (a *Adapter) IntrospectSourceObjects(ctx context.Context, db *sql.DB, schemaName string) (SourceObjects, error) {
	var objs SourceObjects

	if err := collectStrings(ctx, db, `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.VIEWS
		WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`, schemaName, &objs.Views); err != nil {
		return objs, fmt.Errorf("introspect views: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT ROUTINE_TYPE, ROUTINE_NAME FROM INFORMATION_SCHEMA.ROUTINES
		WHERE ROUTINE_SCHEMA = ? ORDER BY ROUTINE_TYPE, ROUTINE_NAME`, schemaName)
	if err != nil {
		return objs, fmt.Errorf("introspect routines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			return objs, fmt.Errorf("scan routines: %w", err)
		}
		objs.Routines = append(objs.Routines, kind+" "+name)
	}
	if err := rows.Err(); err != nil {
		return objs, fmt.Errorf("iterate routines: %w", err)
	}

	if err := collectStrings(ctx, db, `
		SELECT TRIGGER_NAME FROM INFORMATION_SCHEMA.TRIGGERS
		WHERE TRIGGER_SCHEMA = ? ORDER BY TRIGGER_NAME`, schemaName, &objs.Triggers); err != nil {
		return objs, fmt.Errorf("introspect triggers: %w", err)
	}

	return objs, nil
}

// SourceObjectsWarnings renders one plan-phase warning per view, routine
// and trigger in objs: none of these get automatic DDL translation, so
// each is flagged for manual migration.
func SourceObjectsWarnings(objs SourceObjects) []string {
	var warnings []string
	for _, v := range objs.Views {
		warnings = append(warnings, fmt.Sprintf("view %q has no automatic translation; recreate it manually against the target schema", v))
	}
	for _, r := range objs.Routines {
		warnings = append(warnings, fmt.Sprintf("routine %s has no automatic translation; recreate it manually against the target schema", r))
	}
	for _, tr := range objs.Triggers {
		warnings = append(warnings, fmt.Sprintf("trigger %q has no automatic translation; recreate it manually against the target schema", tr))
	}
	return warnings
}

func collectStrings(ctx context.Context, db *sql.DB, query, param string, out *[]string) error {
	rows, err := db.QueryContext(ctx, query, param)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return err
		}
		*out = append(*out, v)
	}
	return rows.Err()
}
