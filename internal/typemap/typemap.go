// Package typemap implements the TypeMapper: a total function from a MySQL
// column descriptor to a logical Kind and a PostgreSQL target type token.
// It is grounded on the teacher's source_mysql.go mapMySQLType/transform.go
// switches, generalized to the logical-kind table in the specification
// instead of returning a bare target-type string.
package typemap

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is one of the logical column kinds the mapper recognizes.
type Kind string

const (
	KindInt8         Kind = "INT8"
	KindInt16        Kind = "INT16"
	KindInt32        Kind = "INT32"
	KindInt64        Kind = "INT64"
	KindDecimal      Kind = "DECIMAL"
	KindFloat32      Kind = "FLOAT32"
	KindFloat64      Kind = "FLOAT64"
	KindBool         Kind = "BOOL"
	KindChar         Kind = "CHAR"
	KindVarchar      Kind = "VARCHAR"
	KindText         Kind = "TEXT"
	KindBytes        Kind = "BYTES"
	KindDate         Kind = "DATE"
	KindTime         Kind = "TIME"
	KindDatetime     Kind = "DATETIME"
	KindTimestampTZ  Kind = "TIMESTAMP_TZ"
	KindJSON         Kind = "JSON"
	KindEnum         Kind = "ENUM"
	KindSet          Kind = "SET" // MySQL SET, not in the spec table proper but needed for full coverage
	KindUUID         Kind = "UUID"
	KindIdentity     Kind = "IDENTITY"
	KindUnknown      Kind = "UNKNOWN"
)

// SourceColumn is the subset of a raw MySQL column descriptor the mapper
// needs. It intentionally does not depend on descriptor.Column so the
// mapper stays a pure, dependency-free function.
type SourceColumn struct {
	DataType   string // lowercased base type, e.g. "int", "varchar", "enum"
	ColumnType string // full column type text, e.g. "int(11) unsigned"
	CharMaxLen int64
	Precision  int64
	Scale      int64
	IsIdentity bool
}

// OverrideKey selects a user-supplied override, consulted before the
// built-in defaults, keyed by the source engine's base type and an
// optional modifier (a length/precision token as it appears in
// column_type, e.g. "1" for tinyint(1)).
type OverrideKey struct {
	SourceType     string
	SourceModifier string
}

// Options configures mapper behavior that isn't purely a function of the
// column (enum/json rendering, type overrides, etc).
type Options struct {
	Overrides             map[OverrideKey]string
	TinyInt1AsBoolean     bool
	Binary16AsUUID        bool
	DatetimeAsTimestampTZ bool
	JSONAsJSONB           bool
	EnumMode              string // "text" (varchar) | "native"
	UnknownAsText         bool
}

// DefaultOptions mirrors the teacher's defaultTypeMappingConfig: lossless
// choices everywhere a lossy one would need explicit opt-in.
func DefaultOptions() Options {
	return Options{
		Overrides: map[OverrideKey]string{},
		EnumMode:  "text",
	}
}

// Result is what Map returns: the logical kind, the concrete PostgreSQL
// target type token, and (for ENUM and SET) the allowed values.
// SchemaTranslator does not render EnumValues as a CHECK constraint, so an
// ENUM column in "text" mode becomes a plain VARCHAR with no value check.
type Result struct {
	Kind       Kind
	TargetType string
	EnumValues []string
}

func isUnsigned(columnType string) bool {
	return strings.Contains(columnType, "unsigned")
}

func modifier(columnType string) string {
	open := strings.IndexByte(columnType, '(')
	close := strings.LastIndexByte(columnType, ')')
	if open < 0 || close <= open {
		return ""
	}
	return strings.TrimSpace(columnType[open+1 : close])
}

// Map is the total function (source engine is implicitly MySQL; the module
// has no other source dialect) from column + options to a Result. Returns
// KindUnknown with an error when no mapping exists and UnknownAsText is
// false, matching the specification's UNMAPPED-is-fatal rule.
func Map(col SourceColumn, opts Options) (Result, error) {
	if opts.Overrides != nil {
		key := OverrideKey{SourceType: col.DataType, SourceModifier: modifier(col.ColumnType)}
		if target, ok := opts.Overrides[key]; ok {
			return Result{Kind: classifyOverride(target), TargetType: target}, nil
		}
	}

	if col.IsIdentity {
		return Result{Kind: KindIdentity, TargetType: identityTargetType(col)}, nil
	}

	unsigned := isUnsigned(col.ColumnType)

	switch col.DataType {
	case "binary":
		if col.Precision == 16 && opts.Binary16AsUUID {
			return Result{Kind: KindUUID, TargetType: "uuid"}, nil
		}
		return Result{Kind: KindBytes, TargetType: "bytea"}, nil

	case "tinyint":
		if col.Precision == 1 && opts.TinyInt1AsBoolean {
			return Result{Kind: KindBool, TargetType: "boolean"}, nil
		}
		return Result{Kind: KindInt8, TargetType: "smallint"}, nil

	case "bit":
		if col.Precision == 1 {
			return Result{Kind: KindBool, TargetType: "boolean"}, nil
		}
		return Result{Kind: KindBytes, TargetType: "bytea"}, nil

	case "smallint":
		if unsigned {
			return Result{Kind: KindInt32, TargetType: "integer"}, nil
		}
		return Result{Kind: KindInt16, TargetType: "smallint"}, nil

	case "mediumint":
		return Result{Kind: KindInt32, TargetType: "integer"}, nil

	case "int", "integer":
		if unsigned {
			return Result{Kind: KindInt64, TargetType: "bigint"}, nil
		}
		return Result{Kind: KindInt32, TargetType: "integer"}, nil

	case "bigint":
		if unsigned {
			return Result{Kind: KindInt64, TargetType: "numeric(20)"}, nil
		}
		return Result{Kind: KindInt64, TargetType: "bigint"}, nil

	case "decimal", "numeric":
		return Result{Kind: KindDecimal, TargetType: fmt.Sprintf("numeric(%d,%d)", col.Precision, col.Scale)}, nil

	case "float":
		return Result{Kind: KindFloat32, TargetType: "real"}, nil

	case "double":
		return Result{Kind: KindFloat64, TargetType: "double precision"}, nil

	case "char":
		return Result{Kind: KindChar, TargetType: fmt.Sprintf("char(%d)", col.CharMaxLen)}, nil

	case "varchar":
		return Result{Kind: KindVarchar, TargetType: fmt.Sprintf("varchar(%d)", col.CharMaxLen)}, nil

	case "text", "tinytext", "mediumtext", "longtext":
		return Result{Kind: KindText, TargetType: "text"}, nil

	case "blob", "tinyblob", "mediumblob", "longblob", "varbinary":
		return Result{Kind: KindBytes, TargetType: "bytea"}, nil

	case "date":
		return Result{Kind: KindDate, TargetType: "date"}, nil

	case "time":
		return Result{Kind: KindTime, TargetType: "time"}, nil

	case "datetime":
		if opts.DatetimeAsTimestampTZ {
			return Result{Kind: KindTimestampTZ, TargetType: "timestamptz"}, nil
		}
		return Result{Kind: KindDatetime, TargetType: "timestamp"}, nil

	case "timestamp":
		return Result{Kind: KindTimestampTZ, TargetType: "timestamptz"}, nil

	case "year":
		return Result{Kind: KindInt32, TargetType: "integer"}, nil

	case "json":
		if opts.JSONAsJSONB {
			return Result{Kind: KindJSON, TargetType: "jsonb"}, nil
		}
		return Result{Kind: KindJSON, TargetType: "json"}, nil

	case "enum":
		values, err := parseEnumSetValues(col.ColumnType)
		if err != nil {
			return Result{}, err
		}
		switch opts.EnumMode {
		case "text", "":
			return Result{Kind: KindEnum, TargetType: fmt.Sprintf("varchar(%d)", maxLen(values)), EnumValues: values}, nil
		case "native":
			return Result{Kind: KindEnum, TargetType: "", EnumValues: values}, nil
		default:
			return Result{}, fmt.Errorf("unsupported enum_mode %q", opts.EnumMode)
		}

	case "set":
		values, err := parseEnumSetValues(col.ColumnType)
		if err != nil {
			return Result{}, err
		}
		return Result{Kind: KindSet, TargetType: "text[]", EnumValues: values}, nil

	default:
		if opts.UnknownAsText {
			return Result{Kind: KindText, TargetType: "text"}, nil
		}
		return Result{Kind: KindUnknown}, fmt.Errorf("unmapped MySQL type %q (column_type=%q)", col.DataType, col.ColumnType)
	}
}

func identityTargetType(col SourceColumn) string {
	if col.DataType == "bigint" {
		return "bigint"
	}
	return "integer"
}

// classifyOverride makes a best-effort guess at the Kind of a raw override
// target token, purely for diagnostics; the token itself is authoritative.
func classifyOverride(target string) Kind {
	t := strings.ToLower(strings.TrimSpace(target))
	switch {
	case strings.HasPrefix(t, "varchar"), strings.HasPrefix(t, "char"):
		return KindVarchar
	case t == "text":
		return KindText
	case t == "boolean":
		return KindBool
	default:
		return KindUnknown
	}
}

func maxLen(values []string) int {
	max := 1
	for _, v := range values {
		if len(v) > max {
			max = len(v)
		}
	}
	return max
}

func parseEnumSetValues(columnType string) ([]string, error) {
	open := strings.IndexByte(columnType, '(')
	close := strings.LastIndexByte(columnType, ')')
	if open < 0 || close <= open {
		return nil, fmt.Errorf("invalid enum/set column_type %q", columnType)
	}
	inside := columnType[open+1 : close]

	var values []string
	i := 0
	for i < len(inside) {
		for i < len(inside) && (inside[i] == ' ' || inside[i] == ',') {
			i++
		}
		if i >= len(inside) {
			break
		}
		if inside[i] != '\'' {
			return nil, fmt.Errorf("invalid enum/set value list in %q", columnType)
		}
		i++

		var b strings.Builder
		for i < len(inside) {
			c := inside[i]
			if c == '\\' && i+1 < len(inside) {
				b.WriteByte(inside[i+1])
				i += 2
				continue
			}
			if c == '\'' {
				if i+1 < len(inside) && inside[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				i++
				break
			}
			b.WriteByte(c)
			i++
		}
		values = append(values, b.String())
	}
	return values, nil
}

// RewriteDefault translates a raw MySQL DEFAULT expression into a
// PostgreSQL-compatible default expression for the given target type.
// literal string/number defaults pass through re-quoted for the target;
// engine-function defaults are rewritten via a small table.
func RewriteDefault(raw string, isExpr bool, targetType string) (string, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false, nil
	}
	lower := strings.ToLower(trimmed)

	if strings.EqualFold(trimmed, "null") {
		return "", false, nil
	}

	// 0000-00-00-style zero dates: translate to NULL + warn, never epoch.
	if isZeroDateTime(trimmed) {
		return "", true, nil
	}

	switch lower {
	case "current_timestamp", "current_timestamp()", "now()", "localtimestamp", "localtimestamp()":
		return "CURRENT_TIMESTAMP", false, nil
	}
	if strings.HasPrefix(lower, "current_timestamp(") && strings.HasSuffix(lower, ")") {
		return strings.ToUpper(trimmed), false, nil
	}

	unquoted := unquoteMySQLDefault(trimmed)

	switch {
	case targetType == "boolean":
		switch unquoted {
		case "0":
			return "FALSE", false, nil
		case "1":
			return "TRUE", false, nil
		default:
			return "", false, fmt.Errorf("unsupported boolean default %q", raw)
		}
	case isNumericTargetType(targetType):
		d, err := decimal.NewFromString(unquoted)
		if err != nil {
			return "", false, fmt.Errorf("unsupported numeric default %q: %w", raw, err)
		}
		return d.String(), false, nil
	default:
		return quotePGLiteral(unquoted), false, nil
	}
}

func isZeroDateTime(v string) bool {
	unquoted := unquoteMySQLDefault(v)
	return strings.HasPrefix(unquoted, "0000-00-00")
}

func unquoteMySQLDefault(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	return v
}

func quotePGLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func isNumericTargetType(t string) bool {
	switch {
	case strings.HasPrefix(t, "numeric"), strings.HasPrefix(t, "decimal"),
		t == "integer", t == "bigint", t == "smallint", t == "real", t == "double precision":
		return true
	default:
		return false
	}
}
