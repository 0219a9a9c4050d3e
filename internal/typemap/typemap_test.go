package typemap

import "testing"

func TestMap(t *testing.T) {
	tests := []struct {
		name string
		col  SourceColumn
		opts Options
		want string
		kind Kind
		err  bool
	}{
		{"tinyint→smallint default", SourceColumn{DataType: "tinyint", ColumnType: "tinyint(3)", Precision: 3}, DefaultOptions(), "smallint", KindInt8, false},
		{"tinyint1→smallint default", SourceColumn{DataType: "tinyint", ColumnType: "tinyint(1)", Precision: 1}, DefaultOptions(), "smallint", KindInt8, false},
		{"tinyint1→bool opt-in", SourceColumn{DataType: "tinyint", ColumnType: "tinyint(1)", Precision: 1}, Options{TinyInt1AsBoolean: true}, "boolean", KindBool, false},
		{"smallint unsigned→integer", SourceColumn{DataType: "smallint", ColumnType: "smallint unsigned"}, DefaultOptions(), "integer", KindInt32, false},
		{"int unsigned→bigint", SourceColumn{DataType: "int", ColumnType: "int unsigned"}, DefaultOptions(), "bigint", KindInt64, false},
		{"bigint unsigned→numeric20", SourceColumn{DataType: "bigint", ColumnType: "bigint unsigned"}, DefaultOptions(), "numeric(20)", KindInt64, false},
		{"mediumint→integer", SourceColumn{DataType: "mediumint", ColumnType: "mediumint"}, DefaultOptions(), "integer", KindInt32, false},
		{"bigint", SourceColumn{DataType: "bigint", ColumnType: "bigint"}, DefaultOptions(), "bigint", KindInt64, false},
		{"float→real", SourceColumn{DataType: "float", ColumnType: "float"}, DefaultOptions(), "real", KindFloat32, false},
		{"double→double precision", SourceColumn{DataType: "double", ColumnType: "double"}, DefaultOptions(), "double precision", KindFloat64, false},
		{"decimal", SourceColumn{DataType: "decimal", ColumnType: "decimal(10,7)", Precision: 10, Scale: 7}, DefaultOptions(), "numeric(10,7)", KindDecimal, false},
		{"varchar", SourceColumn{DataType: "varchar", ColumnType: "varchar(200)", CharMaxLen: 200}, DefaultOptions(), "varchar(200)", KindVarchar, false},
		{"char", SourceColumn{DataType: "char", ColumnType: "char(64)", CharMaxLen: 64}, DefaultOptions(), "char(64)", KindChar, false},
		{"text", SourceColumn{DataType: "text", ColumnType: "text"}, DefaultOptions(), "text", KindText, false},
		{"json→json default", SourceColumn{DataType: "json", ColumnType: "json"}, DefaultOptions(), "json", KindJSON, false},
		{"json→jsonb opt-in", SourceColumn{DataType: "json", ColumnType: "json"}, Options{JSONAsJSONB: true}, "jsonb", KindJSON, false},
		{"timestamp→timestamptz", SourceColumn{DataType: "timestamp", ColumnType: "timestamp"}, DefaultOptions(), "timestamptz", KindTimestampTZ, false},
		{"datetime→timestamp default", SourceColumn{DataType: "datetime", ColumnType: "datetime"}, DefaultOptions(), "timestamp", KindDatetime, false},
		{"datetime→timestamptz opt-in", SourceColumn{DataType: "datetime", ColumnType: "datetime"}, Options{DatetimeAsTimestampTZ: true}, "timestamptz", KindTimestampTZ, false},
		{"date", SourceColumn{DataType: "date", ColumnType: "date"}, DefaultOptions(), "date", KindDate, false},
		{"binary16 default", SourceColumn{DataType: "binary", ColumnType: "binary(16)", Precision: 16}, DefaultOptions(), "bytea", KindBytes, false},
		{"binary16→uuid opt-in", SourceColumn{DataType: "binary", ColumnType: "binary(16)", Precision: 16}, Options{Binary16AsUUID: true}, "uuid", KindUUID, false},
		{"varbinary→bytea", SourceColumn{DataType: "varbinary", ColumnType: "varbinary(32)"}, DefaultOptions(), "bytea", KindBytes, false},
		{"enum→varchar+values", SourceColumn{DataType: "enum", ColumnType: "enum('a','bb','ccc')"}, DefaultOptions(), "varchar(3)", KindEnum, false},
		{"set→text[]", SourceColumn{DataType: "set", ColumnType: "set('x','y')"}, DefaultOptions(), "text[]", KindSet, false},
		{"identity int", SourceColumn{DataType: "int", ColumnType: "int(11)", IsIdentity: true}, DefaultOptions(), "integer", KindIdentity, false},
		{"identity bigint", SourceColumn{DataType: "bigint", ColumnType: "bigint(20)", IsIdentity: true}, DefaultOptions(), "bigint", KindIdentity, false},
		{"unmapped→error", SourceColumn{DataType: "geometry", ColumnType: "geometry"}, DefaultOptions(), "", KindUnknown, true},
		{"unmapped→text opt-in", SourceColumn{DataType: "geometry", ColumnType: "geometry"}, Options{UnknownAsText: true}, "text", KindText, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Map(tt.col, tt.opts)
			if tt.err {
				if err == nil {
					t.Fatalf("Map(%+v) expected error", tt.col)
				}
				return
			}
			if err != nil {
				t.Fatalf("Map(%+v) unexpected error: %v", tt.col, err)
			}
			if got.TargetType != tt.want {
				t.Errorf("Map(%+v).TargetType = %q, want %q", tt.col, got.TargetType, tt.want)
			}
			if got.Kind != tt.kind {
				t.Errorf("Map(%+v).Kind = %q, want %q", tt.col, got.Kind, tt.kind)
			}
		})
	}
}

func TestMapOverride(t *testing.T) {
	opts := DefaultOptions()
	opts.Overrides[OverrideKey{SourceType: "enum", SourceModifier: "'a','b','c'"}] = "varchar(32)"

	got, err := Map(SourceColumn{DataType: "enum", ColumnType: "enum('a','b','c')"}, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TargetType != "varchar(32)" {
		t.Errorf("TargetType = %q, want varchar(32)", got.TargetType)
	}
}

func TestRewriteDefault(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		targetType string
		want       string
		warn       bool
		err        bool
	}{
		{"current_timestamp", "CURRENT_TIMESTAMP", "timestamp", "CURRENT_TIMESTAMP", false, false},
		{"now()", "now()", "timestamptz", "CURRENT_TIMESTAMP", false, false},
		{"null literal", "NULL", "text", "", false, false},
		{"zero date", "'0000-00-00 00:00:00'", "timestamp", "", true, false},
		{"boolean 0", "0", "boolean", "FALSE", false, false},
		{"boolean 1", "1", "boolean", "TRUE", false, false},
		{"numeric default", "42", "integer", "42", false, false},
		{"decimal default", "19.99", "numeric(10,2)", "19.99", false, false},
		{"string default", "'hello'", "varchar(10)", "'hello'", false, false},
		{"quote-escaped string", "'it''s'", "text", "'it''s'", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warn, err := RewriteDefault(tt.raw, false, tt.targetType)
			if tt.err {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RewriteDefault(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if warn != tt.warn {
				t.Errorf("RewriteDefault(%q) warn = %v, want %v", tt.raw, warn, tt.warn)
			}
		})
	}
}
