package mysqldialect

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dbferry/dbferry/internal/descriptor"
)

// TransformValue converts one scanned MySQL row value into its PostgreSQL
// write-side equivalent, ported from the teacher's mysqlTransformValue.
// col.TargetType and the mapper Options (Binary16AsUUID etc.) must already
// be resolved for col by IntrospectTable/typemap.Map.
func (a *Adapter) TransformValue(val any, col descriptor.Column) (any, error) {
	if val == nil {
		return nil, nil
	}

	switch {
	case col.TargetType == "uuid" && col.DataType == "binary":
		b, ok := val.([]byte)
		if !ok || len(b) != 16 {
			return nil, fmt.Errorf("expected 16-byte binary uuid payload for %s, got %T", col.SourceName, val)
		}
		return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil

	case col.DataType == "json":
		switch v := val.(type) {
		case []byte:
			return strings.ReplaceAll(string(v), "\x00", ""), nil
		case string:
			return strings.ReplaceAll(v, "\x00", ""), nil
		}
		return val, nil

	case col.TargetType == "boolean" && col.DataType == "tinyint":
		switch v := val.(type) {
		case int64:
			return v != 0, nil
		case []byte:
			return string(v) == "1", nil
		case bool:
			return v, nil
		}
		return nil, fmt.Errorf("cannot coerce tinyint(1) value of type %T to boolean", val)

	case col.DataType == "set" && col.TargetType == "text[]":
		var raw string
		switch v := val.(type) {
		case []byte:
			raw = string(v)
		case string:
			raw = v
		default:
			return nil, fmt.Errorf("cannot coerce set value of type %T to text[]", val)
		}
		raw = strings.ReplaceAll(raw, "\x00", "")
		if raw == "" {
			return []string{}, nil
		}
		return strings.Split(raw, ","), nil

	case col.DataType == "year":
		switch v := val.(type) {
		case int64:
			return v, nil
		case []byte:
			return strconv.ParseInt(string(v), 10, 64)
		case string:
			return strconv.ParseInt(v, 10, 64)
		}
		return nil, fmt.Errorf("cannot coerce year value of type %T to integer", val)

	case col.DataType == "date", col.DataType == "timestamp", col.DataType == "datetime":
		if t, ok := val.(time.Time); ok && t.IsZero() {
			// MySQL's 0000-00-00 sentinel has no PostgreSQL representation.
			return nil, nil
		}
		return val, nil

	case col.DataType == "varchar" || col.DataType == "char" || col.DataType == "text" ||
		col.DataType == "mediumtext" || col.DataType == "longtext" || col.DataType == "tinytext" ||
		col.DataType == "enum":
		switch v := val.(type) {
		case []byte:
			return strings.ReplaceAll(string(v), "\x00", ""), nil
		case string:
			return strings.ReplaceAll(v, "\x00", ""), nil
		}
		return val, nil

	default:
		return val, nil
	}
}
