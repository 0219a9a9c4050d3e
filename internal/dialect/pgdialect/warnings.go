package pgdialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dbferry/dbferry/internal/descriptor"
)

// CollationWarnings reports charset/collation information lost in
// translation: PostgreSQL text comparisons are byte-order case-sensitive by
// default, so a MySQL _ci collation (especially one backing a unique index)
// changes uniqueness semantics unless collationMap supplies an ICU mapping.
// Ported from the teacher's collectCollationWarnings.
func CollationWarnings(tables []descriptor.Table, collationMap map[string]string) []string {
	charsets := map[string]bool{}
	collations := map[string]bool{}
	ciCounts := map[string]int{}
	ciUniqueRefs := map[string][]string{}

	for _, t := range tables {
		uniqueCols := map[string]bool{}
		if t.PrimaryKey != nil {
			for _, c := range t.PrimaryKey.Columns {
				uniqueCols[c] = true
			}
		}
		for _, idx := range t.Indexes {
			if idx.Unique {
				for _, c := range idx.Columns {
					uniqueCols[c] = true
				}
			}
		}

		for _, col := range t.Columns {
			if col.Charset != "" {
				charsets[col.Charset] = true
			}
			if col.Collation == "" {
				continue
			}
			collations[col.Collation] = true
			if strings.HasSuffix(strings.ToLower(col.Collation), "_ci") {
				ciCounts[col.Collation]++
				if uniqueCols[col.TargetName] {
					if _, mapped := collationMap[col.Collation]; !mapped {
						ciUniqueRefs[col.Collation] = append(ciUniqueRefs[col.Collation],
							fmt.Sprintf("%s.%s", t.TargetName, col.TargetName))
					}
				}
			}
		}
	}

	var warnings []string
	if len(charsets) > 0 {
		warnings = append(warnings, fmt.Sprintf("source charsets found: %s", strings.Join(sortedKeys(charsets), ", ")))
	}
	if len(collations) > 0 {
		warnings = append(warnings, fmt.Sprintf("source collations found: %s", strings.Join(sortedKeys(collations), ", ")))
	}
	for _, coll := range sortedKeysInt(ciCounts) {
		if _, mapped := collationMap[coll]; mapped {
			continue
		}
		warnings = append(warnings, fmt.Sprintf(
			"%d column(s) use %s (case-insensitive); PostgreSQL text comparisons are case-sensitive by default",
			ciCounts[coll], coll))
	}
	for _, coll := range sortedKeysSlice(ciUniqueRefs) {
		warnings = append(warnings, fmt.Sprintf(
			"unique index/PK on %s column(s) with %s — uniqueness semantics may differ: %s",
			coll, coll, strings.Join(ciUniqueRefs[coll], ", ")))
	}
	return warnings
}

// CollationClause returns a COLLATE clause for col under collation_mode=auto,
// or "" when none should be emitted. Ported from pgCollationClause.
func CollationClause(col descriptor.Column, collationMode string, collationMap map[string]string) string {
	if collationMode != "auto" || col.Collation == "" {
		return ""
	}
	if mapped, ok := collationMap[col.Collation]; ok {
		return fmt.Sprintf(`COLLATE "%s"`, mapped)
	}
	if strings.HasSuffix(strings.ToLower(col.Collation), "_bin") {
		return `COLLATE "C"`
	}
	return ""
}

// IndexCompatibilityWarnings flags index shapes MySQL supports that
// PostgreSQL's plain btree CREATE INDEX can't reproduce directly: prefix
// (SUB_PART) indexes, expression key-parts, and non-BTREE index types.
// Ported from index_compat.go.
func IndexCompatibilityWarnings(tables []descriptor.Table) []string {
	var warnings []string
	for _, t := range tables {
		for _, idx := range t.Indexes {
			if reason, unsupported := indexUnsupportedReason(idx); unsupported {
				warnings = append(warnings, fmt.Sprintf("%s.%s: %s", t.TargetName, idx.TargetName, reason))
			}
		}
	}
	return warnings
}

func indexUnsupportedReason(idx descriptor.Index) (string, bool) {
	if idx.HasExpression {
		return "expression index key-parts are not currently supported", true
	}
	if idx.HasPrefix {
		return "prefix indexes (SUB_PART) are not currently supported", true
	}
	if idx.Type != "" && idx.Type != "BTREE" {
		return fmt.Sprintf("index type %q is not supported", idx.Type), true
	}
	if len(idx.Columns) == 0 {
		return "index has no plain column key-parts", true
	}
	return "", false
}

// GeneratedColumnWarnings notes which columns were dropped from the target
// schema because they were computed columns whose generation expression
// this engine does not translate. Ported from generated_columns.go.
func GeneratedColumnWarnings(tables []descriptor.Table, dropped map[string][]string) []string {
	var warnings []string
	for _, t := range tables {
		for _, col := range dropped[t.SourceName] {
			warnings = append(warnings, fmt.Sprintf(
				"generated column %s.%s is not migrated; generation expression is not recreated", t.TargetName, col))
		}
	}
	return warnings
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysInt(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysSlice(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
