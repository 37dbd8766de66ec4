package schema

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/bqlite/internal/models"
)

// nativeType maps spec.md §4.5's authoritative BigQuery-tag table onto the
// token the in-memory columnar engine stores verbatim as a column type.
// Both engine adapters share the same columnar store, so one mapping
// serves every registered engine name — there is no per-engine dialect
// split the way original_source's duckdb_runner/clickhouse_runner have,
// because both of those collapse onto the same columnar core here.
func nativeType(f models.SchemaField) string {
	switch f.Type {
	case models.TypeString, models.TypeTimestamp:
		return "STRING"
	case models.TypeInteger:
		return "INT64"
	case models.TypeFloat:
		return "FLOAT64"
	case models.TypeBoolean:
		return "BOOLEAN"
	case models.TypeRecord:
		return "STRING" // JSON-encoded, per §4.5's "else JSON string" fallback
	default:
		return "STRING"
	}
}

// Translate emits the CREATE TABLE DDL for tableName covering every
// top-level field, plus an optional flattened view statement. The view
// statement is empty when the schema has no RECORD fields to flatten —
// "left as a no-op" per spec.md §4.5.
func Translate(tableName string, fields []models.SchemaField) (ddl string, flattenedViewSQL string, err error) {
	if len(fields) == 0 {
		return "", "", fmt.Errorf("schema: cannot translate a schema with no fields")
	}

	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		colType := nativeType(f)
		if f.Mode == models.ModeRepeated {
			colType = "STRING" // array-as-JSON-string fallback, per §4.5
		}
		def := fmt.Sprintf("%s %s", f.Name, colType)
		if f.Mode == models.ModeRequired {
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}
	ddl = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, strings.Join(cols, ", "))

	leaves := leafPaths(fields, "")
	hasNested := false
	for _, f := range fields {
		if f.Type == models.TypeRecord {
			hasNested = true
			break
		}
	}
	if !hasNested {
		return ddl, "", nil
	}

	projections := make([]string, 0, len(leaves))
	for _, p := range leaves {
		alias := strings.ReplaceAll(p, ".", "_")
		projections = append(projections, fmt.Sprintf("%s AS %s", p, alias))
	}
	flattenedViewSQL = fmt.Sprintf("CREATE VIEW %s_flattened AS SELECT %s FROM %s", tableName, strings.Join(projections, ", "), tableName)
	return ddl, flattenedViewSQL, nil
}

// leafPaths walks the field tree and returns the dot-joined path of every
// leaf (non-RECORD) field, in declaration order.
func leafPaths(fields []models.SchemaField, prefix string) []string {
	var out []string
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		if f.Type == models.TypeRecord && len(f.Fields) > 0 {
			out = append(out, leafPaths(f.Fields, path)...)
			continue
		}
		out = append(out, path)
	}
	return out
}
