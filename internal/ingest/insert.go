package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
)

// insertBatches inserts records in batches of batchSize, each batch as one
// statement. Batch failures are recorded per-batch; other batches
// continue — spec.md §4.6 step 6.
func insertBatches(ctx context.Context, eng interfaces.ExecutionEngine, tableName string, roots []models.SchemaField, records []map[string]any, batchSize int) (int64, []string) {
	colNames := make([]string, 0, len(roots)+2)
	for _, f := range roots {
		colNames = append(colNames, f.Name)
	}
	colNames = append(colNames, "_line_number", "_ingestion_timestamp")

	var inserted int64
	var errs []string
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		sql := buildInsertSQL(tableName, colNames, batch)
		n, err := eng.BulkInsert(ctx, sql)
		if err != nil {
			errs = append(errs, fmt.Sprintf("batch %d: %v", start/batchSize+1, err))
			continue
		}
		inserted += n
	}
	return inserted, errs
}

// buildInsertSQL renders one textual batched INSERT statement. The
// escaping rule (single-quote doubling, NULL literal, TRUE/FALSE literal)
// is preserved verbatim from
// original_source/backend/protobuf_ingester.py's
// _generate_bulk_insert_sql — a deliberate hazard (no driver-level
// parameter binding) called out in SPEC_FULL.md §9.
func buildInsertSQL(tableName string, colNames []string, batch []map[string]any) string {
	tuples := make([]string, 0, len(batch))
	for _, rec := range batch {
		vals := make([]string, 0, len(colNames))
		for _, col := range colNames {
			vals = append(vals, literal(rec[col]))
		}
		tuples = append(tuples, "("+strings.Join(vals, ", ")+")")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", tableName, strings.Join(colNames, ", "), strings.Join(tuples, ", "))
}

// literal renders one Go value as a textual SQL literal.
func literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return fmt.Sprintf("%d", val)
	case int:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%v", val)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", val), "'", "''") + "'"
	}
}
