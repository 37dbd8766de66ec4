// Package ingest implements the Protobuf Ingester (E): decodes
// newline-delimited serialized protobuf messages against a schema's
// compiled descriptor and bulk-loads them into an execution engine via
// textual batched INSERT statements. Grounded on
// original_source/backend/protobuf_ingester.py's decode/prepare/
// bulk-insert pipeline; the escaping rule in insert.go is preserved
// verbatim from _generate_bulk_insert_sql.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
	"github.com/bobmcallan/bqlite/internal/schema"
)

// Ingester decodes and loads protobuf blobs against registered schemas.
type Ingester struct {
	registry *schema.Registry
	logger   *common.Logger
}

// New constructs an Ingester bound to a schema registry.
func New(registry *schema.Registry, logger *common.Logger) *Ingester {
	return &Ingester{registry: registry, logger: logger}
}

// Ingest implements spec.md §4.6's ingest pipeline end to end.
func (ig *Ingester) Ingest(ctx context.Context, schemaID string, blob []byte, engines map[string]interfaces.ExecutionEngine, targetEngine string, batchSize int, createTableIfMissing bool) (*models.IngestResult, error) {
	eng, ok := engines[targetEngine]
	if !ok {
		return nil, fmt.Errorf("ingest: unknown engine %q", targetEngine)
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	v, err := ig.registry.CurrentVersion(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if v.ProtoSource == "" {
		return nil, fmt.Errorf("ingest: SCHEMA_NOT_INGESTIBLE: %s has no registered proto source", schemaID)
	}

	md, err := schema.CompileMessageDescriptor(ctx, v.ProtoSource)
	if err != nil {
		return nil, fmt.Errorf("ingest: compiling descriptor for %s: %w", schemaID, err)
	}

	roots := schema.RootsOf(v.Fields)
	tableName := schema.TableNameFromSchemaID(schemaID)

	result := &models.IngestResult{SchemaID: schemaID, Engine: targetEngine}

	if createTableIfMissing {
		perEngine, err := ig.registry.CreateTables(ctx, schemaID, map[string]interfaces.ExecutionEngine{targetEngine: eng}, false)
		if err != nil {
			ig.logger.Warn().Str("schema_id", schemaID).Err(err).Msg("create_table_if_missing failed, continuing best-effort")
		} else if perEngine[targetEngine] == nil {
			result.TableCreated = true
		} else {
			ig.logger.Warn().Str("schema_id", schemaID).Err(perEngine[targetEngine]).Msg("create_table_if_missing failed, continuing best-effort")
		}
	}

	records, decodeErrors := decodeMessages(md, blob, roots)
	result.RecordsDecoded = int64(len(records))
	result.RecordsProcessed = int64(len(records))
	result.DecodeErrors = decodeErrors

	if len(records) == 0 {
		result.Status = models.IngestCompleted // empty blob: 0 records, COMPLETED per spec.md §8
		return result, nil
	}

	inserted, batchErrors := insertBatches(ctx, eng, tableName, roots, records, batchSize)
	result.RecordsInserted = inserted
	result.BatchErrors = batchErrors

	switch {
	case inserted == 0:
		result.Status = models.IngestFailed
	case inserted < result.RecordsProcessed:
		result.Status = models.IngestPartial
	default:
		result.Status = models.IngestCompleted
	}
	return result, nil
}

// decodeMessages splits blob on 0x0A, discards empty fragments, and
// decodes each remaining fragment as a dynamicpb message. Per-line decode
// failures are collected into the returned error list and never abort the batch.
func decodeMessages(md protoreflect.MessageDescriptor, blob []byte, roots []models.SchemaField) ([]map[string]any, []string) {
	var records []map[string]any
	var errs []string

	lines := bytes.Split(blob, []byte{0x0A})
	for i, line := range lines {
		lineNum := i + 1
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}

		msg := dynamicpb.NewMessage(md)
		if err := proto.Unmarshal(trimmed, msg); err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", lineNum, err))
			continue
		}

		record := messageToRecord(msg, roots)
		record["_line_number"] = int64(lineNum)
		record["_ingestion_timestamp"] = time.Now().UTC().Format(time.RFC3339)
		records = append(records, record)
	}
	return records, errs
}
