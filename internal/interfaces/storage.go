package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/bqlite/internal/models"
)

// HistoryStore is the durable append-only record of terminal jobs (B).
// Writers serialize on it; readers see unsynchronized snapshots —
// matching spec.md §5's "history store is append-only, writers
// serialize on it".
type HistoryStore interface {
	// Append writes one terminal job. Append must never be called twice
	// for the same JobID (the scheduler enforces this).
	Append(ctx context.Context, rec *models.HistoryRecord) error

	// Get looks up one history record by job id.
	Get(ctx context.Context, jobID string) (*models.HistoryRecord, error)

	// List returns history records matching opts, most recent first.
	List(ctx context.Context, opts QueryOptions) ([]*models.HistoryRecord, error)

	// Reconcile marks any record left in a non-terminal bookkeeping
	// state by a prior crash as FAILED (see SPEC_FULL.md §10). Returns
	// the count of records reconciled.
	Reconcile(ctx context.Context) (int, error)

	Close() error
}

// SchemaStore persists the three logical relations of spec.md §4.5:
// schemas, schema_versions, schema_fields. The registry (internal/schema)
// is the only caller; SchemaStore itself performs no business-rule
// validation beyond storage-level atomicity.
type SchemaStore interface {
	// GetSchema returns the schema row, or nil if absent.
	GetSchema(ctx context.Context, schemaID string) (*models.Schema, error)

	// ListSchemas returns all registered schemas.
	ListSchemas(ctx context.Context) ([]*models.Schema, error)

	// PutSchema creates or updates the schemas row.
	PutSchema(ctx context.Context, s *models.Schema) error

	// PutVersion inserts a new schema_versions row together with its
	// schema_fields rows, in pre-order traversal order.
	PutVersion(ctx context.Context, v *models.SchemaVersion) error

	// GetVersion returns one specific version's fields and metadata.
	GetVersion(ctx context.Context, schemaID, versionHash string) (*models.SchemaVersion, error)

	// MarkEngineCreated appends engine to the engines_created list of
	// the version identified by versionHash.
	MarkEngineCreated(ctx context.Context, schemaID, versionHash, engine string) error

	// Delete removes the schema and every version/field row beneath it.
	Delete(ctx context.Context, schemaID string) error

	Close() error
}

// QueryOptions configures HistoryStore.List-style queries. Kept small
// and engine-agnostic per the Non-goal on pagination — Limit is a
// simple cap, not a cursor.
type QueryOptions struct {
	Limit int
	Since time.Time
}
