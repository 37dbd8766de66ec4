package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
)

// schemaRow/versionRow/fieldRow mirror the three relations of spec.md
// §4.5 one-for-one, the same way JobQueueStore mirrors the job_queue
// table: a plain struct per table, mapped straight through surrealdb.Query.
type schemaRow struct {
	SchemaID      string    `json:"schema_id"`
	TableName     string    `json:"table_name"`
	DatabaseName  string    `json:"database_name"`
	CurrentVer    string    `json:"current_version"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdated   time.Time `json:"last_updated"`
	TotalVersions int       `json:"total_versions"`
}

type versionRow struct {
	SchemaID       string    `json:"schema_id"`
	VersionHash    string    `json:"version_hash"`
	ProtoSource    string    `json:"proto_source"`
	SchemaJSON     string    `json:"schema_json"`
	CreatedAt      time.Time `json:"created_at"`
	EnginesCreated []string  `json:"engines_created"`
}

type fieldRow struct {
	SchemaID    string   `json:"schema_id"`
	VersionHash string   `json:"version_hash"`
	FieldPath   string   `json:"field_path"`
	ParentPath  string   `json:"parent_path"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Mode        string   `json:"mode"`
	Description string   `json:"description"`
	PolicyTags  []string `json:"policy_tags"`
}

// SchemaStore implements interfaces.SchemaStore using SurrealDB, adapted
// from JobQueueStore's query/UPSERT idiom: version-hash comparison here
// plays the same two-step select-then-conditional-update role that
// status comparison plays in JobQueueStore.Dequeue.
type SchemaStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSchemaStore creates a new SchemaStore.
func NewSchemaStore(db *surrealdb.DB, logger *common.Logger) *SchemaStore {
	return &SchemaStore{db: db, logger: logger}
}

func schemaRecordID(schemaID string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("schemas", schemaID)
}

func (s *SchemaStore) GetSchema(ctx context.Context, schemaID string) (*models.Schema, error) {
	rows, err := surrealdb.Query[[]schemaRow](ctx, s.db, "SELECT * FROM schemas WHERE schema_id = $id LIMIT 1", map[string]any{"id": schemaID})
	if err != nil {
		return nil, fmt.Errorf("failed to select schema %s: %w", schemaID, err)
	}
	if rows == nil || len(*rows) == 0 || len((*rows)[0].Result) == 0 {
		return nil, nil
	}
	return rowToSchema((*rows)[0].Result[0]), nil
}

func (s *SchemaStore) ListSchemas(ctx context.Context) ([]*models.Schema, error) {
	rows, err := surrealdb.Query[[]schemaRow](ctx, s.db, "SELECT * FROM schemas", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	if rows == nil || len(*rows) == 0 {
		return nil, nil
	}
	out := make([]*models.Schema, 0, len((*rows)[0].Result))
	for _, r := range (*rows)[0].Result {
		out = append(out, rowToSchema(r))
	}
	return out, nil
}

func (s *SchemaStore) PutSchema(ctx context.Context, sc *models.Schema) error {
	sql := `UPSERT $rid SET
		schema_id = $schema_id, table_name = $table_name, database_name = $database_name,
		current_version = $current_version, created_at = $created_at,
		last_updated = $last_updated, total_versions = $total_versions`
	vars := map[string]any{
		"rid":             schemaRecordID(sc.SchemaID),
		"schema_id":       sc.SchemaID,
		"table_name":      sc.TableName,
		"database_name":   sc.DatabaseName,
		"current_version": sc.CurrentVersion,
		"created_at":      sc.CreatedAt,
		"last_updated":    sc.LastUpdated,
		"total_versions":  sc.TotalVersions,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to upsert schema %s: %w", sc.SchemaID, err)
	}
	return nil
}

func (s *SchemaStore) PutVersion(ctx context.Context, v *models.SchemaVersion) error {
	versionID := v.SchemaID + "#" + v.VersionHash
	sql := `UPSERT $rid SET
		schema_id = $schema_id, version_hash = $version_hash, proto_source = $proto_source,
		schema_json = $schema_json, created_at = $created_at, engines_created = $engines_created`
	vars := map[string]any{
		"rid":             surrealmodels.NewRecordID("schema_versions", versionID),
		"schema_id":       v.SchemaID,
		"version_hash":    v.VersionHash,
		"proto_source":    v.ProtoSource,
		"schema_json":     v.SchemaJSON,
		"created_at":      v.CreatedAt,
		"engines_created": []string{},
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to upsert schema version %s: %w", versionID, err)
	}

	for _, f := range v.Fields {
		fieldSQL := `UPSERT $rid SET
			schema_id = $schema_id, version_hash = $version_hash, field_path = $field_path,
			parent_path = $parent_path, name = $name, type = $type, mode = $mode,
			description = $description, policy_tags = $policy_tags`
		fieldID := versionID + "#" + f.FieldPath
		fieldVars := map[string]any{
			"rid":         surrealmodels.NewRecordID("schema_fields", fieldID),
			"schema_id":   v.SchemaID,
			"version_hash": v.VersionHash,
			"field_path":  f.FieldPath,
			"parent_path": f.ParentPath,
			"name":        f.Name,
			"type":        string(f.Type),
			"mode":        string(f.Mode),
			"description": f.Description,
			"policy_tags": f.PolicyTags,
		}
		if _, err := surrealdb.Query[any](ctx, s.db, fieldSQL, fieldVars); err != nil {
			return fmt.Errorf("failed to upsert schema field %s: %w", fieldID, err)
		}
	}
	return nil
}

func (s *SchemaStore) GetVersion(ctx context.Context, schemaID, versionHash string) (*models.SchemaVersion, error) {
	versionID := schemaID + "#" + versionHash
	rows, err := surrealdb.Query[[]versionRow](ctx, s.db, "SELECT * FROM schema_versions WHERE schema_id = $sid AND version_hash = $hash LIMIT 1",
		map[string]any{"sid": schemaID, "hash": versionHash})
	if err != nil {
		return nil, fmt.Errorf("failed to select schema version %s: %w", versionID, err)
	}
	if rows == nil || len(*rows) == 0 || len((*rows)[0].Result) == 0 {
		return nil, nil
	}
	row := (*rows)[0].Result[0]

	fieldRows, err := surrealdb.Query[[]fieldRow](ctx, s.db,
		"SELECT * FROM schema_fields WHERE schema_id = $sid AND version_hash = $hash ORDER BY field_path",
		map[string]any{"sid": schemaID, "hash": versionHash})
	if err != nil {
		return nil, fmt.Errorf("failed to select schema fields %s: %w", versionID, err)
	}

	v := &models.SchemaVersion{
		SchemaID:       row.SchemaID,
		VersionHash:    row.VersionHash,
		ProtoSource:    row.ProtoSource,
		SchemaJSON:     row.SchemaJSON,
		EnginesCreated: row.EnginesCreated,
	}
	if fieldRows != nil && len(*fieldRows) > 0 {
		for _, f := range (*fieldRows)[0].Result {
			v.Fields = append(v.Fields, models.SchemaField{
				Name:        f.Name,
				Type:        models.FieldType(f.Type),
				Mode:        models.FieldMode(f.Mode),
				Description: f.Description,
				PolicyTags:  f.PolicyTags,
				FieldPath:   f.FieldPath,
				ParentPath:  f.ParentPath,
			})
		}
	}
	return v, nil
}

// MarkEngineCreated appends engine to the version's engines_created list,
// idempotently: a two-step select-then-update matching JobQueueStore's
// Dequeue discipline, here guarding against double-appending the same
// engine name rather than against a double-claim.
func (s *SchemaStore) MarkEngineCreated(ctx context.Context, schemaID, versionHash, engine string) error {
	versionID := schemaID + "#" + versionHash
	rows, err := surrealdb.Query[[]versionRow](ctx, s.db, "SELECT * FROM schema_versions WHERE schema_id = $sid AND version_hash = $hash LIMIT 1",
		map[string]any{"sid": schemaID, "hash": versionHash})
	if err != nil {
		return fmt.Errorf("failed to select schema version %s: %w", versionID, err)
	}
	if rows == nil || len(*rows) == 0 || len((*rows)[0].Result) == 0 {
		return fmt.Errorf("schema_versions: unknown version %s", versionID)
	}
	current := (*rows)[0].Result[0].EnginesCreated
	for _, e := range current {
		if e == engine {
			return nil // already recorded
		}
	}
	updated := append(current, engine)

	updateSQL := "UPDATE $rid SET engines_created = $engines_created"
	updateVars := map[string]any{
		"rid":             surrealmodels.NewRecordID("schema_versions", versionID),
		"engines_created": updated,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, updateSQL, updateVars); err != nil {
		return fmt.Errorf("failed to mark engine created for %s: %w", versionID, err)
	}
	return nil
}

// Delete cascades schema_fields -> schema_versions -> schemas, the FK-safe
// order original_source/backend/schema_registry.py's delete_schema uses.
func (s *SchemaStore) Delete(ctx context.Context, schemaID string) error {
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE FROM schema_fields WHERE schema_id = $sid", map[string]any{"sid": schemaID}); err != nil {
		return fmt.Errorf("failed to delete schema fields for %s: %w", schemaID, err)
	}
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE FROM schema_versions WHERE schema_id = $sid", map[string]any{"sid": schemaID}); err != nil {
		return fmt.Errorf("failed to delete schema versions for %s: %w", schemaID, err)
	}
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE $rid", map[string]any{"rid": schemaRecordID(schemaID)}); err != nil {
		return fmt.Errorf("failed to delete schema %s: %w", schemaID, err)
	}
	return nil
}

func (s *SchemaStore) Close() error {
	return nil // lifetime owned by the shared *surrealdb.DB connection (see Manager.Close)
}

func rowToSchema(r schemaRow) *models.Schema {
	return &models.Schema{
		SchemaID:       r.SchemaID,
		DatabaseName:   r.DatabaseName,
		TableName:      r.TableName,
		CurrentVersion: r.CurrentVer,
		CreatedAt:      r.CreatedAt,
		LastUpdated:    r.LastUpdated,
		TotalVersions:  r.TotalVersions,
	}
}

var _ interfaces.SchemaStore = (*SchemaStore)(nil)
