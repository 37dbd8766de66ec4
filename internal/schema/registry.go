// Package schema implements the Schema Registry (C) and Translator (D):
// versioned, content-hashed schema storage plus BigQuery-tag-to-engine-
// native-type DDL emission. Grounded on
// original_source/backend/schema_registry.py's register/version/
// mark_table_created/delete protocol, persisted through
// interfaces.SchemaStore.
package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
)

// Registry is the single entry point for schema registration, versioning,
// and engine-DDL translation.
type Registry struct {
	store  interfaces.SchemaStore
	logger *common.Logger
}

// New constructs a Registry. A missing protoc binary is logged as a
// warning here and nowhere else — register_from_proto itself fails loudly
// the moment it's actually called, preserving the original's "warn at
// startup, fail at use" behavior.
func New(store interfaces.SchemaStore, logger *common.Logger) *Registry {
	if !protocAvailable() {
		logger.Warn().Msg("protoc binary not found on PATH: register_from_proto will fail until it is installed")
	}
	return &Registry{store: store, logger: logger}
}

// RegisterFromProto invokes protoc to compile protoSource into a field
// tree, then delegates to RegisterFromJSON retaining the proto source
// (spec.md §4.5's register_from_proto protocol).
func (r *Registry) RegisterFromProto(ctx context.Context, protoSource, tableName, databaseName string) (*models.Schema, error) {
	fields, err := compileProto(ctx, protoSource)
	if err != nil {
		return nil, fmt.Errorf("schema: register_from_proto: %w", err)
	}
	return r.RegisterFromJSON(ctx, fields, tableName, databaseName, protoSource)
}

// RegisterFromJSON implements spec.md §4.5's register_from_json protocol:
// compute the version hash of the canonical field tree, and either create
// the schema, no-op if unchanged, or append a new version.
func (r *Registry) RegisterFromJSON(ctx context.Context, fields []models.SchemaField, tableName, databaseName, protoSource string) (*models.Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema: register_from_json: fields must be a non-empty array")
	}

	schemaID := databaseName + "." + tableName
	hash, canonJSON, err := versionHash(toFieldJSON(fields))
	if err != nil {
		return nil, fmt.Errorf("schema: computing version hash: %w", err)
	}

	existing, err := r.store.GetSchema(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("schema: looking up %s: %w", schemaID, err)
	}

	now := time.Now().UTC()
	if existing != nil {
		if existing.CurrentVersion == hash {
			// no-op: this exact field tree is already the current version
			return existing, nil
		}
		existing.CurrentVersion = hash
		existing.LastUpdated = now
		existing.TotalVersions++
		if err := r.store.PutSchema(ctx, existing); err != nil {
			return nil, fmt.Errorf("schema: updating %s: %w", schemaID, err)
		}
		if err := r.putVersion(ctx, schemaID, hash, canonJSON, protoSource, fields, now); err != nil {
			return nil, err
		}
		return existing, nil
	}

	s := &models.Schema{
		SchemaID:       schemaID,
		DatabaseName:   databaseName,
		TableName:      tableName,
		CurrentVersion: hash,
		CreatedAt:      now,
		LastUpdated:    now,
		TotalVersions:  1,
	}
	if err := r.store.PutSchema(ctx, s); err != nil {
		return nil, fmt.Errorf("schema: creating %s: %w", schemaID, err)
	}
	if err := r.putVersion(ctx, schemaID, hash, canonJSON, protoSource, fields, now); err != nil {
		return nil, err
	}
	return s, nil
}

// putVersion assigns pre-order FieldPath/ParentPath to fields and writes
// the version row.
func (r *Registry) putVersion(ctx context.Context, schemaID, hash, schemaJSON, protoSource string, fields []models.SchemaField, createdAt time.Time) error {
	flat := flattenFields(fields, "", "")
	v := &models.SchemaVersion{
		SchemaID:    schemaID,
		VersionHash: hash,
		ProtoSource: protoSource,
		SchemaJSON:  schemaJSON,
		Fields:      flat,
		CreatedAt:   createdAt,
	}
	if err := r.store.PutVersion(ctx, v); err != nil {
		return fmt.Errorf("schema: storing version %s/%s: %w", schemaID, hash, err)
	}
	return nil
}

// flattenFields walks the field tree in pre-order, assigning FieldPath
// (dot-joined) and ParentPath to every node — matching
// original_source/backend/schema_registry.py's recursive field storage.
func flattenFields(fields []models.SchemaField, prefix, parentPath string) []models.SchemaField {
	out := make([]models.SchemaField, 0, len(fields))
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		f.FieldPath = path
		f.ParentPath = parentPath
		children := f.Fields
		f.Fields = nil
		out = append(out, f)
		if len(children) > 0 {
			out = append(out, flattenFields(children, path, path)...)
		}
	}
	return out
}

func toFieldJSON(fields []models.SchemaField) []fieldJSON {
	out := make([]fieldJSON, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldJSON{
			Name:        f.Name,
			Type:        string(f.Type),
			Mode:        string(f.Mode),
			Description: f.Description,
			PolicyTags:  f.PolicyTags,
			Fields:      toFieldJSON(f.Fields),
		})
	}
	return out
}

// MarkTableCreated appends engine to the engines_created list of the
// current version, idempotently (spec.md §4.5).
func (r *Registry) MarkTableCreated(ctx context.Context, schemaID, engine string) error {
	s, err := r.store.GetSchema(ctx, schemaID)
	if err != nil {
		return fmt.Errorf("schema: mark_table_created: %w", err)
	}
	if s == nil {
		return fmt.Errorf("schema: mark_table_created: unknown schema %q", schemaID)
	}
	return r.store.MarkEngineCreated(ctx, schemaID, s.CurrentVersion, engine)
}

// Delete removes a schema and every version/field row beneath it. The
// registry never drops the engine-side tables — that is out of scope per
// spec.md §4.5.
func (r *Registry) Delete(ctx context.Context, schemaID string) error {
	return r.store.Delete(ctx, schemaID)
}

// GetSchema returns the schema row, or nil if unknown.
func (r *Registry) GetSchema(ctx context.Context, schemaID string) (*models.Schema, error) {
	return r.store.GetSchema(ctx, schemaID)
}

// ListSchemas returns every registered schema.
func (r *Registry) ListSchemas(ctx context.Context) ([]*models.Schema, error) {
	return r.store.ListSchemas(ctx)
}

// CurrentVersion returns the current SchemaVersion (fields, proto source,
// engines_created) for schemaID.
func (r *Registry) CurrentVersion(ctx context.Context, schemaID string) (*models.SchemaVersion, error) {
	s, err := r.store.GetSchema(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("schema: looking up %s: %w", schemaID, err)
	}
	if s == nil {
		return nil, fmt.Errorf("schema: unknown schema %q", schemaID)
	}
	return r.store.GetVersion(ctx, schemaID, s.CurrentVersion)
}

// CreateTables translates the current version's field tree to DDL for
// each named engine and runs it, optionally emitting the flattened view,
// then marks each engine created on success. Every engine in the map is
// attempted; a failure on one is logged and recorded without stopping the
// others — §9's "create_tables is best-effort per engine" note. The
// returned map holds
// one entry per engine name, nil on success, the failure otherwise — the
// PerEngineResult of spec.md §6.
func (r *Registry) CreateTables(ctx context.Context, schemaID string, engines map[string]interfaces.ExecutionEngine, makeFlatView bool) (map[string]error, error) {
	v, err := r.CurrentVersion(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	tableName := TableNameFromSchemaID(schemaID)
	roots := RootsOf(v.Fields)

	ddl, viewSQL, err := Translate(tableName, roots)
	if err != nil {
		return nil, fmt.Errorf("schema: translating %s: %w", schemaID, err)
	}

	results := make(map[string]error, len(engines))
	for name, eng := range engines {
		if err := eng.CreateTable(ctx, ddl); err != nil {
			r.logger.Warn().Str("schema_id", schemaID).Str("engine", name).Err(err).Msg("create_tables failed for engine")
			results[name] = fmt.Errorf("create_table: %w", err)
			continue
		}
		if makeFlatView && viewSQL != "" {
			if err := eng.CreateTable(ctx, viewSQL); err != nil {
				r.logger.Warn().Str("schema_id", schemaID).Str("engine", name).Err(err).Msg("flattened view creation failed for engine")
				results[name] = fmt.Errorf("flattened_view: %w", err)
				continue
			}
		}
		if err := r.MarkTableCreated(ctx, schemaID, name); err != nil {
			r.logger.Warn().Str("schema_id", schemaID).Str("engine", name).Err(err).Msg("mark_table_created failed")
			results[name] = fmt.Errorf("mark_table_created: %w", err)
			continue
		}
		results[name] = nil
	}
	return results, nil
}

// GetFlattenedViewSQL returns the flattened-view statement for schemaID's
// current version without executing it, or "" if the schema has no
// nested fields to flatten.
func (r *Registry) GetFlattenedViewSQL(ctx context.Context, schemaID string) (string, error) {
	v, err := r.CurrentVersion(ctx, schemaID)
	if err != nil {
		return "", err
	}
	tableName := TableNameFromSchemaID(schemaID)
	_, viewSQL, err := Translate(tableName, RootsOf(v.Fields))
	if err != nil {
		return "", fmt.Errorf("schema: translating %s: %w", schemaID, err)
	}
	return viewSQL, nil
}

// RootsOf rebuilds a field tree from its flattened (pre-order,
// FieldPath/ParentPath-tagged) storage form — the inverse of
// flattenFields — so Translate can walk RECORD fields by nesting again.
func RootsOf(flat []models.SchemaField) []models.SchemaField {
	byPath := make(map[string]models.SchemaField, len(flat))
	childPaths := make(map[string][]string)
	var order []string
	for _, f := range flat {
		byPath[f.FieldPath] = f
		childPaths[f.ParentPath] = append(childPaths[f.ParentPath], f.FieldPath)
		order = append(order, f.FieldPath)
	}

	var build func(path string) models.SchemaField
	build = func(path string) models.SchemaField {
		f := byPath[path]
		f.Fields = nil
		for _, childPath := range childPaths[path] {
			f.Fields = append(f.Fields, build(childPath))
		}
		return f
	}

	var roots []models.SchemaField
	for _, path := range order {
		if byPath[path].ParentPath == "" {
			roots = append(roots, build(path))
		}
	}
	return roots
}

func TableNameFromSchemaID(schemaID string) string {
	for i := len(schemaID) - 1; i >= 0; i-- {
		if schemaID[i] == '.' {
			return schemaID[i+1:]
		}
	}
	return schemaID
}
