package schema

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/engine/local"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
)

// fakeStore is an in-memory interfaces.SchemaStore for registry tests
// that don't need a real SurrealDB backend.
type fakeStore struct {
	mu       sync.Mutex
	schemas  map[string]*models.Schema
	versions map[string]*models.SchemaVersion // keyed by schemaID+"#"+hash
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schemas:  make(map[string]*models.Schema),
		versions: make(map[string]*models.SchemaVersion),
	}
}

func (f *fakeStore) GetSchema(ctx context.Context, schemaID string) (*models.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schemas[schemaID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListSchemas(ctx context.Context) ([]*models.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Schema
	for _, s := range f.schemas {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) PutSchema(ctx context.Context, s *models.Schema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.schemas[s.SchemaID] = &cp
	return nil
}

func (f *fakeStore) PutVersion(ctx context.Context, v *models.SchemaVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *v
	f.versions[v.SchemaID+"#"+v.VersionHash] = &cp
	return nil
}

func (f *fakeStore) GetVersion(ctx context.Context, schemaID, versionHash string) (*models.SchemaVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[schemaID+"#"+versionHash]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (f *fakeStore) MarkEngineCreated(ctx context.Context, schemaID, versionHash, engine string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.versions[schemaID+"#"+versionHash]
	if !ok {
		return nil
	}
	for _, e := range v.EnginesCreated {
		if e == engine {
			return nil
		}
	}
	v.EnginesCreated = append(v.EnginesCreated, engine)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, schemaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.schemas, schemaID)
	for k, v := range f.versions {
		if v.SchemaID == schemaID {
			delete(f.versions, k)
		}
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

var _ interfaces.SchemaStore = (*fakeStore)(nil)

func sampleFields() []models.SchemaField {
	return []models.SchemaField{
		{Name: "id", Type: models.TypeInteger, Mode: models.ModeRequired},
		{Name: "name", Type: models.TypeString, Mode: models.ModeNullable},
		{Name: "address", Type: models.TypeRecord, Mode: models.ModeNullable, Fields: []models.SchemaField{
			{Name: "city", Type: models.TypeString, Mode: models.ModeNullable},
			{Name: "zip", Type: models.TypeString, Mode: models.ModeNullable},
		}},
	}
}

func TestRegistry_RegisterFromJSON_CreatesSchema(t *testing.T) {
	store := newFakeStore()
	r := New(store, common.NewSilentLogger())

	s, err := r.RegisterFromJSON(context.Background(), sampleFields(), "customers", "sales", "")
	require.NoError(t, err)
	assert.Equal(t, "sales.customers", s.SchemaID)
	assert.Equal(t, 1, s.TotalVersions)
	assert.Len(t, s.CurrentVersion, 16) // sha256 truncated to 16 hex chars

	v, err := r.CurrentVersion(context.Background(), s.SchemaID)
	require.NoError(t, err)
	assert.Len(t, v.Fields, 5) // id, name, address, address.city, address.zip — flattened pre-order
}

func TestRegistry_RegisterFromJSON_IdempotentNoOp(t *testing.T) {
	store := newFakeStore()
	r := New(store, common.NewSilentLogger())

	s1, err := r.RegisterFromJSON(context.Background(), sampleFields(), "customers", "sales", "")
	require.NoError(t, err)

	s2, err := r.RegisterFromJSON(context.Background(), sampleFields(), "customers", "sales", "")
	require.NoError(t, err)
	assert.Equal(t, s1.CurrentVersion, s2.CurrentVersion)
	assert.Equal(t, 1, s2.TotalVersions) // unchanged: no-op registration
}

func TestRegistry_RegisterFromJSON_NewVersionOnChange(t *testing.T) {
	store := newFakeStore()
	r := New(store, common.NewSilentLogger())

	_, err := r.RegisterFromJSON(context.Background(), sampleFields(), "customers", "sales", "")
	require.NoError(t, err)

	changed := sampleFields()
	changed = append(changed, models.SchemaField{Name: "email", Type: models.TypeString, Mode: models.ModeNullable})
	s2, err := r.RegisterFromJSON(context.Background(), changed, "customers", "sales", "")
	require.NoError(t, err)
	assert.Equal(t, 2, s2.TotalVersions)
}

func TestRegistry_RegisterFromJSON_RejectsEmptyFields(t *testing.T) {
	store := newFakeStore()
	r := New(store, common.NewSilentLogger())
	_, err := r.RegisterFromJSON(context.Background(), nil, "customers", "sales", "")
	assert.Error(t, err)
}

func TestRegistry_MarkTableCreated_Idempotent(t *testing.T) {
	store := newFakeStore()
	r := New(store, common.NewSilentLogger())
	s, err := r.RegisterFromJSON(context.Background(), sampleFields(), "customers", "sales", "")
	require.NoError(t, err)

	require.NoError(t, r.MarkTableCreated(context.Background(), s.SchemaID, "local"))
	require.NoError(t, r.MarkTableCreated(context.Background(), s.SchemaID, "local"))

	v, err := r.CurrentVersion(context.Background(), s.SchemaID)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, v.EnginesCreated)
}

func TestRegistry_Delete_RemovesSchemaAndVersions(t *testing.T) {
	store := newFakeStore()
	r := New(store, common.NewSilentLogger())
	s, err := r.RegisterFromJSON(context.Background(), sampleFields(), "customers", "sales", "")
	require.NoError(t, err)

	require.NoError(t, r.Delete(context.Background(), s.SchemaID))

	got, err := r.GetSchema(context.Background(), s.SchemaID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistry_CreateTables_TranslatesAndExecutes(t *testing.T) {
	store := newFakeStore()
	r := New(store, common.NewSilentLogger())
	s, err := r.RegisterFromJSON(context.Background(), sampleFields(), "customers", "sales", "")
	require.NoError(t, err)

	eng := local.New(common.NewSilentLogger())
	require.NoError(t, eng.Initialize(context.Background()))

	results, err := r.CreateTables(context.Background(), s.SchemaID, map[string]interfaces.ExecutionEngine{"local": eng}, true)
	require.NoError(t, err)
	assert.NoError(t, results["local"])

	info, err := eng.Describe(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(info.Tables))
	for _, tbl := range info.Tables {
		names = append(names, tbl.Name)
	}
	assert.Contains(t, names, "customers")
	assert.Contains(t, names, "customers_flattened")

	v, err := r.CurrentVersion(context.Background(), s.SchemaID)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, v.EnginesCreated)
}

func TestRegistry_GetFlattenedViewSQL_EmptyWhenNoNesting(t *testing.T) {
	store := newFakeStore()
	r := New(store, common.NewSilentLogger())
	flatFields := []models.SchemaField{
		{Name: "id", Type: models.TypeInteger, Mode: models.ModeRequired},
	}
	s, err := r.RegisterFromJSON(context.Background(), flatFields, "flat", "sales", "")
	require.NoError(t, err)

	sql, err := r.GetFlattenedViewSQL(context.Background(), s.SchemaID)
	require.NoError(t, err)
	assert.Empty(t, sql)
}
