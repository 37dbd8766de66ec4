package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/engine/local"
	"github.com/bobmcallan/bqlite/internal/ingest"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
	"github.com/bobmcallan/bqlite/internal/schema"
	"github.com/bobmcallan/bqlite/internal/validator"
)

// fakeScheduler is a minimal scheduling implementation for facade unit
// tests, avoiding the real scheduler's goroutine loop.
type fakeScheduler struct {
	jobs       map[string]*models.Job
	submitErr  error
	cancelErr  error
	lastCancel string
}

func newFakeScheduler() *fakeScheduler { return &fakeScheduler{jobs: map[string]*models.Job{}} }

func (f *fakeScheduler) Submit(sql, engine string, priority, estimatedSlots, maxExecSecs int) (*models.Job, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	job := &models.Job{ID: "job-1", SQL: sql, Engine: engine, Priority: priority, State: models.JobQueued, CreatedAt: time.Now().UTC()}
	f.jobs[job.ID] = job
	return job, nil
}
func (f *fakeScheduler) GetJob(id string) *models.Job { return f.jobs[id].Clone() }
func (f *fakeScheduler) ListJobs() []*models.Job {
	out := make([]*models.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j.Clone())
	}
	return out
}
func (f *fakeScheduler) Cancel(id string) error {
	f.lastCancel = id
	return f.cancelErr
}
func (f *fakeScheduler) SystemStatus() models.SystemStatus {
	return models.SystemStatus{TotalSlots: 10, Available: 8, Queued: 1, Running: 1}
}

// fakeHistory is a minimal in-memory interfaces.HistoryStore.
type fakeHistory struct {
	records map[string]*models.HistoryRecord
}

func newFakeHistory() *fakeHistory { return &fakeHistory{records: map[string]*models.HistoryRecord{}} }
func (f *fakeHistory) Append(ctx context.Context, rec *models.HistoryRecord) error {
	f.records[rec.JobID] = rec
	return nil
}
func (f *fakeHistory) Get(ctx context.Context, jobID string) (*models.HistoryRecord, error) {
	return f.records[jobID], nil
}
func (f *fakeHistory) List(ctx context.Context, opts interfaces.QueryOptions) ([]*models.HistoryRecord, error) {
	return nil, nil
}
func (f *fakeHistory) Reconcile(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeHistory) Close() error                               { return nil }

var _ interfaces.HistoryStore = (*fakeHistory)(nil)

// fakeSchemaStore mirrors internal/ingest's test double.
type fakeSchemaStore struct {
	schemas  map[string]*models.Schema
	versions map[string]*models.SchemaVersion
}

func newFakeSchemaStore() *fakeSchemaStore {
	return &fakeSchemaStore{schemas: map[string]*models.Schema{}, versions: map[string]*models.SchemaVersion{}}
}
func (f *fakeSchemaStore) GetSchema(ctx context.Context, id string) (*models.Schema, error) {
	return f.schemas[id], nil
}
func (f *fakeSchemaStore) ListSchemas(ctx context.Context) ([]*models.Schema, error) {
	out := make([]*models.Schema, 0, len(f.schemas))
	for _, s := range f.schemas {
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeSchemaStore) PutSchema(ctx context.Context, s *models.Schema) error {
	f.schemas[s.SchemaID] = s
	return nil
}
func (f *fakeSchemaStore) PutVersion(ctx context.Context, v *models.SchemaVersion) error {
	f.versions[v.SchemaID+"#"+v.VersionHash] = v
	return nil
}
func (f *fakeSchemaStore) GetVersion(ctx context.Context, schemaID, hash string) (*models.SchemaVersion, error) {
	return f.versions[schemaID+"#"+hash], nil
}
func (f *fakeSchemaStore) MarkEngineCreated(ctx context.Context, schemaID, hash, engine string) error {
	v := f.versions[schemaID+"#"+hash]
	if v != nil {
		v.EnginesCreated = append(v.EnginesCreated, engine)
	}
	return nil
}
func (f *fakeSchemaStore) Delete(ctx context.Context, schemaID string) error {
	delete(f.schemas, schemaID)
	return nil
}
func (f *fakeSchemaStore) Close() error { return nil }

var _ interfaces.SchemaStore = (*fakeSchemaStore)(nil)

func newTestFacade(t *testing.T) (*Facade, *fakeScheduler) {
	t.Helper()
	logger := common.NewSilentLogger()
	eng := local.New(logger)
	require.NoError(t, eng.Initialize(context.Background()))
	engines := map[string]interfaces.ExecutionEngine{"local": eng}

	sched := newFakeScheduler()
	reg := schema.New(newFakeSchemaStore(), logger)
	f := New(sched, validator.New(engines), reg, ingest.New(reg, logger), newFakeHistory(), engines, logger)
	return f, sched
}

func TestSubmitQuery_RejectsOutOfRangePriority(t *testing.T) {
	f, _ := newTestFacade(t)
	_, err := f.SubmitQuery(context.Background(), "SELECT 1", "local", 9, 1, 60)
	assert.True(t, Is(err, ErrInvalid))
}

func TestSubmitQuery_RejectsUnknownEngine(t *testing.T) {
	f, _ := newTestFacade(t)
	_, err := f.SubmitQuery(context.Background(), "SELECT 1", "nope", 1, 1, 60)
	assert.True(t, Is(err, ErrInvalid))
}

func TestSubmitQuery_RejectsEmptySQL(t *testing.T) {
	f, _ := newTestFacade(t)
	_, err := f.SubmitQuery(context.Background(), "", "local", 1, 1, 60)
	assert.True(t, Is(err, ErrInvalid))
}

func TestSubmitQuery_Succeeds(t *testing.T) {
	f, sched := newTestFacade(t)
	id, err := f.SubmitQuery(context.Background(), "SELECT 1", "local", 1, 1, 60)
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Len(t, sched.jobs, 1)
}

func TestSubmitBatch_RejectsOverCap(t *testing.T) {
	f, _ := newTestFacade(t)
	sqls := make([]string, 21)
	for i := range sqls {
		sqls[i] = "SELECT 1"
	}
	_, err := f.SubmitBatch(context.Background(), sqls, "local", 1, 1, 60)
	assert.True(t, Is(err, ErrInvalid))
}

func TestGetJob_FallsBackToHistory(t *testing.T) {
	f, _ := newTestFacade(t)
	f.history.(*fakeHistory).records["old-job"] = &models.HistoryRecord{JobID: "old-job", State: models.JobCompleted}
	job, err := f.GetJob(context.Background(), "old-job")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.State)
}

func TestGetJob_NotFound(t *testing.T) {
	f, _ := newTestFacade(t)
	_, err := f.GetJob(context.Background(), "missing")
	assert.True(t, Is(err, ErrNotFound))
}

func TestGetJobResult_PendingJobReturnsConflict(t *testing.T) {
	f, sched := newTestFacade(t)
	sched.jobs["job-1"] = &models.Job{ID: "job-1", State: models.JobQueued}
	_, err := f.GetJobResult(context.Background(), "job-1")
	assert.True(t, Is(err, ErrConflict))
}

func TestGetJobResult_CompletedJobReturnsResult(t *testing.T) {
	f, sched := newTestFacade(t)
	sched.jobs["job-1"] = &models.Job{ID: "job-1", State: models.JobCompleted, Result: &models.ExecutionResult{RowCount: 3}}
	result, err := f.GetJobResult(context.Background(), "job-1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.RowCount)
}

func TestCancel_WrapsSchedulerError(t *testing.T) {
	f, sched := newTestFacade(t)
	sched.cancelErr = assert.AnError
	err := f.Cancel(context.Background(), "job-1")
	assert.True(t, Is(err, ErrConflict))
}

func TestSystemStatus_ReflectsScheduler(t *testing.T) {
	f, _ := newTestFacade(t)
	st := f.SystemStatus(context.Background())
	assert.Equal(t, 10, st.TotalSlots)
}

func TestRegisterSchemaFromJSON_RejectsBadTableName(t *testing.T) {
	f, _ := newTestFacade(t)
	fields := []models.SchemaField{{Name: "id", Type: models.TypeInteger, Mode: models.ModeRequired}}
	_, err := f.RegisterSchemaFromJSON(context.Background(), fields, "1bad-name", "app", "")
	assert.True(t, Is(err, ErrInvalid))
}

func TestRegisterSchemaAndCreateTables_EndToEnd(t *testing.T) {
	f, _ := newTestFacade(t)
	fields := []models.SchemaField{{Name: "id", Type: models.TypeInteger, Mode: models.ModeRequired}}
	s, err := f.RegisterSchemaFromJSON(context.Background(), fields, "events", "app", "")
	require.NoError(t, err)

	results, err := f.CreateTables(context.Background(), s.SchemaID, []string{"local"}, false)
	require.NoError(t, err)
	assert.NoError(t, results["local"])

	got, err := f.GetSchema(context.Background(), s.SchemaID)
	require.NoError(t, err)
	assert.Equal(t, s.SchemaID, got.SchemaID)
}

func TestCreateTables_RejectsUnknownEngine(t *testing.T) {
	f, _ := newTestFacade(t)
	fields := []models.SchemaField{{Name: "id", Type: models.TypeInteger, Mode: models.ModeRequired}}
	s, err := f.RegisterSchemaFromJSON(context.Background(), fields, "events", "app", "")
	require.NoError(t, err)

	_, err = f.CreateTables(context.Background(), s.SchemaID, []string{"nonexistent"}, false)
	assert.True(t, Is(err, ErrInvalid))
}

func TestDeleteSchema_RemovesIt(t *testing.T) {
	f, _ := newTestFacade(t)
	fields := []models.SchemaField{{Name: "id", Type: models.TypeInteger, Mode: models.ModeRequired}}
	s, err := f.RegisterSchemaFromJSON(context.Background(), fields, "events", "app", "")
	require.NoError(t, err)

	require.NoError(t, f.DeleteSchema(context.Background(), s.SchemaID))
	_, err = f.GetSchema(context.Background(), s.SchemaID)
	assert.True(t, Is(err, ErrNotFound))
}

func TestIngest_RejectsUnknownEngine(t *testing.T) {
	f, _ := newTestFacade(t)
	_, err := f.Ingest(context.Background(), "app.events", nil, "nonexistent", 100, true)
	assert.True(t, Is(err, ErrInvalid))
}

func TestIngest_RejectsOverLargeBatchSize(t *testing.T) {
	f, _ := newTestFacade(t)
	_, err := f.Ingest(context.Background(), "app.events", nil, "local", 20000, true)
	assert.True(t, Is(err, ErrInvalid))
}

func TestIngest_RejectsSchemaWithoutProtoSource(t *testing.T) {
	f, _ := newTestFacade(t)
	fields := []models.SchemaField{{Name: "id", Type: models.TypeInteger, Mode: models.ModeRequired}}
	s, err := f.RegisterSchemaFromJSON(context.Background(), fields, "events", "app", "")
	require.NoError(t, err)

	_, err = f.Ingest(context.Background(), s.SchemaID, []byte("x"), "local", 100, true)
	assert.True(t, Is(err, ErrConflict))
}
