// Package service implements the public Service Facade (J): the single
// entrypoint spec.md §6 describes as "consumed by HTTP, CLI, or FFI
// layers — all of which are out of scope". Facade performs every
// contract-invariant check at the boundary, then delegates to the
// scheduler, registry, validator, ingester and history store built
// underneath it. Grounded on the teacher's JobManager as the thing other
// packages call through, generalized from one backend-bound service to
// a thin dispatcher over several.
package service

import (
	"context"
	"fmt"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/ingest"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
	"github.com/bobmcallan/bqlite/internal/schema"
	"github.com/bobmcallan/bqlite/internal/scheduler"
	"github.com/bobmcallan/bqlite/internal/validator"
)

// scheduling is the subset of *scheduler.Scheduler the facade depends
// on, kept as an interface so facade tests can substitute a fake.
type scheduling interface {
	Submit(sql, engine string, priority, estimatedSlots, maxExecSecs int) (*models.Job, error)
	GetJob(id string) *models.Job
	ListJobs() []*models.Job
	Cancel(id string) error
	SystemStatus() models.SystemStatus
}

var _ scheduling = (*scheduler.Scheduler)(nil)

// Facade is the single public entrypoint for submitting queries,
// inspecting jobs, managing the schema registry, and ingesting data.
type Facade struct {
	sched    scheduling
	validate *validator.Validator
	registry *schema.Registry
	ingester *ingest.Ingester
	history  interfaces.HistoryStore
	engines  map[string]interfaces.ExecutionEngine
	logger   *common.Logger
}

// New wires a Facade over already-constructed components.
func New(sched scheduling, validate *validator.Validator, registry *schema.Registry, ingester *ingest.Ingester, history interfaces.HistoryStore, engines map[string]interfaces.ExecutionEngine, logger *common.Logger) *Facade {
	return &Facade{sched: sched, validate: validate, registry: registry, ingester: ingester, history: history, engines: engines, logger: logger}
}

// SubmitQuery validates the numeric contract invariants then admits sql
// for scheduling.
func (f *Facade) SubmitQuery(ctx context.Context, sql, engine string, priority, estimatedSlots, maxExecSecs int) (string, error) {
	if err := validateSubmitQuery(sql, priority, estimatedSlots, maxExecSecs); err != nil {
		return "", newError(ErrInvalid, err)
	}
	if _, ok := f.engines[engine]; !ok {
		return "", newError(ErrInvalid, fmt.Errorf("unknown engine %q", engine))
	}
	job, err := f.sched.Submit(sql, engine, priority, estimatedSlots, maxExecSecs)
	if err != nil {
		return "", newError(ErrEngine, err)
	}
	return job.ID, nil
}

// SubmitBatch submits multiple queries sharing one engine/priority,
// enforcing spec.md §6's 20-query batch cap.
func (f *Facade) SubmitBatch(ctx context.Context, sqls []string, engine string, priority, estimatedSlots, maxExecSecs int) ([]string, error) {
	if err := validateBatchSubmit(len(sqls)); err != nil {
		return nil, newError(ErrInvalid, err)
	}
	ids := make([]string, 0, len(sqls))
	for _, sql := range sqls {
		id, err := f.SubmitQuery(ctx, sql, engine, priority, estimatedSlots, maxExecSecs)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetJob returns a JobView, or a NOT_FOUND error if id is unknown.
func (f *Facade) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job := f.sched.GetJob(id)
	if job != nil {
		return job, nil
	}
	rec, err := f.history.Get(ctx, id)
	if err != nil {
		return nil, newError(ErrEngine, err)
	}
	if rec == nil {
		return nil, newError(ErrNotFound, fmt.Errorf("job %q not found", id))
	}
	return historyToJob(rec), nil
}

// GetJobResult returns the terminal ExecutionResult for a completed job.
// Returns a CONFLICT-kind error wrapping ErrJobNotDone if the job is
// still queued or running (the facade's 202 case), NOT_FOUND if id is
// unknown, or the job's own error if it failed.
var ErrJobNotDone = fmt.Errorf("job not yet complete")

func (f *Facade) GetJobResult(ctx context.Context, id string) (*models.ExecutionResult, error) {
	job, err := f.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.State {
	case models.JobCompleted:
		return job.Result, nil
	case models.JobFailed:
		return nil, newError(ErrConflict, fmt.Errorf("job %q failed: %s", id, job.Error))
	case models.JobCancelled:
		return nil, newError(ErrConflict, fmt.Errorf("job %q was cancelled", id))
	default:
		return nil, newError(ErrConflict, ErrJobNotDone)
	}
}

// ListJobs returns every known job, optionally filtered by state and
// capped at limit (0 means unlimited) — a simple cap, not a cursor, per
// the pagination Non-goal.
func (f *Facade) ListJobs(ctx context.Context, state models.JobState, limit int) []*models.Job {
	all := f.sched.ListJobs()
	out := make([]*models.Job, 0, len(all))
	for _, j := range all {
		if state != "" && j.State != state {
			continue
		}
		out = append(out, j)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Cancel requests cancellation of a queued or running job.
func (f *Facade) Cancel(ctx context.Context, id string) error {
	if err := f.sched.Cancel(id); err != nil {
		return newError(ErrConflict, err)
	}
	return nil
}

// Validate delegates to the query validator.
func (f *Facade) Validate(ctx context.Context, engine, sql string) (*models.ValidationReport, error) {
	if err := validateSQL(sql); err != nil {
		return nil, newError(ErrInvalid, err)
	}
	report, err := f.validate.Validate(ctx, engine, sql)
	if err != nil {
		return nil, newError(ErrInvalid, err)
	}
	return report, nil
}

// SystemStatus reports scheduler capacity and job-state counts.
func (f *Facade) SystemStatus(ctx context.Context) models.SystemStatus {
	return f.sched.SystemStatus()
}

// RegisterSchemaFromProto registers (or re-registers) a schema compiled
// from protoSource.
func (f *Facade) RegisterSchemaFromProto(ctx context.Context, protoSource, tableName, databaseName string) (*models.Schema, error) {
	if err := validateTableName(tableName); err != nil {
		return nil, newError(ErrInvalid, err)
	}
	s, err := f.registry.RegisterFromProto(ctx, protoSource, tableName, databaseName)
	if err != nil {
		return nil, newError(ErrSchemaTranslation, err)
	}
	return s, nil
}

// RegisterSchemaFromJSON registers (or re-registers) a schema from an
// explicit BigQuery-style field list.
func (f *Facade) RegisterSchemaFromJSON(ctx context.Context, fields []models.SchemaField, tableName, databaseName, protoSource string) (*models.Schema, error) {
	if err := validateTableName(tableName); err != nil {
		return nil, newError(ErrInvalid, err)
	}
	s, err := f.registry.RegisterFromJSON(ctx, fields, tableName, databaseName, protoSource)
	if err != nil {
		return nil, newError(ErrInvalid, err)
	}
	return s, nil
}

// CreateTables translates and applies the given schema's DDL to the
// named engines.
func (f *Facade) CreateTables(ctx context.Context, schemaID string, engineNames []string, makeFlatView bool) (map[string]error, error) {
	selected := make(map[string]interfaces.ExecutionEngine, len(engineNames))
	for _, name := range engineNames {
		eng, ok := f.engines[name]
		if !ok {
			return nil, newError(ErrInvalid, fmt.Errorf("unknown engine %q", name))
		}
		selected[name] = eng
	}
	results, err := f.registry.CreateTables(ctx, schemaID, selected, makeFlatView)
	if err != nil {
		return nil, newError(ErrSchemaTranslation, err)
	}
	return results, nil
}

// ListSchemas returns every registered schema.
func (f *Facade) ListSchemas(ctx context.Context) ([]*models.Schema, error) {
	return f.registry.ListSchemas(ctx)
}

// GetSchema returns one schema, or a NOT_FOUND error.
func (f *Facade) GetSchema(ctx context.Context, schemaID string) (*models.Schema, error) {
	s, err := f.registry.GetSchema(ctx, schemaID)
	if err != nil {
		return nil, newError(ErrEngine, err)
	}
	if s == nil {
		return nil, newError(ErrNotFound, fmt.Errorf("schema %q not found", schemaID))
	}
	return s, nil
}

// DeleteSchema removes a schema and every version/field beneath it.
func (f *Facade) DeleteSchema(ctx context.Context, schemaID string) error {
	if err := f.registry.Delete(ctx, schemaID); err != nil {
		return newError(ErrEngine, err)
	}
	return nil
}

// GetFlattenedViewSQL returns the flattened-view statement for a
// schema's current version, or "" if it has no nested fields.
func (f *Facade) GetFlattenedViewSQL(ctx context.Context, schemaID, engine string) (string, error) {
	if _, ok := f.engines[engine]; !ok {
		return "", newError(ErrInvalid, fmt.Errorf("unknown engine %q", engine))
	}
	sql, err := f.registry.GetFlattenedViewSQL(ctx, schemaID)
	if err != nil {
		return "", newError(ErrEngine, err)
	}
	return sql, nil
}

// Ingest decodes blob against schemaID's registered proto source and
// bulk-inserts it into engine.
func (f *Facade) Ingest(ctx context.Context, schemaID string, blob []byte, engine string, batchSize int, createIfMissing bool) (*models.IngestResult, error) {
	if err := validateBatchSize(normalizeBatchSize(batchSize)); err != nil {
		return nil, newError(ErrInvalid, err)
	}
	if _, ok := f.engines[engine]; !ok {
		return nil, newError(ErrInvalid, fmt.Errorf("unknown engine %q", engine))
	}
	result, err := f.ingester.Ingest(ctx, schemaID, blob, f.engines, engine, batchSize, createIfMissing)
	if err != nil {
		return nil, newError(ErrConflict, err)
	}
	return result, nil
}

// normalizeBatchSize mirrors Ingester.Ingest's own zero-means-default
// rule so validation doesn't reject the caller's "use the default" zero.
func normalizeBatchSize(n int) int {
	if n <= 0 {
		return 1000
	}
	return n
}

// historyToJob projects a terminal HistoryRecord back into the Job
// shape GetJob returns, for jobs old enough to have left the scheduler's
// in-memory map.
func historyToJob(rec *models.HistoryRecord) *models.Job {
	return &models.Job{
		ID:          rec.JobID,
		SQL:         rec.SQL,
		Engine:      rec.Engine,
		Priority:    rec.Priority,
		State:       rec.State,
		CreatedAt:   rec.CreatedAt,
		StartedAt:   rec.StartedAt,
		CompletedAt: rec.CompletedAt,
		Error:       rec.Error,
	}
}
