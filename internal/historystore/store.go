// Package historystore implements the durable Job History Store (B):
// an append-only SurrealDB-backed record of terminal jobs, fronted by an
// in-process hashicorp/go-memdb read cache (spec.md's "history store is
// append-only, writers serialize" requirement, adapted from
// internal/storage/surrealdb/jobqueue.go's UPSERT idiom). Reconcile
// mirrors JobQueueStore.ResetRunningJobs, adapted per SPEC_FULL.md §10:
// a record still RUNNING when the store is opened did not survive a
// process restart (scheduler state is in-process, not durable), so it
// is marked FAILED rather than resurrected.
package historystore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
)

// row is the SurrealDB-persisted shape of one HistoryRecord.
type row struct {
	JobID         string    `json:"job_id"`
	SQL           string    `json:"sql"`
	Engine        string    `json:"engine"`
	State         string    `json:"state"`
	Priority      int       `json:"priority"`
	CreatedAt     time.Time `json:"created_at"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	ExecutionMS   float64   `json:"execution_ms"`
	Error         string    `json:"error"`
	ResultSummary string    `json:"result_summary"`
}

// Store is the SurrealDB + go-memdb HistoryStore implementation.
type Store struct {
	db     *surrealdb.DB
	logger *common.Logger

	mu    sync.RWMutex
	cache *memdb.MemDB
}

func memdbSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"history": {
				Name: "history",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "JobID"},
					},
				},
			},
		},
	}
}

// New constructs a Store and loads every existing row into the in-process
// cache so List/Get never hit SurrealDB on the read path.
func New(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Store, error) {
	cache, err := memdb.NewMemDB(memdbSchema())
	if err != nil {
		return nil, fmt.Errorf("historystore: building read cache: %w", err)
	}
	s := &Store{db: db, logger: logger, cache: cache}
	if err := s.loadCache(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadCache(ctx context.Context) error {
	rows, err := surrealdb.Query[[]row](ctx, s.db, "SELECT * FROM history", nil)
	if err != nil {
		return fmt.Errorf("historystore: loading cache: %w", err)
	}
	if rows == nil || len(*rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.cache.Txn(true)
	for _, r := range (*rows)[0].Result {
		if err := txn.Insert("history", rowToRecord(r)); err != nil {
			txn.Abort()
			return fmt.Errorf("historystore: populating cache: %w", err)
		}
	}
	txn.Commit()
	return nil
}

// Append writes rec to SurrealDB then the read cache. Must never be
// called twice for the same JobID (the scheduler enforces this).
func (s *Store) Append(ctx context.Context, rec *models.HistoryRecord) error {
	sql := `UPSERT $rid SET
		job_id = $job_id, sql = $sql, engine = $engine, state = $state,
		priority = $priority, created_at = $created_at, started_at = $started_at,
		completed_at = $completed_at, execution_ms = $execution_ms, error = $error,
		result_summary = $result_summary`
	vars := map[string]any{
		"rid":            surrealmodels.NewRecordID("history", rec.JobID),
		"job_id":         rec.JobID,
		"sql":            rec.SQL,
		"engine":         rec.Engine,
		"state":          string(rec.State),
		"priority":       rec.Priority,
		"created_at":     rec.CreatedAt,
		"started_at":     rec.StartedAt,
		"completed_at":   rec.CompletedAt,
		"execution_ms":   rec.ExecutionMS,
		"error":          rec.Error,
		"result_summary": rec.ResultSummary,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("historystore: appending %s: %w", rec.JobID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.cache.Txn(true)
	cp := *rec
	if err := txn.Insert("history", &cp); err != nil {
		txn.Abort()
		return fmt.Errorf("historystore: caching %s: %w", rec.JobID, err)
	}
	txn.Commit()
	return nil
}

// Get looks up one history record by job id from the read cache.
func (s *Store) Get(ctx context.Context, jobID string) (*models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn := s.cache.Txn(false)
	raw, err := txn.First("history", "id", jobID)
	if err != nil {
		return nil, fmt.Errorf("historystore: get %s: %w", jobID, err)
	}
	if raw == nil {
		return nil, nil
	}
	rec := *raw.(*models.HistoryRecord)
	return &rec, nil
}

// List returns history records matching opts, most recent first.
func (s *Store) List(ctx context.Context, opts interfaces.QueryOptions) ([]*models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn := s.cache.Txn(false)
	it, err := txn.Get("history", "id")
	if err != nil {
		return nil, fmt.Errorf("historystore: list: %w", err)
	}

	var out []*models.HistoryRecord
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rec := raw.(*models.HistoryRecord)
		if !opts.Since.IsZero() && rec.CreatedAt.Before(opts.Since) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Reconcile marks any record left RUNNING by a prior crash as FAILED —
// there is no durable queue to resume it from (spec.md §4.2 keeps the
// pending queue in-process only), so the history store's job view must
// not claim it is still running.
func (s *Store) Reconcile(ctx context.Context) (int, error) {
	rows, err := surrealdb.Query[[]row](ctx, s.db, "SELECT * FROM history WHERE state = $running",
		map[string]any{"running": string(models.JobRunning)})
	if err != nil {
		return 0, fmt.Errorf("historystore: reconcile select: %w", err)
	}
	if rows == nil || len(*rows) == 0 || len((*rows)[0].Result) == 0 {
		return 0, nil
	}

	const reconcileError = "process restarted while running"
	now := time.Now().UTC()
	count := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.cache.Txn(true)
	for _, r := range (*rows)[0].Result {
		updateSQL := `UPDATE $rid SET state = $failed, error = $error, completed_at = $now WHERE state = $running`
		updateVars := map[string]any{
			"rid":     surrealmodels.NewRecordID("history", r.JobID),
			"failed":  string(models.JobFailed),
			"error":   reconcileError,
			"now":     now,
			"running": string(models.JobRunning),
		}
		if _, err := surrealdb.Query[any](ctx, s.db, updateSQL, updateVars); err != nil {
			txn.Abort()
			return count, fmt.Errorf("historystore: reconciling %s: %w", r.JobID, err)
		}
		r.State = string(models.JobFailed)
		r.Error = reconcileError
		r.CompletedAt = now
		if err := txn.Insert("history", rowToRecord(r)); err != nil {
			txn.Abort()
			return count, fmt.Errorf("historystore: updating cache for %s: %w", r.JobID, err)
		}
		count++
	}
	txn.Commit()

	if count > 0 {
		s.logger.Warn().Int("count", count).Msg("reconciled orphaned RUNNING history records after restart")
	}
	return count, nil
}

// Close is a no-op: the underlying connection's lifetime is owned by the
// shared storage manager, matching SchemaStore.Close.
func (s *Store) Close() error { return nil }

func rowToRecord(r row) *models.HistoryRecord {
	return &models.HistoryRecord{
		JobID:         r.JobID,
		SQL:           r.SQL,
		Engine:        r.Engine,
		State:         models.JobState(r.State),
		Priority:      r.Priority,
		CreatedAt:     r.CreatedAt,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		ExecutionMS:   r.ExecutionMS,
		Error:         r.Error,
		ResultSummary: r.ResultSummary,
	}
}

var _ interfaces.HistoryStore = (*Store)(nil)
