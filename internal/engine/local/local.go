// Package local implements the local columnar engine adapter, grounded
// on original_source/backend/runners/duckdb_runner.py: zero added
// latency, execution is entirely in-process.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/engine/columnar"
	"github.com/bobmcallan/bqlite/internal/models"
)

// Engine is the local columnar engine adapter.
type Engine struct {
	mu     sync.Mutex
	store  *columnar.Store
	logger *common.Logger
	status models.EngineStatus
}

// New returns an uninitialized local engine adapter.
func New(logger *common.Logger) *Engine {
	return &Engine{
		store:  columnar.NewStore(),
		logger: logger,
		status: models.EngineUninitialized,
	}
}

func (e *Engine) Name() string { return "local" }

// Initialize is idempotent: calling it again after a transient failure
// simply re-seeds any missing sample tables.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Seed()
	e.status = models.EngineAvailable
	e.logger.Info().Str("engine", e.Name()).Msg("execution engine initialized")
	return nil
}

func (e *Engine) Status() models.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Execute honors ctx cancellation cooperatively and maxExecSecs as an
// internal timeout, without holding any lock belonging to the slot pool
// (the store's own lock is private to this adapter).
func (e *Engine) Execute(ctx context.Context, sql string, maxExecSecs int) (*models.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("local: execution cancelled: %w", err)
	}
	if maxExecSecs <= 0 {
		maxExecSecs = 3600
	}
	timeout := time.Duration(maxExecSecs) * time.Second

	type out struct {
		res *models.ExecutionResult
		err error
	}
	ch := make(chan out, 1)
	go func() {
		res, err := e.store.Execute(sql)
		if res != nil {
			res.Engine = e.Name()
			res.Metrics.Engine = e.Name()
		}
		ch <- out{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("local: execution cancelled: %w", ctx.Err())
	case <-time.After(timeout):
		return nil, fmt.Errorf("local: execution exceeded max_execution_time of %ds", maxExecSecs)
	case o := <-ch:
		return o.res, o.err
	}
}

func (e *Engine) Validate(ctx context.Context, sql string) (*models.ValidationReport, error) {
	return e.store.Validate(sql), nil
}

func (e *Engine) Describe(ctx context.Context) (*models.SchemaInfo, error) {
	return e.store.Describe(e.Name()), nil
}

func (e *Engine) CreateTable(ctx context.Context, ddl string) error {
	return e.store.CreateTable(ddl)
}

func (e *Engine) BulkInsert(ctx context.Context, sql string) (int64, error) {
	return e.store.Insert(sql)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = models.EngineUnavailable
	return nil
}
