// Package interfaces defines the contracts that separate the scheduler,
// registry, and ingester from their concrete backends, the same way the
// teacher's internal/interfaces package separates StorageManager and the
// market/portfolio clients from their implementations.
package interfaces

import (
	"context"

	"github.com/bobmcallan/bqlite/internal/models"
)

// ExecutionEngine runs SQL statements, estimates them, and reports its
// own schema and status. Each of the two adapters (local columnar
// engine, remote columnar cluster) implements this interface; the
// scheduler, ingester, and validator never see the adapters directly.
//
// Guarantees implementations must uphold (spec.md §4.4):
//   - Execute must not hold any lock belonging to the slot pool.
//   - Execute observes ctx cancellation cooperatively and returns
//     promptly when ctx is done; if cancellation cannot be observed
//     mid-statement, max_execution_time is still honored via an
//     internal timeout.
//   - Results are serializable: scalars, ISO-8601 timestamps, arrays,
//     nested maps — no opaque binary blobs.
type ExecutionEngine interface {
	// Name is the engine identifier exposed to facade callers
	// (the "engine selector value" of spec.md §6).
	Name() string

	// Initialize prepares the engine for use. Idempotent: safe to call
	// again after a transient failure.
	Initialize(ctx context.Context) error

	// Execute runs sql and returns its result. Must respect ctx
	// cancellation and honor maxExecSecs as an internal timeout.
	Execute(ctx context.Context, sql string, maxExecSecs int) (*models.ExecutionResult, error)

	// Validate never executes sql; it probes syntactic validity via an
	// EXPLAIN-style call and estimates cost.
	Validate(ctx context.Context, sql string) (*models.ValidationReport, error)

	// Describe reports the tables and columns currently known to the
	// engine.
	Describe(ctx context.Context) (*models.SchemaInfo, error)

	// Status reports the engine's current lifecycle state.
	Status() models.EngineStatus

	// CreateTable executes a DDL statement produced by the schema
	// translator against this engine.
	CreateTable(ctx context.Context, ddl string) error

	// BulkInsert executes a single batched insert statement produced by
	// the ingester against this engine.
	BulkInsert(ctx context.Context, sql string) (int64, error)

	// Close releases any resources held by the engine. After Close,
	// Status reports UNAVAILABLE.
	Close() error
}
