// Package remote implements the remote cluster engine adapter. It
// shares the same in-process columnar core as the local adapter but
// simulates the network hop of a clustered engine: added latency via
// golang.org/x/time/rate and defensive SQL sanitization of the kind a
// wire-protocol client would apply before handing text to a remote
// peer, grounded on original_source/backend/runners/clickhouse_runner.py.
package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/engine/columnar"
	"github.com/bobmcallan/bqlite/internal/models"
)

// Engine is the remote columnar cluster adapter.
type Engine struct {
	mu      sync.Mutex
	store   *columnar.Store
	logger  *common.Logger
	status  models.EngineStatus
	limiter *rate.Limiter
	latency time.Duration
}

// New returns an uninitialized remote engine adapter. latency is the
// simulated network round-trip applied to every Execute call.
func New(logger *common.Logger, latency time.Duration) *Engine {
	if latency <= 0 {
		latency = 25 * time.Millisecond
	}
	return &Engine{
		store:   columnar.NewStore(),
		logger:  logger,
		status:  models.EngineUninitialized,
		latency: latency,
		// Burst of 4 in-flight requests before the limiter starts
		// pacing calls to one every `latency`, approximating a
		// cluster coordinator with a small connection pool.
		limiter: rate.NewLimiter(rate.Every(latency), 4),
	}
}

func (e *Engine) Name() string { return "remote" }

func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("remote: connect: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Seed()
	e.status = models.EngineAvailable
	e.logger.Info().Str("engine", e.Name()).Dur("simulated_latency", e.latency).Msg("execution engine initialized")
	return nil
}

func (e *Engine) Status() models.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// sanitize strips a trailing ';' and any "--" line comment, the same
// defensive text-cleanup a remote wire client performs before framing
// a statement for a cluster peer.
func sanitize(sql string) string {
	lines := strings.Split(sql, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	sql = strings.Join(lines, "\n")
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sql), ";"))
}

func (e *Engine) Execute(ctx context.Context, sql string, maxExecSecs int) (*models.ExecutionResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}

	if maxExecSecs <= 0 {
		maxExecSecs = 3600
	}
	timeout := time.Duration(maxExecSecs)*time.Second - e.latency

	clean := sanitize(sql)

	type out struct {
		res *models.ExecutionResult
		err error
	}
	ch := make(chan out, 1)
	go func() {
		res, err := e.store.Execute(clean)
		if res != nil {
			res.Engine = e.Name()
			res.Metrics.Engine = e.Name()
			res.Metrics.NetworkTimeMS = float64(e.latency.Microseconds()) / 1000.0
			res.ExecutionMS += res.Metrics.NetworkTimeMS
		}
		ch <- out{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("remote: execution cancelled: %w", ctx.Err())
	case <-time.After(timeout):
		return nil, fmt.Errorf("remote: execution exceeded max_execution_time of %ds", maxExecSecs)
	case o := <-ch:
		return o.res, o.err
	}
}

func (e *Engine) Validate(ctx context.Context, sql string) (*models.ValidationReport, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	return e.store.Validate(sanitize(sql)), nil
}

func (e *Engine) Describe(ctx context.Context) (*models.SchemaInfo, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	return e.store.Describe(e.Name()), nil
}

func (e *Engine) CreateTable(ctx context.Context, ddl string) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	return e.store.CreateTable(sanitize(ddl))
}

func (e *Engine) BulkInsert(ctx context.Context, sql string) (int64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("remote: %w", err)
	}
	return e.store.Insert(sanitize(sql))
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = models.EngineUnavailable
	return nil
}
