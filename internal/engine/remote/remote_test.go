package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(common.NewSilentLogger(), time.Millisecond)
	require.NoError(t, e.Initialize(context.Background()))
	return e
}

func TestEngine_InitializeSetsAvailable(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, models.EngineAvailable, e.Status())
}

func TestEngine_DefaultLatencyWhenNonPositive(t *testing.T) {
	e := New(common.NewSilentLogger(), 0)
	assert.Equal(t, 25*time.Millisecond, e.latency)
}

func TestEngine_ExecuteAddsNetworkTime(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Execute(context.Background(), "SELECT * FROM sample_data LIMIT 5", 30)
	require.NoError(t, err)
	assert.Equal(t, "remote", res.Engine)
	assert.Greater(t, res.Metrics.NetworkTimeMS, float64(0))
}

func TestEngine_SanitizeStripsCommentsAndSemicolon(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t", sanitize("SELECT * FROM t; -- trailing comment"))
	assert.Equal(t, "SELECT * FROM t", sanitize("SELECT * FROM t;"))
	assert.Equal(t, "SELECT * FROM t", sanitize("SELECT * FROM t"))
}

func TestEngine_ExecuteSanitizesBeforeRunning(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Execute(context.Background(), "SELECT * FROM sample_data LIMIT 1; -- note", 30)
	require.NoError(t, err)
	assert.Len(t, res.Data, 1)
}

func TestEngine_CreateTableAndBulkInsert(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.CreateTable(ctx, "CREATE TABLE t (id INTEGER)"))
	n, err := e.BulkInsert(ctx, "INSERT INTO t (id) VALUES (1),(2),(3)")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestEngine_CloseSetsUnavailable(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Close())
	assert.Equal(t, models.EngineUnavailable, e.Status())
}
