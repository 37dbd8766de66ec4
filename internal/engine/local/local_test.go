package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(common.NewSilentLogger())
	require.NoError(t, e.Initialize(context.Background()))
	return e
}

func TestEngine_InitializeSetsAvailable(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, models.EngineAvailable, e.Status())
}

func TestEngine_Name(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, "local", e.Name())
}

func TestEngine_CreateTableAndBulkInsert(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.CreateTable(ctx, "CREATE TABLE t (id INTEGER, label VARCHAR)"))
	n, err := e.BulkInsert(ctx, "INSERT INTO t (id,label) VALUES (1,'a'),(2,'b')")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestEngine_ExecuteSelect(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Execute(ctx, "SELECT * FROM sample_data LIMIT 10", 30)
	require.NoError(t, err)
	assert.Equal(t, "local", res.Engine)
	assert.Equal(t, "local", res.Metrics.Engine)
	assert.Equal(t, float64(0), res.Metrics.NetworkTimeMS)
	assert.Len(t, res.Data, 10)
}

func TestEngine_ExecuteRespectsContextCancellation(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, "SELECT * FROM sample_data LIMIT 1", 30)
	assert.Error(t, err)
}

func TestEngine_Validate(t *testing.T) {
	e := newTestEngine(t)
	report, err := e.Validate(context.Background(), "SELECT * FROM sample_data")
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestEngine_Describe(t *testing.T) {
	e := newTestEngine(t)
	info, err := e.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", info.EngineName)
	found := false
	for _, tbl := range info.Tables {
		if tbl.Name == "sample_data" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEngine_CloseSetsUnavailable(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Close())
	assert.Equal(t, models.EngineUnavailable, e.Status())
}
