package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/engine/local"
	"github.com/bobmcallan/bqlite/internal/interfaces"
)

func TestValidator_DelegatesToNamedEngine(t *testing.T) {
	ctx := context.Background()
	e := local.New(common.NewSilentLogger())
	require.NoError(t, e.Initialize(ctx))

	v := New(map[string]interfaces.ExecutionEngine{"local": e})
	report, err := v.Validate(ctx, "local", "SELECT * FROM sample_data LIMIT 1")
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestValidator_UnknownEngine(t *testing.T) {
	v := New(map[string]interfaces.ExecutionEngine{})
	_, err := v.Validate(context.Background(), "missing", "SELECT 1")
	assert.Error(t, err)
}
