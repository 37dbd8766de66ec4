package slotpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ReserveAllOrNothing(t *testing.T) {
	p := New(4)
	require.Equal(t, 4, p.CountAvailable())

	ids, ok := p.Reserve(3, "job-1")
	require.True(t, ok)
	assert.Len(t, ids, 3)
	assert.Equal(t, 1, p.CountAvailable())

	_, ok = p.Reserve(2, "job-2")
	assert.False(t, ok, "reserve must fail atomically when not enough slots are free")
	assert.Equal(t, 1, p.CountAvailable(), "a failed reserve must not change any state")
}

func TestPool_ReleaseIdempotent(t *testing.T) {
	p := New(2)
	ids, ok := p.Reserve(2, "job-1")
	require.True(t, ok)

	p.Release(ids)
	assert.Equal(t, 2, p.CountAvailable())

	p.Release(ids) // idempotent
	assert.Equal(t, 2, p.CountAvailable())
}

func TestPool_SnapshotStableOrder(t *testing.T) {
	p := New(3)
	snap := p.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "slot-0", snap[0].ID)
	assert.Equal(t, "slot-1", snap[1].ID)
	assert.Equal(t, "slot-2", snap[2].ID)
}

func TestPool_ConservationInvariant(t *testing.T) {
	p := New(8)
	ids, ok := p.Reserve(5, "job-1")
	require.True(t, ok)
	assert.Len(t, ids, 5)
	assert.Equal(t, 3, p.CountAvailable())
	assert.Equal(t, 8, len(ids)+p.CountAvailable())
	p.Release(ids)
	assert.Equal(t, 8, p.CountAvailable())
}
