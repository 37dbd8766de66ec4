package historystore

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
)

// newCacheOnlyStore builds a Store whose read cache is pre-populated
// directly, bypassing SurrealDB entirely — Get/List never touch s.db,
// so this is sufficient to exercise their logic in isolation.
func newCacheOnlyStore(t *testing.T, recs ...*models.HistoryRecord) *Store {
	t.Helper()
	cache, err := memdb.NewMemDB(memdbSchema())
	require.NoError(t, err)
	txn := cache.Txn(true)
	for _, r := range recs {
		require.NoError(t, txn.Insert("history", r))
	}
	txn.Commit()
	return &Store{cache: cache}
}

func rec(id string, state models.JobState, createdAt time.Time) *models.HistoryRecord {
	return &models.HistoryRecord{JobID: id, State: state, CreatedAt: createdAt, Engine: "local", SQL: "SELECT 1"}
}

func TestGet_ReturnsNilWhenAbsent(t *testing.T) {
	s := newCacheOnlyStore(t)
	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGet_ReturnsStoredRecord(t *testing.T) {
	now := time.Now().UTC()
	s := newCacheOnlyStore(t, rec("job-1", models.JobCompleted, now))
	got, err := s.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, models.JobCompleted, got.State)
}

func TestList_OrdersMostRecentFirst(t *testing.T) {
	base := time.Now().UTC()
	s := newCacheOnlyStore(t,
		rec("older", models.JobCompleted, base.Add(-time.Hour)),
		rec("newer", models.JobCompleted, base),
	)
	got, err := s.List(context.Background(), interfaces.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].JobID)
	assert.Equal(t, "older", got[1].JobID)
}

func TestList_RespectsSinceFilter(t *testing.T) {
	base := time.Now().UTC()
	s := newCacheOnlyStore(t,
		rec("old", models.JobFailed, base.Add(-2*time.Hour)),
		rec("new", models.JobFailed, base),
	)
	got, err := s.List(context.Background(), interfaces.QueryOptions{Since: base.Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].JobID)
}

func TestList_RespectsLimit(t *testing.T) {
	base := time.Now().UTC()
	s := newCacheOnlyStore(t,
		rec("a", models.JobCompleted, base),
		rec("b", models.JobCompleted, base.Add(-time.Minute)),
		rec("c", models.JobCompleted, base.Add(-2*time.Minute)),
	)
	got, err := s.List(context.Background(), interfaces.QueryOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRowToRecord_RoundTripsAllFields(t *testing.T) {
	now := time.Now().UTC()
	r := row{
		JobID: "job-9", SQL: "SELECT 1", Engine: "remote", State: string(models.JobFailed),
		Priority: 3, CreatedAt: now, StartedAt: now, CompletedAt: now,
		ExecutionMS: 12.5, Error: "boom", ResultSummary: "{}",
	}
	out := rowToRecord(r)
	assert.Equal(t, "job-9", out.JobID)
	assert.Equal(t, models.JobFailed, out.State)
	assert.Equal(t, 3, out.Priority)
	assert.Equal(t, "boom", out.Error)
}
