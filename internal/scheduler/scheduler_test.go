package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/engine/local"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
	"github.com/bobmcallan/bqlite/internal/slotpool"
)

// fakeHistoryStore is an in-memory interfaces.HistoryStore for tests
// that don't need a real SurrealDB backend.
type fakeHistoryStore struct {
	mu      sync.Mutex
	records map[string]*models.HistoryRecord
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{records: make(map[string]*models.HistoryRecord)}
}

func (f *fakeHistoryStore) Append(ctx context.Context, rec *models.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.JobID] = rec
	return nil
}

func (f *fakeHistoryStore) Get(ctx context.Context, jobID string) (*models.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[jobID], nil
}

func (f *fakeHistoryStore) List(ctx context.Context, opts interfaces.QueryOptions) ([]*models.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.HistoryRecord
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeHistoryStore) Reconcile(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeHistoryStore) Close() error                               { return nil }

func (f *fakeHistoryStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func newTestScheduler(t *testing.T, slots int) (*Scheduler, *fakeHistoryStore) {
	t.Helper()
	eng := local.New(common.NewSilentLogger())
	require.NoError(t, eng.Initialize(context.Background()))

	pool := slotpool.New(slots)
	hist := newFakeHistoryStore()
	s := New(pool, map[string]interfaces.ExecutionEngine{"local": eng}, hist, common.NewSilentLogger(), 20*time.Millisecond)
	return s, hist
}

func waitForTerminal(t *testing.T, s *Scheduler, id string, timeout time.Duration) *models.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job := s.GetJob(id)
		if job != nil && job.State.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state within %s", id, timeout)
	return nil
}

func TestScheduler_SubmitAndComplete(t *testing.T) {
	s, hist := newTestScheduler(t, 10)
	s.Start()
	defer s.Stop()

	job, err := s.Submit("SELECT * FROM sample_data LIMIT 5", "local", 1, 1, 30)
	require.NoError(t, err)

	final := waitForTerminal(t, s, job.ID, 2*time.Second)
	assert.Equal(t, models.JobCompleted, final.State)
	assert.Equal(t, int64(5), final.RowsProcessed)
	assert.Equal(t, 1, hist.count())
}

func TestScheduler_UnknownEngineRejected(t *testing.T) {
	s, _ := newTestScheduler(t, 10)
	_, err := s.Submit("SELECT 1", "nonexistent", 1, 1, 30)
	assert.Error(t, err)
}

func TestScheduler_SlotsReleasedAfterCompletion(t *testing.T) {
	s, _ := newTestScheduler(t, 2)
	s.Start()
	defer s.Stop()

	job, err := s.Submit("SELECT * FROM sample_data LIMIT 1", "local", 1, 2, 30)
	require.NoError(t, err)
	waitForTerminal(t, s, job.ID, 2*time.Second)

	// slot pool must report full capacity restored
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && s.pool.CountAvailable() != 2 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 2, s.pool.CountAvailable())
}

func TestScheduler_QueuedJobAdmittedWhenSlotsFree(t *testing.T) {
	s, _ := newTestScheduler(t, 1)
	s.Start()
	defer s.Stop()

	job1, err := s.Submit("SELECT * FROM sample_data LIMIT 1", "local", 1, 1, 30)
	require.NoError(t, err)
	job2, err := s.Submit("SELECT * FROM sample_data LIMIT 1", "local", 1, 1, 30)
	require.NoError(t, err)

	waitForTerminal(t, s, job1.ID, 2*time.Second)
	waitForTerminal(t, s, job2.ID, 2*time.Second)
}

// TestScheduler_CancelQueuedJob drives the queued-cancellation path
// directly rather than through Start()'s goroutine: a real executor
// finishes too fast (microseconds, in-memory) to reliably race against
// test-side timing, so the queued-removal behavior of handleCancel is
// exercised deterministically here instead.
func TestScheduler_CancelQueuedJob(t *testing.T) {
	s, hist := newTestScheduler(t, 1)
	job := &models.Job{ID: "q1", SQL: "SELECT 1", Engine: "local", State: models.JobQueued, CreatedAt: time.Now()}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()
	s.queue.Enqueue(job)

	s.handleCancel(job.ID)

	final := s.GetJob(job.ID)
	require.NotNil(t, final)
	assert.Equal(t, models.JobCancelled, final.State)
	assert.Equal(t, 1, hist.count())
}

func TestScheduler_CancelUnknownJob(t *testing.T) {
	s, _ := newTestScheduler(t, 1)
	err := s.Cancel("doesnotexist")
	assert.Error(t, err)
}

func TestScheduler_ListJobsIncludesSubmitted(t *testing.T) {
	s, _ := newTestScheduler(t, 10)
	s.Start()
	defer s.Stop()

	job, err := s.Submit("SELECT * FROM sample_data LIMIT 1", "local", 1, 1, 30)
	require.NoError(t, err)
	waitForTerminal(t, s, job.ID, 2*time.Second)

	jobs := s.ListJobs()
	found := false
	for _, j := range jobs {
		if j.ID == job.ID {
			found = true
		}
	}
	assert.True(t, found)
}
