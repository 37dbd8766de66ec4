// Package scheduler implements the Job Lifecycle & Scheduler Loop (H):
// a single goroutine owns the pending queue and slot pool, admitting
// jobs against available capacity and dispatching each admitted job to
// a safeGo'd executor task. Grounded on
// internal/services/jobmanager/manager.go's processLoop/safeGo/
// semaphore pattern, adapted from a DB-polling loop to an in-process
// priority queue + slot pool.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/bqlite/internal/common"
	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/jobqueue"
	"github.com/bobmcallan/bqlite/internal/models"
	"github.com/bobmcallan/bqlite/internal/slotpool"
)

// doneMsg is how an executor goroutine reports completion back to the
// single run-loop goroutine, preserving the "only the loop touches
// queue+pool state" discipline.
type doneMsg struct {
	jobID      string
	slotIDs    []string
	result     *models.ExecutionResult
	err        error
}

// Scheduler admits queued jobs against slot capacity and runs them
// through one of the registered ExecutionEngine adapters.
type Scheduler struct {
	pool    *slotpool.Pool
	queue   *jobqueue.Queue // owned exclusively by the run-loop goroutine
	engines map[string]interfaces.ExecutionEngine
	history interfaces.HistoryStore
	logger  *common.Logger
	tick    time.Duration

	jobsMu sync.RWMutex
	jobs   map[string]*models.Job // every known job, terminal or not

	cancels map[string]context.CancelFunc // running jobs only, owned by run loop

	submitCh chan *models.Job
	cancelCh chan string
	doneCh   chan doneMsg

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs a Scheduler. engines must contain at least the engine
// names jobs will reference; tick is the periodic admission wake
// interval (spec.md §4.3's "wake on submission or <=1s tick").
func New(pool *slotpool.Pool, engines map[string]interfaces.ExecutionEngine, history interfaces.HistoryStore, logger *common.Logger, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{
		pool:     pool,
		queue:    jobqueue.New(),
		engines:  engines,
		history:  history,
		logger:   logger,
		tick:     tick,
		jobs:     make(map[string]*models.Job),
		cancels:  make(map[string]context.CancelFunc),
		submitCh: make(chan *models.Job, 64),
		cancelCh: make(chan string, 64),
		doneCh:   make(chan doneMsg, 64),
	}
}

// safeGo launches a goroutine with panic recovery and logging, mirroring
// the teacher's JobManager.safeGo.
func (s *Scheduler) safeGo(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("recovered from panic in scheduler goroutine")
			}
		}()
		fn()
	}()
}

// Start launches the admission loop. Safe to call once; calling Start
// twice without an intervening Stop is a no-op.
func (s *Scheduler) Start() {
	if s.runCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.runCancel = cancel
	s.safeGo("scheduler-loop", func() { s.runLoop(ctx) })
	s.logger.Info().Int("total_slots", s.pool.Total()).Dur("tick", s.tick).Msg("scheduler started")
}

// Stop cancels the admission loop, waits for it and all outstanding
// executors to return, then returns. Running jobs are cancelled
// advisorily — Stop does not itself release their slots, and once the
// loop has exited no executor completion is processed, so those slots
// stay reserved.
func (s *Scheduler) Stop() {
	if s.runCancel == nil {
		return
	}
	s.runCancel()
	s.runCancel = nil
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Submit admits a new job for queueing. The job's ID, State, and
// CreatedAt are assigned here; callers must not set them.
func (s *Scheduler) Submit(sql, engine string, priority, estimatedSlots, maxExecSecs int) (*models.Job, error) {
	if _, ok := s.engines[engine]; !ok {
		return nil, fmt.Errorf("scheduler: unknown engine %q", engine)
	}

	job := &models.Job{
		ID:             uuid.New().String()[:8],
		SQL:            sql,
		Engine:         engine,
		Priority:       priority,
		EstimatedSlots: estimatedSlots,
		MaxExecSecs:    maxExecSecs,
		State:          models.JobQueued,
		CreatedAt:      time.Now().UTC(),
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	s.submitCh <- job
	return job.Clone(), nil
}

// GetJob returns a snapshot of the job with the given id, or nil if
// unknown.
func (s *Scheduler) GetJob(id string) *models.Job {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	return s.jobs[id].Clone()
}

// ListJobs returns a snapshot of every known job.
func (s *Scheduler) ListJobs() []*models.Job {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	out := make([]*models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	return out
}

// SystemStatus reports slot capacity and a point-in-time job-state
// census, the data backing the facade's system_status() operation
// (spec.md §6).
func (s *Scheduler) SystemStatus() models.SystemStatus {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	st := models.SystemStatus{
		TotalSlots: s.pool.Total(),
		Available:  s.pool.CountAvailable(),
		Engines:    make(map[string]models.EngineStatus, len(s.engines)),
	}
	for _, j := range s.jobs {
		switch j.State {
		case models.JobQueued:
			st.Queued++
		case models.JobRunning:
			st.Running++
		case models.JobCompleted:
			st.Completed++
		case models.JobFailed:
			st.Failed++
		case models.JobCancelled:
			st.Cancelled++
		}
	}
	for name, eng := range s.engines {
		st.Engines[name] = eng.Status()
	}
	return st
}

// Cancel requests cancellation of a queued or running job. Cancellation
// of a running job is advisory only: the executor's context is
// cancelled, but the engine adapter decides how quickly it observes
// that. No automatic retry ever occurs.
func (s *Scheduler) Cancel(id string) error {
	s.jobsMu.RLock()
	job, ok := s.jobs[id]
	s.jobsMu.RUnlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown job %q", id)
	}
	if job.State.IsTerminal() {
		return fmt.Errorf("scheduler: job %q already in terminal state %s", id, job.State)
	}
	s.cancelCh <- id
	return nil
}
