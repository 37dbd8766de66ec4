package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bobmcallan/bqlite/internal/models"
)

// runLoop is the single goroutine that owns queue and pool state. It
// wakes on submission, on job completion, on cancellation requests, and
// at least once per tick — matching spec.md §4.3.
func (s *Scheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.submitCh:
			s.queue.Enqueue(job)
			s.tryDispatch(ctx)
		case id := <-s.cancelCh:
			s.handleCancel(id)
			s.tryDispatch(ctx)
		case msg := <-s.doneCh:
			s.handleDone(msg)
			s.tryDispatch(ctx)
		case <-ticker.C:
			s.tryDispatch(ctx)
		}
	}
}

// tryDispatch admits as many queued jobs as current slot availability
// allows, highest priority first. It never blocks: a job whose
// estimated_slots cannot currently be satisfied stays at the front of
// the queue and dispatch stops (a later, lower-priority job is never
// allowed to jump ahead of it).
func (s *Scheduler) tryDispatch(ctx context.Context) {
	for {
		job := s.queue.Peek()
		if job == nil {
			return
		}
		ids, ok := s.pool.Reserve(job.EstimatedSlots, job.ID)
		if !ok {
			return
		}
		s.queue.Pop()
		s.dispatch(ctx, job, ids)
	}
}

// dispatch transitions job to RUNNING and launches its executor.
func (s *Scheduler) dispatch(ctx context.Context, job *models.Job, slotIDs []string) {
	job.State = models.JobRunning
	job.StartedAt = time.Now().UTC()
	job.ActualSlots = len(slotIDs)

	execCtx, cancel := context.WithCancel(ctx)
	s.cancels[job.ID] = cancel

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	engine := s.engines[job.Engine]
	s.safeGo("executor-"+job.ID, func() {
		s.executeJob(execCtx, job, slotIDs, engine)
	})
}

// handleCancel processes a cancellation request for either a queued or
// a running job.
func (s *Scheduler) handleCancel(id string) {
	if job := s.queue.Remove(id); job != nil {
		job.State = models.JobCancelled
		job.CompletedAt = time.Now().UTC()
		s.finalize(job, nil, nil)
		return
	}
	if cancel, ok := s.cancels[id]; ok {
		s.jobsMu.Lock()
		if job := s.jobs[id]; job != nil {
			// Mark CANCELLED now: spec requires the terminal state to be
			// CANCELLED once requested, regardless of whether the executor
			// manages to observe ctx.Done() before it would have finished
			// anyway.
			job.State = models.JobCancelled
		}
		s.jobsMu.Unlock()
		cancel() // advisory only; the executor observes ctx.Done() on its own schedule
	}
}

// handleDone processes an executor's completion report: releases its
// slots and finalizes the job.
func (s *Scheduler) handleDone(msg doneMsg) {
	s.pool.Release(msg.slotIDs)
	delete(s.cancels, msg.jobID)

	s.jobsMu.RLock()
	job := s.jobs[msg.jobID]
	s.jobsMu.RUnlock()
	if job == nil {
		return
	}

	job.CompletedAt = time.Now().UTC()
	switch {
	case job.State == models.JobCancelled:
		// cancellation was requested before the executor returned; the
		// terminal state stays CANCELLED regardless of how it finished.
	case msg.err != nil:
		job.State = models.JobFailed
		job.Error = msg.err.Error()
	default:
		job.State = models.JobCompleted
		job.Result = msg.result
		job.RowsProcessed = msg.result.RowCount
		job.MemoryUsedMB = msg.result.Metrics.MemoryUsedMB
	}
	s.finalize(job, msg.result, msg.err)
}

// finalize stores the terminal job state and appends it to the durable
// history store. The in-memory jobs map is updated first so a
// concurrent GetJob never observes a job that vanished from history
// without ever being queued/running.
func (s *Scheduler) finalize(job *models.Job, result *models.ExecutionResult, execErr error) {
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	rec := &models.HistoryRecord{
		JobID:       job.ID,
		SQL:         job.SQL,
		Engine:      job.Engine,
		State:       job.State,
		Priority:    job.Priority,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if result != nil {
		rec.ExecutionMS = result.ExecutionMS
		if summary, err := json.Marshal(struct {
			RowCount int64  `json:"row_count"`
			Engine   string `json:"engine"`
		}{RowCount: result.RowCount, Engine: result.Engine}); err == nil {
			rec.ResultSummary = string(summary)
		}
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	}

	if err := s.history.Append(context.Background(), rec); err != nil {
		s.logger.Warn().Str("job_id", job.ID).Err(err).Msg("failed to append job history")
	}
}
