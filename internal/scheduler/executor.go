package scheduler

import (
	"context"

	"github.com/bobmcallan/bqlite/internal/interfaces"
	"github.com/bobmcallan/bqlite/internal/models"
)

// executeJob runs one admitted job against its engine and reports
// completion back to the run loop over doneCh. It never touches
// queue/pool state directly, preserving the single-owner-goroutine
// discipline for those structures.
func (s *Scheduler) executeJob(ctx context.Context, job *models.Job, slotIDs []string, engine interfaces.ExecutionEngine) {
	result, err := engine.Execute(ctx, job.SQL, job.MaxExecSecs)
	s.doneCh <- doneMsg{
		jobID:   job.ID,
		slotIDs: slotIDs,
		result:  result,
		err:     err,
	}
}
