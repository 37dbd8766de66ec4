// Package jobqueue implements the in-process, priority-ordered pending
// job queue (G): spec.md §4.2. Only the scheduler loop goroutine calls
// into a Queue, so no internal locking is needed — the same
// single-owner-goroutine discipline the teacher's jobmanager applies to
// its processLoop.
//
// Ordering is (priority ascending, created_at ascending), backed by
// Go's standard container/heap — the idiomatic stdlib priority-queue
// primitive (see DESIGN.md for why no third-party priority-queue
// library from the example pack was used instead).
package jobqueue

import (
	"container/heap"

	"github.com/bobmcallan/bqlite/internal/models"
)

type entry struct {
	job   *models.Job
	index int // maintained by heap.Interface for O(log n) Remove
}

type innerHeap []*entry

func (h innerHeap) Len() int { return len(h) }

func (h innerHeap) Less(i, j int) bool {
	a, b := h[i].job, h[j].job
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *innerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a priority-ordered multiset of pending jobs.
type Queue struct {
	h     innerHeap
	byID  map[string]*entry
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{byID: make(map[string]*entry)}
}

// Enqueue adds job to the queue.
func (q *Queue) Enqueue(job *models.Job) {
	e := &entry{job: job}
	heap.Push(&q.h, e)
	q.byID[job.ID] = e
}

// Peek returns the highest-priority job without removing it, or nil if
// the queue is empty.
func (q *Queue) Peek() *models.Job {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0].job
}

// Pop removes and returns the highest-priority job, or nil if the queue
// is empty.
func (q *Queue) Pop() *models.Job {
	if len(q.h) == 0 {
		return nil
	}
	e := heap.Pop(&q.h).(*entry)
	delete(q.byID, e.job.ID)
	return e.job
}

// Remove removes the job with the given id, wherever it sits in the
// heap, in O(log n). Returns the removed job, or nil if id is not
// present.
func (q *Queue) Remove(id string) *models.Job {
	e, ok := q.byID[id]
	if !ok {
		return nil
	}
	heap.Remove(&q.h, e.index)
	delete(q.byID, id)
	return e.job
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	return len(q.h)
}

// Iter returns a snapshot slice of every pending job, in no particular
// order (callers that need priority order should repeatedly Pop a
// cloned queue, or sort the snapshot).
func (q *Queue) Iter() []*models.Job {
	out := make([]*models.Job, 0, len(q.h))
	for _, e := range q.h {
		out = append(out, e.job)
	}
	return out
}
