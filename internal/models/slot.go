package models

import "time"

// Slot is one unit of admitted concurrency. The slot set is fixed at
// startup; slots are mutated only by the scheduler loop. MemoryLimitMB
// and CPUCores are capacity hints generated once at construction time —
// informational only, never consulted by reserve/release (see
// SPEC_FULL.md §3 and §9 of spec.md).
type Slot struct {
	ID            string
	Available     bool
	AssignedJobID string
	AllocatedAt   time.Time
	MemoryLimitMB int
	CPUCores      int
}
