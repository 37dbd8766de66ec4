// Package slotpool implements the fixed-size compute slot pool (F),
// SPEC_FULL.md §4.1. Reserve is all-or-nothing, release is idempotent,
// slot identity is stable across the process lifetime.
package slotpool

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hashicorp/go-set/v3"

	"github.com/bobmcallan/bqlite/internal/models"
)

// Pool is a mutex-guarded fixed set of slots. All mutation happens from
// the scheduler loop goroutine, which also releases a job's slots when
// its executor reports completion; Reserve/Release/CountAvailable are
// nonetheless safe to call from any goroutine.
type Pool struct {
	mu        sync.Mutex
	slots     map[string]*models.Slot
	available *set.Set[string] // ids currently unreserved
	order     []string         // stable iteration order, slot-0 .. slot-n
}

// New creates a pool of n slots with randomized, purely cosmetic
// capacity hints (never consulted by Reserve/Release — see SPEC_FULL.md
// §3, grounded on original_source/scripts/scheduler.py's Slot dataclass).
func New(n int) *Pool {
	p := &Pool{
		slots:     make(map[string]*models.Slot, n),
		available: set.New[string](n),
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("slot-%d", i)
		p.slots[id] = &models.Slot{
			ID:            id,
			Available:     true,
			MemoryLimitMB: 512 + rng.Intn(3584),
			CPUCores:      1 + rng.Intn(4),
		}
		p.available.Insert(id)
		p.order = append(p.order, id)
	}
	return p
}

// Total returns the fixed slot count.
func (p *Pool) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// CountAvailable returns the number of currently unreserved slots.
func (p *Pool) CountAvailable() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available.Size()
}

// Reserve attempts to atomically claim n slots. Either all n become
// unavailable and their ids are returned, or (if fewer than n are free)
// no state changes and ok is false.
func (p *Pool) Reserve(n int, jobID string) (ids []string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n <= 0 || p.available.Size() < n {
		return nil, false
	}

	claimed := make([]string, 0, n)
	for _, id := range p.order {
		if len(claimed) == n {
			break
		}
		if p.available.Contains(id) {
			claimed = append(claimed, id)
		}
	}

	now := time.Now()
	for _, id := range claimed {
		p.available.Remove(id)
		s := p.slots[id]
		s.Available = false
		s.AssignedJobID = jobID
		s.AllocatedAt = now
	}
	return claimed, true
}

// Release returns ids to the available set. Idempotent: releasing an
// already-available id is a no-op.
func (p *Pool) Release(ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		s, exists := p.slots[id]
		if !exists || s.Available {
			continue
		}
		s.Available = true
		s.AssignedJobID = ""
		p.available.Insert(id)
	}
}

// Snapshot returns a copy of every slot's current state, in stable
// slot-0..slot-n order.
func (p *Pool) Snapshot() []models.Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Slot, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.slots[id])
	}
	return out
}
