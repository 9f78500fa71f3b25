package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrNoSlot is returned when no concurrency slot became free within the
// configured wait bound. The caller may retry later; the gate never
// admits over capacity.
var ErrNoSlot = errors.New("no concurrency slot available")

// Gate is a bounded counting semaphore limiting how many solver
// invocations execute simultaneously. At no point do more than capacity
// slots exist; that is the one non-negotiable invariant here.
type Gate struct {
	capacity int
	wait     time.Duration
	sem      *semaphore.Weighted
	active   atomic.Int64
}

// NewGate creates a gate with the given capacity. wait bounds how long
// Acquire blocks for a free slot; zero means immediate rejection.
func NewGate(capacity int, wait time.Duration) *Gate {
	return &Gate{
		capacity: capacity,
		wait:     wait,
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Slot is one unit of gate capacity, exclusively owned by a single
// in-flight invocation from admission until release.
type Slot struct {
	RequestID         string
	Tool              string
	AcquiredAt        time.Time
	EstimatedMemoryMB int

	gate *Gate
	once sync.Once
}

// Release returns the slot to the gate. It is safe to call from any exit
// path; sync.Once makes a double release structurally impossible.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.gate.active.Add(-1)
		s.gate.sem.Release(1)
	})
}

// Acquire claims a slot for the given request, blocking up to the
// configured wait bound. It returns ErrNoSlot when the bound elapses
// with the gate still full, or the context error when the caller's
// context ends first.
func (g *Gate) Acquire(ctx context.Context, requestID, tool string, estimatedMB int) (*Slot, error) {
	if g.wait <= 0 {
		if !g.sem.TryAcquire(1) {
			return nil, ErrNoSlot
		}
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, g.wait)
		err := g.sem.Acquire(waitCtx, 1)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrNoSlot
		}
	}
	g.active.Add(1)
	return &Slot{
		RequestID:         requestID,
		Tool:              tool,
		AcquiredAt:        time.Now().UTC(),
		EstimatedMemoryMB: estimatedMB,
		gate:              g,
	}, nil
}

// Active returns the number of live slots.
func (g *Gate) Active() int { return int(g.active.Load()) }

// Capacity returns the maximum number of simultaneous slots.
func (g *Gate) Capacity() int { return g.capacity }
