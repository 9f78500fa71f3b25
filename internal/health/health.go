// Package health aggregates the snapshot provider and concurrency gate
// into one externally queryable status object.
package health

import (
	"time"

	"github.com/solvergate/solvergate/internal/resource"
)

// memoryMargin is the fraction of the memory budget that must remain
// free for the server to report ok.
const memoryMargin = 0.1

// Status values reported to callers.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Report is the externally visible health shape.
type Report struct {
	Status                string    `json:"status"`
	ActiveRequests        int       `json:"active_requests"`
	MaxConcurrentRequests int       `json:"max_concurrent_requests"`
	MemoryUsedMB          int       `json:"memory_used_mb"`
	MemoryLimitMB         int       `json:"memory_limit_mb"`
	SnapshotStale         bool      `json:"snapshot_stale,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// SnapshotSource supplies memory snapshots. resource.Provider satisfies
// it; tests substitute fixed readings.
type SnapshotSource interface {
	Snapshot() resource.Snapshot
}

// Reporter reads the shared resource state. All methods are safe to call
// at arbitrary frequency while requests are in flight, and never fail.
type Reporter struct {
	provider SnapshotSource
	gate     *resource.Gate
}

// NewReporter creates a health reporter over the shared state.
func NewReporter(provider SnapshotSource, gate *resource.Gate) *Reporter {
	return &Reporter{provider: provider, gate: gate}
}

// Report returns the current health. Degraded means the gate is
// saturated or memory is within the margin of its limit: the server is
// still serving, but new work is likely to be rejected.
func (r *Reporter) Report() Report {
	snap := r.provider.Snapshot()
	rep := Report{
		Status:                StatusOK,
		ActiveRequests:        r.gate.Active(),
		MaxConcurrentRequests: r.gate.Capacity(),
		MemoryUsedMB:          snap.MemoryUsedMB,
		MemoryLimitMB:         snap.MemoryLimitMB,
		SnapshotStale:         snap.Stale,
		Timestamp:             time.Now().UTC(),
	}
	if rep.ActiveRequests >= rep.MaxConcurrentRequests {
		rep.Status = StatusDegraded
	}
	if free := rep.MemoryLimitMB - rep.MemoryUsedMB; float64(free) < memoryMargin*float64(rep.MemoryLimitMB) {
		rep.Status = StatusDegraded
	}
	return rep
}
