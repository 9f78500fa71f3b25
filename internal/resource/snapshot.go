// Package resource implements the two pieces of shared mutable state behind
// the invocation governor: a cached view of process memory usage and a
// bounded concurrency gate. Nothing else in the server touches the OS
// memory counters or the slot counter directly.
package resource

import (
	"sync"
	"time"
)

// readProcessRSS reports the process resident set size in bytes. It is a
// package-level var so tests can substitute a fake reading.
var readProcessRSS = processRSS

// Snapshot is a point-in-time view of process resource usage. It is never
// mutated after creation; a fresh snapshot replaces the old one.
type Snapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	MemoryUsedMB   int       `json:"memory_used_mb"`
	MemoryLimitMB  int       `json:"memory_limit_mb"`
	ActiveRequests int       `json:"active_requests"`
	// Stale marks a snapshot served from the last known-good reading
	// because the OS query failed. Availability wins over freshness.
	Stale bool `json:"stale,omitempty"`
}

// Provider produces memory snapshots on demand, reusing a recent one when
// it is younger than the TTL so the check stays cheap enough to run on
// every request.
type Provider struct {
	limitMB int
	ttl     time.Duration
	active  func() int

	mu   sync.Mutex
	last Snapshot
}

// NewProvider creates a snapshot provider. limitMB is the configured
// memory budget, ttl the cache lifetime, and active reports the current
// in-flight request count (typically Gate.Active).
func NewProvider(limitMB int, ttl time.Duration, active func() int) *Provider {
	if active == nil {
		active = func() int { return 0 }
	}
	return &Provider{limitMB: limitMB, ttl: ttl, active: active}
}

// Snapshot returns the current resource snapshot. It never fails: if the
// OS query errors, the last known-good reading is returned marked stale.
// The active request count is always read fresh; it is an in-process
// atomic, not an OS query.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	if !p.last.Timestamp.IsZero() && now.Sub(p.last.Timestamp) < p.ttl {
		s := p.last
		s.ActiveRequests = p.active()
		return s
	}

	rss, err := readProcessRSS()
	if err != nil {
		s := p.last
		s.Stale = true
		s.ActiveRequests = p.active()
		return s
	}

	p.last = Snapshot{
		Timestamp:     now,
		MemoryUsedMB:  int(rss / (1 << 20)),
		MemoryLimitMB: p.limitMB,
	}
	s := p.last
	s.ActiveRequests = p.active()
	return s
}

// LimitMB returns the configured memory budget.
func (p *Provider) LimitMB() int { return p.limitMB }
