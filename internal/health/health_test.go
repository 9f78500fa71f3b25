package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvergate/solvergate/internal/resource"
)

type fixedSource struct {
	snap resource.Snapshot
}

func (f *fixedSource) Snapshot() resource.Snapshot { return f.snap }

func snapshot(usedMB, limitMB int, stale bool) *fixedSource {
	return &fixedSource{snap: resource.Snapshot{
		Timestamp:     time.Now().UTC(),
		MemoryUsedMB:  usedMB,
		MemoryLimitMB: limitMB,
		Stale:         stale,
	}}
}

func TestReport_OKWhenIdleAndUnderBudget(t *testing.T) {
	gate := resource.NewGate(4, 0)
	r := NewReporter(snapshot(200, 1024, false), gate)

	rep := r.Report()

	assert.Equal(t, StatusOK, rep.Status)
	assert.Equal(t, 0, rep.ActiveRequests)
	assert.Equal(t, 4, rep.MaxConcurrentRequests)
	assert.Equal(t, 200, rep.MemoryUsedMB)
	assert.Equal(t, 1024, rep.MemoryLimitMB)
	assert.False(t, rep.SnapshotStale)
	assert.False(t, rep.Timestamp.IsZero())
}

// A saturated gate is visible as degraded while requests stay in flight.
func TestReport_DegradedWhenGateSaturated(t *testing.T) {
	gate := resource.NewGate(2, 0)
	ctx := t.Context()
	s1, err := gate.Acquire(ctx, "r1", "solve", 100)
	require.NoError(t, err)
	s2, err := gate.Acquire(ctx, "r2", "solve", 100)
	require.NoError(t, err)

	r := NewReporter(snapshot(200, 1024, false), gate)
	rep := r.Report()

	assert.Equal(t, StatusDegraded, rep.Status)
	assert.Equal(t, 2, rep.ActiveRequests)

	s1.Release()
	s2.Release()
	assert.Equal(t, StatusOK, r.Report().Status)
}

func TestReport_DegradedWhenMemoryNearLimit(t *testing.T) {
	gate := resource.NewGate(4, 0)

	// 950 of 1000 used leaves 5% free, inside the 10% margin.
	r := NewReporter(snapshot(950, 1000, false), gate)
	assert.Equal(t, StatusDegraded, r.Report().Status)

	// 850 of 1000 leaves 15% free.
	r = NewReporter(snapshot(850, 1000, false), gate)
	assert.Equal(t, StatusOK, r.Report().Status)
}

func TestReport_SurfacesStaleSnapshot(t *testing.T) {
	gate := resource.NewGate(4, 0)
	r := NewReporter(snapshot(200, 1024, true), gate)

	rep := r.Report()

	assert.True(t, rep.SnapshotStale)
	assert.Equal(t, StatusOK, rep.Status, "staleness alone does not degrade")
}
