package governor

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solvergate/solvergate/internal/config"
	"github.com/solvergate/solvergate/internal/resource"
)

// --- Test doubles ---

type invokeFunc func(ctx context.Context, tool string, payload json.RawMessage) (any, error)

func (f invokeFunc) Invoke(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
	return f(ctx, tool, payload)
}

// fakeProvider serves a fixed memory reading.
type fakeProvider struct {
	usedMB  int
	limitMB int
}

func (f *fakeProvider) Snapshot() resource.Snapshot {
	return resource.Snapshot{
		Timestamp:     time.Now().UTC(),
		MemoryUsedMB:  f.usedMB,
		MemoryLimitMB: f.limitMB,
	}
}

// captureRecorder remembers every recorded outcome.
type captureRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (c *captureRecorder) Record(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func (c *captureRecorder) labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	labels := make([]string, len(c.outcomes))
	for i, o := range c.outcomes {
		labels[i] = o.Label()
	}
	return labels
}

func testBudget(maxConcurrent int, wait time.Duration) *config.ResourceBudget {
	return &config.ResourceBudget{
		MaxConcurrentRequests: maxConcurrent,
		MaxMemoryMB:           1024,
		AcquireWait:           wait,
		SnapshotTTL:           time.Millisecond,
		Tools: map[string]config.ToolBudget{
			"solve": {Timeout: 5 * time.Second, EstimatedMemoryMB: 100},
			"quick": {Timeout: 80 * time.Millisecond, EstimatedMemoryMB: 100},
		},
	}
}

type testRig struct {
	gov  *Governor
	gate *resource.Gate
	rec  *captureRecorder
}

func newRig(budget *config.ResourceBudget, provider SnapshotProvider, invoke invokeFunc) *testRig {
	gate := resource.NewGate(budget.MaxConcurrentRequests, budget.AcquireWait)
	gov := New(budget, provider, gate, invoke, zap.NewNop())
	rec := &captureRecorder{}
	gov.AddRecorder(rec)
	return &testRig{gov: gov, gate: gate, rec: rec}
}

func okProvider() *fakeProvider { return &fakeProvider{usedMB: 100, limitMB: 1024} }

// --- Outcome mapping ---

func TestRun_Completed(t *testing.T) {
	rig := newRig(testBudget(2, 0), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		return map[string]string{"status": "optimal"}, nil
	})

	o := rig.gov.Run(context.Background(), "solve", json.RawMessage(`{}`))

	assert.Equal(t, KindCompleted, o.Kind)
	assert.Equal(t, "solve", o.Tool)
	assert.NotEmpty(t, o.RequestID)
	assert.NotNil(t, o.Result)
	assert.Equal(t, []string{"completed"}, rig.rec.labels())
	assert.Equal(t, 0, rig.gate.Active())
}

func TestRun_UnknownToolIsConfigError(t *testing.T) {
	invoked := false
	rig := newRig(testBudget(2, 0), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		invoked = true
		return nil, nil
	})

	o := rig.gov.Run(context.Background(), "no_such_tool", nil)

	assert.Equal(t, KindConfigError, o.Kind)
	assert.ErrorIs(t, o.Err, config.ErrUnknownTool)
	assert.False(t, invoked, "no solver call may happen without a budget entry")
}

// Scenario B: estimate over budget is rejected before any slot or solver
// work.
func TestRun_MemoryExceededRejectsBeforeSolve(t *testing.T) {
	invoked := false
	provider := &fakeProvider{usedMB: 0, limitMB: 100}
	budget := testBudget(2, 0)
	budget.Tools["solve"] = config.ToolBudget{Timeout: time.Second, EstimatedMemoryMB: 150}

	rig := newRig(budget, provider, func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		invoked = true
		return nil, nil
	})

	o := rig.gov.Run(context.Background(), "solve", nil)

	assert.Equal(t, KindRejected, o.Kind)
	assert.Equal(t, RejectMemoryExceeded, o.Reason)
	assert.False(t, invoked)
	assert.Equal(t, 0, rig.gate.Active())
	assert.Equal(t, []string{"rejected_memory_exceeded"}, rig.rec.labels())
}

// Scenario D: a solver error is a structured failure, not a crash, and
// frees the slot immediately.
func TestRun_SolverErrorIsFailed(t *testing.T) {
	rig := newRig(testBudget(2, 0), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		return nil, assert.AnError
	})

	o := rig.gov.Run(context.Background(), "solve", nil)

	assert.Equal(t, KindFailed, o.Kind)
	assert.ErrorIs(t, o.Err, assert.AnError)
	assert.Equal(t, 0, rig.gate.Active())
}

func TestRun_SolverPanicIsFailed(t *testing.T) {
	rig := newRig(testBudget(2, 0), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		panic("numerical explosion")
	})

	o := rig.gov.Run(context.Background(), "solve", nil)

	assert.Equal(t, KindFailed, o.Kind)
	require.Error(t, o.Err)
	assert.Contains(t, o.Err.Error(), "numerical explosion")
	assert.Equal(t, 0, rig.gate.Active())
}

// Scenario C: the caller gets TimedOut at the deadline; the slot is
// freed when the abandoned solve finishes, never leaked.
func TestRun_TimeoutAbandonsSolve(t *testing.T) {
	release := make(chan struct{})
	rig := newRig(testBudget(2, 0), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		<-release // ignores cancellation on purpose
		return "late", nil
	})

	start := time.Now()
	o := rig.gov.Run(context.Background(), "quick", nil)
	elapsed := time.Since(start)

	assert.Equal(t, KindTimedOut, o.Kind)
	assert.Less(t, elapsed, time.Second, "caller must be unblocked at the deadline")
	assert.Equal(t, 1, rig.gate.Active(), "abandoned solve still owns its slot")

	close(release)
	assert.Eventually(t, func() bool { return rig.gate.Active() == 0 },
		time.Second, 5*time.Millisecond, "slot must return once the solve completes")
}

func TestRun_CooperativeSolverSeesDeadline(t *testing.T) {
	rig := newRig(testBudget(2, 0), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	o := rig.gov.Run(context.Background(), "quick", nil)

	assert.Equal(t, KindTimedOut, o.Kind)
	assert.Eventually(t, func() bool { return rig.gate.Active() == 0 },
		time.Second, 5*time.Millisecond)
}

// Scenario A: with capacity 2 and a zero wait bound, the third
// simultaneous request is rejected deterministically.
func TestRun_ThirdRequestRejectedAtZeroWait(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	rig := newRig(testBudget(2, 0), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		started <- struct{}{}
		<-release
		return "done", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := rig.gov.Run(context.Background(), "solve", nil)
			assert.Equal(t, KindCompleted, o.Kind)
		}()
	}
	<-started
	<-started

	o := rig.gov.Run(context.Background(), "solve", nil)
	assert.Equal(t, KindRejected, o.Kind)
	assert.Equal(t, RejectConcurrencyLimit, o.Reason)

	close(release)
	wg.Wait()
	assert.Equal(t, 0, rig.gate.Active())
}

// Scenario A with a positive wait bound: the third request is admitted
// once a slot frees up, and concurrency never exceeds the gate capacity.
func TestRun_ThirdRequestWaitsForSlot(t *testing.T) {
	var running, peak atomic.Int32
	rig := newRig(testBudget(2, 2*time.Second), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(60 * time.Millisecond)
		running.Add(-1)
		return "done", nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := rig.gov.Run(context.Background(), "solve", nil)
			assert.Equal(t, KindCompleted, o.Kind)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2), "solver concurrency must respect the gate")
	assert.Equal(t, 0, rig.gate.Active())
}

func TestRun_RateLimitRejects(t *testing.T) {
	budget := testBudget(4, 0)
	budget.MaxRequestsPerSecond = 1
	rig := newRig(budget, okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		return "ok", nil
	})

	first := rig.gov.Run(context.Background(), "solve", nil)
	second := rig.gov.Run(context.Background(), "solve", nil)

	assert.Equal(t, KindCompleted, first.Kind)
	assert.Equal(t, KindRejected, second.Kind)
	assert.Equal(t, RejectRateLimited, second.Reason)
}

// No-leak property: after a mixed batch of outcomes the gate is empty
// and every request was recorded exactly once.
func TestRun_NoSlotLeakAcrossOutcomes(t *testing.T) {
	rig := newRig(testBudget(2, time.Second), okProvider(), func(ctx context.Context, tool string, payload json.RawMessage) (any, error) {
		var req struct {
			Mode string `json:"mode"`
		}
		_ = json.Unmarshal(payload, &req)
		switch req.Mode {
		case "fail":
			return nil, assert.AnError
		case "panic":
			panic("boom")
		case "slow":
			time.Sleep(150 * time.Millisecond) // beyond the "quick" deadline
			return nil, ctx.Err()
		default:
			return "ok", nil
		}
	})

	payloads := []struct {
		tool string
		mode string
	}{
		{"solve", "ok"}, {"solve", "fail"}, {"solve", "panic"},
		{"quick", "slow"}, {"solve", "ok"}, {"nope", "ok"},
		{"solve", "fail"}, {"quick", "slow"},
	}

	var wg sync.WaitGroup
	for _, pl := range payloads {
		wg.Add(1)
		go func(tool, mode string) {
			defer wg.Done()
			rig.gov.Run(context.Background(), tool, json.RawMessage(`{"mode":"`+mode+`"}`))
		}(pl.tool, pl.mode)
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return rig.gate.Active() == 0 },
		2*time.Second, 10*time.Millisecond, "no slot may leak, whatever the outcome mix")
	assert.Len(t, rig.rec.outcomes, len(payloads), "exactly one outcome per request")
}
