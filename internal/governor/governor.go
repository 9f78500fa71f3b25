// Package governor wraps every solver invocation with admission control:
// a memory budget check, a bounded concurrency gate, a per-tool deadline,
// and a guaranteed slot release on every exit path. It is the only caller
// of the solver registry; nothing below it may terminate the process.
package governor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/solvergate/solvergate/internal/config"
	"github.com/solvergate/solvergate/internal/resource"
)

// Invoker is the solver collaborator contract. solver.Registry satisfies
// it; tests substitute stubs.
type Invoker interface {
	Invoke(ctx context.Context, tool string, payload json.RawMessage) (any, error)
}

// SnapshotProvider supplies memory snapshots for the admission check.
// resource.Provider satisfies it; tests substitute fake budgets.
type SnapshotProvider interface {
	Snapshot() resource.Snapshot
}

// Recorder receives every terminal outcome. Recording is for
// observability, never for correctness: recorder failures are invisible
// to the caller.
type Recorder interface {
	Record(o Outcome)
}

// Governor runs each request start to finish. Construct once and share;
// all state lives in the injected gate and provider.
type Governor struct {
	budget    *config.ResourceBudget
	provider  SnapshotProvider
	gate      *resource.Gate
	limiter   *rate.Limiter // nil when rate limiting is disabled
	invoker   Invoker
	recorders []Recorder
	log       *zap.Logger
}

// New creates a governor over the given budget and shared resources.
func New(budget *config.ResourceBudget, provider SnapshotProvider, gate *resource.Gate, invoker Invoker, log *zap.Logger) *Governor {
	g := &Governor{
		budget:   budget,
		provider: provider,
		gate:     gate,
		invoker:  invoker,
		log:      log,
	}
	if budget.MaxRequestsPerSecond > 0 {
		burst := int(math.Ceil(budget.MaxRequestsPerSecond))
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(budget.MaxRequestsPerSecond), burst)
	}
	return g
}

// AddRecorder registers an outcome recorder (journal, metrics).
func (g *Governor) AddRecorder(r Recorder) {
	g.recorders = append(g.recorders, r)
}

type solveResult struct {
	value any
	err   error
}

// Run executes one tool call under full governance. The admission order
// is fixed: budget lookup, rate limit, memory check, slot acquisition,
// then the deadline-scoped solve. The memory check must precede slot
// consumption, and the slot is held for the whole solver call.
func (g *Governor) Run(ctx context.Context, tool string, payload json.RawMessage) Outcome {
	start := time.Now()
	requestID := uuid.NewString()

	finish := func(o Outcome) Outcome {
		o.RequestID = requestID
		o.Tool = tool
		o.Duration = time.Since(start)
		for _, r := range g.recorders {
			r.Record(o)
		}
		return o
	}

	tb, err := g.budget.Tool(tool)
	if err != nil {
		g.log.Error("tool has no budget entry", zap.String("tool", tool), zap.Error(err))
		return finish(Outcome{Kind: KindConfigError, Err: err})
	}

	if g.limiter != nil && !g.limiter.Allow() {
		g.log.Warn("request rate limited", zap.String("tool", tool), zap.String("request_id", requestID))
		return finish(Outcome{Kind: KindRejected, Reason: RejectRateLimited})
	}

	// Advisory memory admission: process RSS plus the static per-tool
	// estimate against the budget. Checked before a slot is consumed.
	snap := g.provider.Snapshot()
	if snap.MemoryUsedMB+tb.EstimatedMemoryMB > snap.MemoryLimitMB {
		g.log.Warn("memory budget exceeded",
			zap.String("tool", tool),
			zap.String("request_id", requestID),
			zap.Int("memory_used_mb", snap.MemoryUsedMB),
			zap.Int("estimated_mb", tb.EstimatedMemoryMB),
			zap.Int("limit_mb", snap.MemoryLimitMB),
		)
		return finish(Outcome{Kind: KindRejected, Reason: RejectMemoryExceeded})
	}

	slot, err := g.gate.Acquire(ctx, requestID, tool, tb.EstimatedMemoryMB)
	if err != nil {
		if errors.Is(err, resource.ErrNoSlot) {
			g.log.Warn("concurrency limit exceeded",
				zap.String("tool", tool),
				zap.String("request_id", requestID),
				zap.Int("capacity", g.gate.Capacity()),
			)
			return finish(Outcome{Kind: KindRejected, Reason: RejectConcurrencyLimit})
		}
		// The caller's context ended while waiting for a slot.
		return finish(Outcome{Kind: KindFailed, Err: err})
	}

	// The solve runs in its own goroutine owning the slot: the release
	// fires when the solver returns, whether we are still waiting or
	// already reported a timeout. A solver that ignores cancellation
	// delays slot reuse; it can never leak the slot.
	solveCtx, cancel := context.WithTimeout(ctx, tb.Timeout)
	done := make(chan solveResult, 1)
	go func() {
		defer slot.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				g.log.Error("solver panicked",
					zap.String("tool", tool),
					zap.String("request_id", requestID),
					zap.Any("panic", r),
				)
				done <- solveResult{err: fmt.Errorf("solver panic: %v", r)}
			}
		}()
		value, err := g.invoker.Invoke(solveCtx, tool, payload)
		done <- solveResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			g.log.Warn("solver failed",
				zap.String("tool", tool),
				zap.String("request_id", requestID),
				zap.Error(res.err),
			)
			return finish(Outcome{Kind: KindFailed, Err: res.err})
		}
		g.log.Info("solve completed",
			zap.String("tool", tool),
			zap.String("request_id", requestID),
			zap.Duration("duration", time.Since(start)),
		)
		return finish(Outcome{Kind: KindCompleted, Result: res.value})

	case <-solveCtx.Done():
		// The solver may have finished in the same instant the deadline
		// fired; prefer its real result when one is already waiting.
		select {
		case res := <-done:
			if res.err != nil && !errors.Is(res.err, context.DeadlineExceeded) {
				return finish(Outcome{Kind: KindFailed, Err: res.err})
			}
			if res.err == nil {
				return finish(Outcome{Kind: KindCompleted, Result: res.value})
			}
		default:
		}
		if ctx.Err() != nil {
			// The caller went away; nobody will read the outcome.
			return finish(Outcome{Kind: KindFailed, Err: ctx.Err()})
		}
		g.log.Warn("solve timed out",
			zap.String("tool", tool),
			zap.String("request_id", requestID),
			zap.Duration("timeout", tb.Timeout),
		)
		return finish(Outcome{Kind: KindTimedOut})
	}
}
