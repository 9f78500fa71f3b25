package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_CapacityNeverExceeded(t *testing.T) {
	const capacity = 2
	g := NewGate(capacity, 500*time.Millisecond)

	var mu sync.Mutex
	peak := 0

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := g.Acquire(context.Background(), "req", "tool", 10)
			if err != nil {
				return
			}
			defer slot.Release()

			mu.Lock()
			if a := g.Active(); a > peak {
				peak = a
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, capacity)
	assert.Equal(t, 0, g.Active(), "all slots must be returned")
}

func TestGate_ZeroWaitRejectsImmediately(t *testing.T) {
	g := NewGate(1, 0)

	slot, err := g.Acquire(context.Background(), "a", "tool", 10)
	require.NoError(t, err)

	start := time.Now()
	_, err = g.Acquire(context.Background(), "b", "tool", 10)
	assert.ErrorIs(t, err, ErrNoSlot)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "zero wait must not block")

	slot.Release()
	slot2, err := g.Acquire(context.Background(), "c", "tool", 10)
	require.NoError(t, err)
	slot2.Release()
}

func TestGate_BoundedWaitAdmitsAfterRelease(t *testing.T) {
	g := NewGate(1, time.Second)

	slot, err := g.Acquire(context.Background(), "a", "tool", 10)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		slot.Release()
	}()

	slot2, err := g.Acquire(context.Background(), "b", "tool", 10)
	require.NoError(t, err, "should be admitted once the first slot is released")
	slot2.Release()
}

func TestGate_BoundedWaitTimesOut(t *testing.T) {
	g := NewGate(1, 30*time.Millisecond)

	slot, err := g.Acquire(context.Background(), "a", "tool", 10)
	require.NoError(t, err)
	defer slot.Release()

	_, err = g.Acquire(context.Background(), "b", "tool", 10)
	assert.ErrorIs(t, err, ErrNoSlot)
}

func TestGate_CallerContextWins(t *testing.T) {
	g := NewGate(1, time.Minute)

	slot, err := g.Acquire(context.Background(), "a", "tool", 10)
	require.NoError(t, err)
	defer slot.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = g.Acquire(ctx, "b", "tool", 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlot_DoubleReleaseIsHarmless(t *testing.T) {
	g := NewGate(2, 0)

	slot, err := g.Acquire(context.Background(), "a", "tool", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Active())

	slot.Release()
	slot.Release()
	slot.Release()
	assert.Equal(t, 0, g.Active(), "repeated release must free the slot exactly once")

	// Capacity is intact: both slots are still acquirable.
	s1, err := g.Acquire(context.Background(), "b", "tool", 10)
	require.NoError(t, err)
	s2, err := g.Acquire(context.Background(), "c", "tool", 10)
	require.NoError(t, err)
	s1.Release()
	s2.Release()
}

func TestSlot_CarriesRequestMetadata(t *testing.T) {
	g := NewGate(1, 0)
	before := time.Now().UTC()

	slot, err := g.Acquire(context.Background(), "req-1", "solve_knapsack_problem", 256)
	require.NoError(t, err)
	defer slot.Release()

	assert.Equal(t, "req-1", slot.RequestID)
	assert.Equal(t, "solve_knapsack_problem", slot.Tool)
	assert.Equal(t, 256, slot.EstimatedMemoryMB)
	assert.False(t, slot.AcquiredAt.Before(before))
}
