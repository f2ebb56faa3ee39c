package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_UnregisteredKeyDoesNotBlock(t *testing.T) {
	k := New()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, k.Acquire(context.Background(), "unknown"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquire_EnforcesBudget(t *testing.T) {
	// 2 requests per second: 10 concurrent acquisitions need >= 4 seconds
	// (first 2 immediate, then 2 per second)
	k := New()
	k.Register("P1", 2, time.Second)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = k.Acquire(context.Background(), "P1")
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 3500*time.Millisecond, "10 acquisitions at 2/s finished too fast")
}

func TestAcquire_IndependentKeys(t *testing.T) {
	k := New()
	k.Register("slow", 1, time.Hour)
	k.Register("fast", 100, time.Second)

	// Exhaust the slow bucket
	require.NoError(t, k.Acquire(context.Background(), "slow"))

	// The fast key must not be affected
	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, k.Acquire(context.Background(), "fast"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAcquire_CancellationReleasesWaiter(t *testing.T) {
	k := New()
	k.Register("P1", 1, time.Hour)

	// Consume the only token
	require.NoError(t, k.Acquire(context.Background(), "P1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- k.Acquire(ctx, "P1")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter did not return")
	}
}

func TestRegister_Replaces(t *testing.T) {
	k := New()
	k.Register("P1", 1, time.Hour)
	assert.True(t, k.Registered("P1"))

	// Re-register with a generous budget; acquisitions must be immediate
	k.Register("P1", 100, time.Second)
	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, k.Acquire(context.Background(), "P1"))
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRegister_SanitizesInput(t *testing.T) {
	k := New()
	// Zero values must not panic or divide by zero
	k.Register("P1", 0, 0)
	require.NoError(t, k.Acquire(context.Background(), "P1"))
}
