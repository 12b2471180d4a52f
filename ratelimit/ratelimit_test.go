package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispenser(t *testing.T) {
	d, err := NewDispenser(60)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d.Interval())
	assert.Equal(t, 1, cap(d.permits))

	_, err = NewDispenser(0)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = NewDispenser(-5)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestDispenserPacesPermits(t *testing.T) {
	// 1200 per minute: one permit every 50ms.
	d, err := NewDispenser(1200)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, d.Run(ctx))
	}()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Acquire(ctx))
	}
	elapsed := time.Since(start)

	cancel()
	wg.Wait()

	// The first permit is immediate; the remaining four are spaced 50ms apart.
	assert.GreaterOrEqual(t, elapsed, 190*time.Millisecond)
}

func TestDispenserBuffersOnePermit(t *testing.T) {
	d, err := NewDispenser(60000)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, d.permits, 1, "channel never holds more than one permit")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestAcquireCancelled(t *testing.T) {
	d, err := NewDispenser(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Acquire(ctx), context.Canceled)
}
