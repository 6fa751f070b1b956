package semaphore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	sem := New(2)

	p1, err := sem.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sem.InUse())

	p2, err := sem.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sem.InUse())

	_, ok := sem.TryAcquire()
	assert.False(t, ok, "third acquire should fail, capacity is 2")

	require.NoError(t, p1.Release())
	assert.Equal(t, 1, sem.InUse())

	p3, ok := sem.TryAcquire()
	require.True(t, ok)

	require.NoError(t, p2.Release())
	require.NoError(t, p3.Release())
	assert.Equal(t, 0, sem.InUse())
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	sem := New(1)
	p1, err := sem.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		p2, err := sem.Acquire(context.Background())
		require.NoError(t, err)
		close(acquired)
		require.NoError(t, p2.Release())
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should not complete before Release")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, p1.Release())

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire should complete after Release")
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	sem := New(1)
	_, err := sem.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = sem.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseTwiceReportsMisuse(t *testing.T) {
	sem := New(1)
	p, err := sem.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Release())
	assert.ErrorIs(t, p.Release(), ErrReleasedTwice)
}

func TestNeverExceedsCapacity(t *testing.T) {
	const capacity = 4
	sem := New(capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	inUse, maxInUse := 0, 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := sem.Acquire(context.Background())
			require.NoError(t, err)

			mu.Lock()
			inUse++
			if inUse > maxInUse {
				maxInUse = inUse
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inUse--
			mu.Unlock()
			require.NoError(t, p.Release())
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxInUse, capacity)
}
