package ringrt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockOnNopOverFakeRing(t *testing.T) {
	rt, err := NewWithRing(NewFakeRing(4), WithDepth(4))
	require.NoError(t, err)
	defer rt.Close()

	n, err := BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		return h.Nop(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBlockOnPropagatesPerOperationError(t *testing.T) {
	ring := NewFakeRing(4)
	ring.ResultFor = func(uint64) int32 { return -5 } // -EIO
	rt, err := NewWithRing(ring, WithDepth(4))
	require.NoError(t, err)
	defer rt.Close()

	_, err = BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		return h.Nop(ctx)
	})
	assert.Error(t, err)
}

func TestSpawnManyNopsAllComplete(t *testing.T) {
	rt, err := NewWithRing(NewFakeRing(8), WithDepth(8))
	require.NoError(t, err)
	defer rt.Close()

	const count = 100
	_, err = BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		handles := make([]*JoinHandle[int], count)
		for i := range handles {
			handles[i] = Spawn(ctx, h, func(ctx context.Context) (int, error) {
				return h.Nop(ctx)
			})
		}
		for _, jh := range handles {
			v, err := jh.Wait(ctx)
			if err != nil {
				return 0, err
			}
			if v != 0 {
				t.Fatalf("nop resolved to %d, want 0", v)
			}
		}
		return 0, nil
	})
	require.NoError(t, err)
}

func TestSubmitBeyondDepthStillAllCompleteEventually(t *testing.T) {
	const depth = 4
	const total = depth * 3
	rt, err := NewWithRing(NewFakeRing(depth), WithDepth(depth))
	require.NoError(t, err)
	defer rt.Close()

	_, err = BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		completed := make(chan struct{}, total)
		for i := 0; i < total; i++ {
			go func() {
				_, _ = h.Nop(ctx)
				completed <- struct{}{}
			}()
		}
		for i := 0; i < total; i++ {
			select {
			case <-completed:
			case <-time.After(5 * time.Second):
				t.Fatalf("only %d/%d nops completed", i, total)
			}
		}
		return 0, nil
	})
	require.NoError(t, err)
}

func TestReentrantBlockOnRejected(t *testing.T) {
	rt, err := NewWithRing(NewFakeRing(4), WithDepth(4))
	require.NoError(t, err)
	defer rt.Close()

	_, err = BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		return BlockOn(ctx, rt, func(context.Context, *Handle) (int, error) {
			return 0, nil
		})
	})
	assert.ErrorIs(t, err, ErrReentrantBlockOn)
}

func TestCloseDrainsAndIsIdempotent(t *testing.T) {
	rt, err := NewWithRing(NewFakeRing(4), WithDepth(4))
	require.NoError(t, err)

	_, err = BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		return h.Nop(ctx)
	})
	require.NoError(t, err)

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}

func TestNewRejectsNonPowerOfTwoDepth(t *testing.T) {
	_, err := NewWithRing(NewFakeRing(3), WithDepth(3))
	assert.Error(t, err)
}
