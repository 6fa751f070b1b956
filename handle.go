package ringrt

import (
	"context"
	"errors"

	"github.com/behrlich/ringrt/internal/driver"
	"github.com/behrlich/ringrt/internal/event"
)

// Handle submits events against a Runtime's driver and spawns tasks on
// its scheduler. It is cheap to copy; every Handle obtained from the same
// Runtime shares the same underlying ring and in-flight table.
type Handle struct {
	rt *Runtime
}

// submit stages ev with the driver, awaits its completion (or ctx being
// done, whichever first), and unboxes the typed result. Dropping this
// call by way of ctx expiring does not cancel the underlying kernel
// operation: the control block, buffer and permit stay alive until the
// real completion arrives, and the delivery becomes a harmless no-op
// because the channel is buffered.
func submit[T any](ctx context.Context, h *Handle, ev event.Event) (T, error) {
	ch, err := h.rt.driver.Submit(ctx, ev)
	if err != nil {
		if errors.Is(err, driver.ErrClosed) {
			err = ErrClosed
		}
		var zero T
		return zero, err
	}
	select {
	case out := <-ch:
		res := out.(event.Result[T])
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
