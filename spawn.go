package ringrt

import (
	"context"

	"github.com/behrlich/ringrt/internal/scheduler"
)

// JoinHandle is the future returned by Spawn. Wait resolves with the
// spawned function's output; dropping a JoinHandle without waiting on it
// detaches the task rather than canceling it, since tasks run as ordinary
// goroutines that the Go runtime schedules independently.
type JoinHandle[T any] = scheduler.JoinHandle[T]

// Spawn runs fn as a task on h's runtime and returns a handle to join on.
// The task is scheduled immediately (Go's goroutine scheduler, not a
// custom ready queue, decides when it actually runs); it may submit
// events through h or any other Handle obtained from the same Runtime.
func Spawn[T any](ctx context.Context, h *Handle, fn func(context.Context) (T, error)) *JoinHandle[T] {
	return scheduler.Spawn(h.rt.sched, ctx, fn)
}
