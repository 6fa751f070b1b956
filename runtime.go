package ringrt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/behrlich/ringrt/internal/driver"
	"github.com/behrlich/ringrt/internal/logging"
	"github.com/behrlich/ringrt/internal/scheduler"
)

// Runtime owns one io_uring instance and the single goroutine permitted
// to reap its completions. Construct one with New, obtain a Handle to
// submit work, and Close it to drain in-flight operations before the
// process exits.
type Runtime struct {
	driver *driver.Driver
	sched  *scheduler.Scheduler
	logger *logging.Logger

	runCancel context.CancelFunc
	runDone   chan struct{}

	mu        sync.Mutex
	inBlockOn bool
	closed    bool
}

// New creates a Runtime with a ring of the configured depth (64 by
// default; see WithDepth) and starts its reaping goroutine. It fails with
// an OS error if the kernel does not support io_uring or the process
// lacks permission to create one.
func New(opts ...Option) (*Runtime, error) {
	c := resolveConfig(opts)
	if !isPowerOfTwo(c.depth) {
		return nil, fmt.Errorf("ringrt: depth %d must be a power of two", c.depth)
	}
	logger := c.logger
	if logger == nil {
		logger = logging.Default()
	}

	drv, err := driver.New(c.depth, logger)
	if err != nil {
		return nil, err
	}
	if c.observer != nil {
		drv.SetObserver(c.observer)
	}
	return newRuntime(drv, logger), nil
}

// newRuntime wires a driver (real or, from testing.go, fake) into a
// running Runtime. A single dedicated goroutine owns Reap for the
// driver's lifetime, which is how this runtime reconciles the spec's
// single-ring-owner block-on loop with Go's own goroutine scheduler:
// instead of a hand-rolled poll loop driving both tasks and the ring,
// tasks run as ordinary goroutines and this one goroutine exists solely
// to pump completions, waking only when something is actually in flight
// (see driver.Driver.Run). DESIGN.md has the full rationale.
func newRuntime(drv *driver.Driver, logger *logging.Logger) *Runtime {
	runCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		driver:    drv,
		sched:     scheduler.New(),
		logger:    logger,
		runCancel: cancel,
		runDone:   make(chan struct{}),
	}

	go func() {
		defer close(rt.runDone)
		err := drv.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) && !isRingClosed(err) {
			logger.Error("reap loop exited unexpectedly", "error", err)
		}
	}()

	return rt
}

// Handle returns a cheap, cloneable-by-copy handle for submitting events
// and spawning tasks against this runtime. Handles are single-thread
// oriented in spirit (the driver they wrap rejects use after Close), but
// nothing prevents calling Submit from multiple goroutines — the driver
// itself is safe for concurrent Submit.
func (rt *Runtime) Handle() *Handle {
	return &Handle{rt: rt}
}

// BlockOn runs root to completion and returns its result. The name and
// shape mirror the spec's block-on loop; because this runtime reaps
// completions on a dedicated background goroutine rather than a
// hand-rolled poll loop, BlockOn itself reduces to running root directly
// plus a re-entrancy guard — see DESIGN.md's Open Question #1.
func BlockOn[T any](ctx context.Context, rt *Runtime, root func(context.Context, *Handle) (T, error)) (T, error) {
	rt.mu.Lock()
	if rt.inBlockOn {
		rt.mu.Unlock()
		var zero T
		return zero, ErrReentrantBlockOn
	}
	rt.inBlockOn = true
	rt.mu.Unlock()

	defer func() {
		rt.mu.Lock()
		rt.inBlockOn = false
		rt.mu.Unlock()
	}()

	return root(ctx, rt.Handle())
}

// Close stops accepting new work, drains every in-flight operation by
// letting the reaping goroutine finish naturally, then releases the ring.
// It blocks until the ring is idle, matching the spec's requirement that
// a well-behaved implementation block-on-drop rather than orphan buffers
// the kernel might still be writing into.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil
	}
	rt.closed = true
	rt.mu.Unlock()

	rt.runCancel()
	<-rt.runDone
	return rt.driver.Close()
}
