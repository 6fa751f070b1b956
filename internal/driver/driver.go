// Package driver owns the io_uring ring, the semaphore bounding in-flight
// operations to its depth, and the table mapping completions back to the
// goroutines awaiting them. It is the runtime's single point of contact
// with the kernel ring.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/behrlich/ringrt/internal/event"
	"github.com/behrlich/ringrt/internal/iouring"
	"github.com/behrlich/ringrt/internal/logging"
	"github.com/behrlich/ringrt/internal/metrics"
	"github.com/behrlich/ringrt/internal/semaphore"
)

// ErrClosed is returned by Submit once Close has been called. A driver
// latched dead by a failed submission to the kernel returns that
// submission's error from Submit instead.
var ErrClosed = errors.New("driver: closed")

// ErrRingFull is returned when a permit was held but the ring still
// reported no free submission slot — a violation of the invariant that
// permits in flight never exceed ring depth, and therefore a programmer
// or driver bug rather than a recoverable condition.
var ErrRingFull = errors.New("driver: submission queue full despite held permit")

// Ring is the subset of internal/iouring.Ring the driver depends on,
// broken out as an interface so tests can exercise Driver against a fake
// without a real kernel ring, the same way the ring binding this package
// replaces exposed a Ring interface over its concrete implementations.
type Ring interface {
	NextSQE() (*iouring.SQE, bool)
	Submit() (uint32, error)
	SubmitAndWait(minComplete uint32) (uint32, error)
	ForEachCQE(fn func(userData uint64, res int32, flags uint32)) int
	Close() error
}

type controlBlock struct {
	event       event.Event
	permit      *semaphore.Permit
	result      chan any
	submittedAt time.Time
}

// Driver submits events to a ring and dispatches their completions.
// Submit is safe to call concurrently from any number of goroutines;
// Reap must only ever be called by one goroutine at a time (the
// runtime's block-on loop), preserving the single-ring-owner invariant.
type Driver struct {
	logger   *logging.Logger
	ring     Ring
	sem      *semaphore.Semaphore
	observer metrics.Observer

	mu       sync.Mutex
	inflight map[uint64]*controlBlock
	nextID   uint64
	closed   bool
	closeErr error

	// work signals Run's wait loop whenever a submission moves inflight
	// from empty to non-empty, so Run never has to busy-poll while idle.
	work chan struct{}
}

// New creates a Driver backed by a real io_uring ring of the given depth.
func New(depth uint32, logger *logging.Logger) (*Driver, error) {
	ring, err := iouring.New(depth)
	if err != nil {
		return nil, fmt.Errorf("create io_uring: %w", err)
	}
	return NewWithRing(ring, depth, logger), nil
}

// NewWithRing builds a Driver over an already-constructed Ring, primarily
// so tests can substitute a fake.
func NewWithRing(ring Ring, depth uint32, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Driver{
		logger:   logger,
		ring:     ring,
		sem:      semaphore.New(int(depth)),
		observer: metrics.NoOpObserver{},
		inflight: make(map[uint64]*controlBlock, depth),
		work:     make(chan struct{}, 1),
	}
}

// SetObserver installs o as the driver's metrics sink, replacing the
// default no-op. It must be called before the driver starts accepting
// submissions; it is not safe to change concurrently with Submit/Reap.
func (d *Driver) SetObserver(o metrics.Observer) {
	if o == nil {
		o = metrics.NoOpObserver{}
	}
	d.observer = o
}

// Submit acquires a permit, stages ev against the next free submission
// queue entry, publishes it to the kernel, and returns a channel that
// will receive exactly the value ev.Complete produces once the
// completion arrives. The channel is buffered so a dropped/abandoned
// receiver never blocks dispatch.
func (d *Driver) Submit(ctx context.Context, ev event.Event) (<-chan any, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	permit, err := d.sem.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	if err := d.checkOpen(); err != nil {
		permit.Release()
		return nil, err
	}

	d.mu.Lock()
	sqe, ok := d.ring.NextSQE()
	if !ok {
		d.mu.Unlock()
		permit.Release()
		return nil, ErrRingFull
	}
	ev.Prepare(sqe)
	id := d.nextID
	d.nextID++
	sqe.SetUserData(id)
	cb := &controlBlock{event: ev, permit: permit, result: make(chan any, 1), submittedAt: time.Now()}
	d.inflight[id] = cb
	becameNonEmpty := len(d.inflight) == 1
	d.mu.Unlock()

	if _, err := d.ring.Submit(); err != nil {
		d.fail(err)
		return nil, err
	}
	d.observer.ObserveSubmit(ev.Op())
	if becameNonEmpty {
		select {
		case d.work <- struct{}{}:
		default:
		}
	}
	return cb.result, nil
}

// WaitForWork blocks until at least one operation is in flight, the
// driver is closed, or ctx is done. It lets Run avoid calling the
// kernel-blocking Reap when there is nothing in flight to wait on.
func (d *Driver) WaitForWork(ctx context.Context) error {
	for {
		if d.InFlight() > 0 {
			return nil
		}
		if err := d.checkOpen(); err != nil {
			return err
		}
		select {
		case <-d.work:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run is the driver's half of the runtime's block-on loop: it waits for
// work, reaps it, and repeats until ctx is done or the driver closes.
// Exactly one goroutine should ever call Run for a given Driver, matching
// the single-ring-owner invariant Reap documents.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := d.WaitForWork(ctx); err != nil {
			return err
		}
		if err := d.Reap(ctx, 1); err != nil {
			return err
		}
	}
}

// Reap performs one inward tick: flush any pending submissions, block
// until at least minComplete completions are ready, then dispatch every
// ready completion to its waiting control block. Only the runtime's
// block-on loop should call Reap.
func (d *Driver) Reap(ctx context.Context, minComplete uint32) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := d.checkOpen(); err != nil {
		return err
	}

	if _, err := d.ring.SubmitAndWait(minComplete); err != nil {
		d.fail(err)
		return err
	}

	d.ring.ForEachCQE(func(userData uint64, res int32, flags uint32) {
		d.mu.Lock()
		cb, ok := d.inflight[userData]
		if ok {
			delete(d.inflight, userData)
		}
		d.mu.Unlock()

		if !ok {
			d.logger.Warn("completion for unknown operation", "user_data", userData)
			return
		}

		out := cb.event.Complete(iouring.CQE{UserData: userData, Res: res, Flags: flags})
		d.observer.ObserveComplete(cb.event.Op(), uint64(time.Since(cb.submittedAt)), resultError(out))
		select {
		case cb.result <- out:
		default:
		}
		cb.permit.Release()
	})
	return nil
}

// InFlight reports how many operations are currently awaiting completion.
func (d *Driver) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// Close drains in-flight operations (by reaping until none remain) and
// then releases the ring. Callers must not call Submit or Reap
// concurrently with Close.
func (d *Driver) Close() error {
	for {
		if d.InFlight() == 0 {
			break
		}
		if err := d.Reap(context.Background(), 1); err != nil {
			break
		}
	}

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		if d.closeErr == nil {
			d.closeErr = ErrClosed
		}
	}
	d.mu.Unlock()

	// Wake a WaitForWork blocked while idle so it observes the closure.
	select {
	case d.work <- struct{}{}:
	default:
	}

	return d.ring.Close()
}

// errorResult is implemented by every event.Result[T] instantiation,
// letting resultError recover an operation's error without knowing its
// value type.
type errorResult interface{ ErrVal() error }

func resultError(out any) error {
	if er, ok := out.(errorResult); ok {
		return er.ErrVal()
	}
	return nil
}

func (d *Driver) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return d.closeErr
	}
	return nil
}

// fail latches the driver dead: every subsequent Submit returns err
// immediately, matching the "propagate once, then any further submit is
// an error" contract.
func (d *Driver) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		d.closeErr = err
	}
	select {
	case d.work <- struct{}{}:
	default:
	}
	d.logger.Error("driver latched dead", "error", err)
}
