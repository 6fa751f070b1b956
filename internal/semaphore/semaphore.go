// Package semaphore provides a context-aware counting semaphore used to
// bound the number of in-flight io_uring operations to the ring's
// submission queue depth.
package semaphore

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrReleasedTwice is returned by a double Release of the same permit.
// It is a programmer error, not a runtime condition callers should branch
// on; it exists so misuse fails loudly instead of silently over-counting
// the semaphore.
var ErrReleasedTwice = errors.New("semaphore: permit released more than once")

// Semaphore is a counting semaphore with a fixed capacity. Acquire honors
// context cancellation; waiters are granted permits in FIFO order, which
// falls out of Go's channel send/receive ordering for blocked goroutines.
type Semaphore struct {
	slots chan struct{}
}

// New returns a Semaphore with room for capacity outstanding permits.
// capacity must be > 0.
func New(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// Acquire blocks until a permit is available or ctx is done. On success it
// returns a Permit that must be released exactly once.
func (s *Semaphore) Acquire(ctx context.Context) (*Permit, error) {
	select {
	case s.slots <- struct{}{}:
		return &Permit{slots: s.slots}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire attempts to acquire a permit without blocking. It reports
// whether a permit was obtained.
func (s *Semaphore) TryAcquire() (*Permit, bool) {
	select {
	case s.slots <- struct{}{}:
		return &Permit{slots: s.slots}, true
	default:
		return nil, false
	}
}

// Cap reports the semaphore's total capacity.
func (s *Semaphore) Cap() int { return cap(s.slots) }

// InUse reports the number of permits currently outstanding.
func (s *Semaphore) InUse() int { return len(s.slots) }

// Permit represents a single held slot in a Semaphore. The zero value is
// not usable; Permits are only produced by Semaphore.Acquire/TryAcquire.
type Permit struct {
	slots    chan struct{}
	released atomic.Bool
}

// Release returns the permit to its semaphore. Release is idempotent in
// the sense that it will not double-free the underlying slot, but a
// second call still signals misuse by returning ErrReleasedTwice; callers
// that don't care may ignore the return value, matching how sync.Mutex
// Unlock panics are usually let crash rather than handled.
func (p *Permit) Release() error {
	if p == nil {
		return nil
	}
	if p.released.Swap(true) {
		return ErrReleasedTwice
	}
	<-p.slots
	return nil
}
