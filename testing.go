package ringrt

import (
	"fmt"
	"sync"

	"github.com/behrlich/ringrt/internal/driver"
	"github.com/behrlich/ringrt/internal/iouring"
	"github.com/behrlich/ringrt/internal/logging"
)

// MockFileDescriptor is a FileDescriptor backed by an arbitrary integer,
// for tests that need to address an event at a descriptor without
// opening a real file or socket.
type MockFileDescriptor int32

// Fd implements FileDescriptor.
func (f MockFileDescriptor) Fd() uintptr { return uintptr(f) }

// FakeRing is an in-process stand-in for the kernel ring, letting
// BlockOn/Spawn/Close tests run without requiring kernel io_uring
// support. Every submitted SQE completes on the following
// SubmitAndWait/Submit call with the result ResultFor reports (0, i.e.
// success, if ResultFor is nil).
type FakeRing struct {
	depth uint32

	mu      sync.Mutex
	pending []*iouring.SQE
	queued  []iouring.CQE
	closed  bool

	// ResultFor computes the completion result for a given user-data
	// cookie. Returning a negative value simulates a kernel error.
	ResultFor func(userData uint64) int32
}

// NewFakeRing returns a FakeRing with room for depth concurrently staged
// SQEs, matching internal/driver's expectation that NextSQE refuses once
// depth entries are pending.
func NewFakeRing(depth uint32) *FakeRing {
	return &FakeRing{depth: depth}
}

func (f *FakeRing) NextSQE() (*iouring.SQE, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if uint32(len(f.pending)) >= f.depth {
		return nil, false
	}
	sqe := iouring.NewSQE()
	f.pending = append(f.pending, sqe)
	return sqe, true
}

func (f *FakeRing) Submit() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := uint32(len(f.pending))
	for _, sqe := range f.pending {
		res := int32(0)
		if f.ResultFor != nil {
			res = f.ResultFor(sqe.UserData())
		}
		f.queued = append(f.queued, iouring.CQE{UserData: sqe.UserData(), Res: res})
	}
	f.pending = nil
	return n, nil
}

func (f *FakeRing) SubmitAndWait(minComplete uint32) (uint32, error) {
	return f.Submit()
}

func (f *FakeRing) ForEachCQE(fn func(userData uint64, res int32, flags uint32)) int {
	f.mu.Lock()
	ready := f.queued
	f.queued = nil
	f.mu.Unlock()

	for _, c := range ready {
		fn(c.UserData, c.Res, c.Flags)
	}
	return len(ready)
}

func (f *FakeRing) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ driver.Ring = (*FakeRing)(nil)

// NewWithRing builds a Runtime over an already-constructed driver.Ring,
// the same seam internal/driver.NewWithRing exposes one layer down, so
// tests can exercise the full BlockOn/Handle/Spawn surface against a
// FakeRing instead of a live kernel.
func NewWithRing(ring driver.Ring, opts ...Option) (*Runtime, error) {
	c := resolveConfig(opts)
	if !isPowerOfTwo(c.depth) {
		return nil, fmt.Errorf("ringrt: depth %d must be a power of two", c.depth)
	}
	logger := c.logger
	if logger == nil {
		logger = logging.Default()
	}
	drv := driver.NewWithRing(ring, c.depth, logger)
	if c.observer != nil {
		drv.SetObserver(c.observer)
	}
	return newRuntime(drv, logger), nil
}
