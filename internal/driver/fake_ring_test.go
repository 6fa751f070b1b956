package driver

import (
	"errors"
	"sync"

	"github.com/behrlich/ringrt/internal/iouring"
)

func iouringCQE(userData uint64, res int32) iouring.CQE {
	return iouring.CQE{UserData: userData, Res: res}
}

var errSimulatedSubmitFailure = errors.New("simulated submit failure")

// failingSubmitRing wraps a fakeRing and fails every real Submit call
// (the publish step Driver.Submit performs right after staging an SQE),
// to exercise the driver's latch-dead-on-submit-failure path.
type failingSubmitRing struct {
	*fakeRing
}

func (f *failingSubmitRing) Submit() (uint32, error) {
	return 0, errSimulatedSubmitFailure
}

// fakeRing is an in-process stand-in for internal/iouring.Ring, letting
// driver tests exercise Submit/Reap without a live kernel ring.
type fakeRing struct {
	depth uint32

	mu      sync.Mutex
	pending []*iouring.SQE
	queued  []iouring.CQE
	closed  bool

	// resultFor computes the completion result for a given user-data
	// cookie; defaults to always succeeding with 0.
	resultFor func(id uint64) int32
}

func newFakeRing(depth uint32) *fakeRing {
	return &fakeRing{depth: depth}
}

func (f *fakeRing) NextSQE() (*iouring.SQE, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if uint32(len(f.pending)) >= f.depth {
		return nil, false
	}
	sqe := iouring.NewSQE()
	f.pending = append(f.pending, sqe)
	return sqe, true
}

func (f *fakeRing) Submit() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := uint32(len(f.pending))
	for _, sqe := range f.pending {
		res := int32(0)
		if f.resultFor != nil {
			res = f.resultFor(sqe.UserData())
		}
		f.queued = append(f.queued, iouring.CQE{UserData: sqe.UserData(), Res: res})
	}
	f.pending = nil
	return n, nil
}

func (f *fakeRing) SubmitAndWait(minComplete uint32) (uint32, error) {
	return f.Submit()
}

func (f *fakeRing) ForEachCQE(fn func(userData uint64, res int32, flags uint32)) int {
	f.mu.Lock()
	ready := f.queued
	f.queued = nil
	f.mu.Unlock()

	for _, c := range ready {
		fn(c.UserData, c.Res, c.Flags)
	}
	return len(ready)
}

func (f *fakeRing) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
