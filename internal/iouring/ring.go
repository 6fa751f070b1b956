// Package iouring is a minimal userspace binding to Linux io_uring,
// supporting exactly the opcodes this runtime needs: nop, read, write and
// accept. It intentionally does not chase feature parity with a general
// liburing binding (fixed buffers, SQPOLL, multi-shot, registered files,
// ...); those are out of scope for a single-consumer task runtime.
package iouring

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/ringrt/internal/logging"
)

type sqOffsets struct {
	Head, Tail, RingMask, RingEntries, Flags, Dropped, Array, Resv1 uint32
	UserAddr                                                        uint64
}

type cqOffsets struct {
	Head, Tail, RingMask, RingEntries, Overflow, CQEs, Flags, Resv1 uint32
	UserAddr                                                        uint64
}

type ringParams struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        sqOffsets
	CQOff        cqOffsets
}

// Ring is a minimal, single-process binding to one io_uring instance.
// Submission is safe to call concurrently from multiple goroutines;
// draining completions (ForEachCQE) is meant to be called by a single
// dedicated goroutine, matching the runtime's single-ring-owner
// invariant — see internal/driver.
type Ring struct {
	fd     int
	logger *logging.Logger
	params ringParams

	sqMmap   []byte
	cqMmap   []byte
	sqesMmap []byte

	sqHead  *uint32
	sqTail  *uint32
	sqMask  uint32
	sqArray []uint32
	sqes    []rawSQE

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   []rawCQE

	mu      sync.Mutex
	pending uint32
	closed  atomic.Bool
}

// New creates an io_uring instance with room for entries submission queue
// entries. The completion queue is sized double the submission queue, the
// kernel's usual default ratio.
func New(entries uint32) (*Ring, error) {
	logger := logging.Default()
	logger.Debug("creating io_uring", "entries", entries)

	params := ringParams{
		SQEntries: entries,
		Flags:     setupCQSize,
		CQEntries: entries * 2,
	}

	ringFD, _, errno := syscall.Syscall(sysIOUringSetup, uintptr(entries), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("io_uring_setup: %w", errno)
	}

	r := &Ring{fd: int(ringFD), logger: logger, params: params}
	if err := r.mapRings(); err != nil {
		syscall.Close(int(ringFD))
		return nil, err
	}
	logger.Debug("io_uring ready", "fd", ringFD, "sq_entries", params.SQEntries, "cq_entries", params.CQEntries)
	return r, nil
}

func (r *Ring) mapRings() error {
	sqRingSize := int(r.params.SQOff.Array) + int(r.params.SQEntries)*4
	cqRingSize := int(r.params.CQOff.CQEs) + int(r.params.CQEntries)*int(cqeSize)

	singleMmap := r.params.Features&featSingleMmap != 0
	if singleMmap && cqRingSize > sqRingSize {
		sqRingSize = cqRingSize
	}

	sqMmap, err := unix.Mmap(r.fd, int64(offSQRing), sqRingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap SQ ring: %w", err)
	}
	r.sqMmap = sqMmap

	if singleMmap {
		r.cqMmap = sqMmap
	} else {
		cqMmap, err := unix.Mmap(r.fd, int64(offCQRing), cqRingSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			unix.Munmap(r.sqMmap)
			return fmt.Errorf("mmap CQ ring: %w", err)
		}
		r.cqMmap = cqMmap
	}

	sqesSize := int(r.params.SQEntries) * int(sqeSize)
	sqesMmap, err := unix.Mmap(r.fd, int64(offSQEs), sqesSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		r.unmapAll()
		return fmt.Errorf("mmap SQEs: %w", err)
	}
	r.sqesMmap = sqesMmap

	r.sqHead = (*uint32)(unsafe.Pointer(&r.sqMmap[r.params.SQOff.Head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&r.sqMmap[r.params.SQOff.Tail]))
	r.sqMask = *(*uint32)(unsafe.Pointer(&r.sqMmap[r.params.SQOff.RingMask]))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&r.sqMmap[r.params.SQOff.Array])), r.params.SQEntries)
	r.sqes = unsafe.Slice((*rawSQE)(unsafe.Pointer(&r.sqesMmap[0])), r.params.SQEntries)

	r.cqHead = (*uint32)(unsafe.Pointer(&r.cqMmap[r.params.CQOff.Head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&r.cqMmap[r.params.CQOff.Tail]))
	r.cqMask = *(*uint32)(unsafe.Pointer(&r.cqMmap[r.params.CQOff.RingMask]))
	r.cqes = unsafe.Slice((*rawCQE)(unsafe.Pointer(&r.cqMmap[r.params.CQOff.CQEs])), r.params.CQEntries)

	return nil
}

func (r *Ring) unmapAll() {
	if r.sqesMmap != nil {
		unix.Munmap(r.sqesMmap)
	}
	if r.cqMmap != nil && !sameSlice(r.cqMmap, r.sqMmap) {
		unix.Munmap(r.cqMmap)
	}
	if r.sqMmap != nil {
		unix.Munmap(r.sqMmap)
	}
}

func sameSlice(a, b []byte) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}

// Close releases the ring's mmap'd regions and closes its file descriptor.
// Callers must ensure no other goroutine is using the ring concurrently.
func (r *Ring) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.unmapAll()
	return syscall.Close(r.fd)
}

// NextSQE reserves the next free submission queue slot and returns a
// handle to it, or false if the queue is full. The entry is not visible to
// the kernel until Submit/SubmitAndWait is called.
func (r *Ring) NextSQE() (*SQE, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending >= r.params.SQEntries {
		return nil, false
	}
	tail := atomic.LoadUint32(r.sqTail) + r.pending
	index := tail & r.sqMask
	r.sqArray[index] = index
	r.pending++
	return &SQE{raw: &r.sqes[index]}, true
}

// Submit publishes all currently staged submission queue entries to the
// kernel without waiting for any completions.
func (r *Ring) Submit() (uint32, error) {
	return r.enter(0)
}

// SubmitAndWait publishes all staged entries and blocks until at least
// minComplete completions are available.
func (r *Ring) SubmitAndWait(minComplete uint32) (uint32, error) {
	return r.enter(minComplete)
}

func (r *Ring) enter(minComplete uint32) (uint32, error) {
	r.mu.Lock()
	submitted := r.pending
	if submitted > 0 {
		sfence()
		atomic.StoreUint32(r.sqTail, atomic.LoadUint32(r.sqTail)+submitted)
		r.pending = 0
	}
	r.mu.Unlock()

	var flags uint32
	if minComplete > 0 {
		flags = enterGetEvents
	}

	// The syscall itself is not protected by r.mu: it may block for an
	// arbitrary time waiting for completions, and must not prevent other
	// goroutines from staging and publishing further submissions in the
	// meantime (see internal/driver for why this matters).
	n1, _, errno := syscall.Syscall6(sysIOUringEnter, uintptr(r.fd), uintptr(submitted), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("io_uring_enter: %w", errno)
	}
	return uint32(n1), nil
}

// ForEachCQE drains every ready completion queue entry, invoking fn with
// its user-data cookie and result code, and returns how many were
// processed. Only one goroutine should call ForEachCQE at a time.
func (r *Ring) ForEachCQE(fn func(userData uint64, res int32, flags uint32)) int {
	mfence()
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)

	n := 0
	for head != tail {
		idx := head & r.cqMask
		c := &r.cqes[idx]
		fn(c.userData, c.res, c.flags)
		head++
		n++
	}
	if n > 0 {
		atomic.StoreUint32(r.cqHead, head)
	}
	return n
}

// Entries reports the submission queue depth the ring was created with.
func (r *Ring) Entries() uint32 { return r.params.SQEntries }
