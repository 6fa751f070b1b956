// Package event defines the driver-facing Event abstraction and the
// concrete nop/read/write/accept operations this runtime supports.
//
// An Event is prepared against a submission queue entry exactly once,
// handed to the kernel, and later completed exactly once with the
// resulting completion queue entry. Go's non-moving heap means an Event
// value stays at a stable address for as long as something holds a
// reference to it, which is all "pinned" means here — there is no
// analogue of Rust's Pin/PhantomPinned needed, and no vtable to build by
// hand: a Go interface value already carries the concrete type's
// identity, so the driver stores Events as plain `Event` and the caller
// that constructed one knows, from the call site alone, what concrete
// type Complete's `any` result holds.
package event

import (
	"fmt"
	"net/netip"

	"github.com/behrlich/ringrt/internal/iouring"
	"github.com/behrlich/ringrt/internal/ringerr"
)

// Event is prepared against a submission queue entry and later completed
// against the matching completion queue entry. Implementations must not
// retain the *iouring.SQE passed to Prepare past that call; they may
// retain buffers they themselves own (e.g. a read destination) since the
// kernel writes through the pointer staged in Prepare, not through the
// SQE handle itself.
type Event interface {
	// Prepare configures sqe for this operation. Called at most once.
	Prepare(sqe *iouring.SQE)

	// Complete translates a completion queue entry into this operation's
	// result. Called at most once, after Prepare, with the CQE carrying
	// the same user-data cookie the driver stamped. Complete must not
	// panic; errors are returned as ordinary values in the boxed result.
	Complete(cqe iouring.CQE) any

	// Op names the operation for logging and metrics, e.g. "read".
	Op() string
}

// Result is the boxed value every concrete event's Complete returns;
// wrapper functions in the ringrt package unbox it with a type assertion
// they know is safe, since they alone constructed the Event.
type Result[T any] struct {
	Value T
	Err   error
}

// ErrVal lets a caller holding a boxed Result[T] as `any`, without
// knowing T, recover its error for logging or metrics.
func (r Result[T]) ErrVal() error { return r.Err }

// Nop is the simplest event: it round-trips through the ring without
// touching any file descriptor, returning 0 on success.
type Nop struct{}

func (Nop) Prepare(sqe *iouring.SQE) { sqe.PrepareNop() }

func (Nop) Op() string { return "nop" }

func (Nop) Complete(cqe iouring.CQE) any {
	if err := ringerr.FromErrno("nop", cqe.Res); err != nil {
		return Result[int]{Err: err}
	}
	return Result[int]{Value: int(cqe.Res)}
}

// Read reads into Buf from Fd at Offset.
type Read struct {
	Fd     int32
	Buf    []byte
	Offset uint64
}

func (r *Read) Prepare(sqe *iouring.SQE) { sqe.PrepareRead(r.Fd, r.Buf, r.Offset) }

func (r *Read) Op() string { return "read" }

func (r *Read) Complete(cqe iouring.CQE) any {
	if err := ringerr.FromErrno("read", cqe.Res); err != nil {
		return Result[ReadOutcome]{Err: err}
	}
	n := int(cqe.Res)
	return Result[ReadOutcome]{Value: ReadOutcome{Buf: r.Buf, N: n}}
}

// ReadOutcome is the value a successful Read resolves with: the same
// buffer the caller supplied, and how many bytes the kernel filled.
type ReadOutcome struct {
	Buf []byte
	N   int
}

// Write writes Buf to Fd at Offset.
type Write struct {
	Fd     int32
	Buf    []byte
	Offset uint64
}

func (w *Write) Prepare(sqe *iouring.SQE) { sqe.PrepareWrite(w.Fd, w.Buf, w.Offset) }

func (w *Write) Op() string { return "write" }

func (w *Write) Complete(cqe iouring.CQE) any {
	if err := ringerr.FromErrno("write", cqe.Res); err != nil {
		return Result[WriteOutcome]{Err: err}
	}
	n := int(cqe.Res)
	return Result[WriteOutcome]{Value: WriteOutcome{Buf: w.Buf, N: n}}
}

// WriteOutcome mirrors ReadOutcome for the symmetric write path.
type WriteOutcome struct {
	Buf []byte
	N   int
}

const (
	afINET  = 2
	afINET6 = 10
)

// Accept accepts a connection on Fd (a listening socket). Flags are
// passed through to accept4's flags argument (e.g. SOCK_NONBLOCK).
type Accept struct {
	Fd      int32
	Flags   uint32
	addrBuf [128]byte
	addrLen uint32
}

func (a *Accept) Prepare(sqe *iouring.SQE) {
	a.addrLen = uint32(len(a.addrBuf))
	sqe.PrepareAccept(a.Fd, &a.addrBuf, &a.addrLen, a.Flags)
}

func (a *Accept) Op() string { return "accept" }

// AcceptOutcome is the value a successful Accept resolves with: the
// accepted file descriptor and the translated peer address.
type AcceptOutcome struct {
	Fd   int32
	Peer netip.AddrPort
}

func (a *Accept) Complete(cqe iouring.CQE) any {
	if err := ringerr.FromErrno("accept", cqe.Res); err != nil {
		return Result[AcceptOutcome]{Err: err}
	}
	fd := int32(cqe.Res)
	peer, err := sockaddrToAddrPort(&a.addrBuf)
	if err != nil {
		return Result[AcceptOutcome]{Value: AcceptOutcome{Fd: fd}, Err: err}
	}
	return Result[AcceptOutcome]{Value: AcceptOutcome{Fd: fd, Peer: peer}}
}

// sockaddrToAddrPort translates a raw sockaddr_storage filled in by
// accept() into a netip.AddrPort. AF_INET and AF_INET6 are supported;
// anything else (notably AF_UNIX) reports an invalid-argument error, the
// same way this runtime's ancestor's accept translator does, and the
// socket fd the kernel already handed back is still the caller's to
// close.
func sockaddrToAddrPort(raw *[128]byte) (netip.AddrPort, error) {
	family := uint16(raw[0]) | uint16(raw[1])<<8

	switch family {
	case afINET:
		port := uint16(raw[2])<<8 | uint16(raw[3])
		var addr [4]byte
		copy(addr[:], raw[4:8])
		return netip.AddrPortFrom(netip.AddrFrom4(addr), port), nil
	case afINET6:
		port := uint16(raw[2])<<8 | uint16(raw[3])
		var addr [16]byte
		copy(addr[:], raw[8:24])
		return netip.AddrPortFrom(netip.AddrFrom16(addr), port), nil
	default:
		return netip.AddrPort{}, ringerr.Invalid("accept", fmt.Sprintf("invalid argument: unsupported address family %d", family))
	}
}
