package ringrt

import (
	"context"
	"net/netip"
	"os"
	"syscall"

	"github.com/behrlich/ringrt/internal/event"
)

// FileDescriptor is anything exposing a raw OS file descriptor, the same
// shape os.File already satisfies. Callers of Read/Write/Accept pass any
// object implementing it; the runtime never closes the descriptor, its
// lifetime is the caller's.
type FileDescriptor interface {
	Fd() uintptr
}

// RawFD adapts a bare file descriptor, e.g. one obtained from
// syscall.Socket, into a FileDescriptor.
type RawFD int32

func (f RawFD) Fd() uintptr { return uintptr(f) }

// Nop submits a no-op event, the runtime's smoke test: it always resolves
// to (0, nil) on success.
func (h *Handle) Nop(ctx context.Context) (int, error) {
	return submit[int](ctx, h, event.Nop{})
}

// Read submits a read of len(buf) bytes from fd at offset into buf. The
// returned slice is buf itself (same backing array, same capacity); n is
// how many bytes the kernel filled. The kernel owns buf for the full
// round-trip: if this call returns early because ctx is done, the kernel
// may still write into buf until the operation completes.
func (h *Handle) Read(ctx context.Context, fd FileDescriptor, buf []byte, offset uint64) ([]byte, int, error) {
	out, err := submit[event.ReadOutcome](ctx, h, &event.Read{Fd: int32(fd.Fd()), Buf: buf, Offset: offset})
	return out.Buf, out.N, err
}

// Write submits a write of buf to fd at offset. Symmetric to Read: the
// returned slice is the same buf the caller passed in, and n is the
// number of bytes the kernel reports written.
func (h *Handle) Write(ctx context.Context, fd FileDescriptor, buf []byte, offset uint64) ([]byte, int, error) {
	out, err := submit[event.WriteOutcome](ctx, h, &event.Write{Fd: int32(fd.Fd()), Buf: buf, Offset: offset})
	return out.Buf, out.N, err
}

// Accept submits an accept on listener, a listening socket. On success it
// returns the accepted connection as an *os.File (a stream: Read, Write
// and Close all work on it as usual) and the peer's address. Only
// AF_INET and AF_INET6 peers are supported; anything else, notably
// AF_UNIX, resolves to an *Error with CodeInvalidParameters — the fd is
// still obtained by the kernel in that case, and this method closes it
// before returning since the caller never gets a stream to close it
// through.
func (h *Handle) Accept(ctx context.Context, listener FileDescriptor, flags uint32) (*os.File, netip.AddrPort, error) {
	out, err := submit[event.AcceptOutcome](ctx, h, &event.Accept{Fd: int32(listener.Fd()), Flags: flags})
	if err != nil {
		if out.Fd > 0 {
			_ = syscall.Close(int(out.Fd))
		}
		return nil, out.Peer, err
	}
	return os.NewFile(uintptr(out.Fd), "ringrt-accepted-conn"), out.Peer, nil
}
