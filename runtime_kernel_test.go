//go:build linux

// These tests exercise a real kernel io_uring ring end to end (spec.md
// §8's end-to-end scenarios). They're skipped on kernels without
// io_uring support, mirroring internal/iouring/ring_test.go's gating.
package ringrt

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	rt, err := New(opts...)
	if err != nil {
		var errno syscall.Errno
		if errors.As(err, &errno) && (errno == syscall.ENOSYS || errno == syscall.EPERM) {
			t.Skipf("io_uring not available on this kernel: %v", err)
		}
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestEndToEndBlockOnNop(t *testing.T) {
	rt := newTestRuntime(t, WithDepth(16))

	n, err := BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		return h.Nop(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEndToEndSpawn100NopsAllSucceed(t *testing.T) {
	const depth = 16
	rt := newTestRuntime(t, WithDepth(depth))

	_, err := BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		handles := make([]*JoinHandle[int], 100)
		for i := range handles {
			handles[i] = Spawn(ctx, h, func(ctx context.Context) (int, error) {
				return h.Nop(ctx)
			})
		}
		for _, jh := range handles {
			v, err := jh.Wait(ctx)
			require.NoError(t, err)
			require.Equal(t, 0, v)
		}
		return 0, nil
	})
	require.NoError(t, err)
}

func TestEndToEndReadZeroSizeFile(t *testing.T) {
	rt := newTestRuntime(t, WithDepth(8))

	f, err := os.CreateTemp(t.TempDir(), "ringrt-empty")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 64)
	n, err := BlockOn(context.Background(), rt, func(ctx context.Context, h *Handle) (int, error) {
		_, n, err := h.Read(ctx, f, buf, 0)
		return n, err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEndToEndTCPEcho(t *testing.T) {
	rt := newTestRuntime(t, WithDepth(16))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	tcpListener := listener.(*net.TCPListener)
	listenerFile, err := tcpListener.File()
	require.NoError(t, err)
	defer listenerFile.Close()

	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		conn, err := net.Dial("tcp", listener.Addr().String())
		if err != nil {
			return
		}
		conn.Write([]byte("ping"))
		conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type outcome struct {
		n   int
		buf []byte
	}
	out, err := BlockOn(ctx, rt, func(ctx context.Context, h *Handle) (outcome, error) {
		stream, _, err := h.Accept(ctx, listenerFile, 0)
		if err != nil {
			return outcome{}, err
		}
		defer stream.Close()

		buf := make([]byte, 8196)
		_, n, err := h.Read(ctx, stream, buf, 0)
		if err != nil {
			return outcome{}, err
		}
		return outcome{n: n, buf: buf}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out.n)
	assert.Equal(t, "ping", string(out.buf[:out.n]))

	<-clientDone
}

func TestEndToEnd32ParallelAccepts(t *testing.T) {
	const n = 32
	rt := newTestRuntime(t, WithDepth(64))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	tcpListener := listener.(*net.TCPListener)
	addr := listener.Addr().String()

	for i := 0; i < n; i++ {
		go func() {
			conn, err := net.Dial("tcp", addr)
			if err == nil {
				conn.Close()
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	addrs, err := BlockOn(ctx, rt, func(ctx context.Context, h *Handle) ([]string, error) {
		listenerFile, err := tcpListener.File()
		if err != nil {
			return nil, err
		}
		defer listenerFile.Close()

		handles := make([]*JoinHandle[string], n)
		for i := range handles {
			handles[i] = Spawn(ctx, h, func(ctx context.Context) (string, error) {
				stream, peer, err := h.Accept(ctx, listenerFile, 0)
				if err != nil {
					return "", err
				}
				stream.Close()
				return peer.String(), nil
			})
		}
		seen := make([]string, 0, n)
		for _, jh := range handles {
			peer, err := jh.Wait(ctx)
			if err != nil {
				return nil, err
			}
			seen = append(seen, peer)
		}
		return seen, nil
	})
	require.NoError(t, err)
	assert.Len(t, addrs, n)
}
