// Command ringrt-echo is a minimal TCP echo server built on ringrt. It
// exists to exercise the runtime's accept/read/write path end to end;
// HTTP parsing, request routing and the rest of a real file server are
// explicitly out of scope for this runtime (see spec.md §1) and have no
// place here either.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"

	"github.com/behrlich/ringrt"
	"github.com/behrlich/ringrt/internal/logging"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:0", "address to listen on")
	depth := flag.Uint("depth", 64, "submission queue depth, must be a power of two")
	flag.Parse()

	logger := logging.Default()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen %s: %v", *addr, err)
	}
	defer listener.Close()

	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		log.Fatalf("listener is not a *net.TCPListener")
	}
	listenerFile, err := tcpListener.File()
	if err != nil {
		log.Fatalf("get listener fd: %v", err)
	}
	defer listenerFile.Close()

	rt, err := ringrt.New(ringrt.WithDepth(uint32(*depth)), ringrt.WithLogger(logger))
	if err != nil {
		log.Fatalf("create runtime: %v", err)
	}
	defer rt.Close()

	logger.Info("listening", "addr", listener.Addr().String())

	_, err = ringrt.BlockOn(context.Background(), rt, func(ctx context.Context, h *ringrt.Handle) (int, error) {
		for {
			stream, peer, err := h.Accept(ctx, listenerFile, 0)
			if err != nil {
				logger.Error("accept failed", "error", err)
				continue
			}
			peerAddr := peer.String()
			ringrt.Spawn(ctx, h, func(ctx context.Context) (int, error) {
				n, err := echo(ctx, h, stream)
				if err != nil {
					logger.Warn("echo session ended", "peer", peerAddr, "error", err)
				} else {
					logger.Debug("echo session closed", "peer", peerAddr, "bytes", n)
				}
				return n, nil
			})
		}
	})
	if err != nil {
		log.Fatalf("runtime stopped: %v", err)
	}
}

// echo reads whatever the peer sends and writes it straight back, once,
// then closes the connection — enough to exercise accept/read/write
// without pulling in HTTP parsing.
func echo(ctx context.Context, h *ringrt.Handle, stream *os.File) (int, error) {
	defer stream.Close()

	buf := make([]byte, 8196)
	buf, n, err := h.Read(ctx, stream, buf, 0)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	if _, _, err := h.Write(ctx, stream, buf[:n], 0); err != nil {
		// The peer may already have closed its read side; that's fine
		// for a demo server.
		return n, err
	}
	return n, nil
}
