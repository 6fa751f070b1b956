//go:build !(linux && cgo)

package iouring

// sfence/mfence are no-ops without cgo. atomic.StoreUint32/LoadUint32 on
// the tail/head pointers already give the ordering io_uring_enter needs
// for correctness; the explicit x86 fences in barrier.go are belt-and-
// braces for the cgo build, not load-bearing.
func sfence() {}
func mfence() {}
