// Package ringrt is a single-threaded-cooperative, io_uring-backed task
// runtime: application code issues kernel-offloaded I/O (nop, read,
// write, accept) through a Handle and awaits completion without blocking
// other tasks, while a single goroutine owns the ring and reaps
// completions on everyone's behalf.
//
// See DESIGN.md in the module root for how this reconciles the runtime's
// single-ring-owner invariant with Go's own goroutine scheduler.
package ringrt
