//go:build linux && cgo

package iouring

/*
#include <stdint.h>

// x86-64 store fence: ensures all prior stores are globally visible
// before any subsequent store. Used before publishing the SQ tail.
static inline void sfence_impl(void) {
    __asm__ __volatile__("sfence" ::: "memory");
}

// x86-64 full memory fence: ensures all prior memory operations complete
// before any subsequent ones. Used before reading the CQ tail.
static inline void mfence_impl(void) {
    __asm__ __volatile__("mfence" ::: "memory");
}
*/
import "C"

func sfence() { C.sfence_impl() }
func mfence() { C.mfence_impl() }
