package iouring

// Kernel syscall numbers for io_uring, x86-64 ABI. Mirrors the constants
// the control-plane ring binding this package replaces used for the ublk
// URING_CMD path.
const (
	sysIOUringSetup = 425
	sysIOUringEnter = 426
)

// Opcodes this runtime issues, from uapi/linux/io_uring.h.
const (
	opNop    uint8 = 0
	opRead   uint8 = 22
	opWrite  uint8 = 23
	opAccept uint8 = 13
)

// Setup flags.
const (
	setupCQSize uint32 = 1 << 3
)

// Feature flags reported back in io_uring_params.features.
const (
	featSingleMmap uint32 = 1 << 0
)

// io_uring_enter flags.
const (
	enterGetEvents uint32 = 1 << 0
)

// mmap offsets into the ring fd, fixed by the kernel ABI.
const (
	offSQRing uint64 = 0
	offCQRing uint64 = 0x8000000
	offSQEs   uint64 = 0x10000000
)
