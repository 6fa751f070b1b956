package iouring

import "unsafe"

// rawSQE mirrors the kernel's struct io_uring_sqe (64-byte layout). Only
// the fields the nop/read/write/accept opcodes touch are named distinctly;
// the rest of the kernel's unions collapse onto the same offsets the
// kernel expects, matching liburing's io_uring_prep_* macros:
//
//   - read/write: fd, addr (buffer pointer), len, off (file offset)
//   - accept:     fd (listener), addr (sockaddr_storage*), off (addrlen*,
//     aliases the off/addr2 union), opcodeFlags (accept flags)
type rawSQE struct {
	opcode      uint8
	flags       uint8
	ioprio      uint16
	fd          int32
	off         uint64
	addr        uint64
	len         uint32
	opcodeFlags uint32
	userData    uint64
	bufIndex    uint16
	personality uint16
	spliceFDIn  int32
	pad         [2]uint64
}

const sqeSize = unsafe.Sizeof(rawSQE{})

// rawCQE mirrors struct io_uring_cqe (16-byte layout).
type rawCQE struct {
	userData uint64
	res      int32
	flags    uint32
}

const cqeSize = unsafe.Sizeof(rawCQE{})

// SQE is a handle onto one submission queue entry, valid only until the
// next call to Ring.Submit/SubmitAndWait publishes it. Event implementations
// call exactly one Prepare* method on it.
type SQE struct {
	raw *rawSQE
}

// NewSQE allocates a standalone SQE backed by ordinary heap memory, for use
// by tests that exercise Event.Prepare without a live ring.
func NewSQE() *SQE {
	return &SQE{raw: &rawSQE{}}
}

// PrepareNop configures the SQE as a no-op.
func (s *SQE) PrepareNop() {
	*s.raw = rawSQE{opcode: opNop}
}

// PrepareRead configures the SQE to read len(buf) bytes from fd at offset
// into buf. buf must stay alive and unmoved until the CQE for this
// operation is observed; the caller (the driver's control block) holds a
// reference to it for exactly that reason.
func (s *SQE) PrepareRead(fd int32, buf []byte, offset uint64) {
	*s.raw = rawSQE{opcode: opRead, fd: fd, off: offset, len: uint32(len(buf))}
	if len(buf) > 0 {
		s.raw.addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
}

// PrepareWrite configures the SQE to write buf to fd at offset.
func (s *SQE) PrepareWrite(fd int32, buf []byte, offset uint64) {
	*s.raw = rawSQE{opcode: opWrite, fd: fd, off: offset, len: uint32(len(buf))}
	if len(buf) > 0 {
		s.raw.addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
}

// PrepareAccept configures the SQE to accept a connection on the listening
// fd. addr and addrlen must stay alive until completion; the driver's
// Accept event owns the scratch buffer they point into.
func (s *SQE) PrepareAccept(fd int32, addr *[sockaddrStorageSize]byte, addrlen *uint32, flags uint32) {
	*s.raw = rawSQE{
		opcode:      opAccept,
		fd:          fd,
		addr:        uint64(uintptr(unsafe.Pointer(&addr[0]))),
		off:         uint64(uintptr(unsafe.Pointer(addrlen))),
		opcodeFlags: flags,
	}
}

// SetUserData stamps the completion identifier the driver will look the
// control block up by.
func (s *SQE) SetUserData(id uint64) {
	s.raw.userData = id
}

// UserData reports the identifier previously stamped by SetUserData.
// Exported so test doubles standing in for a real Ring can learn which
// control block a staged SQE belongs to.
func (s *SQE) UserData() uint64 { return s.raw.userData }

// sockaddrStorageSize matches sizeof(struct sockaddr_storage) on Linux.
const sockaddrStorageSize = 128

// CQE is the immutable result of one completed operation, handed to
// Event.Complete.
type CQE struct {
	UserData uint64
	Res      int32
	Flags    uint32
}
