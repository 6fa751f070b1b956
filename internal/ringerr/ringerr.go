// Package ringerr defines the structured error type shared by the event,
// driver and root ringrt packages, following the teacher's Op/Code/Errno
// error shape but re-grounded on io_uring completion results instead of
// ublk control-plane responses.
package ringerr

import (
	"fmt"
	"syscall"
)

// Code categorizes an Error independently of the underlying errno, so
// callers can branch on category without knowing Linux's errno table.
type Code string

const (
	CodeIOError           Code = "io_error"
	CodeInvalidParameters Code = "invalid_parameters"
	CodeDeviceBusy        Code = "device_busy"
	CodeTimeout           Code = "timeout"
	CodeRingClosed        Code = "ring_closed"
	CodeUsage             Code = "usage"
)

// Error is returned inside an event's typed output for per-operation
// failures. Ring-lifecycle failures are not reported as an Error.
type Error struct {
	Op    string        // operation that failed, e.g. "read", "accept"
	Code  Code          // high-level category
	Errno syscall.Errno // kernel errno, zero if not applicable
	Msg   string        // human-readable detail
	Inner error         // wrapped error, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Errno != 0 {
		msg = e.Errno.Error()
	}
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op == "" {
		return fmt.Sprintf("ringrt: %s", msg)
	}
	return fmt.Sprintf("ringrt: %s: %s", e.Op, msg)
}

// Unwrap supports errors.Is/errors.As against Inner and, for errno-backed
// errors, against the bare syscall.Errno as well via errors.Is's built-in
// fallback to the Errno's own Is method.
func (e *Error) Unwrap() error {
	if e.Inner != nil {
		return e.Inner
	}
	if e.Errno != 0 {
		return e.Errno
	}
	return nil
}

// Is lets errors.Is(err, ringerr.CodeIOError-shaped sentinels) work by
// comparing Code when the target is itself a *Error carrying only a Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Op == "" && t.Errno == 0 {
		return e.Code == t.Code
	}
	return false
}

// FromErrno builds an *Error from a negative io_uring completion result
// (as stored in a CQE's res field). It returns nil for res >= 0, since
// that denotes success, not failure.
func FromErrno(op string, res int32) *Error {
	if res >= 0 {
		return nil
	}
	errno := syscall.Errno(-res)
	return &Error{Op: op, Code: codeForErrno(errno), Errno: errno}
}

// Invalid builds an Error for a usage/validation failure that has no
// corresponding kernel errno, e.g. an unsupported socket address family.
func Invalid(op, msg string) *Error {
	return &Error{Op: op, Code: CodeInvalidParameters, Msg: msg}
}

func codeForErrno(errno syscall.Errno) Code {
	switch errno {
	case syscall.EINVAL:
		return CodeInvalidParameters
	case syscall.EAGAIN, syscall.EBUSY:
		return CodeDeviceBusy
	case syscall.ETIMEDOUT:
		return CodeTimeout
	default:
		return CodeIOError
	}
}
