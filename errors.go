package ringrt

import (
	"errors"
	"fmt"

	"github.com/behrlich/ringrt/internal/driver"
	"github.com/behrlich/ringrt/internal/ringerr"
)

// Error is the structured error type carried inside an event's output
// for per-operation (kernel) failures. Op names the failing operation
// ("read", "write", "accept", "nop"); Code categorizes the failure
// independently of the specific errno; Errno is the kernel error code
// when one applies.
type Error = ringerr.Error

// ErrorCode categorizes an Error. See the Code* constants.
type ErrorCode = ringerr.Code

const (
	CodeIOError           = ringerr.CodeIOError
	CodeInvalidParameters = ringerr.CodeInvalidParameters
	CodeDeviceBusy        = ringerr.CodeDeviceBusy
	CodeTimeout           = ringerr.CodeTimeout
	CodeRingClosed        = ringerr.CodeRingClosed
	CodeUsage             = ringerr.CodeUsage
)

// ErrClosed is returned by Handle's event methods (Nop, Read, Write,
// Accept) once the runtime has been closed. It wraps driver.ErrClosed so
// callers can errors.Is against either. After a submission flush to the
// kernel has failed, those methods return that flush error instead.
var ErrClosed = fmt.Errorf("ringrt: runtime closed: %w", driver.ErrClosed)

// ErrReentrantBlockOn is a usage error: BlockOn was called again from
// inside a task already running under the same Runtime's BlockOn. The
// nested call is rejected eagerly with this error instead of running its
// root function.
var ErrReentrantBlockOn = errors.New("ringrt: BlockOn called re-entrantly on the same runtime")

// isRingClosed reports whether err denotes the ring having been closed
// via Close. The error latched by a failed submission flush is not
// matched.
func isRingClosed(err error) bool {
	return errors.Is(err, driver.ErrClosed) || errors.Is(err, ErrClosed)
}
