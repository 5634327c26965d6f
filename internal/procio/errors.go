package procio

import (
	"errors"
	"fmt"

	"github.com/nbproc/nbproc/internal/obs"
)

// Sentinel errors returned by the low-level engine.
var (
	// ErrWouldBlock is returned when a syscall would have blocked. The
	// handle's readiness token for that direction (which WriteContext and
	// ReadContext wait on) is armed before this is returned.
	ErrWouldBlock = errors.New("procio: operation would block")

	// ErrPipeClosed is returned when an operation targets a direction that
	// has already been closed.
	ErrPipeClosed = errors.New("procio: pipe closed")

	// ErrBadArgument is returned for caller misuse: empty write buffers,
	// non-positive read requests other than UnbufferedRead, or an invalid
	// Direction passed to Close.
	ErrBadArgument = errors.New("procio: bad argument")

	// ErrAlreadyArmed is returned by Arm when a readiness subscription is
	// already outstanding on that direction.
	ErrAlreadyArmed = errors.New("procio: readiness already armed")
)

// OSError wraps a non-recoverable errno returned by a syscall in the
// launcher or one of the I/O operations. It is never eagain: that case is
// reported as ErrWouldBlock instead.
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string {
	return fmt.Sprintf("procio: %s: %v", e.Op, e.Err)
}

func (e *OSError) Unwrap() error { return e.Err }

func osError(op string, err error) error {
	if err == nil {
		return nil
	}
	// Advisory only: the engine never retries or makes decisions based on
	// this, it just gives an operator something to grep for. Silent unless
	// a caller opted into a real logger.
	logger.Debug("%s: %v", op, err)
	return &OSError{Op: op, Err: err}
}

// logger is the package-level advisory logger. Defaults to a no-op sink;
// callers wire in a real one via SetLogger (typically obs.Default()).
var logger = obs.Null

// SetLogger installs l as the advisory logger for internal OS-error
// diagnostics. Passing nil restores the no-op default.
func SetLogger(l *obs.Logger) {
	if l == nil {
		l = obs.Null
	}
	logger = l
}
