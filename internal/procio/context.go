package procio

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// ExecContext is the opaque handle to a running child: it owns the child
// pid, both parent-side pipe fds, the two per-direction readiness tokens,
// and the memoized exit status once the child is reaped.
//
// A handle may be used concurrently by at most two callers, one per
// direction; concurrent calls within one direction on the same handle are
// undefined.
type ExecContext struct {
	registrar ReadinessRegistrar

	// mu guards pid, exitStatus, and the fd fields. It is not held across
	// syscalls or channel waits.
	mu sync.Mutex

	pid      int
	inputFD  int // parent-side write end of the child's stdin
	outputFD int // parent-side read end of the child's stdout

	exitStatus *ExitStatus

	readToken  *Token
	writeToken *Token
}

func newExecContext(pid, inputFD, outputFD int, registrar ReadinessRegistrar) *ExecContext {
	h := &ExecContext{
		registrar:  registrar,
		pid:        pid,
		inputFD:    inputFD,
		outputFD:   outputFD,
		readToken:  newToken(),
		writeToken: newToken(),
	}
	runtime.SetFinalizer(h, (*ExecContext).finalize)
	return h
}

// finalize is the GC drop path: it best-effort closes any fd not already
// PIPE_CLOSED. It does not reap the child — reaping on drop is a
// supervisor's responsibility, not the handle's.
func (h *ExecContext) finalize() {
	h.mu.Lock()
	inputFD, outputFD := h.inputFD, h.outputFD
	h.inputFD, h.outputFD = pipeClosed, pipeClosed
	h.mu.Unlock()

	if inputFD != pipeClosed {
		_ = h.registrar.Disarm(h.writeToken)
		_ = unix.Close(inputFD)
	}
	if outputFD != pipeClosed {
		_ = h.registrar.Disarm(h.readToken)
		_ = unix.Close(outputFD)
	}
}

// fdFor returns the current fd for dir under the lock, or pipeClosed.
func (h *ExecContext) fdFor(dir Direction) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if dir == DirRead {
		return h.outputFD
	}
	return h.inputFD
}

func (h *ExecContext) tokenFor(dir Direction) *Token {
	if dir == DirRead {
		return h.readToken
	}
	return h.writeToken
}
