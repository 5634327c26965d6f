package procio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// WaitPendingError is returned by Wait when the child has not yet been
// reaped: Pid is 0 when waitpid reported "still running", or the raw
// waitpid return value when it returned a status that is neither exited,
// signaled nor stopped. A failing waitpid is reported as *OSError instead.
type WaitPendingError struct {
	Pid    int
	Status int
}

func (e *WaitPendingError) Error() string {
	return fmt.Sprintf("procio: wait pending (wpid=%d status=%d)", e.Pid, e.Status)
}

// Wait is non-blocking: it issues a single
// waitpid(pid, &status, WNOHANG) and reports "not yet" as
// *WaitPendingError rather than blocking. Once a terminal status has been
// observed, it is memoized on the handle and returned on every subsequent
// call without touching the kernel again.
func (h *ExecContext) Wait() (ExitStatus, error) {
	h.mu.Lock()
	if h.pid == cmdExit {
		status := *h.exitStatus
		h.mu.Unlock()
		return status, nil
	}
	pid := h.pid
	h.mu.Unlock()

	var wstatus unix.WaitStatus
	wpid, err := unix.Wait4(pid, &wstatus, unix.WNOHANG, nil)
	if err != nil {
		return ExitStatus{}, osError("waitpid", err)
	}
	if wpid == 0 {
		return ExitStatus{}, &WaitPendingError{Pid: 0, Status: int(wstatus)}
	}

	var es ExitStatus
	switch {
	case wstatus.Exited():
		es = ExitStatus{Type: ExitNormal, Code: wstatus.ExitStatus()}
	case wstatus.Signaled():
		es = ExitStatus{Type: ExitSignaled, Code: int(wstatus.Signal())}
	case wstatus.Stopped():
		es = ExitStatus{Type: ExitStopped, Code: 0}
	default:
		return ExitStatus{}, &WaitPendingError{Pid: wpid, Status: int(wstatus)}
	}

	h.mu.Lock()
	h.pid = cmdExit
	h.exitStatus = &es
	h.mu.Unlock()
	return es, nil
}

// Terminate sends SIGTERM to the child. No-op if already reaped.
func (h *ExecContext) Terminate() error {
	return h.signal(unix.SIGTERM)
}

// Kill sends SIGKILL to the child. No-op if already reaped.
func (h *ExecContext) Kill() error {
	return h.signal(unix.SIGKILL)
}

func (h *ExecContext) signal(sig unix.Signal) error {
	h.mu.Lock()
	pid := h.pid
	h.mu.Unlock()
	if pid == cmdExit {
		return nil
	}
	if err := unix.Kill(pid, sig); err != nil {
		return osError("kill", err)
	}
	return nil
}

// Alive reports true if the pid has been memoized as reaped OR
// kill(pid, 0) succeeds. A reaped-but-not-yet-observed child may briefly
// report true until Wait is called.
func (h *ExecContext) Alive() bool {
	h.mu.Lock()
	pid := h.pid
	h.mu.Unlock()
	if pid == cmdExit {
		return true
	}
	return unix.Kill(pid, 0) == nil
}

// OSPid returns the child pid, or 0 once reaped.
func (h *ExecContext) OSPid() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pid == cmdExit {
		return 0
	}
	return h.pid
}
