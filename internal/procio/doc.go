// Package procio is a low-level, non-blocking process I/O engine.
//
// It forks and execs a child process wired to two pipes (the child's stdin
// and stdout), then performs non-blocking read/write/close against the
// parent-side ends. Every I/O operation is a single syscall: it either
// completes, returns a short count, or returns ErrWouldBlock. In the last
// two cases the operation arms a readiness token (except for a short
// UnbufferedRead, which never rearms) that fires once the fd is
// ready again; callers that want to block use WriteContext/ReadContext,
// which retry against that token.
//
// procio never reaps a child on its own. Callers are expected to call Wait
// (directly, or through internal/supervisor) once both pipes are closed.
package procio
