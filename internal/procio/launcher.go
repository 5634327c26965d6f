package procio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Execute creates two pipes (stdin, stdout), arranges non-blocking,
// close-on-exec parent-side ends, forks, and execs args[0] with args and
// env verbatim — no $PATH search, no shell.
//
// The fork+dup2+chdir+execve dance itself is delegated to syscall.ForkExec,
// the Go runtime's own async-signal-safe child path
// (syscall.forkAndExecInChild). That function performs, in the child,
// exactly the sequence a hand-rolled launcher would: optional chdir, dup2
// of the prepared fds onto 0/1/2, closing of everything else the Go
// runtime marked close-on-exec, then execve. syscall.ForkExec reports a
// failure on that path back to the parent and reaps the child itself;
// Execute then returns a handle whose child has already exited with
// ForkExecFailure.
func Execute(args, env []string, dir string, stderrMode StderrMode) (*ExecContext, error) {
	if len(args) == 0 {
		return nil, ErrBadArgument
	}

	registrar, err := defaultRegistrar()
	if err != nil {
		return nil, err
	}

	var stdin, stdout [2]int
	if err := unix.Pipe2(stdin[:], unix.O_CLOEXEC); err != nil {
		return nil, osError("pipe2(stdin)", err)
	}
	if err := unix.Pipe2(stdout[:], unix.O_CLOEXEC); err != nil {
		_ = unix.Close(stdin[0])
		_ = unix.Close(stdin[1])
		return nil, osError("pipe2(stdout)", err)
	}

	childStdin, parentStdin := stdin[0], stdin[1]
	parentStdout, childStdout := stdout[0], stdout[1]

	cleanupAll := func() {
		_ = unix.Close(childStdin)
		_ = unix.Close(parentStdin)
		_ = unix.Close(parentStdout)
		_ = unix.Close(childStdout)
	}

	if err := unix.SetNonblock(parentStdin, true); err != nil {
		cleanupAll()
		return nil, osError("fcntl(O_NONBLOCK, stdin)", err)
	}
	if err := unix.SetNonblock(parentStdout, true); err != nil {
		cleanupAll()
		return nil, osError("fcntl(O_NONBLOCK, stdout)", err)
	}

	var childStderr int
	var closeStderr bool
	switch stderrMode {
	case StderrDiscard:
		fd, err := unix.Open("/dev/null", unix.O_WRONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			cleanupAll()
			return nil, osError("open(/dev/null)", err)
		}
		childStderr = fd
		closeStderr = true
	default: // StderrInherit
		childStderr = int(unix.Stderr)
	}

	attr := &syscall.ProcAttr{
		Dir:   dir,
		Env:   env,
		Files: []uintptr{uintptr(childStdin), uintptr(childStdout), uintptr(childStderr)},
	}

	pid, err := syscall.ForkExec(args[0], args, attr)

	// The parent no longer needs the child-side fds, nor the /dev/null fd,
	// regardless of success: ForkExec has already dup2'd everything it
	// needs into the child by the time it returns.
	_ = unix.Close(childStdin)
	_ = unix.Close(childStdout)
	if closeStderr {
		_ = unix.Close(childStderr)
	}

	if err != nil {
		switch err {
		case syscall.EAGAIN, syscall.ENOMEM, syscall.EMFILE, syscall.ENFILE, syscall.EINVAL:
			// The fork itself, or the setup before it, failed: no child ran.
			_ = unix.Close(parentStdin)
			_ = unix.Close(parentStdout)
			return nil, osError("fork/exec", err)
		}
		// The child failed between fork and exec (chdir, execve) and has
		// already been reaped by syscall.ForkExec.
		h := newExecContext(cmdExit, parentStdin, parentStdout, registrar)
		h.exitStatus = &ExitStatus{Type: ExitNormal, Code: ForkExecFailure}
		return h, nil
	}

	return newExecContext(pid, parentStdin, parentStdout, registrar), nil
}
