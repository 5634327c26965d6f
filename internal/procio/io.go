package procio

import "golang.org/x/sys/unix"

// Write issues a single non-blocking write and returns immediately; a
// short write or EAGAIN arms the write token before returning, so a
// caller using the low-level API observes the pending registration via
// the returned error.
func (h *ExecContext) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, ErrBadArgument
	}

	fd := h.fdFor(DirWrite)
	if fd == pipeClosed {
		return 0, ErrPipeClosed
	}

	n, err := unix.Write(fd, b)
	if err != nil {
		if isWouldBlock(err) {
			if _, armErr := h.registrar.Arm(fd, DirWrite, h.writeToken); armErr != nil {
				return 0, armErr
			}
			return 0, ErrWouldBlock
		}
		return 0, osError("write", err)
	}

	if n < len(b) {
		if _, armErr := h.registrar.Arm(fd, DirWrite, h.writeToken); armErr != nil {
			return n, armErr
		}
	}
	return n, nil
}

// Read issues a single non-blocking read. request is either
// UnbufferedRead or a positive upper bound; the effective size is
// min(request, PipeBufSize).
func (h *ExecContext) Read(request int) ([]byte, error) {
	if request != UnbufferedRead && request < 1 {
		return nil, ErrBadArgument
	}

	fd := h.fdFor(DirRead)
	if fd == pipeClosed {
		return nil, ErrPipeClosed
	}

	size := request
	if request == UnbufferedRead || request > PipeBufSize {
		size = PipeBufSize
	}

	buf := make([]byte, size)
	n, err := unix.Read(fd, buf)
	if err != nil {
		if isWouldBlock(err) {
			if _, armErr := h.registrar.Arm(fd, DirRead, h.readToken); armErr != nil {
				return nil, armErr
			}
			return nil, ErrWouldBlock
		}
		return nil, osError("read", err)
	}

	data := buf[:n]
	if n == 0 || n == request || request == UnbufferedRead {
		// EOF, fully satisfied, or unbuffered mode: never rearm.
		return data, nil
	}

	// 0 < n < request: short read, rearm.
	if _, armErr := h.registrar.Arm(fd, DirRead, h.readToken); armErr != nil {
		return data, armErr
	}
	return data, nil
}

// Close is idempotent: closing an already-PIPE_CLOSED direction returns
// nil. It first disarms any pending
// readiness subscription on that direction (the stop-registration), then
// closes the fd.
func (h *ExecContext) Close(which Direction) error {
	var fdSlot *int
	var tok *Token

	switch which {
	case DirWrite:
		fdSlot, tok = &h.inputFD, h.writeToken
	case DirRead:
		fdSlot, tok = &h.outputFD, h.readToken
	default:
		return ErrBadArgument
	}

	h.mu.Lock()
	fd := *fdSlot
	if fd == pipeClosed {
		h.mu.Unlock()
		return nil
	}
	*fdSlot = pipeClosed
	h.mu.Unlock()

	_ = h.registrar.Disarm(tok)
	if err := unix.Close(fd); err != nil {
		return osError("close", err)
	}
	return nil
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
