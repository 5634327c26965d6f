package procio

import "context"

// WriteContext is an optional higher-level adapter: it retries Write,
// blocking on the write token's readiness channel (or ctx) whenever the
// low-level call reports ErrWouldBlock or leaves bytes unwritten. The
// low-level Write remains canonical; this is sugar built entirely on it
// and on the token it arms.
func (h *ExecContext) WriteContext(ctx context.Context, b []byte) (int, error) {
	total := 0
	for total < len(b) {
		remaining := b[total:]
		n, err := h.Write(remaining)
		total += n
		if err != nil {
			if err != ErrWouldBlock {
				return total, err
			}
			if waitErr := h.waitToken(ctx, h.writeToken); waitErr != nil {
				return total, waitErr
			}
			continue
		}
		if n < len(remaining) {
			// Short write: Write has already armed the write token, so wait
			// on it instead of immediately retrying into EAGAIN.
			if waitErr := h.waitToken(ctx, h.writeToken); waitErr != nil {
				return total, waitErr
			}
		}
	}
	return total, nil
}

// ReadContext retries Read, blocking on the read token's readiness channel
// (or ctx) whenever the low-level call reports ErrWouldBlock, and before
// the first Read if a previous short read left the token armed. It does
// not loop past a short read or EOF: those are valid results, not blocking
// conditions.
func (h *ExecContext) ReadContext(ctx context.Context, request int) ([]byte, error) {
	for {
		if waitErr := h.waitToken(ctx, h.readToken); waitErr != nil {
			return nil, waitErr
		}
		data, err := h.Read(request)
		if err != ErrWouldBlock {
			return data, err
		}
	}
}

// waitToken blocks until tok fires or ctx is done. It re-reads tok's
// current channel under lock since Arm may have replaced it between the
// caller observing ErrWouldBlock and calling waitToken.
func (h *ExecContext) waitToken(ctx context.Context, tok *Token) error {
	tok.mu.Lock()
	ch := tok.ch
	armed := tok.armed
	tok.mu.Unlock()
	if !armed {
		// Already fired (or never armed, e.g. a concurrent Close): don't block.
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
