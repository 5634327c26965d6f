package inputadapter

import (
	"context"
	"errors"
	"io"

	"github.com/nbproc/nbproc/internal/procio"
)

// writer is the subset of procio.ExecContext this package depends on;
// tests substitute a fake to exercise error paths without a real child.
type writer interface {
	WriteContext(ctx context.Context, b []byte) (int, error)
	Close(which procio.Direction) error
}

// FromChan pushes every buffer received on src into h's write side, in
// order, until src is closed, then closes h's write direction. It
// returns when src closes or ctx is canceled, whichever comes first; a
// canceled ctx leaves the write direction open for the caller to close.
func FromChan(ctx context.Context, h *procio.ExecContext, src <-chan []byte) error {
	return fromChan(ctx, h, src)
}

func fromChan(ctx context.Context, h writer, src <-chan []byte) error {
	for {
		select {
		case buf, ok := <-src:
			if !ok {
				return h.Close(procio.DirWrite)
			}
			if len(buf) == 0 {
				continue
			}
			if _, err := h.WriteContext(ctx, buf); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Producer pulls the next buffer to write. It returns io.EOF (with a nil
// or empty buffer) to signal the feed is exhausted.
type Producer func() ([]byte, error)

// FromFunc repeatedly calls produce and writes whatever it returns into
// h's write side, until produce returns io.EOF, at which point h's write
// direction is closed. Any other error from produce, or from the write
// itself, stops the feed and is returned without closing the write side.
func FromFunc(ctx context.Context, h *procio.ExecContext, produce Producer) error {
	return fromFunc(ctx, h, produce)
}

func fromFunc(ctx context.Context, h writer, produce Producer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		buf, err := produce()
		if len(buf) > 0 {
			if _, werr := h.WriteContext(ctx, buf); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return h.Close(procio.DirWrite)
			}
			return err
		}
	}
}
