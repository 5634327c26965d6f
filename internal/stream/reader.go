package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/nbproc/nbproc/internal/procio"
)

// Stream wraps a handle's read side, presenting it as an io.Reader built
// on ReadContext, plus higher-level iteration helpers.
type Stream struct {
	handle *procio.ExecContext
	ctx    context.Context
}

// New wraps h for reading under ctx. ctx governs every blocking read made
// through the returned Stream; a canceled ctx makes Read return its
// error.
func New(ctx context.Context, h *procio.ExecContext) *Stream {
	return &Stream{handle: h, ctx: ctx}
}

// Read implements io.Reader on top of ReadContext, requesting at most
// len(p) bytes each call and copying them into p.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data, err := s.handle.ReadContext(s.ctx, len(p))
	n := copy(p, data)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Lines returns an iterator over newline-delimited lines of the child's
// output, with the trailing "\n" or "\r\n" stripped. A final,
// unterminated fragment is yielded before the sequence ends. If the
// underlying read fails for a reason other than EOF, the last yielded
// pair carries that error.
func (s *Stream) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		r := bufio.NewReader(s)
		for {
			line, err := r.ReadString('\n')
			if len(line) > 0 {
				line = strings.TrimSuffix(line, "\n")
				line = strings.TrimSuffix(line, "\r")
				if !yield(line, nil) {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield("", err)
				return
			}
		}
	}
}
