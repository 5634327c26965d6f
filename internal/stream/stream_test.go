package stream

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/nbproc/nbproc/internal/procio"
)

func mustExecute(t *testing.T, args ...string) *procio.ExecContext {
	t.Helper()
	h, err := procio.Execute(args, nil, "", procio.StderrInherit)
	if err != nil {
		t.Fatalf("Execute(%v): %v", args, err)
	}
	t.Cleanup(func() {
		_ = h.Kill()
	})
	return h
}

func TestStreamReadAll(t *testing.T) {
	h := mustExecute(t, "/bin/echo", "-n", "hello world")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s := New(ctx, h)
	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestStreamLines(t *testing.T) {
	h := mustExecute(t, "/bin/printf", "a\\nb\\nc")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s := New(ctx, h)
	var got []string
	for line, err := range s.Lines() {
		if err != nil {
			t.Fatalf("Lines: %v", err)
		}
		got = append(got, line)
	}

	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStreamTextUTF8Passthrough(t *testing.T) {
	h := mustExecute(t, "/bin/echo", "-n", "plain ascii")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s := New(ctx, h)
	got, err := io.ReadAll(s.Text(UTF8))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "plain ascii" {
		t.Fatalf("got %q", got)
	}
}
