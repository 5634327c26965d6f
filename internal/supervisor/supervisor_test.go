package supervisor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nbproc/nbproc/internal/procio"
)

func TestNewSupervisor(t *testing.T) {
	s := New()
	defer s.Shutdown(time.Second)

	if s.Count() != 0 {
		t.Errorf("expected 0 entries, got %d", s.Count())
	}
	if s.IsShuttingDown() {
		t.Error("expected IsShuttingDown() to be false")
	}
}

func TestSupervisorStartAndExit(t *testing.T) {
	s := New(WithPollInterval(5 * time.Millisecond))
	defer s.Shutdown(time.Second)

	entry, err := s.Start("echo", []string{"/bin/echo", "hello"}, nil, "", procio.StderrDiscard)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected non-empty entry ID")
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 tracked entry, got %d", s.Count())
	}

	select {
	case <-entry.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("entry did not exit")
	}

	status, ok := entry.ExitStatus()
	if !ok {
		t.Fatal("expected exit status to be recorded")
	}
	if status.Type != procio.ExitNormal || status.Code != 0 {
		t.Errorf("got exit status %+v, want normal(0)", status)
	}
	if entry.State() != StateExited {
		t.Errorf("got state %v, want StateExited", entry.State())
	}

	// The monitor goroutine untracks the entry shortly after Done() closes.
	deadline := time.After(time.Second)
	for s.Count() != 0 {
		select {
		case <-deadline:
			t.Fatalf("entry not untracked after exit, count=%d", s.Count())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSupervisorStartWithIDDuplicate(t *testing.T) {
	s := New()
	defer s.Shutdown(time.Second)

	entry, err := s.StartWithID("dup", "sleeper", []string{"/bin/sleep", "10"}, nil, "", procio.StderrDiscard)
	if err != nil {
		t.Fatalf("StartWithID: %v", err)
	}
	defer entry.Handle.Kill()

	if _, err := s.StartWithID("dup", "other", []string{"/bin/sleep", "10"}, nil, "", procio.StderrDiscard); err == nil {
		t.Error("expected error starting a duplicate ID")
	}
}

func TestSupervisorWithMaxHandles(t *testing.T) {
	s := New(WithMaxHandles(1))
	defer s.Shutdown(time.Second)

	entry, err := s.Start("sleeper1", []string{"/bin/sleep", "10"}, nil, "", procio.StderrDiscard)
	if err != nil {
		t.Fatalf("Start proc1: %v", err)
	}
	defer entry.Handle.Kill()

	if _, err := s.Start("sleeper2", []string{"/bin/sleep", "10"}, nil, "", procio.StderrDiscard); err == nil {
		t.Error("expected error exceeding max handles")
	}
}

func TestSupervisorExitCallback(t *testing.T) {
	var called atomic.Bool
	var gotID atomic.Value

	s := New(WithPollInterval(5*time.Millisecond), WithExitCallback(func(e *Entry) {
		called.Store(true)
		gotID.Store(e.ID)
	}))
	defer s.Shutdown(time.Second)

	entry, err := s.Start("echo", []string{"/bin/echo", "hi"}, nil, "", procio.StderrDiscard)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-entry.Done()
	time.Sleep(50 * time.Millisecond)

	if !called.Load() {
		t.Fatal("exit callback was not called")
	}
	if id, _ := gotID.Load().(string); id != entry.ID {
		t.Errorf("callback saw ID %q, want %q", id, entry.ID)
	}
}

// TestSupervisorExitCallbackPanicRecovery verifies that a panicking OnExit
// callback does not take down the monitor goroutine or leave the entry
// stuck tracked forever.
func TestSupervisorExitCallbackPanicRecovery(t *testing.T) {
	s := New(WithPollInterval(5*time.Millisecond), WithExitCallback(func(e *Entry) {
		panic("boom")
	}))
	defer s.Shutdown(time.Second)

	entry, err := s.Start("echo", []string{"/bin/echo", "hi"}, nil, "", procio.StderrDiscard)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-entry.Done()

	deadline := time.After(time.Second)
	for s.Count() != 0 {
		select {
		case <-deadline:
			t.Fatalf("entry not untracked after panicking callback, count=%d", s.Count())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSupervisorTerminate(t *testing.T) {
	s := New(WithPollInterval(5 * time.Millisecond))
	defer s.Shutdown(time.Second)

	entry, err := s.StartWithID("term-id", "sleeper", []string{"/bin/sleep", "10"}, nil, "", procio.StderrDiscard)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := s.Terminate("term-id"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	select {
	case <-entry.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("entry did not exit after Terminate")
	}
}

func TestSupervisorTerminateNotFound(t *testing.T) {
	s := New()
	defer s.Shutdown(time.Second)

	if err := s.Terminate("nope"); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSupervisorWait(t *testing.T) {
	s := New(WithPollInterval(5 * time.Millisecond))
	defer s.Shutdown(time.Second)

	if _, err := s.Start("proc1", []string{"/bin/echo", "1"}, nil, "", procio.StderrDiscard); err != nil {
		t.Fatalf("Start proc1: %v", err)
	}
	if _, err := s.Start("proc2", []string{"/bin/echo", "2"}, nil, "", procio.StderrDiscard); err != nil {
		t.Fatalf("Start proc2: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after entries exited")
	}
}

// TestSupervisorShutdownGracePeriodThenKill starts a child that ignores
// SIGTERM and verifies Shutdown escalates to SIGKILL once the grace period
// elapses, rather than blocking forever.
func TestSupervisorShutdownGracePeriodThenKill(t *testing.T) {
	s := New(WithPollInterval(5 * time.Millisecond))

	entry, err := s.Start("stubborn", []string{"/bin/sh", "-c", "trap '' TERM; sleep 60"}, nil, "", procio.StderrDiscard)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(100 * time.Millisecond) // let the trap install before SIGTERM

	start := time.Now()
	s.Shutdown(300 * time.Millisecond)
	elapsed := time.Since(start)

	if elapsed < 250*time.Millisecond {
		t.Errorf("shutdown returned too fast (%v), grace period may not have been honored", elapsed)
	}
	if elapsed > 3*time.Second {
		t.Errorf("shutdown took too long: %v", elapsed)
	}

	select {
	case <-entry.Done():
	default:
		t.Error("expected entry to be reaped by the time Shutdown returns")
	}
	status, ok := entry.ExitStatus()
	if !ok || status.Type != procio.ExitSignaled {
		t.Errorf("got exit status %+v, ok=%v, want signaled", status, ok)
	}
	if entry.State() != StateKilled {
		t.Errorf("got state %v, want StateKilled", entry.State())
	}
}

func TestSupervisorShutdownIdempotent(t *testing.T) {
	s := New()
	s.Shutdown(time.Second)
	s.Shutdown(time.Second)
	s.Shutdown(time.Second)
}

func TestSupervisorStartAfterShutdown(t *testing.T) {
	s := New()
	s.Shutdown(time.Second)

	if _, err := s.Start("test", []string{"/bin/echo", "hi"}, nil, "", procio.StderrDiscard); err != ErrShutdown {
		t.Errorf("got %v, want ErrShutdown", err)
	}
}

func TestSupervisorShutdownChan(t *testing.T) {
	s := New()

	select {
	case <-s.ShutdownChan():
		t.Error("shutdown channel should not be closed yet")
	default:
	}

	s.Shutdown(time.Second)

	select {
	case <-s.ShutdownChan():
	default:
		t.Error("shutdown channel should be closed after Shutdown")
	}
}
