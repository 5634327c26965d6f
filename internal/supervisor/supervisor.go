package supervisor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nbproc/nbproc/internal/obs"
	"github.com/nbproc/nbproc/internal/procio"
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("supervisor: handle not found")
	ErrShutdown = errors.New("supervisor: shutting down")
)

// State summarizes an Entry's lifecycle.
type State int

const (
	StateRunning State = iota
	StateExited
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Entry is a tracked handle: a procio.ExecContext plus the bookkeeping the
// supervisor needs to know when it exited and how.
type Entry struct {
	ID      string
	Name    string
	Handle  *procio.ExecContext
	Started time.Time

	done  chan struct{}
	state atomic.Int32 // State

	exitMu sync.RWMutex
	exit   *procio.ExitStatus
}

func newEntry(id, name string, h *procio.ExecContext) *Entry {
	return &Entry{ID: id, Name: name, Handle: h, Started: time.Now(), done: make(chan struct{})}
}

// State returns the entry's current lifecycle state.
func (e *Entry) State() State { return State(e.state.Load()) }

// IsRunning reports whether the child has not yet been observed to exit.
func (e *Entry) IsRunning() bool { return e.State() == StateRunning }

// Done returns a channel closed once the child has been reaped.
func (e *Entry) Done() <-chan struct{} { return e.done }

// ExitStatus returns the reaped exit status, if any.
func (e *Entry) ExitStatus() (procio.ExitStatus, bool) {
	e.exitMu.RLock()
	defer e.exitMu.RUnlock()
	if e.exit == nil {
		return procio.ExitStatus{}, false
	}
	return *e.exit, true
}

// Runtime returns how long the entry has been tracked.
func (e *Entry) Runtime() time.Duration {
	if e.Started.IsZero() {
		return 0
	}
	return time.Since(e.Started)
}

// pollWait polls Handle.Wait until the child is reaped (Wait is
// non-blocking by contract, so the supervisor is the one that has to
// poll it), then records the terminal state and closes done exactly once.
func (e *Entry) pollWait(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		status, err := e.Handle.Wait()
		if err != nil {
			continue
		}

		e.exitMu.Lock()
		st := status
		e.exit = &st
		e.exitMu.Unlock()

		state := StateExited
		if status.Type == procio.ExitSignaled {
			state = StateKilled
		}
		e.state.Store(int32(state))
		close(e.done)
		return
	}
}

// Options configures a Supervisor.
type Options struct {
	MaxHandles   int
	OnExit       func(*Entry)
	PollInterval time.Duration
	Logger       *obs.Logger
}

// Option mutates Options; see WithMaxHandles, WithExitCallback,
// WithPollInterval, WithLogger.
type Option func(*Options)

// WithMaxHandles limits the number of concurrently tracked handles. 0
// (default) means unlimited.
func WithMaxHandles(n int) Option { return func(o *Options) { o.MaxHandles = n } }

// WithExitCallback registers a callback invoked (with panic recovery) each
// time a tracked child exits.
func WithExitCallback(fn func(*Entry)) Option { return func(o *Options) { o.OnExit = fn } }

// WithPollInterval sets how often Wait is polled per tracked handle.
// Defaults to 20ms.
func WithPollInterval(d time.Duration) Option { return func(o *Options) { o.PollInterval = d } }

// WithLogger sets the logger used for lifecycle events. Defaults to a
// no-op sink.
func WithLogger(l *obs.Logger) Option { return func(o *Options) { o.Logger = l } }

// Supervisor tracks procio handles and guarantees, via Shutdown, that
// every tracked child is terminated, killed if necessary, and reaped.
//
// Safe for concurrent use.
type Supervisor struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	shutdownCh chan struct{}
	closed     atomic.Bool

	opts Options
	log  *obs.Logger
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	o := Options{PollInterval: 20 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.Logger
	if log == nil {
		log = obs.Null
	}
	return &Supervisor{
		entries:    make(map[string]*Entry),
		shutdownCh: make(chan struct{}),
		opts:       o,
		log:        log.WithComponent("supervisor"),
	}
}

// Start launches args under a generated ID and tracks the resulting
// handle.
func (s *Supervisor) Start(name string, args, env []string, dir string, stderrMode procio.StderrMode) (*Entry, error) {
	return s.StartWithID(uuid.New().String(), name, args, env, dir, stderrMode)
}

// StartWithID is Start with a caller-chosen ID, useful for deterministic
// tests or restoring state.
func (s *Supervisor) StartWithID(id, name string, args, env []string, dir string, stderrMode procio.StderrMode) (*Entry, error) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil, ErrShutdown
	}
	if s.opts.MaxHandles > 0 && len(s.entries) >= s.opts.MaxHandles {
		s.mu.Unlock()
		return nil, fmt.Errorf("supervisor: handle limit reached: %d", s.opts.MaxHandles)
	}
	if _, exists := s.entries[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("supervisor: id already exists: %s", id)
	}
	s.mu.Unlock()

	h, err := procio.Execute(args, env, dir, stderrMode)
	if err != nil {
		return nil, fmt.Errorf("supervisor: launch %s: %w", name, err)
	}

	entry := newEntry(id, name, h)

	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()

	s.log.WithHandleID(id).WithPID(h.OSPid()).Info("started %s", name)

	go entry.pollWait(s.opts.PollInterval)
	go s.monitor(entry)

	return entry, nil
}

func (s *Supervisor) monitor(e *Entry) {
	<-e.Done()

	if s.opts.OnExit != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("exit callback panicked: %v", r)
				}
			}()
			s.opts.OnExit(e)
		}()
	}

	s.mu.Lock()
	delete(s.entries, e.ID)
	s.mu.Unlock()

	status, _ := e.ExitStatus()
	s.log.WithHandleID(e.ID).Info("exited %s (%s %d)", e.Name, status.Type, status.Code)
}

// Get returns a tracked entry by ID, or nil.
func (s *Supervisor) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// List returns a snapshot of every tracked entry.
func (s *Supervisor) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Count returns the number of tracked entries.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Terminate sends SIGTERM to a tracked entry.
func (s *Supervisor) Terminate(id string) error {
	e := s.Get(id)
	if e == nil {
		return ErrNotFound
	}
	if !e.IsRunning() {
		return nil
	}
	return e.Handle.Terminate()
}

// Kill sends SIGKILL to a tracked entry.
func (s *Supervisor) Kill(id string) error {
	e := s.Get(id)
	if e == nil {
		return ErrNotFound
	}
	if !e.IsRunning() {
		return nil
	}
	return e.Handle.Kill()
}

// TerminateAll sends SIGTERM to every running tracked entry.
func (s *Supervisor) TerminateAll() {
	for _, e := range s.List() {
		if e.IsRunning() {
			_ = e.Handle.Terminate()
		}
	}
}

// KillAll sends SIGKILL to every running tracked entry.
func (s *Supervisor) KillAll() {
	for _, e := range s.List() {
		if e.IsRunning() {
			_ = e.Handle.Kill()
		}
	}
}

// Wait blocks until every currently tracked entry has been reaped, then
// returns. It takes no action of its own — unlike Shutdown, it never sends
// a signal — so a caller that wants children to actually exit first must
// arrange that itself. New entries started after Wait begins are not
// waited on.
func (s *Supervisor) Wait() {
	for _, e := range s.List() {
		<-e.Done()
	}
}

// Shutdown terminates every tracked entry, waits up to timeout for them to
// exit, kills any stragglers, and blocks until all have been reaped and
// removed from tracking.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}
	close(s.shutdownCh)

	entries := s.List()
	if len(entries) == 0 {
		return
	}

	for _, e := range entries {
		if e.IsRunning() {
			_ = e.Handle.Terminate()
		}
	}

	done := make(chan struct{})
	go func() {
		for _, e := range entries {
			<-e.Done()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		for _, e := range entries {
			if e.IsRunning() {
				_ = e.Handle.Kill()
			}
		}
		<-done
	}

	s.waitForCleanup()
}

func (s *Supervisor) waitForCleanup() {
	for s.Count() > 0 {
		time.Sleep(time.Millisecond)
	}
}

// ShutdownChan returns a channel closed once Shutdown begins.
func (s *Supervisor) ShutdownChan() <-chan struct{} { return s.shutdownCh }

// IsShuttingDown reports whether Shutdown has been called.
func (s *Supervisor) IsShuttingDown() bool { return s.closed.Load() }
