package procio

import (
	"sync"

	"golang.org/x/sys/unix"
)

// ReadinessRegistrar is the coupling point to a host readiness subsystem:
// two operations, arm(fd, direction, token) and disarm(token), that let
// the engine stay decoupled from any particular event loop.
//
// Arm registers fd for a one-shot, edge-triggered notification on dir and
// returns a channel that is closed exactly once when the fd becomes ready.
// Disarm cancels an outstanding subscription; it is idempotent.
type ReadinessRegistrar interface {
	Arm(fd int, dir Direction, tok *Token) (<-chan struct{}, error)
	Disarm(tok *Token) error
}

// Token is a per-direction readiness registration slot. At most one
// subscription may be outstanding on a Token at a time.
type Token struct {
	mu    sync.Mutex
	fd    int
	dir   Direction
	armed bool
	ch    chan struct{}
}

func newToken() *Token { return &Token{} }

func (t *Token) arm(fd int, dir Direction) (chan struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		return nil, ErrAlreadyArmed
	}
	t.armed = true
	t.fd = fd
	t.dir = dir
	t.ch = make(chan struct{})
	return t.ch, nil
}

// fire marks the token as fired, closing its channel. It is a no-op if the
// token was disarmed (or never armed) in the meantime.
func (t *Token) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return
	}
	t.armed = false
	close(t.ch)
}

// disarm cancels an outstanding subscription, closing its channel so any
// waiter unblocks. Idempotent.
func (t *Token) disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.armed {
		return
	}
	t.armed = false
	close(t.ch)
}

// EpollRegistrar is the default ReadinessRegistrar, backed by Linux epoll
// in edge-triggered, one-shot mode (EPOLLET|EPOLLONESHOT), run from a
// single dedicated background goroutine.
type EpollRegistrar struct {
	epfd int

	mu     sync.Mutex
	tokens map[int]*Token
	closed bool
}

// NewEpollRegistrar creates a registrar backed by a fresh epoll instance
// and starts its wait loop.
func NewEpollRegistrar() (*EpollRegistrar, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, osError("epoll_create1", err)
	}
	r := &EpollRegistrar{epfd: epfd, tokens: make(map[int]*Token)}
	go r.loop()
	return r, nil
}

// Arm implements ReadinessRegistrar.
func (r *EpollRegistrar) Arm(fd int, dir Direction, tok *Token) (<-chan struct{}, error) {
	ch, err := tok.arm(fd, dir)
	if err != nil {
		return nil, err
	}

	var events uint32 = unix.EPOLLET | unix.EPOLLONESHOT
	if dir == DirRead {
		events |= unix.EPOLLIN
	} else {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		tok.disarm()
		return nil, osError("epoll_ctl", unix.EBADF)
	}
	_, exists := r.tokens[fd]
	r.tokens[fd] = tok
	r.mu.Unlock()

	op := unix.EPOLL_CTL_ADD
	if exists {
		op = unix.EPOLL_CTL_MOD
	}
	err = unix.EpollCtl(r.epfd, op, fd, &ev)
	if err == unix.EEXIST {
		// fd is still in the epoll set, disabled by an earlier one-shot
		// event whose token the loop already dropped: re-enable it.
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
	}
	if err != nil {
		r.mu.Lock()
		delete(r.tokens, fd)
		r.mu.Unlock()
		tok.disarm()
		return nil, osError("epoll_ctl", err)
	}
	return ch, nil
}

// Disarm implements ReadinessRegistrar.
func (r *EpollRegistrar) Disarm(tok *Token) error {
	tok.mu.Lock()
	fd, armed := tok.fd, tok.armed
	tok.mu.Unlock()
	if !armed {
		return nil
	}

	r.mu.Lock()
	delete(r.tokens, fd)
	r.mu.Unlock()

	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	tok.disarm()
	return nil
}

// Close shuts down the registrar's background goroutine and releases the
// epoll fd. Any tokens still armed are disarmed.
func (r *EpollRegistrar) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	tokens := make([]*Token, 0, len(r.tokens))
	for _, tok := range r.tokens {
		tokens = append(tokens, tok)
	}
	r.mu.Unlock()

	for _, tok := range tokens {
		tok.disarm()
	}
	return osError("close", unix.Close(r.epfd))
}

func (r *EpollRegistrar) loop() {
	events := make([]unix.EpollEvent, 16)
	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			r.mu.Lock()
			tok := r.tokens[fd]
			delete(r.tokens, fd)
			r.mu.Unlock()
			if tok != nil {
				tok.fire()
			}
		}
	}
}

// defaultRegistrar is lazily created on first use so that packages
// importing procio without ever launching a process pay no epoll cost.
var (
	defaultRegistrarOnce sync.Once
	defaultRegistrarVal  *EpollRegistrar
	defaultRegistrarErr  error
)

func defaultRegistrar() (*EpollRegistrar, error) {
	defaultRegistrarOnce.Do(func() {
		defaultRegistrarVal, defaultRegistrarErr = NewEpollRegistrar()
	})
	return defaultRegistrarVal, defaultRegistrarErr
}
