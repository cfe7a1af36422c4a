// Package evloop implements the readiness multiplexer the dispatch core
// runs on: one epoll instance, a read and a write callback per registered
// fd, and a Wait call that blocks until at least one fd is ready (or a
// timeout) and then dispatches the fired callbacks directly — a Go
// translation of original_source/src/server.c's createEventLoop/
// createFileEvent/deleteFileEvent/eventPoll/ProcessEvents using
// golang.org/x/sys/unix's epoll syscalls in place of the original's own
// ae.c backend.
package evloop

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Callback is invoked with the ready fd when a registered event fires.
type Callback func(fd int)

type fileEvent struct {
	mask     uint32 // bitwise unix.EPOLLIN | unix.EPOLLOUT currently registered
	readCB   Callback
	writeCB  Callback
}

// Loop is a single epoll instance plus the fd → callback table. It is not
// safe for concurrent use — by design, the whole point of this package is
// that one goroutine drives it.
type Loop struct {
	epfd   int
	events map[int]*fileEvent
	// scratch buffer for epoll_wait, reused across calls to avoid
	// reallocating every iteration.
	scratch []unix.EpollEvent
}

// New creates a new epoll instance able to track up to sizeHint fds
// efficiently (epoll itself does not require a fixed size; sizeHint only
// sizes the initial scratch buffer and map).
func New(sizeHint int) (*Loop, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("evloop: epoll_create1: %w", err)
	}
	if sizeHint <= 0 {
		sizeHint = 64
	}
	return &Loop{
		epfd:    epfd,
		events:  make(map[int]*fileEvent, sizeHint),
		scratch: make([]unix.EpollEvent, sizeHint),
	}, nil
}

func (l *Loop) ctl(fd int, fe *fileEvent) error {
	ev := unix.EpollEvent{Events: fe.mask, Fd: int32(fd)}
	op := unix.EPOLL_CTL_MOD
	if _, registered := l.events[fd]; !registered {
		op = unix.EPOLL_CTL_ADD
	}
	return unix.EpollCtl(l.epfd, op, fd, &ev)
}

// SetReadable registers (or updates) a readable-readiness callback for fd.
func (l *Loop) SetReadable(fd int, cb Callback) error {
	fe := l.events[fd]
	if fe == nil {
		fe = &fileEvent{}
	}
	fe.mask |= unix.EPOLLIN
	fe.readCB = cb
	if err := l.ctl(fd, fe); err != nil {
		return fmt.Errorf("evloop: register readable fd=%d: %w", fd, err)
	}
	l.events[fd] = fe
	return nil
}

// SetWritable registers (or updates) a writable-readiness callback for fd.
func (l *Loop) SetWritable(fd int, cb Callback) error {
	fe := l.events[fd]
	if fe == nil {
		fe = &fileEvent{}
	}
	fe.mask |= unix.EPOLLOUT
	fe.writeCB = cb
	if err := l.ctl(fd, fe); err != nil {
		return fmt.Errorf("evloop: register writable fd=%d: %w", fd, err)
	}
	l.events[fd] = fe
	return nil
}

// ClearWritable uninstalls the writable-readiness callback for fd, used
// once a client's reply chain fully drains.
func (l *Loop) ClearWritable(fd int) error {
	fe := l.events[fd]
	if fe == nil || fe.mask&unix.EPOLLOUT == 0 {
		return nil
	}
	fe.mask &^= unix.EPOLLOUT
	fe.writeCB = nil
	if fe.mask == 0 {
		return l.Remove(fd)
	}
	return l.ctl(fd, fe)
}

// ClearReadable uninstalls the readable-readiness callback for fd.
func (l *Loop) ClearReadable(fd int) error {
	fe := l.events[fd]
	if fe == nil || fe.mask&unix.EPOLLIN == 0 {
		return nil
	}
	fe.mask &^= unix.EPOLLIN
	fe.readCB = nil
	if fe.mask == 0 {
		return l.Remove(fd)
	}
	return l.ctl(fd, fe)
}

// Remove fully deregisters fd from the loop. Safe to call on an fd that
// was never registered.
func (l *Loop) Remove(fd int) error {
	if _, ok := l.events[fd]; !ok {
		return nil
	}
	delete(l.events, fd)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("evloop: deregister fd=%d: %w", fd, err)
	}
	return nil
}

// Wait blocks until at least one registered fd is ready or timeoutMillis
// elapses (-1 blocks indefinitely), then dispatches every fired event's
// read and/or write callback, in that order, matching ProcessEvents'
// dispatch order in the original source. It returns the number of fds
// that fired.
func (l *Loop) Wait(timeoutMillis int) (int, error) {
	if cap(l.scratch) < len(l.events) && len(l.events) > 0 {
		l.scratch = make([]unix.EpollEvent, len(l.events)*2)
	}
	n, err := unix.EpollWait(l.epfd, l.scratch, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("evloop: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := int(l.scratch[i].Fd)
		mask := l.scratch[i].Events
		fe, ok := l.events[fd]
		if !ok {
			continue
		}
		if mask&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 && fe.readCB != nil {
			fe.readCB(fd)
		}
		// Re-fetch: the read callback may have removed or replaced fd's
		// registration (e.g. the client was closed mid-dispatch).
		fe, ok = l.events[fd]
		if !ok {
			continue
		}
		if mask&unix.EPOLLOUT != 0 && fe.writeCB != nil {
			fe.writeCB(fd)
		}
	}
	return n, nil
}

// Close releases the epoll fd.
func (l *Loop) Close() error {
	return unix.Close(l.epfd)
}
