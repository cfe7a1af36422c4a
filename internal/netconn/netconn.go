// Package netconn wraps a raw TCP socket fd as a non-blocking connection
// capability set: read/write/close plus the option setters a connection
// abstraction needs, so the core can later grow a TLS variant without the
// event loop or parser caring. Only the plain TCP variant is implemented;
// TLS is out of scope.
//
// Mirrors original_source/src/connection.h's capability set (connNonBlock,
// connEnableTcpNoDelay, connKeepAlive, connRead, connWrite, connClose,
// connGetState) using the raw golang.org/x/sys/unix socket-option calls.
package netconn

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// State mirrors the original's CONN_STATE_CONNECTED distinction: whether
// the socket is still usable (so a failed read/write should be retried)
// or has been torn down (so the caller should close the client).
type State int

const (
	StateConnected State = iota
	StateClosed
)

// Conn is a non-blocking TCP socket. Fd is exported for registration with
// the event loop, which needs the raw descriptor to epoll_ctl on.
type Conn struct {
	Fd    int
	state State
}

// New wraps an already-accepted or already-connected socket fd.
func New(fd int) *Conn {
	return &Conn{Fd: fd, state: StateConnected}
}

// SetNonBlock puts the socket into non-blocking mode.
func (c *Conn) SetNonBlock() error {
	return unix.SetNonblock(c.Fd, true)
}

// SetNoDelay disables Nagle's algorithm (TCP_NODELAY).
func (c *Conn) SetNoDelay() error {
	return unix.SetsockoptInt(c.Fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// SetKeepAlive enables TCP keepalive (SO_KEEPALIVE) and, for a positive
// interval, sets both TCP_KEEPINTVL and TCP_KEEPIDLE to that many seconds.
func (c *Conn) SetKeepAlive(intervalSeconds int) error {
	if err := unix.SetsockoptInt(c.Fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	if intervalSeconds <= 0 {
		return nil
	}
	if err := unix.SetsockoptInt(c.Fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, intervalSeconds); err != nil {
		return err
	}
	return unix.SetsockoptInt(c.Fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, intervalSeconds)
}

// State reports whether the connection is still usable.
func (c *Conn) State() State {
	return c.state
}

// Read attempts to read into p. It returns (n, false, nil) for a partial
// or full non-blocking read, (0, true, nil) when the read would block
// ("retry later", zero progress — treated identically to the original's
// EAGAIN handling), or (0, false, err) on a hard error or EOF, at which
// point the connection is marked closed.
func (c *Conn) Read(p []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Read(c.Fd, p)
	if err == nil {
		if n == 0 {
			c.state = StateClosed
			return 0, false, errors.New("netconn: connection closed by peer")
		}
		return n, false, nil
	}
	if isRetryable(err) {
		return 0, true, nil
	}
	c.state = StateClosed
	return 0, false, fmt.Errorf("netconn: read: %w", err)
}

// Write attempts to write p. It returns (n, false, nil) for a partial or
// full write, (0, true, nil) when the write would block (zero progress),
// or (0, false, err) on a hard error, at which point the connection is
// marked closed — callers can treat any error return as zero progress.
func (c *Conn) Write(p []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Write(c.Fd, p)
	if err == nil {
		return n, false, nil
	}
	if isRetryable(err) {
		return 0, true, nil
	}
	c.state = StateClosed
	return 0, false, fmt.Errorf("netconn: write: %w", err)
}

func isRetryable(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}

// Close releases the underlying file descriptor. Idempotent: closing an
// already-closed Conn returns nil.
func (c *Conn) Close() error {
	if c.Fd < 0 {
		return nil
	}
	fd := c.Fd
	c.Fd = -1
	c.state = StateClosed
	return unix.Close(fd)
}
