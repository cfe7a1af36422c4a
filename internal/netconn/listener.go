package netconn

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Listener wraps a listening TCP socket fd, set up the way
// original_source's tcpServer() does: SOCK_STREAM, SO_REUSEADDR, bind,
// listen with the configured backlog.
type Listener struct {
	Fd   int
	Addr string
}

// Listen creates, binds, and starts listening on addr ("host:port" or
// ":port") with the given accept backlog.
func Listen(addr string, backlog int) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("netconn: resolve %q: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("netconn: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netconn: setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netconn: bind: %w", err)
	}

	if backlog <= 0 {
		backlog = 511
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netconn: listen: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netconn: set non-blocking: %w", err)
	}

	sn, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netconn: getsockname: %w", err)
	}
	boundAddr := addr
	if in4, ok := sn.(*unix.SockaddrInet4); ok {
		boundAddr = fmt.Sprintf("%d.%d.%d.%d:%d", in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3], in4.Port)
	}

	return &Listener{Fd: fd, Addr: boundAddr}, nil
}

// Accept accepts one pending connection, returning a non-blocking Conn.
// wouldBlock is true when there is nothing to accept right now.
func (l *Listener) Accept() (conn *Conn, wouldBlock bool, err error) {
	fd, _, err := unix.Accept(l.Fd)
	if err != nil {
		if isRetryable(err) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("netconn: accept: %w", err)
	}
	return New(fd), false, nil
}

// Close stops listening.
func (l *Listener) Close() error {
	if l.Fd < 0 {
		return nil
	}
	fd := l.Fd
	l.Fd = -1
	return unix.Close(fd)
}
