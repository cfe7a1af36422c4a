// Package server implements the single-threaded, event-driven RESP server
// core: one epoll loop, a non-blocking accept/read/write path, the
// incremental parser, and the two-tier reply buffer, following
// original_source/src/server.c's main loop shape rather than a
// goroutine-per-connection model.
package server

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"respcore/internal/command"
	"respcore/internal/command/builtin"
	"respcore/internal/evloop"
	"respcore/internal/list"
	"respcore/internal/logger"
	"respcore/internal/netconn"
	"respcore/internal/proto"
	"respcore/internal/stats"
)

// loopTimeoutMillis bounds how long a single Wait call blocks when no fd is
// ready, so Close can be noticed promptly instead of waiting forever.
const loopTimeoutMillis = 100

// Server owns the listening socket, the event loop, the command registry,
// and every connected Client. It is driven entirely by one goroutine
// (runLoop) once Start returns; the only other goroutine involved is the
// one that calls Close.
type Server struct {
	cfg Config
	log *logrus.Logger

	listener *netconn.Listener
	loop     *evloop.Loop
	registry *command.Registry
	stats    *stats.Manager

	nextClientID uint64
	clients      *list.List[*Client]
	clientsByFd  map[int]*Client

	pendingWrite *list.List[*Client]

	// toClose is the deferred-close queue (clients_to_close in the
	// original): appended to and drained only from the loop goroutine, so
	// it needs no lock of its own.
	toClose []*Client

	closing int32
	done    chan struct{}
}

// New constructs a Server with the built-in commands registered. It does
// not bind a socket yet; call Start for that.
func New(cfg Config) *Server {
	cfg = cfg.withDefaults()

	reg := command.NewRegistry()
	builtin.Register(reg)

	return &Server{
		cfg:          cfg,
		log:          logger.Get(),
		registry:     reg,
		stats:        stats.NewManager(),
		clients:      list.New[*Client](),
		clientsByFd:  make(map[int]*Client),
		pendingWrite: list.New[*Client](),
		done:         make(chan struct{}),
	}
}

// Registry exposes the command table so callers (tests, alternate
// front-ends) can register additional commands before Start.
func (s *Server) Registry() *command.Registry { return s.registry }

// Stats exposes the server's running counters.
func (s *Server) Stats() *stats.Manager { return s.stats }

// Addr returns the address the listener actually bound to, useful when
// Config.Addr used an ephemeral port (":0").
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr
}

// Start binds the listening socket, registers the accept callback, and
// launches the event loop on a new goroutine. It returns once the listener
// is ready to accept connections.
func (s *Server) Start() error {
	ln, err := netconn.Listen(s.cfg.Addr, s.cfg.Backlog)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln

	loop, err := evloop.New(s.cfg.MaxClients + 8)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("server: event loop: %w", err)
	}
	s.loop = loop

	if err := s.loop.SetReadable(ln.Fd, func(fd int) { s.acceptHandler(fd) }); err != nil {
		_ = ln.Close()
		_ = loop.Close()
		return fmt.Errorf("server: register listener: %w", err)
	}

	s.log.Infof("server listening on %s", ln.Addr)
	go s.runLoop()
	return nil
}

// Close stops accepting new connections, tears down every client, and
// releases the listener and event loop. It is idempotent and blocks until
// the loop goroutine has finished shutting down.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closing, 0, 1) {
		return nil
	}
	<-s.done
	return nil
}

// runLoop is the single goroutine that owns the event loop, mirroring
// original_source/src/server.c's aeMain: beforeSleep-style housekeeping
// (flushing pending writes, draining the async-close queue) runs once per
// iteration, wrapped around the blocking Wait call.
func (s *Server) runLoop() {
	defer close(s.done)
	defer s.shutdown()

	for atomic.LoadInt32(&s.closing) == 0 {
		s.handleClientsWithPendingWrites()
		s.freeClientsInAsyncQueue()

		if _, err := s.loop.Wait(loopTimeoutMillis); err != nil {
			s.log.Errorf("event loop wait: %v", err)
		}
	}
}

func (s *Server) shutdown() {
	s.clients.Each(func(c *Client) {
		_ = c.conn.Close()
	})
	_ = s.loop.Close()
	_ = s.listener.Close()
}

// acceptHandler drains every pending connection on the listening socket,
// matching acceptTcpHandler's loop-until-EAGAIN shape.
func (s *Server) acceptHandler(fd int) {
	for {
		conn, wouldBlock, err := s.listener.Accept()
		if wouldBlock {
			return
		}
		if err != nil {
			s.log.Errorf("accept: %v", err)
			return
		}

		if s.clients.Len() >= s.cfg.MaxClients {
			s.stats.IncrConnectionsRejected()
			_, _, _ = conn.Write([]byte("-ERR max number of clients reached.\r\n"))
			_ = conn.Close()
			continue
		}

		s.createClient(conn)
	}
}

// createClient wraps an accepted connection as a Client, applies the
// configured socket options, and registers it for read readiness.
func (s *Server) createClient(conn *netconn.Conn) {
	if err := conn.SetNonBlock(); err != nil {
		s.log.Errorf("set non-blocking: %v", err)
		_ = conn.Close()
		return
	}
	_ = conn.SetNoDelay()
	if s.cfg.TCPKeepAlive > 0 {
		_ = conn.SetKeepAlive(s.cfg.TCPKeepAlive)
	}

	s.nextClientID++
	c := newClient(s, s.nextClientID, conn)
	c.listNode = s.clients.PushBack(c)
	s.clientsByFd[conn.Fd] = c

	s.stats.IncrConnectionsReceived()
	s.stats.IncrActiveConnections(1)

	if err := s.loop.SetReadable(conn.Fd, func(fd int) { s.readQueryFromClient(fd) }); err != nil {
		s.log.Errorf("register client fd=%d: %v", conn.Fd, err)
		s.unlinkClient(c)
		_ = conn.Close()
		return
	}
}

// readQueryFromClient reads as much as is available into the client's
// querybuf and hands it to processInputBuffer, following
// original_source's readQueryFromClient: the read size shrinks to exactly
// the remaining bytes once a big-argument read is in progress, so the
// zero-copy steal in processMultibulkBuffer sees an exactly-sized buffer.
func (s *Server) readQueryFromClient(fd int) {
	c, ok := s.clientsByFd[fd]
	if !ok || c.isClosing {
		return
	}

	readLen := proto.IOBufLen
	if c.bulklen != -1 && c.bulklen >= proto.MBulkBigArg {
		remaining := c.bulklen + 2 - (c.querybuf.Len() - c.qbPos)
		if remaining > 0 && remaining < readLen {
			readLen = remaining
		}
	}

	dst := c.querybuf.Grow(readLen)
	n, wouldBlock, err := c.conn.Read(dst)
	if wouldBlock {
		c.querybuf.IncrLen(-readLen)
		return
	}
	if err != nil {
		c.querybuf.IncrLen(-readLen)
		s.freeClientAsync(c)
		return
	}
	c.querybuf.IncrLen(n - readLen)
	s.stats.AddBytesIn(int64(n))

	if c.querybuf.Len() > s.cfg.MaxQueryBufLen {
		s.log.Debugf("client %d: query buffer limit exceeded", c.id)
		s.freeClientAsync(c)
		return
	}

	s.processInputBuffer(c)
}

// processCommand looks the command up, checks arity, and dispatches to its
// handler, tracking stats the way call() does in the original.
func (s *Server) processCommand(c *Client) {
	name := string(c.argv[0])
	cmd, ok := s.registry.Lookup(name)
	if !ok {
		s.stats.IncrUnknownCommands()
		preview := name
		if len(preview) > 128 {
			preview = preview[:128]
		}
		s.appendError(c, fmt.Sprintf("unknown command '%s'", preview))
		return
	}
	if !cmd.Accepts(len(c.argv)) {
		s.appendError(c, fmt.Sprintf("wrong number of arguments for '%s' command", cmd.Name))
		return
	}

	c.cmd = cmd
	c.lastcmd = cmd
	cmd.Handler(c, c.argv)
	s.stats.IncrCommandsProcessed()
}

// resetClient clears per-command parsing state after a command has been
// fully consumed (whether dispatched or an empty/no-op command), mirroring
// resetClient in the original — it does not touch the reply side, only the
// argv/bulklen/multibulklen parsing state.
func (s *Server) resetClient(c *Client) {
	c.argv = nil
	c.argvLenSum = 0
	c.multibulklen = 0
	c.bulklen = -1
	c.reqtype = proto.ReqUnset
	c.emptyCommand = false
}

// unlinkClient removes c from every index structure but does not close its
// socket or release buffers — the split the original makes between
// unlinkClient and freeClient, kept here so freeClientAsync can unlink
// immediately (so a second event in the same epoll_wait batch can't find
// the client) while deferring the actual teardown.
func (s *Server) unlinkClient(c *Client) {
	if c.isClosing {
		return
	}
	c.isClosing = true
	delete(s.clientsByFd, c.conn.Fd)
	_ = s.loop.Remove(c.conn.Fd)
	s.clients.Remove(c.listNode)
	if c.isPendingWrite {
		s.pendingWrite.Remove(c.pendingWriteNode)
		c.isPendingWrite = false
	}
	if c.replyBytes > 0 {
		s.stats.AddReplyBytes(-int64(c.replyBytes))
		c.replyBytes = 0
	}
	s.stats.IncrActiveConnections(-1)
}

// freeClient unlinks (if not already done) and closes c's socket.
func (s *Server) freeClient(c *Client) {
	s.unlinkClient(c)
	_ = c.conn.Close()
}

// freeClientAsync unlinks c immediately, as the original does, but defers
// the actual close to the top of the next loop iteration via the
// clients_to_close queue — so a handler still executing on c's behalf
// within this dispatch never touches a freed socket.
func (s *Server) freeClientAsync(c *Client) {
	if c.isClosing {
		return
	}
	s.unlinkClient(c)
	s.toClose = append(s.toClose, c)
}

// freeClientsInAsyncQueue drains the deferred-close queue, run once per
// loop iteration before Wait blocks again.
func (s *Server) freeClientsInAsyncQueue() {
	if len(s.toClose) == 0 {
		return
	}
	for _, c := range s.toClose {
		// Hand any reply still staged in the inline slab (such as the
		// protocol-error line queued just before the client was scheduled
		// for closing) to the kernel before the socket goes away. Best
		// effort: a short or failed write is not retried.
		if c.bufpos > c.sentlen && c.conn.State() == netconn.StateConnected {
			if n, _, err := c.conn.Write(c.buf[c.sentlen:c.bufpos]); err == nil && n > 0 {
				s.stats.AddBytesOut(int64(n))
			}
		}
		_ = c.conn.Close()
	}
	s.toClose = s.toClose[:0]
}
