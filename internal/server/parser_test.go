package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"respcore/internal/command"
	"respcore/internal/command/builtin"
	"respcore/internal/evloop"
	"respcore/internal/list"
	"respcore/internal/logger"
	"respcore/internal/netconn"
	"respcore/internal/proto"
	"respcore/internal/stats"
)

// newParserTestServer builds a Server with every field processMultibulkBuffer
// and processInputBuffer touch, but no bound socket or running loop — the
// parser state machine is exercised directly, independent of the I/O path
// already covered by the real-socket tests in server_test.go.
func newParserTestServer(t *testing.T) *Server {
	t.Helper()
	loop, err := evloop.New(8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })

	reg := command.NewRegistry()
	builtin.Register(reg)

	return &Server{
		cfg:          Config{MaxBulkLen: proto.DefaultMaxBulk, MaxQueryBufLen: proto.DefaultMaxQBuf}.withDefaults(),
		log:          logger.Get(),
		loop:         loop,
		registry:     reg,
		stats:        stats.NewManager(),
		clients:      list.New[*Client](),
		clientsByFd:  make(map[int]*Client),
		pendingWrite: list.New[*Client](),
	}
}

func newParserTestClient(s *Server) *Client {
	c := newClient(s, 1, netconn.New(-1))
	c.listNode = s.clients.PushBack(c)
	s.clientsByFd[c.conn.Fd] = c
	return c
}

func feed(c *Client, data string) {
	dst := c.querybuf.Grow(len(data))
	copy(dst, data)
}

func TestProcessMultibulkBufferCompleteCommand(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*1\r\n$4\r\nTEST\r\n")

	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseComplete, status)
	require.Len(t, c.argv, 1)
	require.Equal(t, "TEST", string(c.argv[0]))
}

func TestProcessMultibulkBufferNeedsMoreOnPartialPayload(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*1\r\n$4\r\nTE")

	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseNeedMore, status)
	require.Equal(t, 1, c.multibulklen)
	require.Equal(t, 4, c.bulklen)
}

func TestProcessMultibulkBufferResumesAfterMoreBytesArrive(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*1\r\n$4\r\nTE")
	require.Equal(t, parseNeedMore, s.processMultibulkBuffer(c))

	dst := c.querybuf.Grow(4)
	copy(dst, "ST\r\n")

	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseComplete, status)
	require.Equal(t, "TEST", string(c.argv[0]))
}

func TestProcessMultibulkBufferRejectsBadLeadByte(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "#1\r\n")

	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseProtocolError, status)
	require.EqualValues(t, 1, s.stats.GetProtocolErrors())
}

func TestProcessMultibulkBufferRejectsOversizedMultibulkLen(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*99999999999\r\n")

	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseProtocolError, status)
}

func TestProcessMultibulkBufferRejectsBadBulkLeadByte(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*1\r\n#4\r\n")

	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseProtocolError, status)
}

func TestProcessMultibulkBufferRejectsBulkLenOverLimit(t *testing.T) {
	s := newParserTestServer(t)
	s.cfg.MaxBulkLen = 10
	c := newParserTestClient(s)
	feed(c, "*1\r\n$100\r\n")

	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseProtocolError, status)
}

func TestProcessMultibulkBufferZeroOrNegativeLengthIsEmptyCommand(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*0\r\n")

	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseComplete, status)
	require.True(t, c.emptyCommand)

	neg := newParserTestClient(s)
	feed(neg, "*-1\r\n")

	status = s.processMultibulkBuffer(neg)
	require.Equal(t, parseComplete, status)
	require.True(t, neg.emptyCommand)
}

func TestProcessMultibulkBufferBigArgumentZeroCopySteal(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)

	payload := make([]byte, proto.MBulkBigArg)
	for i := range payload {
		payload[i] = 'a'
	}
	header := "*1\r\n$" + itoa(len(payload)) + "\r\n"
	feed(c, header)
	status := s.processMultibulkBuffer(c)
	require.Equal(t, parseNeedMore, status)
	require.Equal(t, 0, c.qbPos, "buffer compacted to offset 0 ahead of the big payload")

	dst := c.querybuf.Grow(len(payload) + 2)
	copy(dst, payload)
	copy(dst[len(payload):], "\r\n")
	payloadPtr := &dst[0]

	status = s.processMultibulkBuffer(c)
	require.Equal(t, parseComplete, status)
	require.Len(t, c.argv, 1)
	require.Equal(t, len(payload), len(c.argv[0]))
	// the returned argument shares the exact backing array the querybuf
	// grew into, confirming no copy was made for the big argument.
	require.Same(t, payloadPtr, &c.argv[0][0])
}

func TestProcessInputBufferDispatchesAndTrimsQueryBuf(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*1\r\n$4\r\nTEST\r\n")

	s.processInputBuffer(c)

	require.Equal(t, 0, c.qbPos)
	require.Equal(t, 0, c.querybuf.Len())
	require.True(t, c.hasPendingReplies())
	require.Equal(t, "+OK\r\n", string(c.buf[:c.bufpos]))
}

func TestProcessInputBufferHandlesMultipleCommandsInOneBuffer(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*1\r\n$4\r\nTEST\r\n*1\r\n$4\r\nTEST\r\n")

	s.processInputBuffer(c)

	require.Equal(t, 0, c.querybuf.Len())
	require.Equal(t, "+OK\r\n+OK\r\n", string(c.buf[:c.bufpos]))
}

func TestProcessInputBufferStopsOnPartialTrailingCommand(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*1\r\n$4\r\nTEST\r\n*1\r\n$4\r\nTE")

	s.processInputBuffer(c)

	require.Equal(t, "+OK\r\n", string(c.buf[:c.bufpos]))
	require.Equal(t, 1, c.multibulklen)
	require.Equal(t, "TE", string(c.querybuf.Bytes()[c.qbPos:]))
}

func TestProcessInputBufferRejectsInlineAndClosesClient(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "PING\r\n")

	s.processInputBuffer(c)

	require.True(t, c.isClosing)
	require.Contains(t, string(c.buf[:c.bufpos]), "Protocol error")
}

func TestProcessInputBufferEmptyMultibulkIsNoOp(t *testing.T) {
	s := newParserTestServer(t)
	c := newParserTestClient(s)
	feed(c, "*0\r\n*1\r\n$4\r\nTEST\r\n")

	s.processInputBuffer(c)

	require.Equal(t, "+OK\r\n", string(c.buf[:c.bufpos]))
	require.EqualValues(t, 1, s.stats.GetCommandsProcessed())
}

func TestParseIntAcceptsSignedDecimal(t *testing.T) {
	n, ok := parseInt([]byte("123"))
	require.True(t, ok)
	require.EqualValues(t, 123, n)

	n, ok = parseInt([]byte("-5"))
	require.True(t, ok)
	require.EqualValues(t, -5, n)
}

func TestParseIntRejectsNonDigits(t *testing.T) {
	_, ok := parseInt([]byte("12a"))
	require.False(t, ok)

	_, ok = parseInt([]byte(""))
	require.False(t, ok)

	_, ok = parseInt([]byte("-"))
	require.False(t, ok)
}
