package server

import (
	"respcore/internal/buffer"
	"respcore/internal/command"
	"respcore/internal/list"
	"respcore/internal/netconn"
	"respcore/internal/proto"
)

// replyBlock owns a contiguous byte slab with a fixed allocated size and
// an occupancy cursor: the reply chain's element type. size() reports
// the allocated size, not occupancy, matching the "allocator usable
// size" metric original_source's reply_bytes accounting uses.
type replyBlock struct {
	data []byte
	used int
}

func newReplyBlock(size int) *replyBlock {
	return &replyBlock{data: make([]byte, size)}
}

func (b *replyBlock) size() int { return len(b.data) }

// Client is the per-connection entity the core tracks. It holds an
// explicit back-reference to the Server rather than touching a
// package-level singleton, so handlers and the core both thread state
// explicitly.
type Client struct {
	srv *Server

	id   uint64
	conn *netconn.Conn

	querybuf *buffer.Buffer
	qbPos    int

	reqtype      proto.RequestType
	multibulklen int
	bulklen      int
	emptyCommand bool

	argv       [][]byte
	argvLenSum int

	cmd     *command.Command
	lastcmd *command.Command

	// Reply side: fixed inline slab plus a spillover chain.
	buf        [proto.ReplyInlineSize]byte
	bufpos     int
	reply      *list.List[*replyBlock]
	replyBytes int
	sentlen    int

	writableRegistered bool
	isPendingWrite     bool
	isClosing          bool

	listNode         list.Handle // handle into srv.clients
	pendingWriteNode list.Handle // handle into srv.pendingWrite, valid only while isPendingWrite
}

func newClient(srv *Server, id uint64, conn *netconn.Conn) *Client {
	return &Client{
		srv:      srv,
		id:       id,
		conn:     conn,
		querybuf: buffer.New(),
		bulklen:  -1,
		reply:    list.New[*replyBlock](),
	}
}

// ID returns the client's process-lifetime-unique identifier.
func (c *Client) ID() uint64 { return c.id }

func (c *Client) hasPendingReplies() bool {
	return c.bufpos > 0 || c.reply.Len() > 0
}

// AppendReply implements command.Client: it is the sole primitive the
// dispatch core exposes to handlers, staging bytes into the inline slab
// and, on overflow, the reply chain.
func (c *Client) AppendReply(p []byte) {
	if len(p) == 0 {
		return
	}
	if !c.isPendingWrite {
		c.pendingWriteNode = c.srv.pendingWrite.PushBack(c)
		c.isPendingWrite = true
	}
	if c.reply.Len() == 0 && len(p) <= len(c.buf)-c.bufpos {
		copy(c.buf[c.bufpos:], p)
		c.bufpos += len(p)
		return
	}
	c.appendToChain(p)
}

func (c *Client) appendToChain(p []byte) {
	rest := p
	if tail, ok := c.reply.Back(); ok {
		avail := len(tail.data) - tail.used
		if avail > 0 {
			n := avail
			if n > len(rest) {
				n = len(rest)
			}
			copy(tail.data[tail.used:], rest[:n])
			tail.used += n
			rest = rest[n:]
		}
	}
	if len(rest) == 0 {
		return
	}
	size := proto.ReplyChunkBytes
	if len(rest) > size {
		size = len(rest)
	}
	blk := newReplyBlock(size)
	copy(blk.data, rest)
	blk.used = len(rest)
	c.reply.PushBack(blk)
	c.replyBytes += blk.size()
	c.srv.stats.AddReplyBytes(int64(blk.size()))
}
