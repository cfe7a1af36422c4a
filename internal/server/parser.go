package server

import (
	"bytes"
	"fmt"

	"respcore/internal/proto"
)

// parseStatus is the tri-state processMultibulkBuffer returns: a complete
// command is ready, more bytes are needed before progress can resume, or
// the stream is malformed and an error reply has already been queued.
type parseStatus int

const (
	parseNeedMore parseStatus = iota
	parseComplete
	parseProtocolError
)

// processMultibulkBuffer is a direct translation of
// original_source/src/server.c's processMultibulkBuffer: the incremental,
// resumable RESP array decoder. It consumes bytes from
// c.querybuf[c.qbPos:], leaving qbPos consistent for a future resumption
// on partial data.
func (s *Server) processMultibulkBuffer(c *Client) parseStatus {
	if c.multibulklen == 0 {
		buf := c.querybuf.Bytes()
		idx := bytes.IndexByte(buf[c.qbPos:], '\r')
		if idx == -1 {
			if c.querybuf.Len()-c.qbPos > proto.InlineMaxSize {
				s.appendProtocolError(c, "Protocol error: too big mbulk count string")
				return parseProtocolError
			}
			return parseNeedMore
		}
		crPos := c.qbPos + idx
		if crPos+1 >= c.querybuf.Len() {
			return parseNeedMore
		}
		if buf[c.qbPos] != '*' {
			s.appendProtocolError(c, "Protocol error: expected '*', got something else")
			return parseProtocolError
		}
		n, ok := parseInt(buf[c.qbPos+1 : crPos])
		if !ok || n > proto.MaxMultibulkLen {
			s.appendProtocolError(c, "Protocol error: invalid multibulk length")
			return parseProtocolError
		}
		c.qbPos = crPos + 2

		if n <= 0 {
			c.emptyCommand = true
			return parseComplete
		}
		c.multibulklen = int(n)
		c.argv = make([][]byte, 0, n)
		c.argvLenSum = 0
	}

	for c.multibulklen > 0 {
		if c.bulklen == -1 {
			buf := c.querybuf.Bytes()
			idx := bytes.IndexByte(buf[c.qbPos:], '\r')
			if idx == -1 {
				if c.querybuf.Len()-c.qbPos > proto.InlineMaxSize {
					s.appendProtocolError(c, "Protocol error: too big bulk count string")
					return parseProtocolError
				}
				return parseNeedMore
			}
			crPos := c.qbPos + idx
			if crPos+1 >= c.querybuf.Len() {
				return parseNeedMore
			}
			if buf[c.qbPos] != '$' {
				s.appendProtocolError(c, fmt.Sprintf("Protocol error: expected '$', got '%c'", buf[c.qbPos]))
				return parseProtocolError
			}
			ll, ok := parseInt(buf[c.qbPos+1 : crPos])
			if !ok || ll < 0 || ll > int64(s.cfg.MaxBulkLen) {
				s.appendProtocolError(c, "Protocol error: invalid bulk length")
				return parseProtocolError
			}
			c.qbPos = crPos + 2

			// Big-argument optimization: if the remaining querybuf can't
			// hold the whole argument, compact to a prefix of offset 0 and
			// reserve capacity so the zero-copy path below can trigger
			// once the payload fully arrives.
			if ll >= proto.MBulkBigArg {
				if c.querybuf.Len()-c.qbPos <= int(ll)+2 {
					c.querybuf.TrimPrefix(c.qbPos)
					c.qbPos = 0
					c.querybuf.MakeRoomFor(int(ll) + 2)
				}
			}
			c.bulklen = int(ll)
		}

		if c.querybuf.Len()-c.qbPos < c.bulklen+2 {
			return parseNeedMore
		}

		if c.qbPos == 0 && c.bulklen >= proto.MBulkBigArg && c.querybuf.Len() == c.bulklen+2 {
			// Zero-copy path: the only payload in querybuf is this
			// argument, so steal the buffer outright instead of copying.
			stolen := c.querybuf.Steal(c.bulklen + 2)
			c.argv = append(c.argv, stolen[:c.bulklen])
			c.argvLenSum += c.bulklen
		} else {
			buf := c.querybuf.Bytes()
			arg := make([]byte, c.bulklen)
			copy(arg, buf[c.qbPos:c.qbPos+c.bulklen])
			c.argv = append(c.argv, arg)
			c.argvLenSum += c.bulklen
			c.qbPos += c.bulklen + 2
		}
		c.bulklen = -1
		c.multibulklen--
	}

	return parseComplete
}

// parseInt parses an ASCII decimal integer, optionally signed, the way
// string2ll does for the narrow grammar RESP headers use. It rejects
// empty input and any non-digit byte.
func parseInt(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	neg := false
	i := 0
	if b[0] == '-' {
		neg = true
		i = 1
		if len(b) == 1 {
			return 0, false
		}
	}
	var n int64
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// processInputBuffer drains as many complete commands as the client's
// querybuf currently holds, dispatching each as it completes, and
// compacts the consumed prefix away before returning so qb_pos always
// returns to 0 between commands.
func (s *Server) processInputBuffer(c *Client) {
	for c.qbPos < c.querybuf.Len() {
		if c.reqtype == proto.ReqUnset {
			if c.querybuf.At(c.qbPos) == '*' {
				c.reqtype = proto.ReqMultibulk
			} else {
				c.reqtype = proto.ReqInline
			}
		}

		if c.reqtype == proto.ReqInline {
			// Non-goal: inline/telnet-style commands are detected and
			// rejected outright, never executed.
			s.appendProtocolError(c, "Protocol error: inline commands are not supported")
			s.log.Debugf("client %d: rejecting inline command", c.id)
			s.freeClientAsync(c)
			return
		}

		switch s.processMultibulkBuffer(c) {
		case parseNeedMore:
			goto trim
		case parseProtocolError:
			s.log.Debugf("client %d: protocol error", c.id)
			s.freeClientAsync(c)
			goto trim
		}

		if c.emptyCommand || len(c.argv) == 0 {
			s.resetClient(c)
			continue
		}

		s.processCommand(c)
		s.resetClient(c)
	}

trim:
	if c.qbPos > 0 {
		c.querybuf.TrimPrefix(c.qbPos)
		c.qbPos = 0
	}
}

func (s *Server) appendError(c *Client, msg string) {
	c.AppendReply(proto.AppendError(nil, msg))
}

// appendProtocolError appends the error reply and records it in stats,
// used by every "Protocol error: ..." site in processMultibulkBuffer.
func (s *Server) appendProtocolError(c *Client, msg string) {
	s.stats.IncrProtocolErrors()
	s.appendError(c, msg)
}
