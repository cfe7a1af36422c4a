package server

import "respcore/internal/proto"

// sendReplyToClient flushes as much of c's staged reply as the kernel will
// accept right now, draining the inline slab first and then the chain,
// bounded by NET_MAX_WRITES_PER_EVENT so one client with a huge reply
// cannot starve the others sharing this loop iteration. A direct
// translation of writeToClient in original_source/src/server.c.
func (s *Server) sendReplyToClient(c *Client) {
	written := 0
	defer func() {
		if written > 0 {
			s.stats.AddBytesOut(int64(written))
		}
	}()
	for c.hasPendingReplies() && written < proto.MaxWritesPerEvt {
		if c.bufpos > 0 && c.sentlen < c.bufpos {
			n, wouldBlock, err := c.conn.Write(c.buf[c.sentlen:c.bufpos])
			if err != nil {
				s.freeClientAsync(c)
				return
			}
			if wouldBlock {
				break
			}
			c.sentlen += n
			written += n
			if c.sentlen == c.bufpos {
				c.bufpos = 0
				c.sentlen = 0
			}
			continue
		}

		blk, ok := c.reply.Front()
		if !ok {
			break
		}
		n, wouldBlock, err := c.conn.Write(blk.data[c.sentlen:blk.used])
		if err != nil {
			s.freeClientAsync(c)
			return
		}
		if wouldBlock {
			break
		}
		c.sentlen += n
		written += n
		if c.sentlen == blk.used {
			c.replyBytes -= blk.size()
			s.stats.AddReplyBytes(-int64(blk.size()))
			_, _ = c.reply.PopFront()
			c.sentlen = 0
		}
	}

	if !c.hasPendingReplies() {
		c.sentlen = 0
		if c.isPendingWrite {
			s.pendingWrite.Remove(c.pendingWriteNode)
			c.isPendingWrite = false
		}
		if c.writableRegistered {
			_ = s.loop.ClearWritable(c.conn.Fd)
			c.writableRegistered = false
		}
		return
	}

	// Budget exhausted or kernel buffer full with data still queued:
	// register for writable readiness so the loop resumes the flush on
	// the next iteration instead of busy-spinning.
	if !c.writableRegistered {
		fd := c.conn.Fd
		if err := s.loop.SetWritable(fd, func(fd int) { s.handleClientWritable(fd) }); err == nil {
			c.writableRegistered = true
		}
	}
}

// handleClientWritable is the evloop writable callback installed on a
// client's fd while its reply chain has not fully drained.
func (s *Server) handleClientWritable(fd int) {
	c, ok := s.clientsByFd[fd]
	if !ok || c.isClosing {
		return
	}
	s.sendReplyToClient(c)
}

// handleClientsWithPendingWrites walks every client that has staged a
// reply since the last time this ran, attempting an immediate write
// before falling back to the writable-readiness callback — the "try a
// write before registering for POLLOUT" optimization the original
// applies once per event-loop iteration (beforeSleep's call to
// handleClientsWithPendingWrites).
func (s *Server) handleClientsWithPendingWrites() {
	pending := make([]*Client, 0, s.pendingWrite.Len())
	s.pendingWrite.Each(func(c *Client) {
		pending = append(pending, c)
	})
	for _, c := range pending {
		if c.isClosing {
			continue
		}
		s.sendReplyToClient(c)
	}
}
