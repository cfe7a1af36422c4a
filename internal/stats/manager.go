// Package stats tracks the lock-free runtime counters the server exposes,
// using a plain atomic int64 per counter, trimmed to the fields this
// server's scope actually produces (no keyspace/CPU/memory accounting,
// since this core has no KV-storage semantics).
package stats

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Version is reported by the INFO-style surface a future command could
// expose; kept as a package var so a build can stamp it via -ldflags.
var Version = "1.0.0"

// Snapshot is a point-in-time copy of every counter, safe to read after
// Manager has moved on.
type Snapshot struct {
	OS                  string
	StartTime           time.Time
	ConnectionsReceived int64
	ConnectionsRejected int64
	ActiveConnections   int64
	CommandsProcessed   int64
	UnknownCommands     int64
	ProtocolErrors      int64
	NetInputBytes       int64
	NetOutputBytes      int64
	ReplyBytes          int64
}

// Manager holds every counter as a plain int64 mutated only with
// sync/atomic, so handlers running on the single event-loop goroutine and
// an operator goroutine reading a snapshot never need a lock.
type Manager struct {
	connectionsReceived int64
	connectionsRejected int64
	activeConnections   int64
	commandsProcessed   int64
	unknownCommands     int64
	protocolErrors      int64
	netInputBytes       int64
	netOutputBytes      int64
	replyBytes          int64

	mu        sync.RWMutex
	startTime time.Time
}

// NewManager returns a Manager with its clock started.
func NewManager() *Manager {
	return &Manager{startTime: time.Now()}
}

func (m *Manager) IncrConnectionsReceived() { atomic.AddInt64(&m.connectionsReceived, 1) }
func (m *Manager) IncrConnectionsRejected() { atomic.AddInt64(&m.connectionsRejected, 1) }
func (m *Manager) IncrActiveConnections(delta int64) {
	atomic.AddInt64(&m.activeConnections, delta)
}
func (m *Manager) IncrCommandsProcessed() { atomic.AddInt64(&m.commandsProcessed, 1) }
func (m *Manager) IncrUnknownCommands()   { atomic.AddInt64(&m.unknownCommands, 1) }
func (m *Manager) IncrProtocolErrors()    { atomic.AddInt64(&m.protocolErrors, 1) }
func (m *Manager) AddBytesIn(n int64)     { atomic.AddInt64(&m.netInputBytes, n) }
func (m *Manager) AddBytesOut(n int64)    { atomic.AddInt64(&m.netOutputBytes, n) }

// AddReplyBytes adjusts the reply_bytes gauge (the sum, across every
// connected client, of the allocated sizes of the blocks in that client's
// reply chain — not their occupancy, and not the inline slab). Callers
// pass a positive delta when a block is queued and a
// negative delta when one is drained or its owning client disconnects.
func (m *Manager) AddReplyBytes(delta int64) { atomic.AddInt64(&m.replyBytes, delta) }

func (m *Manager) GetConnectionsReceived() int64 { return atomic.LoadInt64(&m.connectionsReceived) }
func (m *Manager) GetConnectionsRejected() int64 { return atomic.LoadInt64(&m.connectionsRejected) }
func (m *Manager) GetActiveConnections() int64   { return atomic.LoadInt64(&m.activeConnections) }
func (m *Manager) GetCommandsProcessed() int64   { return atomic.LoadInt64(&m.commandsProcessed) }
func (m *Manager) GetUnknownCommands() int64     { return atomic.LoadInt64(&m.unknownCommands) }
func (m *Manager) GetProtocolErrors() int64      { return atomic.LoadInt64(&m.protocolErrors) }
func (m *Manager) GetBytesIn() int64             { return atomic.LoadInt64(&m.netInputBytes) }
func (m *Manager) GetBytesOut() int64            { return atomic.LoadInt64(&m.netOutputBytes) }
func (m *Manager) GetReplyBytes() int64          { return atomic.LoadInt64(&m.replyBytes) }

// GetSnapshot copies every counter into a Snapshot.
func (m *Manager) GetSnapshot() Snapshot {
	m.mu.RLock()
	start := m.startTime
	m.mu.RUnlock()

	return Snapshot{
		OS:                  fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH),
		StartTime:           start,
		ConnectionsReceived: m.GetConnectionsReceived(),
		ConnectionsRejected: m.GetConnectionsRejected(),
		ActiveConnections:   m.GetActiveConnections(),
		CommandsProcessed:   m.GetCommandsProcessed(),
		UnknownCommands:     m.GetUnknownCommands(),
		ProtocolErrors:      m.GetProtocolErrors(),
		NetInputBytes:       m.GetBytesIn(),
		NetOutputBytes:      m.GetBytesOut(),
		ReplyBytes:          m.GetReplyBytes(),
	}
}
