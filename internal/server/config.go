package server

import "respcore/internal/proto"

// Config holds every configurable limit the server enforces, a
// field-per-knob struct rather than a generic options map.
type Config struct {
	// Addr is the listen address, e.g. ":6399" or "127.0.0.1:6399".
	Addr string
	// Backlog is the TCP accept queue depth (tcpBacklog).
	Backlog int
	// MaxClients is the refuse-accept threshold (maxClient).
	MaxClients int
	// TCPKeepAlive is the keepalive probe interval in seconds
	// (tcpkeepalive); 0 selects the default of 300 seconds and a negative
	// value disables keepalive.
	TCPKeepAlive int
	// MaxBulkLen is the largest single argument accepted
	// (proto_max_bulk_len).
	MaxBulkLen int
	// MaxQueryBufLen is the largest unparsed input buffer accepted per
	// client before the connection is closed (client_max_querybuf_len).
	MaxQueryBufLen int
}

const (
	defaultMaxClients     = 10000
	defaultBacklog        = 511
	defaultTCPKeepAlive   = 300
	defaultMaxBulkLen     = proto.DefaultMaxBulk
	defaultMaxQueryBufLen = proto.DefaultMaxQBuf
)

// withDefaults returns a copy of cfg with zero-valued fields replaced by
// the source's defaults (initConf in the original).
func (cfg Config) withDefaults() Config {
	if cfg.Backlog <= 0 {
		cfg.Backlog = defaultBacklog
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaultMaxClients
	}
	if cfg.TCPKeepAlive == 0 {
		cfg.TCPKeepAlive = defaultTCPKeepAlive
	}
	if cfg.MaxBulkLen <= 0 {
		cfg.MaxBulkLen = defaultMaxBulkLen
	}
	if cfg.MaxQueryBufLen <= 0 {
		cfg.MaxQueryBufLen = defaultMaxQueryBufLen
	}
	return cfg
}
