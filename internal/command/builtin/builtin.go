// Package builtin registers the dispatch surface's only two built-in
// commands, exactly as original_source/src/server.c's static commandTable
// does: test (a no-op reply, arity 0 beyond the name) and command (a
// variadic introspection command). Neither implements key-value storage
// semantics — that remains an explicit Non-goal.
package builtin

import (
	"respcore/internal/command"
	"respcore/internal/proto"
)

// Register adds the built-in commands to reg. The introspection handler
// for COMMAND needs to enumerate reg itself, so it is registered last and
// closes over reg.
func Register(reg *command.Registry) {
	reg.Register(&command.Command{
		Name:  "test",
		Arity: 1,
		Handler: func(c command.Client, argv [][]byte) {
			c.AppendReply(proto.AppendSimpleString(nil, "OK"))
		},
	})

	reg.Register(&command.Command{
		Name:  "command",
		Arity: -1,
		Handler: func(c command.Client, argv [][]byte) {
			names := reg.Names()
			out := proto.AppendArrayHeader(nil, len(names))
			for _, n := range names {
				out = proto.AppendBulkString(out, []byte(n))
			}
			c.AppendReply(out)
		},
	})
}
