// Package command implements the command descriptor table and the
// case-insensitive lookup the dispatch core uses: a hash map keyed on the
// upper-cased command name.
package command

import "strings"

// Client is the minimal context a handler needs: a place to append reply
// bytes. internal/server.Client implements this; command does not import
// internal/server to avoid a dependency cycle (the core imports command
// for dispatch, not the other way around).
type Client interface {
	AppendReply(p []byte)
}

// Handler executes a command. argv[0] is the command name; argv[1:] are
// its arguments, mirroring the original source's argv layout.
type Handler func(c Client, argv [][]byte)

// Command is an immutable command descriptor. Arity follows the original
// convention: positive values are an exact argument count (including the
// command name), negative N means "at least |N| arguments, including the
// command name itself".
type Command struct {
	Name    string
	Arity   int
	Handler Handler
}

// Accepts reports whether argc (including the command name) satisfies
// this command's arity.
func (c *Command) Accepts(argc int) bool {
	if c.Arity >= 0 {
		return argc == c.Arity
	}
	return argc >= -c.Arity
}

// Registry is a case-insensitive name to *Command table. The core is
// single-threaded and all commands are registered once at startup before
// the event loop begins accepting connections, so no lock is needed here
// at all.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command, 8)}
}

// Register adds cmd to the table, keyed by its upper-cased name.
func (r *Registry) Register(cmd *Command) {
	r.commands[strings.ToUpper(cmd.Name)] = cmd
}

// Lookup returns the command named name (case-insensitive), or false if
// none is registered.
func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[strings.ToUpper(name)]
	return cmd, ok
}

// Names returns every registered command's canonical (upper-cased) name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}
