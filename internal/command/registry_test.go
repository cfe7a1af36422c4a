package command

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	out []byte
}

func (f *fakeClient) AppendReply(p []byte) { f.out = append(f.out, p...) }

func TestCaseInsensitiveLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&Command{Name: "test", Arity: 1, Handler: func(c Client, argv [][]byte) {
		c.AppendReply([]byte("+OK\r\n"))
	}})

	for _, name := range []string{"test", "TEST", "TeSt"} {
		cmd, ok := r.Lookup(name)
		require.True(t, ok, name)
		require.Equal(t, "test", cmd.Name)
	}
}

func TestLookupMiss(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("nope")
	require.False(t, ok)
}

func TestArityExactAndMinimum(t *testing.T) {
	exact := &Command{Name: "exact", Arity: 2}
	require.True(t, exact.Accepts(2))
	require.False(t, exact.Accepts(1))
	require.False(t, exact.Accepts(3))

	variadic := &Command{Name: "command", Arity: -1}
	require.True(t, variadic.Accepts(1))
	require.True(t, variadic.Accepts(5))
	require.False(t, variadic.Accepts(0))
}

func TestHandlerInvocation(t *testing.T) {
	r := NewRegistry()
	r.Register(&Command{Name: "echo", Arity: 2, Handler: func(c Client, argv [][]byte) {
		c.AppendReply(argv[1])
	}})
	cmd, ok := r.Lookup("ECHO")
	require.True(t, ok)
	fc := &fakeClient{}
	cmd.Handler(fc, [][]byte{[]byte("ECHO"), []byte("hi")})
	require.Equal(t, "hi", string(fc.out))
}
