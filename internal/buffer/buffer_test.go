package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGrowAndIncrLen(t *testing.T) {
	b := New()
	dst := b.Grow(5)
	copy(dst, []byte("hello"))
	require.Equal(t, 5, b.Len())
	require.Equal(t, "hello", string(b.Bytes()))
}

func TestIncrLenNegativeStripsTrailer(t *testing.T) {
	b := New()
	dst := b.Grow(7)
	copy(dst, []byte("payload"[:7]))
	b.IncrLen(-2)
	require.Equal(t, 5, b.Len())
}

func TestTrimPrefix(t *testing.T) {
	b := New()
	dst := b.Grow(10)
	copy(dst, []byte("0123456789"))
	b.TrimPrefix(4)
	require.Equal(t, "456789", string(b.Bytes()))

	b.TrimPrefix(100)
	require.Equal(t, 0, b.Len())
}

func TestMakeRoomForDoesNotShrink(t *testing.T) {
	b := NewWithCapacity(128)
	b.Grow(4)
	before := cap(b.Bytes())
	b.MakeRoomFor(8)
	require.GreaterOrEqual(t, cap(b.Bytes()), before)
}

func TestSteal(t *testing.T) {
	b := New()
	dst := b.Grow(3)
	copy(dst, []byte("abc"))
	stolen := b.Steal(16)
	require.Equal(t, "abc", string(stolen))
	require.Equal(t, 0, b.Len())
	require.GreaterOrEqual(t, cap(b.Bytes()), 16)
}
