// Package buffer implements the dynamic byte buffer the query-parsing core
// reads into and trims from. It is a direct translation of the sds
// operations the original server relies on (sdsempty, sdsMakeRoomFor,
// sdsrange, sdsIncrLen) into a small Go type with the same grow/trim/steal
// shape, instead of a generic bytes.Buffer that hides the cursor math the
// RESP parser needs.
package buffer

// Buffer is a mutable byte sequence with a length separate from its
// capacity, so the parser can grow it ahead of a read and shrink it after
// consuming a prefix without reallocating on every call.
type Buffer struct {
	buf []byte
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{buf: make([]byte, 0, 64)}
}

// NewWithCapacity returns an empty buffer with at least the given capacity
// pre-reserved.
func NewWithCapacity(n int) *Buffer {
	return &Buffer{buf: make([]byte, 0, n)}
}

// Len reports the number of valid bytes currently held.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Bytes returns the valid byte slice. The caller must not retain it past
// the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// At returns the byte at index i.
func (b *Buffer) At(i int) byte {
	return b.buf[i]
}

// MakeRoomFor ensures at least addlen more bytes can be appended without a
// further allocation, mirroring sdsMakeRoomFor. It never shrinks the
// buffer.
func (b *Buffer) MakeRoomFor(addlen int) {
	need := len(b.buf) + addlen
	if cap(b.buf) >= need {
		return
	}
	grown := make([]byte, len(b.buf), need)
	copy(grown, b.buf)
	b.buf = grown
}

// Grow extends the length by n bytes to reserve read space (their contents
// are not cleared and may be left over from earlier use), returning the slice to
// read into (equivalent to sdsMakeRoomFor followed by sdsIncrLen in the
// caller once the read count is known — callers pass the actual count to
// IncrLen after the syscall returns).
func (b *Buffer) Grow(n int) []byte {
	b.MakeRoomFor(n)
	start := len(b.buf)
	b.buf = b.buf[:start+n]
	return b.buf[start : start+n]
}

// IncrLen adjusts the valid length by delta after an in-place write into
// the slice returned by Grow, mirroring sdsIncrLen. A negative delta
// shrinks the valid length (used to strip a trailing CRLF).
func (b *Buffer) IncrLen(delta int) {
	b.buf = b.buf[:len(b.buf)+delta]
}

// TrimPrefix discards the first n bytes, shifting the remainder down to
// offset zero, mirroring sdsrange(buf, n, -1).
func (b *Buffer) TrimPrefix(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.buf) {
		b.buf = b.buf[:0]
		return
	}
	copy(b.buf, b.buf[n:])
	b.buf = b.buf[:len(b.buf)-n]
}

// Reset empties the buffer without releasing its capacity.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// Steal hands ownership of the backing slice to the caller and replaces it
// with a fresh buffer of the given capacity. This is the zero-copy
// big-argument path: the querybuf itself becomes the argument's storage,
// and a new empty querybuf takes its place.
func (b *Buffer) Steal(replacementCap int) []byte {
	stolen := b.buf
	b.buf = make([]byte, 0, replacementCap)
	return stolen
}
