package pools

import "encoding/binary"

// BufferBuilder builds block frames in a pooled byte slice.
type BufferBuilder struct {
	buf  []byte
	pool *BytePool
}

// NewBufferBuilder creates a new buffer builder with the given initial capacity.
func NewBufferBuilder(initialCap int) *BufferBuilder {
	return &BufferBuilder{
		buf:  defaultBytePool.Get(initialCap),
		pool: defaultBytePool,
	}
}

// Grow makes room for at least n more bytes without reallocating.
func (b *BufferBuilder) Grow(n int) {
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	grown := b.pool.Get(len(b.buf) + n)
	grown = append(grown, b.buf...)
	b.pool.Put(b.buf)
	b.buf = grown
}

// Write appends bytes to the buffer.
func (b *BufferBuilder) Write(p []byte) {
	b.buf = append(b.buf, p...)
}

// WriteUint32BE appends a uint32 in big-endian order.
func (b *BufferBuilder) WriteUint32BE(v uint32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

// WriteUint64BE appends a uint64 in big-endian order.
func (b *BufferBuilder) WriteUint64BE(v uint64) {
	b.buf = binary.BigEndian.AppendUint64(b.buf, v)
}

// WriteInt64sBE appends each value as a big-endian two's complement uint64.
func (b *BufferBuilder) WriteInt64sBE(vs ...int64) {
	b.Grow(8 * len(vs))
	for _, v := range vs {
		b.buf = binary.BigEndian.AppendUint64(b.buf, uint64(v))
	}
}

// Bytes returns the built buffer. It is only valid until the next write,
// Reset or Release.
func (b *BufferBuilder) Bytes() []byte {
	return b.buf
}

// Len returns the current length of the buffer.
func (b *BufferBuilder) Len() int {
	return len(b.buf)
}

// Reset resets the buffer for reuse.
func (b *BufferBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Release returns the buffer to the pool. After Release, the builder should not be used.
func (b *BufferBuilder) Release() {
	if b.pool != nil && b.buf != nil {
		b.pool.Put(b.buf)
	}
	b.buf = nil
}
