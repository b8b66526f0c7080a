package pools

import (
	"sync"
)

// Buffer size classes for block frames. A frame holds one block of rows
// encoded as 8 bytes per value, before or after compression.
const (
	SmallFrame  = 1 << 10 // A few dozen narrow rows
	MediumFrame = 1 << 13 // Default block size
	LargeFrame  = 1 << 16 // Wide rows or large blocks
	MaxPool     = 1 << 20 // Don't pool buffers larger than this
)

// BytePool provides size-class based pooling for frame buffers.
type BytePool struct {
	small  sync.Pool // <= SmallFrame bytes
	medium sync.Pool // <= MediumFrame bytes
	large  sync.Pool // <= LargeFrame bytes
}

func sizedPool(size int) sync.Pool {
	return sync.Pool{
		New: func() any {
			b := make([]byte, 0, size)
			return &b
		},
	}
}

// NewBytePool creates a new byte pool.
func NewBytePool() *BytePool {
	return &BytePool{
		small:  sizedPool(SmallFrame),
		medium: sizedPool(MediumFrame),
		large:  sizedPool(LargeFrame),
	}
}

func (p *BytePool) class(size int) *sync.Pool {
	switch {
	case size <= SmallFrame:
		return &p.small
	case size <= MediumFrame:
		return &p.medium
	case size <= LargeFrame:
		return &p.large
	default:
		return nil
	}
}

// Get returns a byte slice with length 0 and at least the requested capacity.
func (p *BytePool) Get(size int) []byte {
	pool := p.class(size)
	if pool == nil {
		// Too large to pool, allocate directly
		return make([]byte, 0, size)
	}

	bp, ok := pool.Get().(*[]byte)
	if !ok || cap(*bp) < size {
		return make([]byte, 0, size)
	}
	return (*bp)[:0]
}

// GetSized returns a byte slice with exactly the requested length.
func (p *BytePool) GetSized(size int) []byte {
	b := p.Get(size)
	return b[:size]
}

// Put returns a byte slice to the pool for reuse. Empty slices and slices
// larger than MaxPool are dropped; slices above LargeFrame go to the large
// class, whose Get checks capacity anyway.
func (p *BytePool) Put(b []byte) {
	c := cap(b)
	if c == 0 || c > MaxPool {
		return
	}
	b = b[:0]

	pool := p.class(c)
	if pool == nil {
		pool = &p.large
	}
	pool.Put(&b)
}

// Default global byte pool
var defaultBytePool = NewBytePool()

// GetBytes returns a byte slice from the default pool.
func GetBytes(size int) []byte {
	return defaultBytePool.Get(size)
}

// GetBytesSized returns a byte slice with exact length from the default pool.
func GetBytesSized(size int) []byte {
	return defaultBytePool.GetSized(size)
}

// PutBytes returns a byte slice to the default pool.
func PutBytes(b []byte) {
	defaultBytePool.Put(b)
}
