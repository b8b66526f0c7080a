package pools

import (
	"sync"
)

// IndexPool pools slices of row indices handed to join output adders.
type IndexPool struct {
	small  sync.Pool // <= 16 elements
	medium sync.Pool // <= 256 elements
	large  sync.Pool // <= 4096 elements
}

// NewIndexPool creates a new index slice pool.
func NewIndexPool() *IndexPool {
	return &IndexPool{
		small: sync.Pool{
			New: func() any {
				s := make([]int, 0, 16)
				return &s
			},
		},
		medium: sync.Pool{
			New: func() any {
				s := make([]int, 0, 256)
				return &s
			},
		},
		large: sync.Pool{
			New: func() any {
				s := make([]int, 0, 4096)
				return &s
			},
		},
	}
}

// Get returns an empty index slice with at least the requested capacity.
func (p *IndexPool) Get(size int) []int {
	var pool *sync.Pool
	switch {
	case size <= 16:
		pool = &p.small
	case size <= 256:
		pool = &p.medium
	case size <= 4096:
		pool = &p.large
	default:
		return make([]int, 0, size)
	}

	sp, ok := pool.Get().(*[]int)
	if !ok || cap(*sp) < size {
		return make([]int, 0, size)
	}
	return (*sp)[:0]
}

// Range returns a pooled slice holding begin, begin+1, ..., end-1.
func (p *IndexPool) Range(begin, end int) []int {
	s := p.Get(end - begin)
	for i := begin; i < end; i++ {
		s = append(s, i)
	}
	return s
}

// Put returns an index slice to the pool.
func (p *IndexPool) Put(s []int) {
	c := cap(s)
	if c == 0 || c > 65536 {
		return // Don't pool empty or very large slices
	}

	s = s[:0]

	var pool *sync.Pool
	switch {
	case c <= 16:
		pool = &p.small
	case c <= 256:
		pool = &p.medium
	case c <= 4096:
		pool = &p.large
	default:
		return
	}

	pool.Put(&s)
}

// Default global index pool
var defaultIndexPool = NewIndexPool()

// GetIndices returns an index slice from the default pool.
func GetIndices(size int) []int {
	return defaultIndexPool.Get(size)
}

// IndexRange returns a pooled slice of consecutive indices from the default pool.
func IndexRange(begin, end int) []int {
	return defaultIndexPool.Range(begin, end)
}

// PutIndices returns an index slice to the default pool.
func PutIndices(s []int) {
	defaultIndexPool.Put(s)
}
