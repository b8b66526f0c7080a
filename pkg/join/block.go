package join

import (
	"context"
	"io"
)

// Block is an internally sorted, randomly indexable chunk of rows.
type Block[T any] []T

// Side is one sorted, block-chunked input of a join. Next returns the next
// Block, which may be empty, or io.EOF once the side is exhausted. The
// concatenation of all blocks must be sorted.
//
// The join core calls Next only when it has consumed every row of the
// previous block that it needs, so implementations may produce blocks lazily.
type Side[T any] interface {
	Next(ctx context.Context) (Block[T], error)
}

// SideFunc adapts a function to the Side interface.
type SideFunc[T any] func(ctx context.Context) (Block[T], error)

// Next calls f.
func (f SideFunc[T]) Next(ctx context.Context) (Block[T], error) {
	return f(ctx)
}

// SliceSide is a Side over blocks that are already in memory.
type SliceSide[T any] struct {
	blocks []Block[T]
	pos    int
}

// NewSliceSide returns a Side yielding the given blocks in order.
func NewSliceSide[T any](blocks ...Block[T]) *SliceSide[T] {
	return &SliceSide[T]{blocks: blocks}
}

// Next implements Side.
func (s *SliceSide[T]) Next(ctx context.Context) (Block[T], error) {
	if s.pos >= len(s.blocks) {
		return nil, io.EOF
	}
	blk := s.blocks[s.pos]
	s.pos++
	return blk, nil
}

// Pulled returns how many blocks have been handed out so far.
func (s *SliceSide[T]) Pulled() int {
	return s.pos
}

// Reset rewinds the side to its first block.
func (s *SliceSide[T]) Reset() {
	s.pos = 0
}

// SplitRows cuts rows into consecutive blocks whose sizes cycle through
// sizes. A size of zero produces an empty block. With no sizes, or only zero
// sizes, every row ends up in a single block.
func SplitRows[T any](rows []T, sizes ...int) []Block[T] {
	positive := false
	for _, s := range sizes {
		if s < 0 {
			contractViolationf("negative block size %d", s)
		}
		if s > 0 {
			positive = true
		}
	}
	if !positive {
		return []Block[T]{rows}
	}

	var blocks []Block[T]
	for i, pos := 0, 0; pos < len(rows); i++ {
		n := sizes[i%len(sizes)]
		end := pos + n
		if end > len(rows) {
			end = len(rows)
		}
		blocks = append(blocks, Block[T](rows[pos:end]))
		pos = end
	}
	return blocks
}

// CollectRows drains a side into a single slice.
func CollectRows[T any](ctx context.Context, side Side[T]) ([]T, error) {
	var rows []T
	for {
		blk, err := side.Next(ctx)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, blk...)
	}
}

// CheckedSide wraps a Side of Rows and asserts that every row it hands out
// has exactly Width columns. When DefinedColumns is positive, an UNDEF in
// any of the first DefinedColumns columns is a contract violation too; the
// plain Zipper treats UNDEF as an ordinary value and would under-match.
type CheckedSide struct {
	Side           Side[Row]
	Width          int
	DefinedColumns int
}

// Next implements Side.
func (c CheckedSide) Next(ctx context.Context) (Block[Row], error) {
	blk, err := c.Side.Next(ctx)
	if err != nil {
		return blk, err
	}
	for i, row := range blk {
		if len(row) != c.Width {
			contractViolationf("row %d of block has width %d, declared width is %d", i, len(row), c.Width)
		}
		for col := 0; col < c.DefinedColumns; col++ {
			if row[col].IsUndef() {
				contractViolationf("row %d of block has UNDEF in join column %d; use an UNDEF-aware join", i, col)
			}
		}
	}
	return blk, nil
}
