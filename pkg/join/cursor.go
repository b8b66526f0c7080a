package join

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

// span is a contiguous slice [begin, end) of one block.
type span[T any] struct {
	blk        Block[T]
	begin, end int
}

func (s span[T]) len() int {
	return s.end - s.begin
}

func spansLen[T any](spans []span[T]) int {
	n := 0
	for _, s := range spans {
		n += s.len()
	}
	return n
}

// cursor walks one Side row by row. It pulls the next block only when the
// current one is used up and asserts that every pulled block is sorted and
// starts no lower than the previous block ended.
type cursor[T, K any] struct {
	name string
	side Side[T]
	proj func(T) K
	cmp  func(a, b K) int

	blk       Block[T]
	pos       int
	exhausted bool

	// last is the key of the last row of the last non-empty block pulled.
	last    K
	hasLast bool

	stats *SideStats
}

func newCursor[T, K any](name string, side Side[T], proj func(T) K, cmp func(a, b K) int, stats *SideStats) *cursor[T, K] {
	return &cursor[T, K]{name: name, side: side, proj: proj, cmp: cmp, stats: stats}
}

// fill positions the cursor on a row, pulling blocks as needed. It returns
// false once the side is exhausted. Cancellation is only observed here, at
// block boundaries.
func (c *cursor[T, K]) fill(ctx context.Context) (bool, error) {
	for c.pos >= len(c.blk) {
		if c.exhausted {
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		blk, err := c.side.Next(ctx)
		if errors.Is(err, io.EOF) {
			c.exhausted = true
			c.blk, c.pos = nil, 0
			return false, nil
		}
		if err != nil {
			return false, errors.Wrapf(err, "pulling %s block", c.name)
		}
		c.stats.Blocks++
		if len(blk) == 0 {
			c.stats.EmptyBlocks++
		}
		c.checkBlock(blk)
		c.blk, c.pos = blk, 0
	}
	return true, nil
}

// checkBlock asserts that blk is sorted and does not start below the end of
// the previous block. The whole block is checked on arrival so an unsorted
// tail is caught even when the join stops before walking it.
func (c *cursor[T, K]) checkBlock(blk Block[T]) {
	if len(blk) == 0 {
		return
	}
	prev, hasPrev := c.last, c.hasLast
	for i, r := range blk {
		k := c.proj(r)
		if hasPrev && c.cmp(prev, k) > 0 {
			if i == 0 {
				contractViolationf("%s side is not sorted: block %d starts below the end of the previous block", c.name, c.stats.Blocks-1)
			}
			contractViolationf("%s side is not sorted: row %d of block %d follows a larger row", c.name, i, c.stats.Blocks-1)
		}
		prev, hasPrev = k, true
	}
	c.last, c.hasLast = prev, true
}

// row returns the current row. fill must have returned true.
func (c *cursor[T, K]) row() T {
	return c.blk[c.pos]
}

func (c *cursor[T, K]) key() K {
	return c.proj(c.blk[c.pos])
}

// advance moves past the current row. It reports whether the cursor is still
// inside the same block.
func (c *cursor[T, K]) advance() bool {
	c.pos++
	c.stats.Rows++
	return c.pos < len(c.blk)
}

// collectRun moves past every row equal to k, starting at the current row,
// and appends them to dst as spans. At most maxBlocks blocks are collected
// when maxBlocks is positive; complete reports whether the run has ended.
// When it has not, the cursor stays on the first row of the rest of the run.
func (c *cursor[T, K]) collectRun(ctx context.Context, k K, maxBlocks int, dst []span[T]) (_ []span[T], complete bool, _ error) {
	blocks := 0
	for {
		ok, err := c.fill(ctx)
		if err != nil {
			return dst, false, err
		}
		if !ok || c.cmp(c.key(), k) != 0 {
			return dst, true, nil
		}
		if maxBlocks > 0 && blocks == maxBlocks {
			return dst, false, nil
		}
		blocks++

		blk, begin := c.blk, c.pos
		for c.advance() && c.cmp(c.key(), k) == 0 {
		}
		dst = append(dst, span[T]{blk: blk, begin: begin, end: c.pos})
		if c.pos < len(blk) {
			return dst, true, nil
		}
	}
}

// checkNonEmpty asserts that neither side turned out to have no rows at all.
// Only an exhausted side can prove that.
func checkNonEmpty[L, R, K any](left *cursor[L, K], right *cursor[R, K]) {
	if left.exhausted && left.stats.Rows == 0 {
		contractViolationf("left input of inner join is empty but was required to be non-empty")
	}
	if right.exhausted && right.stats.Rows == 0 {
		contractViolationf("right input of inner join is empty but was required to be non-empty")
	}
}
