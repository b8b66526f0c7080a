package join

import (
	"context"

	"github.com/dd0wney/cluso-mergejoin/pkg/pools"
)

// Zipper merges two sorted sides on the keys produced by projL and projR and
// ordered by cmp. Every pair of rows with equal keys is handed to adder;
// within one equal-key run the full cartesian product is emitted. With
// WithKind(Optional), every left row without an equal right row is emitted
// through AddOptionalRow.
//
// Keys are compared for equality only, so Zipper has no notion of UNDEF; use
// UndefJoin when either side may carry UNDEF in a join column.
//
// The output follows key order. Each side is pulled lazily: a new block is
// requested only when the rows already buffered are used up. An inner join
// stops pulling as soon as one side is exhausted.
func Zipper[L, R, K any](
	ctx context.Context,
	left Side[L],
	right Side[R],
	cmp func(a, b K) int,
	projL func(L) K,
	projR func(R) K,
	adder RowAdder[L, R],
	opts ...Option,
) (Result, error) {
	z := &zipper[L, R, K]{
		opts:  buildOptions(opts),
		cmp:   cmp,
		adder: adder,
	}
	z.left = newCursor("left", left, projL, cmp, &z.res.Left)
	z.right = newCursor("right", right, projR, cmp, &z.res.Right)
	if err := z.run(ctx); err != nil {
		return z.res, err
	}
	return z.res, nil
}

type zipper[L, R, K any] struct {
	opts  options
	cmp   func(a, b K) int
	adder RowAdder[L, R]
	left  *cursor[L, K]
	right *cursor[R, K]
	res   Result

	leftRun  []span[L]
	rightRun []span[R]
}

func (z *zipper[L, R, K]) run(ctx context.Context) error {
	for {
		lok, err := z.left.fill(ctx)
		if err != nil {
			return err
		}
		if !lok {
			break
		}
		rok, err := z.right.fill(ctx)
		if err != nil {
			return err
		}
		if !rok {
			break
		}

		lk, rk := z.left.key(), z.right.key()
		switch c := z.cmp(lk, rk); {
		case c < 0:
			z.skipLeft(rk)
		case c > 0:
			z.skipRight(lk)
		default:
			if err := z.joinRuns(ctx, lk); err != nil {
				return err
			}
		}
	}

	if z.opts.kind == Optional {
		if err := z.drainLeft(ctx); err != nil {
			return err
		}
	}
	if z.opts.requireNonEmpty && z.opts.kind == Inner {
		checkNonEmpty(z.left, z.right)
	}
	return z.adder.Flush()
}

// skipLeft moves past the left rows of the current block that are smaller
// than rk. They have no partner, so an optional join emits them right away.
func (z *zipper[L, R, K]) skipLeft(rk K) {
	optional := z.opts.kind == Optional
	if optional {
		z.adder.SetOnlyLeftInput(z.left.blk)
	}
	for {
		if optional {
			z.adder.AddOptionalRow(z.left.pos)
			z.res.OptionalRows++
		}
		if !z.left.advance() || z.cmp(z.left.key(), rk) >= 0 {
			return
		}
	}
}

// skipRight moves past the right rows of the current block that are smaller
// than lk.
func (z *zipper[L, R, K]) skipRight(lk K) {
	for z.right.advance() && z.cmp(lk, z.right.key()) > 0 {
	}
}

// joinRuns emits the cartesian product of the run of key k on both sides.
// The left run is buffered completely; the right run is consumed in chunks of
// at most lookAhead blocks so that a run spanning many blocks is never held
// in memory on both sides at once.
func (z *zipper[L, R, K]) joinRuns(ctx context.Context, k K) error {
	var err error
	z.leftRun, _, err = z.left.collectRun(ctx, k, 0, z.leftRun[:0])
	if err != nil {
		return err
	}
	z.res.Runs++

	for {
		var complete bool
		z.rightRun, complete, err = z.right.collectRun(ctx, k, z.opts.lookAhead, z.rightRun[:0])
		if err != nil {
			return err
		}
		z.res.RowsEmitted += emitSpans(z.adder, z.leftRun, z.rightRun)
		if complete {
			break
		}
	}
	clearSpans(z.leftRun)
	clearSpans(z.rightRun)
	return nil
}

// drainLeft emits every remaining left row as optional.
func (z *zipper[L, R, K]) drainLeft(ctx context.Context) error {
	for {
		ok, err := z.left.fill(ctx)
		if err != nil || !ok {
			return err
		}
		z.adder.SetOnlyLeftInput(z.left.blk)
		for {
			z.adder.AddOptionalRow(z.left.pos)
			z.res.OptionalRows++
			if !z.left.advance() {
				break
			}
		}
	}
}

// emitSpans hands the cartesian product of two span lists to adder and
// returns the number of pairs.
func emitSpans[L, R any](adder RowAdder[L, R], ls []span[L], rs []span[R]) int {
	n := 0
	for _, l := range ls {
		li := pools.IndexRange(l.begin, l.end)
		for _, r := range rs {
			ri := pools.IndexRange(r.begin, r.end)
			adder.SetInput(l.blk, r.blk)
			adder.AddRows(li, ri)
			n += len(li) * len(ri)
			pools.PutIndices(ri)
		}
		pools.PutIndices(li)
	}
	return n
}

// clearSpans drops block references so that consumed blocks can be collected.
func clearSpans[T any](spans []span[T]) {
	for i := range spans {
		spans[i] = span[T]{}
	}
}
