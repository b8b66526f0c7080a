package join

import (
	"context"

	"github.com/dd0wney/cluso-mergejoin/pkg/pools"
)

// UndefJoin is Zipper extended to UNDEF semantics: a left row and a right row
// are joined whenever their keys are compatible, i.e. equal in every column
// where both are defined.
//
// Plain merging under-matches because an UNDEF column sorts below every value
// yet matches larger keys. Whenever two keys are compatible but not equal, the
// smaller one carries UNDEF in the first column where they differ. Each side
// therefore remembers the UNDEF-carrying rows it has already passed, and when
// a run of key k is finished on one side, FindSmallerUndefRanges looks up the
// compatible rows smaller than k among the remembered rows of the other side.
//
// Unmatched left rows without UNDEF are emitted as optional rows as soon as
// they are passed. Unmatched left rows with UNDEF can still be matched by a
// later right row, so they are emitted once all input is consumed. The
// OutOfOrder flag of the result reports whether rows were emitted out of key
// order because of either effect.
func UndefJoin[L, R any](
	ctx context.Context,
	left Side[L],
	right Side[R],
	keyL func(L) Key,
	keyR func(R) Key,
	adder RowAdder[L, R],
	opts ...Option,
) (Result, error) {
	u := &undefZipper[L, R]{
		opts:  buildOptions(opts),
		adder: adder,
	}
	u.left = newCursor("left", left, keyL, Compare, &u.res.Left)
	u.right = newCursor("right", right, keyR, Compare, &u.res.Right)
	err := u.run(ctx)
	return u.res, err
}

// undefRows is the sorted list of UNDEF-carrying rows one side has passed.
type undefRows[T any] struct {
	rows    Block[T]
	keys    []Key
	matched []bool
}

func (b *undefRows[T]) addSpans(spans []span[T], k Key, matched bool) {
	for _, s := range spans {
		for i := s.begin; i < s.end; i++ {
			b.rows = append(b.rows, s.blk[i])
			b.keys = append(b.keys, k)
			b.matched = append(b.matched, matched)
		}
	}
}

func (b *undefRows[T]) len() int {
	return len(b.keys)
}

type undefZipper[L, R any] struct {
	opts  options
	adder RowAdder[L, R]
	left  *cursor[L, Key]
	right *cursor[R, Key]
	res   Result

	leftUndef  undefRows[L]
	rightUndef undefRows[R]

	leftRun  []span[L]
	rightRun []span[R]
}

func (u *undefZipper[L, R]) run(ctx context.Context) error {
	for {
		lok, err := u.left.fill(ctx)
		if err != nil {
			return err
		}
		rok, err := u.right.fill(ctx)
		if err != nil {
			return err
		}

		switch {
		case !lok && !rok:
			return u.finish()
		case !lok:
			// Only remembered left rows can still be matched.
			if u.leftUndef.len() == 0 {
				return u.finish()
			}
			err = u.rightRunOnly(ctx, u.right.key())
		case !rok:
			if u.rightUndef.len() == 0 && u.opts.kind == Inner {
				return u.finish()
			}
			err = u.leftRunOnly(ctx, u.left.key())
		default:
			lk, rk := u.left.key(), u.right.key()
			switch c := Compare(lk, rk); {
			case c < 0:
				err = u.leftRunOnly(ctx, lk)
			case c > 0:
				err = u.rightRunOnly(ctx, rk)
			default:
				err = u.equalRuns(ctx, lk)
			}
		}
		if err != nil {
			return err
		}
	}
}

// probe looks up the remembered rows of the other side that are smaller than
// and compatible with k.
func probe[T any](res *Result, k Key, other *undefRows[T]) []int {
	if other.len() == 0 {
		return nil
	}
	res.UndefProbes++
	it := FindSmallerUndefRanges(k, other.keys, &res.OutOfOrder)
	return it.AppendTo(pools.GetIndices(8))
}

// leftRunOnly handles a left run of key k that has no equal right run.
func (u *undefZipper[L, R]) leftRunOnly(ctx context.Context, k Key) error {
	var err error
	u.leftRun, _, err = u.left.collectRun(ctx, k, 0, u.leftRun[:0])
	if err != nil {
		return err
	}
	u.res.Runs++

	positions := probe(&u.res, k, &u.rightUndef)
	matched := len(positions) > 0
	if matched {
		u.emitLeftAgainstUndef(positions)
	}
	pools.PutIndices(positions)
	u.passLeftRun(k, matched)
	clearSpans(u.leftRun)
	return nil
}

// rightRunOnly handles a right run of key k that has no equal left run.
func (u *undefZipper[L, R]) rightRunOnly(ctx context.Context, k Key) error {
	positions := probe(&u.res, k, &u.leftUndef)
	defer pools.PutIndices(positions)
	u.res.Runs++

	for {
		var (
			complete bool
			err      error
		)
		u.rightRun, complete, err = u.right.collectRun(ctx, k, u.opts.lookAhead, u.rightRun[:0])
		if err != nil {
			return err
		}
		u.emitUndefAgainstRight(positions)
		u.passRightChunk(k)
		if complete {
			break
		}
	}
	u.markLeftMatched(positions)
	clearSpans(u.rightRun)
	return nil
}

// equalRuns handles runs of key k present on both sides.
func (u *undefZipper[L, R]) equalRuns(ctx context.Context, k Key) error {
	var err error
	u.leftRun, _, err = u.left.collectRun(ctx, k, 0, u.leftRun[:0])
	if err != nil {
		return err
	}
	u.res.Runs++

	leftHits := probe(&u.res, k, &u.rightUndef)
	if len(leftHits) > 0 {
		u.emitLeftAgainstUndef(leftHits)
	}
	pools.PutIndices(leftHits)

	rightHits := probe(&u.res, k, &u.leftUndef)
	defer pools.PutIndices(rightHits)
	for {
		var complete bool
		u.rightRun, complete, err = u.right.collectRun(ctx, k, u.opts.lookAhead, u.rightRun[:0])
		if err != nil {
			return err
		}
		u.res.RowsEmitted += emitSpans(u.adder, u.leftRun, u.rightRun)
		u.emitUndefAgainstRight(rightHits)
		u.passRightChunk(k)
		if complete {
			break
		}
	}
	u.markLeftMatched(rightHits)
	u.passLeftRun(k, true)
	clearSpans(u.leftRun)
	clearSpans(u.rightRun)
	return nil
}

// emitLeftAgainstUndef joins the buffered left run with remembered right rows.
func (u *undefZipper[L, R]) emitLeftAgainstUndef(positions []int) {
	for _, s := range u.leftRun {
		li := pools.IndexRange(s.begin, s.end)
		u.adder.SetInput(s.blk, u.rightUndef.rows)
		u.adder.AddRows(li, positions)
		u.res.RowsEmitted += len(li) * len(positions)
		pools.PutIndices(li)
	}
}

// emitUndefAgainstRight joins remembered left rows with the buffered right
// chunk.
func (u *undefZipper[L, R]) emitUndefAgainstRight(positions []int) {
	if len(positions) == 0 {
		return
	}
	for _, s := range u.rightRun {
		ri := pools.IndexRange(s.begin, s.end)
		u.adder.SetInput(u.leftUndef.rows, s.blk)
		u.adder.AddRows(positions, ri)
		u.res.RowsEmitted += len(positions) * len(ri)
		pools.PutIndices(ri)
	}
}

func (u *undefZipper[L, R]) markLeftMatched(positions []int) {
	for _, p := range positions {
		u.leftUndef.matched[p] = true
	}
}

// passLeftRun finishes the buffered left run. Rows with UNDEF are remembered
// while right rows may still follow; everything else is final and, if
// unmatched, emitted as optional right away.
func (u *undefZipper[L, R]) passLeftRun(k Key, matched bool) {
	if k.HasUndef() && !u.right.exhausted {
		u.leftUndef.addSpans(u.leftRun, k, matched)
		return
	}
	if matched || u.opts.kind != Optional {
		return
	}
	for _, s := range u.leftRun {
		u.adder.SetOnlyLeftInput(s.blk)
		for i := s.begin; i < s.end; i++ {
			u.adder.AddOptionalRow(i)
		}
		u.res.OptionalRows += s.len()
	}
}

// passRightChunk remembers UNDEF-carrying right rows for later left probes.
func (u *undefZipper[L, R]) passRightChunk(k Key) {
	if k.HasUndef() && !u.left.exhausted {
		u.rightUndef.addSpans(u.rightRun, k, true)
	}
}

// finish emits the remembered left rows that never found a partner and
// flushes the adder.
func (u *undefZipper[L, R]) finish() error {
	if u.opts.kind == Optional {
		first := true
		for i, m := range u.leftUndef.matched {
			if m {
				continue
			}
			if first {
				u.adder.SetOnlyLeftInput(u.leftUndef.rows)
				u.res.OutOfOrder = true
				first = false
			}
			u.adder.AddOptionalRow(i)
			u.res.OptionalRows++
		}
	}
	if u.opts.requireNonEmpty && u.opts.kind == Inner {
		checkNonEmpty(u.left, u.right)
	}
	return u.adder.Flush()
}
