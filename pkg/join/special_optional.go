package join

import (
	"context"

	"github.com/dd0wney/cluso-mergejoin/pkg/pools"
)

// SpecialOptionalJoin is an optional join over Rows whose first
// numJoinColumns columns are join columns. On the left, the last join column
// may be UNDEF; such a row matches every right row that agrees on the
// remaining join columns (the group prefix), and the output takes the last
// join column from the right row. Right rows must be fully defined, and so
// must the group prefix of left rows.
//
// Left rows are expected sorted by their full key, which places the UNDEF
// rows first within each group. Both inputs are consumed group by group;
// only one group per side is buffered at a time. Left rows without a partner
// are emitted through AddOptionalRow, keeping their UNDEF.
//
// Several UNDEF left rows against several right rows of the same group yield
// the full cartesian product.
func SpecialOptionalJoin(
	ctx context.Context,
	left Side[Row],
	right Side[Row],
	numJoinColumns int,
	adder RowAdder[Row, Row],
) (Result, error) {
	if numJoinColumns < 2 || numJoinColumns > MaxJoinColumns {
		contractViolationf("special optional join needs 2..%d join columns, got %d", MaxJoinColumns, numJoinColumns)
	}
	s := &specialJoin{
		n:     numJoinColumns,
		adder: adder,
	}
	prefix := numJoinColumns - 1
	s.left = newCursor("left", left, func(r Row) Key {
		k := r.Key(numJoinColumns)
		if k.Prefix(prefix).HasUndef() {
			contractViolationf("left row %v has UNDEF outside the last join column", r)
		}
		return k.Prefix(prefix)
	}, Compare, &s.res.Left)
	s.right = newCursor("right", right, func(r Row) Key {
		k := r.Key(numJoinColumns)
		if k.HasUndef() {
			contractViolationf("right row %v of special optional join has UNDEF join columns", r)
		}
		return k.Prefix(prefix)
	}, Compare, &s.res.Right)

	err := s.run(ctx)
	return s.res, err
}

type specialJoin struct {
	n     int
	adder RowAdder[Row, Row]
	left  *cursor[Row, Key]
	right *cursor[Row, Key]
	res   Result

	leftGroup  Block[Row]
	rightGroup Block[Row]
	spans      []span[Row]
}

func (s *specialJoin) run(ctx context.Context) error {
	for {
		lok, err := s.left.fill(ctx)
		if err != nil {
			return err
		}
		if !lok {
			break
		}
		rok, err := s.right.fill(ctx)
		if err != nil {
			return err
		}

		lp := s.left.key()
		c := -1
		if rok {
			c = Compare(lp, s.right.key())
		}
		switch {
		case c < 0:
			if err := s.loadGroup(ctx, s.left, lp, &s.leftGroup); err != nil {
				return err
			}
			s.emitOptional(0, len(s.leftGroup))
		case c > 0:
			for s.right.advance() && Compare(lp, s.right.key()) > 0 {
			}
		default:
			if err := s.loadGroup(ctx, s.left, lp, &s.leftGroup); err != nil {
				return err
			}
			if err := s.loadGroup(ctx, s.right, lp, &s.rightGroup); err != nil {
				return err
			}
			s.res.Runs++
			s.joinGroup()
		}
	}
	s.leftGroup, s.rightGroup = nil, nil
	return s.adder.Flush()
}

// loadGroup copies the rows of the group with prefix p into dst and checks
// that they are sorted on the last join column.
func (s *specialJoin) loadGroup(ctx context.Context, c *cursor[Row, Key], p Key, dst *Block[Row]) error {
	var err error
	s.spans, _, err = c.collectRun(ctx, p, 0, s.spans[:0])
	if err != nil {
		return err
	}
	group := (*dst)[:0]
	for _, sp := range s.spans {
		group = append(group, sp.blk[sp.begin:sp.end]...)
	}
	clearSpans(s.spans)

	last := s.n - 1
	for i := 1; i < len(group); i++ {
		if group[i-1][last] > group[i][last] {
			contractViolationf("%s side is not sorted on join column %d", c.name, last)
		}
	}
	*dst = group
	return nil
}

// joinGroup joins one left group with the right group of the same prefix.
// The right group is never empty here.
func (s *specialJoin) joinGroup() {
	last := s.n - 1
	lg, rg := s.leftGroup, s.rightGroup

	// UNDEF rows come first and match the whole right group.
	i := 0
	for i < len(lg) && lg[i][last].IsUndef() {
		i++
	}
	if i > 0 {
		s.emitMatches(0, i, 0, len(rg))
	}

	j := 0
	for i < len(lg) {
		v := lg[i][last]
		iEnd := i + 1
		for iEnd < len(lg) && lg[iEnd][last] == v {
			iEnd++
		}
		for j < len(rg) && rg[j][last] < v {
			j++
		}
		jEnd := j
		for jEnd < len(rg) && rg[jEnd][last] == v {
			jEnd++
		}
		if jEnd > j {
			s.emitMatches(i, iEnd, j, jEnd)
		} else {
			s.emitOptional(i, iEnd)
		}
		i, j = iEnd, jEnd
	}
}

func (s *specialJoin) emitMatches(lBegin, lEnd, rBegin, rEnd int) {
	li := pools.IndexRange(lBegin, lEnd)
	ri := pools.IndexRange(rBegin, rEnd)
	s.adder.SetInput(s.leftGroup, s.rightGroup)
	s.adder.AddRows(li, ri)
	s.res.RowsEmitted += len(li) * len(ri)
	pools.PutIndices(li)
	pools.PutIndices(ri)
}

func (s *specialJoin) emitOptional(lBegin, lEnd int) {
	s.adder.SetOnlyLeftInput(s.leftGroup)
	for i := lBegin; i < lEnd; i++ {
		s.adder.AddOptionalRow(i)
	}
	s.res.OptionalRows += lEnd - lBegin
}
