package join

// Row is a fixed-width tuple. The leading columns are the join columns, the
// remaining ones are payload carried through the join untouched.
type Row []Value

// R builds a Row from plain integers. Pass int64(Undef) for an unbound column.
func R(vals ...int64) Row {
	row := make(Row, len(vals))
	for i, v := range vals {
		row[i] = Value(v)
	}
	return row
}

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Key returns the key made of the first n columns of the row.
func (r Row) Key(n int) Key {
	if n < 0 || n > MaxJoinColumns {
		contractViolationf("%d join columns requested, supported range is 0..%d", n, MaxJoinColumns)
	}
	if len(r) < n {
		contractViolationf("row of width %d has fewer than %d join columns", len(r), n)
	}
	var k Key
	k.width = uint8(n)
	copy(k.vals[:n], r[:n])
	return k
}

// RowKey returns a projection from a Row onto its first n columns, suitable
// as the key function of UndefJoin or Zipper.
func RowKey(n int) func(Row) Key {
	if n < 1 || n > MaxJoinColumns {
		contractViolationf("%d join columns requested, supported range is 1..%d", n, MaxJoinColumns)
	}
	return func(r Row) Key {
		return r.Key(n)
	}
}

// CompareRows compares rows on their first n columns.
func CompareRows(a, b Row, n int) int {
	return Compare(a.Key(n), b.Key(n))
}
