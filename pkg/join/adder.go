package join

// RowAdder receives the output of a join. It is implemented by the caller and
// is the only channel through which a join has side effects.
//
// Rows are identified by their index in the blocks most recently announced by
// SetInput or SetOnlyLeftInput. The announced blocks stay valid only until the
// next announcement, so implementations must copy whatever they keep.
type RowAdder[L, R any] interface {
	// SetInput announces the blocks that subsequent AddRow and AddRows calls
	// index into.
	SetInput(left Block[L], right Block[R])
	// AddRow emits one matched pair.
	AddRow(leftIndex, rightIndex int)
	// AddRows emits the cartesian product of the given indices. AddCartesian
	// is a valid implementation.
	AddRows(leftIndices, rightIndices []int)
	// SetOnlyLeftInput announces the block that subsequent AddOptionalRow
	// calls index into.
	SetOnlyLeftInput(left Block[L])
	// AddOptionalRow emits an unmatched left row; the right columns are UNDEF.
	AddOptionalRow(leftIndex int)
	// Flush is called exactly once, after all input has been consumed.
	Flush() error
}

// AddCartesian emits every combination of leftIndices and rightIndices through
// AddRow, left-major.
func AddCartesian[L, R any](adder RowAdder[L, R], leftIndices, rightIndices []int) {
	for _, li := range leftIndices {
		for _, ri := range rightIndices {
			adder.AddRow(li, ri)
		}
	}
}

// TableAdder is a RowAdder over Rows that materializes the joined table.
//
// An output row consists of the join columns, where a defined value wins over
// UNDEF, followed by the left payload and the right payload. For optional
// rows the right payload is filled with UNDEF.
type TableAdder struct {
	numJoinColumns int
	leftWidth      int
	rightWidth     int

	left  Block[Row]
	right Block[Row]

	rows    []Row
	flushes int
	onFlush func(rows []Row) error
}

// NewTableAdder returns an adder for inputs of the given widths, both of which
// include the numJoinColumns leading join columns.
func NewTableAdder(numJoinColumns, leftWidth, rightWidth int) *TableAdder {
	if numJoinColumns < 1 || numJoinColumns > MaxJoinColumns {
		contractViolationf("%d join columns requested, supported range is 1..%d", numJoinColumns, MaxJoinColumns)
	}
	if leftWidth < numJoinColumns || rightWidth < numJoinColumns {
		contractViolationf("input widths %d and %d cannot hold %d join columns", leftWidth, rightWidth, numJoinColumns)
	}
	return &TableAdder{
		numJoinColumns: numJoinColumns,
		leftWidth:      leftWidth,
		rightWidth:     rightWidth,
	}
}

// OnFlush registers a callback that receives the materialized rows on Flush.
func (a *TableAdder) OnFlush(fn func(rows []Row) error) {
	a.onFlush = fn
}

// Width returns the width of the output rows.
func (a *TableAdder) Width() int {
	return a.leftWidth + a.rightWidth - a.numJoinColumns
}

// SetInput implements RowAdder.
func (a *TableAdder) SetInput(left Block[Row], right Block[Row]) {
	a.left, a.right = left, right
}

// AddRow implements RowAdder.
func (a *TableAdder) AddRow(leftIndex, rightIndex int) {
	l, r := a.left[leftIndex], a.right[rightIndex]
	if len(l) != a.leftWidth || len(r) != a.rightWidth {
		contractViolationf("row widths %d and %d do not match declared widths %d and %d",
			len(l), len(r), a.leftWidth, a.rightWidth)
	}
	if invariantsEnabled && !IsCompatible(l.Key(a.numJoinColumns), r.Key(a.numJoinColumns)) {
		contractViolationf("incompatible rows %v and %v added", l, r)
	}

	n := a.numJoinColumns
	out := make(Row, 0, a.Width())
	for i := 0; i < n; i++ {
		v := l[i]
		if v.IsUndef() {
			v = r[i]
		}
		out = append(out, v)
	}
	out = append(out, l[n:]...)
	out = append(out, r[n:]...)
	a.rows = append(a.rows, out)
}

// AddRows implements RowAdder.
func (a *TableAdder) AddRows(leftIndices, rightIndices []int) {
	AddCartesian[Row, Row](a, leftIndices, rightIndices)
}

// SetOnlyLeftInput implements RowAdder.
func (a *TableAdder) SetOnlyLeftInput(left Block[Row]) {
	a.left, a.right = left, nil
}

// AddOptionalRow implements RowAdder.
func (a *TableAdder) AddOptionalRow(leftIndex int) {
	l := a.left[leftIndex]
	if len(l) != a.leftWidth {
		contractViolationf("row width %d does not match declared width %d", len(l), a.leftWidth)
	}
	out := make(Row, 0, a.Width())
	out = append(out, l...)
	for i := a.numJoinColumns; i < a.rightWidth; i++ {
		out = append(out, Undef)
	}
	a.rows = append(a.rows, out)
}

// Flush implements RowAdder.
func (a *TableAdder) Flush() error {
	a.flushes++
	if a.flushes > 1 {
		contractViolationf("adder flushed %d times", a.flushes)
	}
	if a.onFlush != nil {
		return a.onFlush(a.rows)
	}
	return nil
}

// Rows returns the rows added so far.
func (a *TableAdder) Rows() []Row {
	return a.rows
}

// Flushes returns how many times Flush was called.
func (a *TableAdder) Flushes() int {
	return a.flushes
}
