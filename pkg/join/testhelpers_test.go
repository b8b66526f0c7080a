package join

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
)

// U is UNDEF as a plain integer, for building rows with R.
const U = int64(Undef)

// referenceJoin is the quadratic nested-loop join the merge joins are checked
// against. It emits every compatible pair and, for optional joins, every
// unmatched left row.
func referenceJoin(left, right []Row, n, leftWidth, rightWidth int, kind Kind) []Row {
	a := NewTableAdder(n, leftWidth, rightWidth)
	for i, l := range left {
		matched := false
		for j, r := range right {
			if IsCompatible(l.Key(n), r.Key(n)) {
				a.SetInput(left, right)
				a.AddRow(i, j)
				matched = true
			}
		}
		if !matched && kind == Optional {
			a.SetOnlyLeftInput(left)
			a.AddOptionalRow(i)
		}
	}
	return a.Rows()
}

// compareFullRows orders rows on all of their columns.
func compareFullRows(a, b Row) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

func sortRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool {
		return compareFullRows(out[i], out[j]) < 0
	})
	return out
}

func formatRows(rows []Row) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		vals := make([]string, len(r))
		for j, v := range r {
			vals[j] = v.String()
		}
		parts[i] = "(" + strings.Join(vals, ",") + ")"
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// assertSameRows fails unless got and want hold the same multiset of rows.
func assertSameRows(t *testing.T, got, want []Row) {
	t.Helper()
	g, w := sortRows(got), sortRows(want)
	if len(g) != len(w) {
		t.Fatalf("got %d rows %s, want %d rows %s", len(g), formatRows(g), len(w), formatRows(w))
	}
	for i := range g {
		if compareFullRows(g[i], w[i]) != 0 {
			t.Fatalf("rows differ at %d:\n got  %s\n want %s", i, formatRows(g), formatRows(w))
		}
	}
}

// assertRowsInOrder fails unless got equals want element by element.
func assertRowsInOrder(t *testing.T, got, want []Row) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %s, want %s", formatRows(got), formatRows(want))
	}
	for i := range got {
		if compareFullRows(got[i], want[i]) != 0 {
			t.Fatalf("got %s, want %s", formatRows(got), formatRows(want))
		}
	}
}

// expectContractViolation fails unless fn panics with a *ContractViolation.
func expectContractViolation(t *testing.T, fn func()) {
	t.Helper()
	err := CatchContractViolation(func() error {
		fn()
		return nil
	})
	if err == nil {
		t.Fatal("expected a contract violation, got none")
	}
	if !IsContractViolation(err) {
		t.Fatalf("expected a contract violation, got %v", err)
	}
}

// randomTable generates count rows with n join columns drawn from
// {UNDEF, 1..domain} and one unique payload column, sorted.
func randomTable(rng *rand.Rand, count, n, domain int, undefPercent int, payloadBase int64) []Row {
	rows := make([]Row, count)
	for i := range rows {
		row := make(Row, n+1)
		for c := 0; c < n; c++ {
			if rng.Intn(100) < undefPercent {
				row[c] = Undef
			} else {
				row[c] = Value(1 + rng.Intn(domain))
			}
		}
		row[n] = Value(payloadBase + int64(i))
		rows[i] = row
	}
	// Sorting on all columns sorts on the join columns first.
	return sortRows(rows)
}

// randomSplit cuts rows into blocks of random sizes, including empty blocks.
func randomSplit(rng *rand.Rand, rows []Row) []Block[Row] {
	var blocks []Block[Row]
	for pos := 0; pos < len(rows); {
		if rng.Intn(5) == 0 {
			blocks = append(blocks, Block[Row]{})
		}
		size := 1 + rng.Intn(4)
		end := pos + size
		if end > len(rows) {
			end = len(rows)
		}
		blocks = append(blocks, Block[Row](rows[pos:end]))
		pos = end
	}
	if rng.Intn(2) == 0 {
		blocks = append(blocks, Block[Row]{})
	}
	return blocks
}

// swapPayload turns an output row of join(R, L) into the layout of
// join(L, R).
func swapPayload(row Row, n, leftWidth, rightWidth int) Row {
	out := make(Row, 0, len(row))
	out = append(out, row[:n]...)
	rightPayload := row[n:rightWidth]
	leftPayload := row[rightWidth:]
	out = append(out, leftPayload...)
	out = append(out, rightPayload...)
	if len(leftPayload) != leftWidth-n {
		panic(fmt.Sprintf("unexpected payload width %d", len(leftPayload)))
	}
	return out
}

func runUndefJoin(t *testing.T, left, right []Block[Row], n, leftWidth, rightWidth int, opts ...Option) ([]Row, Result) {
	t.Helper()
	adder := NewTableAdder(n, leftWidth, rightWidth)
	res, err := UndefJoin[Row, Row](context.Background(),
		NewSliceSide(left...), NewSliceSide(right...), RowKey(n), RowKey(n), adder, opts...)
	if err != nil {
		t.Fatalf("UndefJoin: %v", err)
	}
	if adder.Flushes() != 1 {
		t.Fatalf("adder flushed %d times, want 1", adder.Flushes())
	}
	return adder.Rows(), res
}

func runZipper(t *testing.T, left, right []Block[Row], n, leftWidth, rightWidth int, opts ...Option) ([]Row, Result) {
	t.Helper()
	adder := NewTableAdder(n, leftWidth, rightWidth)
	res, err := Zipper[Row, Row, Key](context.Background(),
		NewSliceSide(left...), NewSliceSide(right...), Compare, RowKey(n), RowKey(n), adder, opts...)
	if err != nil {
		t.Fatalf("Zipper: %v", err)
	}
	if adder.Flushes() != 1 {
		t.Fatalf("adder flushed %d times, want 1", adder.Flushes())
	}
	return adder.Rows(), res
}

func blocksOf(rows ...Row) []Block[Row] {
	return []Block[Row]{rows}
}
