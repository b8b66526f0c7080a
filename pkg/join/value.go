package join

import (
	"math"
	"strconv"
	"strings"
)

// Value is an encoded term of the store. Values are totally ordered by their
// integer encoding.
type Value int64

// Undef is the "no binding" sentinel. It sorts strictly below every other
// Value and matches any Value under IsCompatible.
const Undef Value = math.MinInt64

// MaxJoinColumns is the largest number of join columns a Key can hold.
const MaxJoinColumns = 4

// IsUndef reports whether v is the UNDEF sentinel.
func (v Value) IsUndef() bool {
	return v == Undef
}

func (v Value) String() string {
	if v.IsUndef() {
		return "UNDEF"
	}
	return strconv.FormatInt(int64(v), 10)
}

// Key holds the join columns of a row. It is a fixed-size value so that
// comparing and copying keys never allocates.
type Key struct {
	vals  [MaxJoinColumns]Value
	width uint8
}

// MakeKey builds a key from the given join column values.
func MakeKey(vals ...Value) Key {
	if len(vals) > MaxJoinColumns {
		contractViolationf("key of width %d exceeds the maximum of %d join columns", len(vals), MaxJoinColumns)
	}
	var k Key
	k.width = uint8(len(vals))
	copy(k.vals[:], vals)
	return k
}

// Width returns the number of join columns.
func (k Key) Width() int {
	return int(k.width)
}

// At returns join column i.
func (k Key) At(i int) Value {
	if i < 0 || i >= int(k.width) {
		contractViolationf("column %d out of range for key of width %d", i, k.width)
	}
	return k.vals[i]
}

// Values returns a copy of the join columns.
func (k Key) Values() []Value {
	out := make([]Value, k.width)
	copy(out, k.vals[:k.width])
	return out
}

// Prefix returns the key made of the first n join columns.
func (k Key) Prefix(n int) Key {
	if n < 0 || n > int(k.width) {
		contractViolationf("prefix of %d columns out of range for key of width %d", n, k.width)
	}
	var p Key
	p.width = uint8(n)
	copy(p.vals[:n], k.vals[:n])
	return p
}

// withUndef returns a copy of k where every column whose bit is set in mask
// is replaced by Undef.
func (k Key) withUndef(mask uint8) Key {
	for i := 0; i < int(k.width); i++ {
		if mask&(1<<i) != 0 {
			k.vals[i] = Undef
		}
	}
	return k
}

// UndefMask returns a bitmask with bit i set when column i is UNDEF.
func (k Key) UndefMask() uint8 {
	var mask uint8
	for i := 0; i < int(k.width); i++ {
		if k.vals[i].IsUndef() {
			mask |= 1 << i
		}
	}
	return mask
}

// HasUndef reports whether any join column is UNDEF.
func (k Key) HasUndef() bool {
	return k.UndefMask() != 0
}

func (k Key) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i := 0; i < int(k.width); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k.vals[i].String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Compare orders keys lexicographically, UNDEF being the minimum of every
// column. It returns -1, 0 or +1. Comparing keys of different widths is a
// contract violation.
func Compare(a, b Key) int {
	if a.width != b.width {
		contractViolationf("comparing keys of width %d and %d", a.width, b.width)
	}
	for i := 0; i < int(a.width); i++ {
		if a.vals[i] != b.vals[i] {
			if a.vals[i] < b.vals[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// IsCompatible reports whether every join column of a and b is equal or UNDEF
// on at least one side. The relation is reflexive and symmetric but not
// transitive.
func IsCompatible(a, b Key) bool {
	if a.width != b.width {
		contractViolationf("comparing keys of width %d and %d", a.width, b.width)
	}
	for i := 0; i < int(a.width); i++ {
		x, y := a.vals[i], b.vals[i]
		if x != y && !x.IsUndef() && !y.IsUndef() {
			return false
		}
	}
	return true
}

// comparePrefix compares only the first n columns of a and b.
func comparePrefix(a, b Key, n int) int {
	for i := 0; i < n; i++ {
		if a.vals[i] != b.vals[i] {
			if a.vals[i] < b.vals[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
