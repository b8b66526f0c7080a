package join

import (
	"sort"
)

// ProbeShape classifies a probe key by where its UNDEF columns are. The shape
// decides how FindSmallerUndefRanges narrows its search.
type ProbeShape uint8

const (
	// ShapeDefined has no UNDEF column. Only entries carrying UNDEF can be
	// smaller than the probe and still compatible with it.
	ShapeDefined ProbeShape = iota
	// ShapeTrailingUndef has UNDEF exactly in a non-empty trailing suffix of
	// columns. A fully UNDEF probe has this shape too.
	ShapeTrailingUndef
	// ShapeArbitrary has UNDEF columns followed by a defined column.
	ShapeArbitrary
)

func (s ProbeShape) String() string {
	switch s {
	case ShapeDefined:
		return "defined"
	case ShapeTrailingUndef:
		return "trailing-undef"
	case ShapeArbitrary:
		return "arbitrary"
	default:
		return "unknown"
	}
}

// ClassifyProbe returns the shape of k together with the number of leading
// defined columns.
func ClassifyProbe(k Key) (ProbeShape, int) {
	mask := k.UndefMask()
	if mask == 0 {
		return ShapeDefined, k.Width()
	}
	prefix := 0
	for prefix < k.Width() && !k.vals[prefix].IsUndef() {
		prefix++
	}
	// Trailing means every column from the first UNDEF on is UNDEF.
	all := uint8(1<<k.Width()) - 1
	if mask == all&^(uint8(1<<prefix)-1) {
		return ShapeTrailingUndef, prefix
	}
	return ShapeArbitrary, prefix
}

type posRange struct {
	begin, end int
}

// PositionIter yields, in increasing order, positions of a sorted key range
// whose entries are strictly smaller than a probe and compatible with it. It
// is lazy and can be restarted with Reset.
type PositionIter struct {
	keys   []Key
	probe  Key
	shape  ProbeShape
	ranges []posRange
	// filter makes Next check compatibility of every candidate, which only
	// the arbitrary shape needs.
	filter     bool
	outOfOrder *bool

	ri  int
	pos int
}

// FindSmallerUndefRanges returns the positions of keys (which must be sorted)
// that are strictly smaller than probe yet compatible with it. When the probe
// has UNDEF columns, joining it with such an entry produces a row that sorts
// after the probe; in that case *outOfOrder is set to true as soon as the
// first position is yielded. outOfOrder may be nil.
func FindSmallerUndefRanges(probe Key, keys []Key, outOfOrder *bool) *PositionIter {
	it := &PositionIter{keys: keys, probe: probe, outOfOrder: outOfOrder}
	if len(keys) == 0 {
		return it
	}
	if keys[0].Width() != probe.Width() {
		contractViolationf("probe of width %d against keys of width %d", probe.Width(), keys[0].Width())
	}

	shape, prefix := ClassifyProbe(probe)
	it.shape = shape
	switch shape {
	case ShapeDefined:
		it.ranges = rangesForDefinedProbe(probe, keys)
	case ShapeTrailingUndef:
		it.ranges = rangesForTrailingUndefProbe(probe, prefix, keys)
	case ShapeArbitrary:
		// No contiguous bound exists beyond "smaller than the probe".
		end := lowerBound(keys, probe, probe.Width())
		if end > 0 {
			it.ranges = []posRange{{0, end}}
		}
		it.filter = true
	}
	it.Reset()
	return it
}

// Shape returns the probe shape the iterator was specialized for.
func (it *PositionIter) Shape() ProbeShape {
	return it.shape
}

// Reset restarts the iteration from the first position.
func (it *PositionIter) Reset() {
	it.ri = 0
	if len(it.ranges) > 0 {
		it.pos = it.ranges[0].begin
	}
}

// Next returns the next position, or false when there are no more.
func (it *PositionIter) Next() (int, bool) {
	for it.ri < len(it.ranges) {
		r := it.ranges[it.ri]
		if it.pos >= r.end {
			it.ri++
			if it.ri < len(it.ranges) {
				it.pos = it.ranges[it.ri].begin
			}
			continue
		}
		p := it.pos
		it.pos++
		if it.filter && !IsCompatible(it.keys[p], it.probe) {
			continue
		}
		if it.shape != ShapeDefined && it.outOfOrder != nil {
			*it.outOfOrder = true
		}
		return p, true
	}
	return 0, false
}

// AppendTo drains the iterator into dst.
func (it *PositionIter) AppendTo(dst []int) []int {
	for {
		p, ok := it.Next()
		if !ok {
			return dst
		}
		dst = append(dst, p)
	}
}

// rangesForDefinedProbe enumerates every way of replacing a non-empty subset
// of the probe's columns by UNDEF. Each such pattern is an exact key, and its
// equal range holds entries that are smaller than and compatible with the
// probe. The ranges of distinct patterns are disjoint.
func rangesForDefinedProbe(probe Key, keys []Key) []posRange {
	w := probe.Width()
	var ranges []posRange
	for mask := uint8(1); mask < uint8(1)<<w; mask++ {
		pattern := probe.withUndef(mask)
		if r, ok := equalRange(keys, pattern, w); ok {
			ranges = append(ranges, r)
		}
	}
	sortRanges(ranges)
	return ranges
}

// rangesForTrailingUndefProbe is the same enumeration restricted to the
// defined prefix. The UNDEF suffix of the probe matches anything, so entries
// are bounded by a prefix search only.
func rangesForTrailingUndefProbe(probe Key, prefix int, keys []Key) []posRange {
	var ranges []posRange
	for mask := uint8(1); mask < uint8(1)<<prefix; mask++ {
		pattern := probe.withUndef(mask)
		if r, ok := equalRange(keys, pattern, prefix); ok {
			ranges = append(ranges, r)
		}
	}
	sortRanges(ranges)
	return ranges
}

func sortRanges(ranges []posRange) {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].begin < ranges[j].begin
	})
}

// lowerBound returns the first position whose first n columns are not less
// than those of k.
func lowerBound(keys []Key, k Key, n int) int {
	return sort.Search(len(keys), func(i int) bool {
		return comparePrefix(keys[i], k, n) >= 0
	})
}

// equalRange returns the positions whose first n columns equal those of k.
func equalRange(keys []Key, k Key, n int) (posRange, bool) {
	begin := lowerBound(keys, k, n)
	end := begin + sort.Search(len(keys)-begin, func(i int) bool {
		return comparePrefix(keys[begin+i], k, n) > 0
	})
	return posRange{begin, end}, begin < end
}
