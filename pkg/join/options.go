package join

// Kind selects between inner and optional (left outer) semantics.
type Kind uint8

const (
	// Inner drops left rows without a match.
	Inner Kind = iota
	// Optional keeps unmatched left rows, with the right columns UNDEF.
	Optional
)

func (k Kind) String() string {
	switch k {
	case Inner:
		return "inner"
	case Optional:
		return "optional"
	default:
		return "unknown"
	}
}

// DefaultLookAhead is the number of blocks of one equal-key run that are
// buffered on the right side before their rows are emitted. Any value of at
// least one is correct.
const DefaultLookAhead = 4

// Option configures a join.
type Option func(*options)

type options struct {
	kind            Kind
	lookAhead       int
	requireNonEmpty bool
}

func buildOptions(opts []Option) options {
	o := options{kind: Inner, lookAhead: DefaultLookAhead}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithKind selects inner or optional semantics. The default is Inner.
func WithKind(k Kind) Option {
	return func(o *options) {
		if k != Inner && k != Optional {
			contractViolationf("unknown join kind %d", k)
		}
		o.kind = k
	}
}

// WithLookAhead sets how many blocks of a right-side run are buffered at once.
func WithLookAhead(blocks int) Option {
	return func(o *options) {
		if blocks < 1 {
			contractViolationf("look-ahead must be at least one block, got %d", blocks)
		}
		o.lookAhead = blocks
	}
}

// RequireNonEmpty makes an inner join treat an input without any rows as a
// contract violation. Callers use it when the planner has already proven both
// inputs non-empty.
func RequireNonEmpty() Option {
	return func(o *options) {
		o.requireNonEmpty = true
	}
}

// SideStats counts what a join pulled from one side.
type SideStats struct {
	Blocks      int
	EmptyBlocks int
	Rows        int
}

// Stats describes one join execution.
type Stats struct {
	Left  SideStats
	Right SideStats
	// Runs is the number of equal-key runs joined.
	Runs int
	// UndefProbes is the number of UndefRangeFinder lookups.
	UndefProbes int
	// RowsEmitted counts matched pairs handed to the RowAdder.
	RowsEmitted int
	// OptionalRows counts unmatched left rows handed to the RowAdder.
	OptionalRows int
}

// Result is returned by every join entry point.
type Result struct {
	Stats
	// OutOfOrder is set when the rows were handed to the RowAdder in an order
	// that is not sorted by join key, so the caller has to sort if it needs
	// sorted output.
	OutOfOrder bool
}
