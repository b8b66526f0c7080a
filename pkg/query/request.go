package query

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dd0wney/cluso-mergejoin/pkg/join"
	"github.com/dd0wney/cluso-mergejoin/pkg/validation"
)

// JoinKind names one of the join entry points.
type JoinKind string

const (
	// KindInner is a plain merge join without UNDEF semantics.
	KindInner JoinKind = "inner"
	// KindOptional keeps unmatched left rows, without UNDEF semantics.
	KindOptional JoinKind = "optional"
	// KindUndefInner is an inner join where UNDEF matches any value.
	KindUndefInner JoinKind = "undef-inner"
	// KindUndefOptional is an optional join where UNDEF matches any value.
	KindUndefOptional JoinKind = "undef-optional"
	// KindSpecialOptional is the optional join whose left side may carry UNDEF
	// only in the last join column.
	KindSpecialOptional JoinKind = "special-optional"
)

// Kinds lists every JoinKind in a stable order.
var Kinds = []JoinKind{KindInner, KindOptional, KindUndefInner, KindUndefOptional, KindSpecialOptional}

// KindNames returns Kinds as strings.
func KindNames() []string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return names
}

// ParseKind converts a string to a JoinKind.
func ParseKind(s string) (JoinKind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

func (k JoinKind) optional() bool {
	return k == KindOptional || k == KindUndefOptional || k == KindSpecialOptional
}

func (k JoinKind) undefAware() bool {
	return k == KindUndefInner || k == KindUndefOptional
}

// JoinRequest describes one join of two sorted Sides of Rows. Both inputs
// carry their JoinColumns leading join columns followed by payload.
type JoinRequest struct {
	Kind        JoinKind
	Left        join.Side[join.Row]
	Right       join.Side[join.Row]
	JoinColumns int
	LeftWidth   int
	RightWidth  int

	// Timeout overrides the executor's timeout when positive.
	Timeout time.Duration
	// RequireNonEmpty turns an empty input of an inner join into a contract
	// violation.
	RequireNonEmpty bool
}

func (r JoinRequest) validate() error {
	if r.Left == nil || r.Right == nil {
		return errors.Wrap(ErrInvalidRequest, "both sides are required")
	}
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if err := validation.ValidateJoinShape(r.JoinColumns, r.LeftWidth, r.RightWidth); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid join request"), ErrInvalidRequest)
	}
	if r.Kind == KindSpecialOptional && r.JoinColumns < 2 {
		return errors.Wrapf(ErrInvalidRequest, "%s join needs at least 2 join columns, got %d", r.Kind, r.JoinColumns)
	}
	return nil
}

// JoinResult is the materialized output of one join.
type JoinResult struct {
	RunID string
	Kind  JoinKind
	// Rows holds JoinColumns merged join columns, then the left payload, then
	// the right payload (UNDEF for optional rows).
	Rows     []join.Row
	Stats    join.Stats
	Duration time.Duration
	// OutOfOrder reports that Rows are not sorted by join key.
	OutOfOrder bool
}
