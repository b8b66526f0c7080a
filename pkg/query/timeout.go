package query

import "time"

const (
	// DefaultJoinTimeout bounds a single join when neither the request nor
	// the config sets one.
	DefaultJoinTimeout = 30 * time.Second
	// MaxJoinTimeout is the longest timeout a single join may ask for.
	MaxJoinTimeout = 10 * time.Minute

	// DefaultBatchTimeout bounds a whole ExecuteBatch call.
	DefaultBatchTimeout = 5 * time.Minute
	// MinBatchTimeout is the shortest accepted batch timeout.
	MinBatchTimeout = 1 * time.Second
)

// TimeoutBounds normalizes caller-supplied timeouts. A zero Min or Max
// disables that bound.
type TimeoutBounds struct {
	Min     time.Duration
	Max     time.Duration
	Default time.Duration
}

var (
	// JoinTimeouts apply to one Execute call.
	JoinTimeouts = TimeoutBounds{Max: MaxJoinTimeout, Default: DefaultJoinTimeout}
	// BatchTimeouts apply to one ExecuteBatch call.
	BatchTimeouts = TimeoutBounds{Min: MinBatchTimeout, Default: DefaultBatchTimeout}
)

// Clamp returns d, the Default when d is unset or below Min, or Max when d
// is above it.
func (b TimeoutBounds) Clamp(d time.Duration) time.Duration {
	switch {
	case d <= 0, b.Min > 0 && d < b.Min:
		return b.Default
	case b.Max > 0 && d > b.Max:
		return b.Max
	default:
		return d
	}
}

// joinTimeout picks the request timeout over the configured one.
func (e *Executor) joinTimeout(req JoinRequest) time.Duration {
	if req.Timeout > 0 {
		return JoinTimeouts.Clamp(req.Timeout)
	}
	return JoinTimeouts.Clamp(e.config.Timeout)
}
