package query

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrContractViolation marks a join aborted because its inputs broke a
	// precondition of the join core (unsorted rows, wrong widths, misplaced
	// UNDEF). The original *join.ContractViolation stays reachable with
	// errors.As.
	ErrContractViolation = errors.New("join contract violation")

	// ErrTimeout marks a join that ran past its timeout.
	ErrTimeout = errors.New("join timed out")

	// ErrInvalidRequest marks a request rejected before any block was pulled.
	ErrInvalidRequest = errors.New("invalid join request")

	// ErrUnknownKind is returned for a JoinKind the executor cannot dispatch.
	ErrUnknownKind = errors.New("unknown join kind")

	errTimeoutAboveMax = errors.Newf("must not exceed %s", MaxJoinTimeout)
)

// status labels used for metrics and logs
const (
	statusSuccess           = "success"
	statusError             = "error"
	statusTimeout           = "timeout"
	statusContractViolation = "contract_violation"
)

func statusOf(err error) string {
	switch {
	case err == nil:
		return statusSuccess
	case errors.Is(err, ErrTimeout):
		return statusTimeout
	case errors.Is(err, ErrContractViolation):
		return statusContractViolation
	default:
		return statusError
	}
}
