package join

import (
	"github.com/cockroachdb/errors"
)

// ContractViolation is the panic payload raised when a caller breaks a
// precondition of the join core: unsorted input, mismatched arity, UNDEF where
// it is not allowed, or a misused RowAdder.
type ContractViolation struct {
	cause error
}

func (c *ContractViolation) Error() string {
	return "join contract violation: " + c.cause.Error()
}

// Unwrap returns the underlying assertion failure.
func (c *ContractViolation) Unwrap() error {
	return c.cause
}

// contractViolationf panics with a *ContractViolation. It never returns.
func contractViolationf(format string, args ...any) {
	panic(&ContractViolation{cause: errors.AssertionFailedf(format, args...)})
}

// CatchContractViolation runs operation and converts a *ContractViolation
// panic into a returned error. Any other panic is re-raised.
func CatchContractViolation(operation func() error) (retErr error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cv, ok := r.(*ContractViolation)
		if !ok {
			panic(r)
		}
		retErr = cv
	}()
	return operation()
}

// IsContractViolation reports whether err is, or wraps, a contract violation.
func IsContractViolation(err error) bool {
	var cv *ContractViolation
	return errors.As(err, &cv)
}
