package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidParameter indicates a horizon, step size or initial state that
	// violates its contract. Raised before any state is produced.
	ErrInvalidParameter = errors.New("dynamo: invalid parameter")

	// ErrDimensionMismatch indicates a vector whose length does not match the
	// number of particles.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")
)

// ParameterError names the input that failed validation.
type ParameterError struct {
	Param  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

func (e *ParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// InvalidParam builds a ParameterError with a formatted reason.
func InvalidParam(param, format string, args ...any) error {
	return &ParameterError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// DimensionError reports a length mismatch. Step is the time step at which
// the mismatch was detected, or -1 when it was found during validation; in
// the latter case the error also matches ErrInvalidParameter.
type DimensionError struct {
	Input string
	Want  int
	Got   int
	Step  int
}

func (e *DimensionError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("%s: expected length %d, got %d", e.Input, e.Want, e.Got)
	}
	return fmt.Sprintf("step %d: %s returned length %d, expected 1 or %d", e.Step, e.Input, e.Got, e.Want)
}

func (e *DimensionError) Is(target error) bool {
	if target == ErrDimensionMismatch {
		return true
	}
	return e.Step < 0 && target == ErrInvalidParameter
}

// UserFunctionError wraps an error returned by a drift or diffusion term.
// The original error is reachable through errors.Is and errors.As.
type UserFunctionError struct {
	Func string
	Step int
	Err  error
}

func (e *UserFunctionError) Error() string {
	return fmt.Sprintf("step %d: %s: %v", e.Step, e.Func, e.Err)
}

func (e *UserFunctionError) Unwrap() error {
	return e.Err
}
