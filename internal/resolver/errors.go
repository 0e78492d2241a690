package resolver

import (
	"errors"
	"fmt"
)

// ResolutionErrorCode categorizes resolution failures.
type ResolutionErrorCode string

const (
	// ErrCodeCycle indicates a method's effect depends on itself through
	// its override chain (only possible in a cyclic hierarchy).
	ErrCodeCycle ResolutionErrorCode = "RESOLVE_CYCLE"

	// ErrCodeUnknownMethod indicates the method's declaring type is not
	// part of the program.
	ErrCodeUnknownMethod ResolutionErrorCode = "RESOLVE_UNKNOWN_METHOD"
)

// ResolutionError is returned at the resolution boundary (Explain). The
// checking pass itself never sees it: DeclaredEffect falls back to MayAlloc.
type ResolutionError struct {
	Code    ResolutionErrorCode
	Method  string
	Message string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s (method=%s)", e.Code, e.Message, e.Method)
}

// IsCycleError reports whether err is a resolution cycle.
func IsCycleError(err error) bool {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCycle
	}
	return false
}
