// ================================
// File: internal/router/errors.go
// ================================
package router

import (
	"context"
	"errors"
	"fmt"
)

// ErrRouteCalculationFailed means both the preferred route and the
// swap fallback failed; no usable route exists for the request.
var ErrRouteCalculationFailed = errors.New("route calculation failed")

// BranchTimeoutError marks one gather branch exceeding its deadline.
// Sibling branches keep running; only the late branch carries this.
type BranchTimeoutError struct {
	Branch string
}

func (e *BranchTimeoutError) Error() string {
	return fmt.Sprintf("route branch %q timed out", e.Branch)
}

// Is lets errors.Is treat a branch timeout as a deadline error.
func (e *BranchTimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// NewBranchTimeoutError builds a timeout error for the named branch.
func NewBranchTimeoutError(branch string) *BranchTimeoutError {
	return &BranchTimeoutError{Branch: branch}
}

// IsBranchTimeoutError reports whether err carries a branch timeout.
func IsBranchTimeoutError(err error) bool {
	var bte *BranchTimeoutError
	return errors.As(err, &bte)
}
