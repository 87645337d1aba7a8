// =============================
// File: internal/uusd/errors.go
// =============================
package uusd

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks malformed or out-of-range caller input.
	// Local, never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidPriceData marks a price that cannot be calculated with,
	// such as a zero governance price when the governance leg is needed.
	ErrInvalidPriceData = errors.New("invalid price data")

	// ErrCorruptThresholdData marks a threshold value outside the sane
	// bounds. Surfaced to the caller, never clamped.
	ErrCorruptThresholdData = errors.New("corrupt threshold data")
)

// ChainReadError reports a failed on-chain read, naming the contract
// method or batch sub-call that failed. The engine never substitutes a
// fabricated value for a failed read; callers decide whether to retry.
type ChainReadError struct {
	Method string
	Err    error
}

func (e *ChainReadError) Error() string {
	return fmt.Sprintf("chain read %s failed: %v", e.Method, e.Err)
}

func (e *ChainReadError) Unwrap() error {
	return e.Err
}

// NewChainReadError wraps err with the failing method name.
func NewChainReadError(method string, err error) *ChainReadError {
	return &ChainReadError{Method: method, Err: err}
}

// IsChainReadError reports whether err is (or wraps) a ChainReadError.
func IsChainReadError(err error) bool {
	var cre *ChainReadError
	return errors.As(err, &cre)
}
