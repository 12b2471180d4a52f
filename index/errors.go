package index

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTrained is returned when vectors are added to an untrained index.
	ErrNotTrained = errors.New("index: not trained")

	// ErrInvalidK is returned for a non-positive k.
	ErrInvalidK = errors.New("index: k must be positive")

	// ErrUnknownType is returned when no loader is registered for a type.
	ErrUnknownType = errors.New("index: unknown type")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// CheckDimension returns *ErrDimensionMismatch when v does not have dim
// components.
func CheckDimension(v []float32, dim int) error {
	if len(v) != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}
	return nil
}
