package operator

import (
	"errors"
	"fmt"
)

var (
	// ErrNilOperator is returned when a conversion is asked of a nil operator.
	ErrNilOperator = errors.New("operator: operator must not be nil")

	// ErrVectorBound is returned by Bind when the vector already has backing
	// storage.
	ErrVectorBound = errors.New("operator: vector already has backing storage")

	// ErrVectorUnbound is returned when local data of a placeholder vector is
	// accessed before a buffer has been bound.
	ErrVectorUnbound = errors.New("operator: vector has no backing storage")
)

// ErrSizeMismatch indicates a buffer or index array whose length does not
// match the distributed layout.
type ErrSizeMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("operator: size mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrBadSparsity indicates CSR arrays that do not describe a valid matrix
// over the given layout.
type ErrBadSparsity struct {
	Reason string
}

func (e *ErrBadSparsity) Error() string {
	return fmt.Sprintf("operator: invalid sparsity structure: %s", e.Reason)
}
