package eigengo

import (
	"fmt"

	"github.com/hupe1980/eigengo/operator"
)

// Canonical is the result of adapting an arbitrary distributed operator to
// the engine's canonical sparse matrix form. The ownership tag records
// whether the adapter synthesized a new handle; Release consults it, so a
// borrowed handle can never be freed here and a synthesized one cannot leak.
type Canonical struct {
	Mat   *operator.SparseMatrix
	owned bool
}

// Owned reports whether Release will destroy the handle.
func (c Canonical) Owned() bool { return c.owned }

// Release destroys the handle if and only if the adapter synthesized it.
// Call exactly once per Canonical, after the engine has retained the handle.
func (c Canonical) Release() {
	if c.owned && c.Mat != nil {
		c.Mat.Destroy()
	}
}

// AdaptOperator produces a canonical sparse matrix handle for op.
//
// A handle already in canonical form is passed through unchanged and not
// owned. The intermediate CSR representation and generic operators are
// converted per policy into a new handle the caller owns and must Release.
// An operator no conversion can handle yields *ErrUnsupportedOperator.
func AdaptOperator(op operator.Operator, policy operator.Policy) (Canonical, error) {
	switch o := op.(type) {
	case nil:
		return Canonical{}, &ErrUnsupportedOperator{Type: "<nil>"}
	case *operator.SparseMatrix:
		return Canonical{Mat: o}, nil
	case *operator.CSRMatrix:
		m, err := operator.FromCSR(o, policy)
		if err != nil {
			return Canonical{}, &ErrUnsupportedOperator{Type: fmt.Sprintf("%T", op), cause: err}
		}
		return Canonical{Mat: m, owned: true}, nil
	default:
		m, err := operator.FromOperator(o, policy)
		if err != nil {
			return Canonical{}, &ErrUnsupportedOperator{Type: fmt.Sprintf("%T", op), cause: err}
		}
		return Canonical{Mat: m, owned: true}, nil
	}
}
