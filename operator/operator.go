package operator

import "fmt"

// Operator is a distributed linear operator. Apply computes y = A·x where x
// and y hold the calling rank's local blocks of the distributed vectors; any
// communication needed to read remote entries of x is internal to the
// implementation. Apply overwrites y. Apply is collective: every rank of the
// layout's group must call it with the same logical global vector.
type Operator interface {
	Layout() Layout
	Apply(x, y []float64)
}

// Policy selects how a non-canonical operator is converted to a canonical
// sparse matrix handle.
type Policy int

const (
	// PolicyAssemble materializes an explicit sparse copy.
	PolicyAssemble Policy = iota
	// PolicyShell wraps the operator matrix-free: applications of the
	// canonical handle forward to the original operator.
	PolicyShell
)

func (p Policy) String() string {
	switch p {
	case PolicyAssemble:
		return "assemble"
	case PolicyShell:
		return "shell"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}
