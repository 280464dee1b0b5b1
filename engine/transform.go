package engine

import (
	"fmt"
	"strings"
)

// TransformKind enumerates the spectral transformations a context supports.
type TransformKind int

const (
	// Shift leaves the spectrum in place.
	Shift TransformKind = iota
	// ShiftInvert solves on (A − σB)⁻¹B, reshaping the spectrum so
	// eigenvalues near the target σ converge first, and maps the results
	// back afterwards.
	ShiftInvert
)

func (k TransformKind) String() string {
	switch k {
	case Shift:
		return "shift"
	case ShiftInvert:
		return "sinvert"
	default:
		return fmt.Sprintf("TransformKind(%d)", int(k))
	}
}

// ParseTransform maps an options-database spelling to a TransformKind.
func ParseTransform(s string) (TransformKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shift":
		return Shift, nil
	case "sinvert", "shift_invert":
		return ShiftInvert, nil
	default:
		return 0, fmt.Errorf("engine: unknown spectral transformation %q", s)
	}
}

// Transform is the spectral transformation attached to a Solver context. It
// is created with the context and configured in place; the choice takes
// effect at the next Solve.
type Transform struct {
	kind TransformKind
}

// SetType selects the transformation kind.
func (t *Transform) SetType(k TransformKind) error {
	switch k {
	case Shift, ShiftInvert:
		t.kind = k
		return nil
	default:
		return fmt.Errorf("engine: unknown spectral transformation %d", int(k))
	}
}

// Type returns the configured transformation kind.
func (t *Transform) Type() TransformKind { return t.kind }
