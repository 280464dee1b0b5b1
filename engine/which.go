package engine

import (
	"fmt"
	"strings"
)

// Which selects the portion of the spectrum the solve converges toward.
type Which int

const (
	LargestMagnitude Which = iota
	SmallestMagnitude
	LargestReal
	SmallestReal
	LargestImaginary
	SmallestImaginary
	// TargetMagnitude selects eigenvalues closest to the target in modulus.
	TargetMagnitude
	// TargetReal selects eigenvalues whose real part is closest to the
	// target.
	TargetReal
)

func (w Which) String() string {
	switch w {
	case LargestMagnitude:
		return "largest_magnitude"
	case SmallestMagnitude:
		return "smallest_magnitude"
	case LargestReal:
		return "largest_real"
	case SmallestReal:
		return "smallest_real"
	case LargestImaginary:
		return "largest_imaginary"
	case SmallestImaginary:
		return "smallest_imaginary"
	case TargetMagnitude:
		return "target_magnitude"
	case TargetReal:
		return "target_real"
	default:
		return fmt.Sprintf("Which(%d)", int(w))
	}
}

// ParseWhich maps an options-database spelling to a Which.
func ParseWhich(s string) (Which, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "largest_magnitude":
		return LargestMagnitude, nil
	case "smallest_magnitude":
		return SmallestMagnitude, nil
	case "largest_real":
		return LargestReal, nil
	case "smallest_real":
		return SmallestReal, nil
	case "largest_imaginary":
		return LargestImaginary, nil
	case "smallest_imaginary":
		return SmallestImaginary, nil
	case "target_magnitude":
		return TargetMagnitude, nil
	case "target_real":
		return TargetReal, nil
	default:
		return 0, fmt.Errorf("engine: unknown eigenpair selection %q", s)
	}
}

func validWhich(w Which) bool {
	return w >= LargestMagnitude && w <= TargetReal
}
