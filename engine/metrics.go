package engine

import "time"

// MetricsObserver receives engine-level instrumentation callbacks. The no-op
// default is used unless a Solver is created with WithMetricsObserver.
// Callbacks run on the goroutine driving the solver.
type MetricsObserver interface {
	// OptionsMerged fires each time external options are merged into a
	// context; applied is the number of recognized keys.
	OptionsMerged(prefix string, applied int)

	// SolveCompleted fires after each collective solve.
	SolveCompleted(duration time.Duration, converged int)
}

type noopMetrics struct{}

func (noopMetrics) OptionsMerged(string, int)         {}
func (noopMetrics) SolveCompleted(time.Duration, int) {}
