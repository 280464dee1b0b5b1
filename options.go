package eigengo

import "github.com/hupe1980/eigengo/engine"

type options struct {
	matrixFree bool
	logger     *Logger
	metrics    engine.MetricsObserver
}

// Option configures solver construction.
type Option func(*options)

// WithMatrixFree selects shell wrapping when operators are adapted to
// canonical form: instead of materializing an explicit sparse copy, the
// canonical handle forwards applications to the original operator.
func WithMatrixFree() Option {
	return func(o *options) {
		o.matrixFree = true
	}
}

// WithLogger sets the logger used by the solver. If l is nil, the default
// text logger is used.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsObserver attaches an instrumentation observer to the underlying
// engine context.
func WithMetricsObserver(o engine.MetricsObserver) Option {
	return func(opts *options) {
		opts.metrics = o
	}
}

func applyOptions(fns []Option) options {
	o := options{
		logger: NewLogger(nil),
	}
	for _, fn := range fns {
		fn(&o)
	}
	return o
}
