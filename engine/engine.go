package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/eigengo/comm"
	"github.com/hupe1980/eigengo/operator"
)

// Default marks a tolerance or iteration setting the engine chooses itself.
const Default = -2

const (
	defaultTolerance = 1e-8
	defaultNumModes  = 1
)

// Solver is an eigensolver engine context. It is bound to a communicator at
// creation and retains its own references on registered operator handles
// until they are replaced or the context is destroyed.
//
// A Solver is driven by one logical thread of control per rank and adds no
// locking of its own. All operations that touch distributed state are
// collective over the bound communicator.
type Solver struct {
	comm    *comm.Comm
	prefix  string
	metrics MetricsObserver

	a, b *operator.SparseMatrix

	tol    float64
	maxIt  int
	nev    int
	which  Which
	target float64
	st     *Transform

	destroyed bool

	solved bool
	nconv  int
	vals   []complex128
	vecsRe [][]float64 // global length, replicated
	vecsIm [][]float64
}

// Option configures a Solver at creation.
type Option func(*Solver)

// WithMetricsObserver attaches an instrumentation observer to the context.
func WithMetricsObserver(o MetricsObserver) Option {
	return func(s *Solver) {
		if o != nil {
			s.metrics = o
		}
	}
}

// NewSolver creates a context bound to c. Collective over c. The engine must
// have been initialized; the context counts against Finalize until Destroy.
func NewSolver(c *comm.Comm, opts ...Option) (*Solver, error) {
	if c == nil {
		return nil, errors.New("engine: communicator must not be nil")
	}
	if err := registerContext(); err != nil {
		return nil, err
	}
	s := &Solver{
		comm:    c,
		metrics: noopMetrics{},
		tol:     Default,
		maxIt:   Default,
		nev:     defaultNumModes,
		which:   LargestMagnitude,
		st:      &Transform{},
	}
	for _, fn := range opts {
		fn(s)
	}
	return s, nil
}

// SetOptionsPrefix scopes options-database lookups for this context: a key k
// is looked up as prefix+k.
func (s *Solver) SetOptionsPrefix(prefix string) error {
	if s.destroyed {
		return ErrContextDestroyed
	}
	s.prefix = prefix
	return nil
}

// OptionsPrefix returns the configured options prefix.
func (s *Solver) OptionsPrefix() string { return s.prefix }

// SetOperators registers the operators of the eigenproblem: A alone for a
// standard problem, A with B for a generalized one. The context retains its
// own references, so callers may destroy their handles as soon as this
// returns. Previously registered handles are released and previous solve
// results are discarded.
func (s *Solver) SetOperators(a, b *operator.SparseMatrix) error {
	if s.destroyed {
		return ErrContextDestroyed
	}
	if a == nil {
		return errors.New("engine: primary operator must not be nil")
	}
	if b != nil && !b.Layout().Equal(a.Layout()) {
		return &ErrLayoutMismatch{Context: "operators A and B"}
	}

	a.Retain()
	if b != nil {
		b.Retain()
	}
	s.releaseOperators()
	s.a, s.b = a, b

	s.solved = false
	s.nconv = 0
	s.vals, s.vecsRe, s.vecsIm = nil, nil, nil
	return nil
}

func (s *Solver) releaseOperators() {
	if s.a != nil {
		s.a.Destroy()
		s.a = nil
	}
	if s.b != nil {
		s.b.Destroy()
		s.b = nil
	}
}

// OperatorLayout returns the row layout of the registered primary operator.
func (s *Solver) OperatorLayout() (operator.Layout, error) {
	if s.a == nil {
		return operator.Layout{}, ErrNoOperators
	}
	return s.a.Layout(), nil
}

// SetTolerances configures the convergence tolerance and iteration budget.
// Pass Default for either to keep the engine's choice.
func (s *Solver) SetTolerances(tol float64, maxIt int) error {
	if tol != Default && tol <= 0 {
		return fmt.Errorf("engine: tolerance must be positive, got %g", tol)
	}
	if maxIt != Default && maxIt <= 0 {
		return fmt.Errorf("engine: iteration budget must be positive, got %d", maxIt)
	}
	s.tol, s.maxIt = tol, maxIt
	return nil
}

// Tolerances reports the current settings, Default sentinels preserved.
func (s *Solver) Tolerances() (tol float64, maxIt int) { return s.tol, s.maxIt }

// SetDimensions requests the number of eigenpairs to converge.
func (s *Solver) SetDimensions(nev int) error {
	if nev < 1 {
		return fmt.Errorf("engine: number of requested eigenpairs must be positive, got %d", nev)
	}
	s.nev = nev
	return nil
}

// Dimensions returns the requested number of eigenpairs.
func (s *Solver) Dimensions() int { return s.nev }

// SetWhich selects the eigenpair selection criterion.
func (s *Solver) SetWhich(w Which) error {
	if !validWhich(w) {
		return fmt.Errorf("engine: unknown eigenpair selection %d", int(w))
	}
	s.which = w
	return nil
}

// Which returns the configured selection criterion.
func (s *Solver) Which() Which { return s.which }

// SetTarget sets the target value used by target-based selection criteria
// and by the shift-invert transformation.
func (s *Solver) SetTarget(target float64) error {
	if s.destroyed {
		return ErrContextDestroyed
	}
	s.target = target
	return nil
}

// Target returns the configured target value.
func (s *Solver) Target() float64 { return s.target }

// SpectralTransform returns the transformation attached to this context.
func (s *Solver) SpectralTransform() *Transform { return s.st }

// SetFromOptions merges settings from the process options database, scoped by
// the context prefix. Recognized keys: tol, max_it, nev, which, target,
// st_type. Unset keys leave the corresponding setting untouched.
func (s *Solver) SetFromOptions() error {
	if s.destroyed {
		return ErrContextDestroyed
	}
	v := optionsDB()
	if v == nil {
		return ErrNotInitialized
	}

	applied := 0
	if key := s.prefix + "tol"; v.IsSet(key) {
		if err := s.SetTolerances(v.GetFloat64(key), s.maxIt); err != nil {
			return err
		}
		applied++
	}
	if key := s.prefix + "max_it"; v.IsSet(key) {
		if err := s.SetTolerances(s.tol, v.GetInt(key)); err != nil {
			return err
		}
		applied++
	}
	if key := s.prefix + "nev"; v.IsSet(key) {
		if err := s.SetDimensions(v.GetInt(key)); err != nil {
			return err
		}
		applied++
	}
	if key := s.prefix + "which"; v.IsSet(key) {
		w, err := ParseWhich(v.GetString(key))
		if err != nil {
			return err
		}
		if err := s.SetWhich(w); err != nil {
			return err
		}
		applied++
	}
	if key := s.prefix + "target"; v.IsSet(key) {
		if err := s.SetTarget(v.GetFloat64(key)); err != nil {
			return err
		}
		applied++
	}
	if key := s.prefix + "st_type"; v.IsSet(key) {
		k, err := ParseTransform(v.GetString(key))
		if err != nil {
			return err
		}
		if err := s.st.SetType(k); err != nil {
			return err
		}
		applied++
	}

	s.metrics.OptionsMerged(s.prefix, applied)
	return nil
}

// Converged reports the number of converged eigenpairs of the last solve.
func (s *Solver) Converged() int { return s.nconv }

// Eigenvalue returns the i-th converged eigenvalue. i must be in
// [0, Converged()).
func (s *Solver) Eigenvalue(i int) (re, im float64, err error) {
	if !s.solved {
		return 0, 0, ErrNotSolved
	}
	if i < 0 || i >= s.nconv {
		return 0, 0, &ErrIndexOutOfRange{Index: i, Converged: s.nconv}
	}
	return real(s.vals[i]), imag(s.vals[i]), nil
}

// Eigenvector writes the calling rank's block of the i-th eigenvector's real
// part into vr and, when vc is non-nil, the imaginary part into vc. Both
// vectors must carry bound storage and match the primary operator's layout.
func (s *Solver) Eigenvector(i int, vr, vc *operator.Vector) error {
	if !s.solved {
		return ErrNotSolved
	}
	if i < 0 || i >= s.nconv {
		return &ErrIndexOutOfRange{Index: i, Converged: s.nconv}
	}
	if vr == nil {
		return errors.New("engine: destination vector must not be nil")
	}
	layout := s.a.Layout()
	start, end := layout.Start(), layout.End()

	if !vr.Layout().Equal(layout) {
		return &ErrLayoutMismatch{Context: "eigenvector destination"}
	}
	dst, err := vr.LocalData()
	if err != nil {
		return err
	}
	copy(dst, s.vecsRe[i][start:end])

	if vc != nil {
		if !vc.Layout().Equal(layout) {
			return &ErrLayoutMismatch{Context: "eigenvector imaginary destination"}
		}
		dstIm, err := vc.LocalData()
		if err != nil {
			return err
		}
		copy(dstIm, s.vecsIm[i][start:end])
	}
	return nil
}

// Destroy releases the context and its operator references. The context must
// not be used afterwards. Destroying twice returns ErrContextDestroyed.
func (s *Solver) Destroy() error {
	if s.destroyed {
		return ErrContextDestroyed
	}
	s.releaseOperators()
	s.vals, s.vecsRe, s.vecsIm = nil, nil, nil
	s.destroyed = true
	unregisterContext()
	return nil
}
