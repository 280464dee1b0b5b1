package eigengo

import (
	"fmt"
	"time"

	"github.com/hupe1980/eigengo/comm"
	"github.com/hupe1980/eigengo/engine"
	"github.com/hupe1980/eigengo/operator"
)

// Which identifies the eigenpair-selection criterion: the rule the engine
// uses to choose which part of the spectrum to converge toward.
type Which int

const (
	LargestMagnitude Which = iota
	SmallestMagnitude
	LargestReal
	SmallestReal
	LargestImaginary
	SmallestImaginary
	// TargetMagnitude converges the eigenvalues closest to the target in
	// modulus. Requires SetTarget.
	TargetMagnitude
	// TargetReal converges the eigenvalues whose real part is closest to the
	// target. Requires SetTarget.
	TargetReal
)

// Transform identifies the spectral transformation applied before solving.
type Transform int

const (
	// TransformShift leaves the spectrum in place.
	TransformShift Transform = iota
	// TransformShiftInvert accelerates convergence toward eigenvalues near
	// the target value. Must be selected before Solve.
	TransformShiftInvert
)

// EigenSolver drives a distributed (generalized) eigenvalue solve. It owns
// one engine context for its whole lifetime and is used by one logical
// thread of control per rank; it adds no locking of its own.
//
// Every operation is collective over the construction communicator: all
// ranks must issue the same sequence of calls with semantically equal
// arguments.
type EigenSolver struct {
	eps    *engine.Solver
	logger *Logger

	matrixFree bool

	// tol and maxIt are pushed together because the engine configures them
	// as one setting; each keeps the engine default until first set.
	tol   float64
	maxIt int

	operatorSet bool
	customized  bool

	vr, vc *operator.Vector
}

// New creates a solver bound to c with the given options-database prefix.
// Collective over c. Construction failures (missing Init, finalized engine)
// are fatal: they indicate a broken process-wide lifecycle.
func New(c *comm.Comm, prefix string, optFns ...Option) *EigenSolver {
	opts := applyOptions(optFns)
	logger := opts.logger.WithPrefix(prefix)
	if c != nil {
		logger = logger.WithRank(c.Rank())
	}

	var engOpts []engine.Option
	if opts.metrics != nil {
		engOpts = append(engOpts, engine.WithMetricsObserver(opts.metrics))
	}
	eps, err := engine.NewSolver(c, engOpts...)
	if err != nil {
		fatal(logger, "NewSolver", err)
	}
	if err := eps.SetOptionsPrefix(prefix); err != nil {
		fatal(logger, "SetOptionsPrefix", err)
	}

	return &EigenSolver{
		eps:        eps,
		logger:     logger,
		matrixFree: opts.matrixFree,
		tol:        engine.Default,
		maxIt:      engine.Default,
	}
}

// Close destroys the engine context and discards cached eigenvector views.
// Collective over the construction communicator. The solver must not be used
// afterwards.
func (s *EigenSolver) Close() error {
	if s == nil {
		return nil
	}
	s.dropViews()
	return s.eps.Destroy()
}

func (s *EigenSolver) fatal(op string, err error) {
	fatal(s.logger, op, err)
}

func (s *EigenSolver) policy() operator.Policy {
	if s.matrixFree {
		return operator.PolicyShell
	}
	return operator.PolicyAssemble
}

// SetOperator registers the operator of a standard eigenproblem A·v = λ·v.
// Non-canonical operators are adapted first; a synthesized handle is
// released as soon as the engine has retained it. Cached eigenvector views
// are discarded because their layout derives from the registered operator.
func (s *EigenSolver) SetOperator(op operator.Operator) {
	ca, err := AdaptOperator(op, s.policy())
	if err != nil {
		s.fatal("AdaptOperator", err)
	}
	defer ca.Release()
	s.registerOperators(ca.Mat, nil)
}

// SetOperators registers the operator pair of a generalized eigenproblem
// A·v = λ·B·v. Both operators are adapted before either is registered, so
// registration is atomic from the caller's perspective.
func (s *EigenSolver) SetOperators(op, opB operator.Operator) {
	ca, err := AdaptOperator(op, s.policy())
	if err != nil {
		s.fatal("AdaptOperator", err)
	}
	defer ca.Release()

	cb, err := AdaptOperator(opB, s.policy())
	if err != nil {
		s.fatal("AdaptOperator", err)
	}
	defer cb.Release()

	s.registerOperators(ca.Mat, cb.Mat)
}

func (s *EigenSolver) registerOperators(a, b *operator.SparseMatrix) {
	if s.operatorSet {
		s.dropViews()
	}
	if err := s.eps.SetOperators(a, b); err != nil {
		s.fatal("SetOperators", err)
	}
	s.operatorSet = true
	s.customized = false
}

// dropViews discards cached eigenvector views. Their distributed layout is
// derived from the registered primary operator and may change with it.
func (s *EigenSolver) dropViews() {
	s.vr, s.vc = nil, nil
}

// SetTol sets the convergence tolerance. The engine keeps its own default
// until the first call.
func (s *EigenSolver) SetTol(tol float64) {
	s.tol = tol
	if err := s.eps.SetTolerances(s.tol, s.maxIt); err != nil {
		s.fatal("SetTolerances", err)
	}
}

// SetMaxIter bounds the iteration budget of the solve.
func (s *EigenSolver) SetMaxIter(maxIt int) {
	s.maxIt = maxIt
	if err := s.eps.SetTolerances(s.tol, s.maxIt); err != nil {
		s.fatal("SetTolerances", err)
	}
}

// SetNumModes requests the number of eigenpairs to converge.
func (s *EigenSolver) SetNumModes(numModes int) {
	if err := s.eps.SetDimensions(numModes); err != nil {
		s.fatal("SetDimensions", err)
	}
}

// SetWhichEigenpairs selects the eigenpair-selection criterion. An
// unrecognized value is a fatal configuration error.
func (s *EigenSolver) SetWhichEigenpairs(which Which) {
	var ew engine.Which
	switch which {
	case LargestMagnitude:
		ew = engine.LargestMagnitude
	case SmallestMagnitude:
		ew = engine.SmallestMagnitude
	case LargestReal:
		ew = engine.LargestReal
	case SmallestReal:
		ew = engine.SmallestReal
	case LargestImaginary:
		ew = engine.LargestImaginary
	case SmallestImaginary:
		ew = engine.SmallestImaginary
	case TargetMagnitude:
		ew = engine.TargetMagnitude
	case TargetReal:
		ew = engine.TargetReal
	default:
		s.fatal("SetWhichEigenpairs", fmt.Errorf("unknown eigenpair selection %d", int(which)))
	}
	if err := s.eps.SetWhich(ew); err != nil {
		s.fatal("SetWhichEigenpairs", err)
	}
}

// SetTarget sets the target value used by target-based selection and by the
// shift-invert transformation.
func (s *EigenSolver) SetTarget(target float64) {
	if err := s.eps.SetTarget(target); err != nil {
		s.fatal("SetTarget", err)
	}
}

// SetSpectralTransformation selects the spectral transformation. An
// unrecognized value is a fatal configuration error.
func (s *EigenSolver) SetSpectralTransformation(transform Transform) {
	st := s.eps.SpectralTransform()
	var err error
	switch transform {
	case TransformShift:
		err = st.SetType(engine.Shift)
	case TransformShiftInvert:
		err = st.SetType(engine.ShiftInvert)
	default:
		s.fatal("SetSpectralTransformation", fmt.Errorf("unknown spectral transformation %d", int(transform)))
	}
	if err != nil {
		s.fatal("SetSpectralTransformation", err)
	}
}

// Customize merges externally supplied options into the engine context. The
// merge runs at most once per solve cycle; registering operators starts a
// new cycle. Pass apply=false to latch the cycle as customized without
// merging, bypassing external overrides entirely.
func (s *EigenSolver) Customize(apply bool) {
	if !apply {
		s.customized = true
	}
	if !s.customized {
		if err := s.eps.SetFromOptions(); err != nil {
			s.fatal("SetFromOptions", err)
		}
	}
	s.customized = true
}

// Solve runs the collective eigensolve. It blocks until the engine converges
// or exhausts its iteration budget. Under-convergence is not an error: it is
// reported through GetNumConverged returning fewer pairs than requested.
func (s *EigenSolver) Solve() {
	start := time.Now()
	s.Customize(true)
	if err := s.eps.Solve(); err != nil {
		s.fatal("Solve", err)
	}
	s.logger.LogSolve(s.eps.Converged(), time.Since(start))
}

// GetNumConverged reports the number of converged eigenpairs. Meaningful
// once Solve has completed; zero before.
func (s *EigenSolver) GetNumConverged() int {
	return s.eps.Converged()
}

// GetEigenvalue returns the real part of the i-th converged eigenvalue,
// discarding any imaginary component. Valid for real-spectrum problems; i
// must be in [0, GetNumConverged()).
func (s *EigenSolver) GetEigenvalue(i int) float64 {
	re, _, err := s.eps.Eigenvalue(i)
	if err != nil {
		s.fatal("GetEigenvalue", err)
	}
	return re
}

// GetEigenvalueComplex returns both parts of the i-th converged eigenvalue.
// The imaginary part is zero for purely real eigenvalues.
func (s *EigenSolver) GetEigenvalueComplex(i int) (re, im float64) {
	re, im, err := s.eps.Eigenvalue(i)
	if err != nil {
		s.fatal("GetEigenvalue", err)
	}
	return re, im
}

// GetEigenvector writes the real part of the i-th eigenvector into buf,
// which must be sized to the local distributed length of the registered
// primary operator. The lazily created view borrows buf only for the
// duration of the call and is detached again before returning; buf need not
// stay valid across calls.
func (s *EigenSolver) GetEigenvector(i int, buf []float64) {
	s.ensureViews(false)
	release := s.bindView(s.vr, buf)
	defer release()
	if err := s.eps.Eigenvector(i, s.vr, nil); err != nil {
		s.fatal("GetEigenvector", err)
	}
}

// GetEigenvectorComplex writes the real part of the i-th eigenvector into
// bufR and the imaginary part into bufC, under the same borrowing contract
// as GetEigenvector.
func (s *EigenSolver) GetEigenvectorComplex(i int, bufR, bufC []float64) {
	s.ensureViews(true)
	releaseR := s.bindView(s.vr, bufR)
	defer releaseR()
	releaseC := s.bindView(s.vc, bufC)
	defer releaseC()
	if err := s.eps.Eigenvector(i, s.vr, s.vc); err != nil {
		s.fatal("GetEigenvector", err)
	}
}

// ensureViews lazily allocates the vector views against the registered
// primary operator's row layout.
func (s *EigenSolver) ensureViews(complexPart bool) {
	if s.vr != nil && (!complexPart || s.vc != nil) {
		return
	}
	layout, err := s.eps.OperatorLayout()
	if err != nil {
		s.fatal("GetEigenvector", err)
	}
	if s.vr == nil {
		s.vr = operator.NewPlaceholder(layout)
	}
	if complexPart && s.vc == nil {
		s.vc = operator.NewPlaceholder(layout)
	}
}

func (s *EigenSolver) bindView(v *operator.Vector, buf []float64) func() {
	release, err := v.Bind(buf)
	if err != nil {
		s.fatal("GetEigenvector", err)
	}
	return release
}
