package engine

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"gonum.org/v1/gonum/lapack"
	lapackgonum "gonum.org/v1/gonum/lapack/gonum"
	"gonum.org/v1/gonum/mat"
)

// eigenpair is one candidate result of the backend: a finite generalized
// eigenvalue with the real and imaginary parts of its (global, replicated)
// right eigenvector.
type eigenpair struct {
	val   complex128
	vecRe []float64
	vecIm []float64
}

// Solve runs the collective eigensolve with the current configuration. It
// blocks until the backend completes; with fewer converged pairs than
// requested, the shortfall shows in Converged, not as an error.
//
// The dense backend is direct: it gathers the global operator pair on every
// rank, reduces the pencil to a standard eigenproblem, computes the full
// spectrum, filters candidates by residual against the configured tolerance
// and keeps the requested number of pairs in selection order. The iteration
// budget is accepted for configuration compatibility; a direct backend
// completes in one pass.
func (s *Solver) Solve() error {
	if s.destroyed {
		return ErrContextDestroyed
	}
	if s.a == nil {
		return ErrNoOperators
	}
	start := time.Now()

	n := s.a.Layout().GlobalSize()
	a0 := s.a.GatherDense()
	var b0 []float64
	if s.b != nil {
		b0 = s.b.GatherDense()
	} else {
		b0 = identityDense(n)
	}

	qa := a0
	sinvert := s.st.Type() == ShiftInvert
	switch {
	case sinvert:
		var err error
		qa, err = shiftInvertDense(a0, b0, s.target, n)
		if err != nil {
			return err
		}
	case s.b != nil:
		var err error
		qa, err = reducePencil(a0, b0, n)
		if err != nil {
			return err
		}
	}

	pairs, err := denseEigenpairs(qa, n)
	if err != nil {
		return err
	}

	if sinvert {
		pairs = mapBackShiftInvert(pairs, s.target)
	}

	tol := s.tol
	if tol == Default {
		tol = defaultTolerance
	}
	conv := pairs[:0]
	for _, p := range pairs {
		if relResidual(a0, b0, p, n) <= tol {
			conv = append(conv, p)
		}
	}

	sortPairs(conv, s.which, s.target)

	nconv := s.nev
	if nconv > len(conv) {
		nconv = len(conv)
	}
	s.vals = make([]complex128, nconv)
	s.vecsRe = make([][]float64, nconv)
	s.vecsIm = make([][]float64, nconv)
	for i := 0; i < nconv; i++ {
		s.vals[i] = conv[i].val
		s.vecsRe[i] = conv[i].vecRe
		s.vecsIm[i] = conv[i].vecIm
	}
	s.nconv = nconv
	s.solved = true

	s.metrics.SolveCompleted(time.Since(start), nconv)
	return nil
}

func identityDense(n int) []float64 {
	id := make([]float64, n*n)
	for i := 0; i < n; i++ {
		id[i*n+i] = 1
	}
	return id
}

// denseEigenpairs computes the full eigendecomposition of the dense matrix c
// with LAPACK's Dgeev. c is not modified. Complex conjugate pairs arrive
// packed in adjacent eigenvector columns and are unpacked here.
func denseEigenpairs(c []float64, n int) ([]eigenpair, error) {
	if n == 0 {
		return nil, nil
	}
	cw := append([]float64(nil), c...)
	wr := make([]float64, n)
	wi := make([]float64, n)
	vr := make([]float64, n*n)

	var impl lapackgonum.Implementation
	work := make([]float64, 1)
	impl.Dgeev(lapack.LeftEVNone, lapack.RightEVCompute, n,
		cw, n, wr, wi, nil, 1, vr, n, work, -1)
	lwork := int(work[0])
	if lwork < 4*n {
		lwork = 4 * n
	}
	work = make([]float64, lwork)
	first := impl.Dgeev(lapack.LeftEVNone, lapack.RightEVCompute, n,
		cw, n, wr, wi, nil, 1, vr, n, work, lwork)
	if first != 0 {
		return nil, errors.New("engine: eigenvalue iteration failed to converge")
	}

	pairs := make([]eigenpair, 0, n)
	for j := 0; j < n; j++ {
		re := make([]float64, n)
		im := make([]float64, n)
		switch {
		case wi[j] > 0:
			// First of a conjugate pair: columns j and j+1 hold the real
			// and imaginary parts.
			for i := 0; i < n; i++ {
				re[i] = vr[i*n+j]
				im[i] = vr[i*n+j+1]
			}
		case wi[j] < 0:
			for i := 0; i < n; i++ {
				re[i] = vr[i*n+j-1]
				im[i] = -vr[i*n+j]
			}
		default:
			for i := 0; i < n; i++ {
				re[i] = vr[i*n+j]
			}
		}
		pairs = append(pairs, eigenpair{val: complex(wr[j], wi[j]), vecRe: re, vecIm: im})
	}
	return pairs, nil
}

// reducePencil turns the generalized pencil (A, B) into the standard problem
// C = B⁻¹A. A singular B describes infinite eigenvalues, which the dense
// backend does not represent; it is reported as an error.
func reducePencil(a, b []float64, n int) ([]float64, error) {
	c, err := luSolveDense(b, a, n)
	if err != nil {
		return nil, fmt.Errorf("engine: reduce pencil to standard form: %w", err)
	}
	return c, nil
}

// shiftInvertDense forms C = (A − σB)⁻¹B. A singular shifted pencil means σ
// hits an eigenvalue exactly; that is a configuration error.
func shiftInvertDense(a, b []float64, sigma float64, n int) ([]float64, error) {
	shifted := make([]float64, n*n)
	for i := range shifted {
		shifted[i] = a[i] - sigma*b[i]
	}
	c, err := luSolveDense(shifted, b, n)
	if err != nil {
		return nil, fmt.Errorf("engine: shift-invert at target %g: %w", sigma, err)
	}
	return c, nil
}

// luSolveDense solves M·X = R for dense row-major n×n inputs. An exactly
// singular M is an error: the factorization leaves the result unwritten, so
// it must not be read. A finite condition number means the solve completed
// with reduced accuracy, which the residual filter catches downstream.
func luSolveDense(m, r []float64, n int) ([]float64, error) {
	var lu mat.LU
	lu.Factorize(mat.NewDense(n, n, m))

	var out mat.Dense
	if err := lu.SolveTo(&out, false, mat.NewDense(n, n, r)); err != nil {
		cond, ok := err.(mat.Condition)
		if !ok || math.IsInf(float64(cond), 1) {
			return nil, err
		}
	}

	raw := out.RawMatrix()
	res := make([]float64, n*n)
	for i := 0; i < n; i++ {
		copy(res[i*n:(i+1)*n], raw.Data[i*raw.Stride:i*raw.Stride+n])
	}
	return res, nil
}

// mapBackShiftInvert converts transformed eigenvalues θ of (A − σB)⁻¹B into
// eigenvalues of the original pencil: λ = σ + 1/θ. Zero θ corresponds to an
// infinite λ and is dropped. Eigenvectors carry over unchanged.
func mapBackShiftInvert(pairs []eigenpair, sigma float64) []eigenpair {
	out := pairs[:0]
	for _, p := range pairs {
		if p.val == 0 {
			continue
		}
		p.val = complex(sigma, 0) + 1/p.val
		out = append(out, p)
	}
	return out
}

// relResidual computes ‖(A − λB)v‖₂ / (‖v‖₂·(1 + |λ|)) in complex
// arithmetic over the dense pencil.
func relResidual(a, b []float64, p eigenpair, n int) float64 {
	lr, li := real(p.val), imag(p.val)
	var num, den float64
	for i := 0; i < n; i++ {
		arow := a[i*n : (i+1)*n]
		brow := b[i*n : (i+1)*n]
		var ar, ai, br, bi float64
		for k := 0; k < n; k++ {
			ar += arow[k] * p.vecRe[k]
			ai += arow[k] * p.vecIm[k]
			br += brow[k] * p.vecRe[k]
			bi += brow[k] * p.vecIm[k]
		}
		wr := ar - (lr*br - li*bi)
		wi := ai - (lr*bi + li*br)
		num += wr*wr + wi*wi
	}
	for k := 0; k < n; k++ {
		den += p.vecRe[k]*p.vecRe[k] + p.vecIm[k]*p.vecIm[k]
	}
	if den == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(num/den) / (1 + cmplx.Abs(p.val))
}

// sortPairs orders candidates by the selection criterion. Stable so that
// ties keep the backend's deterministic order on every rank.
func sortPairs(pairs []eigenpair, which Which, target float64) {
	var less func(a, b complex128) bool
	switch which {
	case LargestMagnitude:
		less = func(a, b complex128) bool { return cmplx.Abs(a) > cmplx.Abs(b) }
	case SmallestMagnitude:
		less = func(a, b complex128) bool { return cmplx.Abs(a) < cmplx.Abs(b) }
	case LargestReal:
		less = func(a, b complex128) bool { return real(a) > real(b) }
	case SmallestReal:
		less = func(a, b complex128) bool { return real(a) < real(b) }
	case LargestImaginary:
		less = func(a, b complex128) bool { return imag(a) > imag(b) }
	case SmallestImaginary:
		less = func(a, b complex128) bool { return imag(a) < imag(b) }
	case TargetMagnitude:
		t := complex(target, 0)
		less = func(a, b complex128) bool { return cmplx.Abs(a-t) < cmplx.Abs(b-t) }
	case TargetReal:
		less = func(a, b complex128) bool { return math.Abs(real(a)-target) < math.Abs(real(b)-target) }
	}
	sort.SliceStable(pairs, func(i, j int) bool { return less(pairs[i].val, pairs[j].val) })
}
