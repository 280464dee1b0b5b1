package eigengo_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eigengo "github.com/hupe1980/eigengo"
	"github.com/hupe1980/eigengo/comm"
	"github.com/hupe1980/eigengo/engine"
	"github.com/hupe1980/eigengo/operator"
)

func TestMain(m *testing.M) {
	eigengo.Init()
	code := m.Run()
	eigengo.Finalize()
	os.Exit(code)
}

// diagCSR builds the calling rank's block of a global diagonal matrix.
func diagCSR(t testing.TB, c *comm.Comm, diag []float64) *operator.CSRMatrix {
	layout := operator.SplitLayout(c, len(diag))
	rowPtr := make([]int, layout.LocalSize()+1)
	cols := make([]int, 0, layout.LocalSize())
	vals := make([]float64, 0, layout.LocalSize())
	for i := 0; i < layout.LocalSize(); i++ {
		rowPtr[i+1] = i + 1
		cols = append(cols, layout.Start()+i)
		vals = append(vals, diag[layout.Start()+i])
	}
	csr, err := operator.NewCSRMatrix(layout, rowPtr, cols, vals)
	require.NoError(t, err)
	return csr
}

func diagCSRerr(c *comm.Comm, diag []float64) (*operator.CSRMatrix, error) {
	layout := operator.SplitLayout(c, len(diag))
	rowPtr := make([]int, layout.LocalSize()+1)
	cols := make([]int, 0, layout.LocalSize())
	vals := make([]float64, 0, layout.LocalSize())
	for i := 0; i < layout.LocalSize(); i++ {
		rowPtr[i+1] = i + 1
		cols = append(cols, layout.Start()+i)
		vals = append(vals, diag[layout.Start()+i])
	}
	return operator.NewCSRMatrix(layout, rowPtr, cols, vals)
}

// requireFatal runs fn, which must panic with *eigengo.FatalError, and
// returns the recovered error.
func requireFatal(t *testing.T, fn func()) *eigengo.FatalError {
	t.Helper()
	var fe *eigengo.FatalError
	func() {
		defer func() {
			t.Helper()
			r := recover()
			require.NotNil(t, r, "expected a fatal panic")
			var ok bool
			fe, ok = r.(*eigengo.FatalError)
			require.True(t, ok, "panic value %v is not a *FatalError", r)
		}()
		fn()
	}()
	return fe
}

func TestEigenSolver_StandardProblem(t *testing.T) {
	c := comm.Self()
	es := eigengo.New(c, "std_", eigengo.WithLogger(eigengo.NoopLogger()))
	defer es.Close()

	es.SetOperator(diagCSR(t, c, []float64{3, 1, 2}))
	es.SetNumModes(3)
	es.SetWhichEigenpairs(eigengo.SmallestReal)
	es.Solve()

	require.Equal(t, 3, es.GetNumConverged())
	assert.InDelta(t, 1.0, es.GetEigenvalue(0), 1e-10)
	assert.InDelta(t, 2.0, es.GetEigenvalue(1), 1e-10)
	assert.InDelta(t, 3.0, es.GetEigenvalue(2), 1e-10)

	// The smallest mode of diag{3,1,2} is the second coordinate axis,
	// up to sign.
	buf := make([]float64, 3)
	es.GetEigenvector(0, buf)
	assert.InDelta(t, 1.0, math.Abs(buf[1]), 1e-10)
	assert.InDelta(t, 0.0, buf[0], 1e-10)
	assert.InDelta(t, 0.0, buf[2], 1e-10)
}

func TestEigenSolver_GeneralizedTwoRanks(t *testing.T) {
	err := comm.Run(2, func(c *comm.Comm) error {
		a, err := diagCSRerr(c, []float64{2, 4, 6, 8})
		if err != nil {
			return err
		}
		b, err := diagCSRerr(c, []float64{2, 2, 2, 2})
		if err != nil {
			return err
		}

		es := eigengo.New(c, "gen_", eigengo.WithLogger(eigengo.NoopLogger()))
		defer es.Close()

		es.SetOperators(a, b)
		es.SetNumModes(4)
		es.SetWhichEigenpairs(eigengo.SmallestReal)
		es.Solve()

		if got := es.GetNumConverged(); got != 4 {
			return fmt.Errorf("rank %d: converged %d, want 4", c.Rank(), got)
		}
		for i, want := range []float64{1, 2, 3, 4} {
			if got := es.GetEigenvalue(i); math.Abs(got-want) > 1e-10 {
				return fmt.Errorf("rank %d: eigenvalue %d = %v, want %v", c.Rank(), i, got, want)
			}
		}

		// Each rank sees only its two local entries of the global mode.
		buf := make([]float64, 2)
		es.GetEigenvector(0, buf)
		var norm float64
		for _, v := range buf {
			norm += v * v
		}
		if c.Rank() == 0 && math.Abs(norm-1) > 1e-10 {
			return fmt.Errorf("rank 0: local mode norm %v, want 1", norm)
		}
		if c.Rank() == 1 && norm > 1e-10 {
			return fmt.Errorf("rank 1: local mode norm %v, want 0", norm)
		}
		return nil
	})
	require.NoError(t, err)
}

// observerSpy counts engine instrumentation callbacks.
func TestEigenSolver_GeneralizedIdentityThreeRanks(t *testing.T) {
	err := comm.Run(3, func(c *comm.Comm) error {
		a, err := diagCSRerr(c, []float64{1, 2, 3})
		if err != nil {
			return err
		}
		b, err := diagCSRerr(c, []float64{1, 1, 1})
		if err != nil {
			return err
		}

		es := eigengo.New(c, "genid_", eigengo.WithLogger(eigengo.NoopLogger()))
		defer es.Close()

		es.SetOperators(a, b)
		es.SetNumModes(3)
		es.SetWhichEigenpairs(eigengo.SmallestReal)
		es.Solve()

		if got := es.GetNumConverged(); got != 3 {
			return fmt.Errorf("rank %d: converged %d, want 3", c.Rank(), got)
		}
		for i, want := range []float64{1, 2, 3} {
			if got := es.GetEigenvalue(i); math.Abs(got-want) > 1e-10 {
				return fmt.Errorf("rank %d: eigenvalue %d = %v, want %v", c.Rank(), i, got, want)
			}
		}

		// Each rank owns exactly one row; mode i lives on rank i alone.
		buf := make([]float64, 1)
		for i := 0; i < 3; i++ {
			es.GetEigenvector(i, buf)
			want := 0.0
			if c.Rank() == i {
				want = 1.0
			}
			if math.Abs(math.Abs(buf[0])-want) > 1e-10 {
				return fmt.Errorf("rank %d: mode %d local entry %v", c.Rank(), i, buf[0])
			}
		}
		return nil
	})
	require.NoError(t, err)
}

type observerSpy struct {
	merges int
	solves int
}

func (o *observerSpy) OptionsMerged(string, int) { o.merges++ }

func (o *observerSpy) SolveCompleted(time.Duration, int) { o.solves++ }

func TestEigenSolver_CustomizeOncePerCycle(t *testing.T) {
	c := comm.Self()
	obs := &observerSpy{}
	es := eigengo.New(c, "latch_",
		eigengo.WithLogger(eigengo.NoopLogger()),
		eigengo.WithMetricsObserver(obs),
	)
	defer es.Close()

	es.SetOperator(diagCSR(t, c, []float64{1, 2}))
	es.Solve()
	es.Solve()
	assert.Equal(t, 1, obs.merges, "repeated solves must not re-merge options")

	// Registering operators starts a new customization cycle.
	es.SetOperator(diagCSR(t, c, []float64{5, 6}))
	es.Solve()
	assert.Equal(t, 2, obs.merges)
}

func TestEigenSolver_CustomizeBypass(t *testing.T) {
	c := comm.Self()
	obs := &observerSpy{}
	es := eigengo.New(c, "bypass_",
		eigengo.WithLogger(eigengo.NoopLogger()),
		eigengo.WithMetricsObserver(obs),
	)
	defer es.Close()

	es.SetOperator(diagCSR(t, c, []float64{1, 2}))
	es.Customize(false)
	es.Solve()
	assert.Zero(t, obs.merges, "Customize(false) must suppress the merge for the cycle")
}

func TestEigenSolver_OperatorSwapInvalidatesViews(t *testing.T) {
	c := comm.Self()
	es := eigengo.New(c, "swap_", eigengo.WithLogger(eigengo.NoopLogger()))
	defer es.Close()

	es.SetOperator(diagCSR(t, c, []float64{1, 2, 3}))
	es.SetNumModes(1)
	es.SetWhichEigenpairs(eigengo.SmallestReal)
	es.Solve()
	buf3 := make([]float64, 3)
	es.GetEigenvector(0, buf3)

	// After registering an operator of a different size the views must be
	// rebuilt against the new layout.
	es.SetOperator(diagCSR(t, c, []float64{1, 2, 3, 4}))
	es.Solve()
	buf4 := make([]float64, 4)
	es.GetEigenvector(0, buf4)
	assert.InDelta(t, 1.0, math.Abs(buf4[0]), 1e-10)
}

func TestEigenSolver_EigenvectorBuffersIndependent(t *testing.T) {
	c := comm.Self()
	es := eigengo.New(c, "bufs_", eigengo.WithLogger(eigengo.NoopLogger()))
	defer es.Close()

	es.SetOperator(diagCSR(t, c, []float64{1, 2}))
	es.SetNumModes(2)
	es.SetWhichEigenpairs(eigengo.SmallestReal)
	es.Solve()
	require.Equal(t, 2, es.GetNumConverged())

	first := make([]float64, 2)
	second := make([]float64, 2)
	es.GetEigenvector(0, first)
	es.GetEigenvector(1, second)

	// The view borrows each buffer only for the duration of the call, so
	// the earlier result must survive the later retrieval.
	assert.InDelta(t, 1.0, math.Abs(first[0]), 1e-10)
	assert.InDelta(t, 1.0, math.Abs(second[1]), 1e-10)
}

func TestEigenSolver_ComplexPair(t *testing.T) {
	c := comm.Self()
	layout := operator.SplitLayout(c, 2)
	rot, err := operator.NewCSRFromDense(layout, [][]float64{
		{0, -1},
		{1, 0},
	})
	require.NoError(t, err)

	es := eigengo.New(c, "rot_", eigengo.WithLogger(eigengo.NoopLogger()))
	defer es.Close()

	es.SetOperator(rot)
	es.SetNumModes(2)
	es.SetWhichEigenpairs(eigengo.LargestImaginary)
	es.Solve()
	require.Equal(t, 2, es.GetNumConverged())

	re, im := es.GetEigenvalueComplex(0)
	assert.InDelta(t, 0.0, re, 1e-10)
	assert.InDelta(t, 1.0, im, 1e-10)

	// Check A·v = i·v for the retrieved complex vector instead of pinning
	// the backend's normalization.
	bufR := make([]float64, 2)
	bufC := make([]float64, 2)
	es.GetEigenvectorComplex(0, bufR, bufC)
	v0 := complex(bufR[0], bufC[0])
	v1 := complex(bufR[1], bufC[1])
	assert.InDelta(t, 0.0, cmplx.Abs(-v1-complex(0, 1)*v0), 1e-10)
	assert.InDelta(t, 0.0, cmplx.Abs(v0-complex(0, 1)*v1), 1e-10)
}

func TestEigenSolver_LogsCarryPrefixAndRank(t *testing.T) {
	var buf bytes.Buffer
	logger := eigengo.NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	c := comm.Self()
	es := eigengo.New(c, "tagged_", eigengo.WithLogger(logger))
	defer es.Close()

	es.SetOperator(diagCSR(t, c, []float64{1}))
	es.Solve()

	out := buf.String()
	assert.Contains(t, out, "prefix=tagged_")
	assert.Contains(t, out, "rank=0")
}

func TestEigenSolver_OutOfRangeIsFatal(t *testing.T) {
	c := comm.Self()
	es := eigengo.New(c, "oob_", eigengo.WithLogger(eigengo.NoopLogger()))
	defer es.Close()

	es.SetOperator(diagCSR(t, c, []float64{1, 2}))
	es.SetNumModes(2)
	es.Solve()

	fe := requireFatal(t, func() { es.GetEigenvalue(99) })
	var oob *engine.ErrIndexOutOfRange
	require.ErrorAs(t, fe, &oob)
	assert.Equal(t, 99, oob.Index)
}

func TestEigenSolver_RetrieveBeforeSolveIsFatal(t *testing.T) {
	c := comm.Self()
	es := eigengo.New(c, "early_", eigengo.WithLogger(eigengo.NoopLogger()))
	defer es.Close()

	es.SetOperator(diagCSR(t, c, []float64{1, 2}))

	fe := requireFatal(t, func() { es.GetEigenvalue(0) })
	assert.True(t, errors.Is(fe, engine.ErrNotSolved))
}

func TestEigenSolver_UnknownWhichIsFatal(t *testing.T) {
	c := comm.Self()
	es := eigengo.New(c, "badw_", eigengo.WithLogger(eigengo.NoopLogger()))
	defer es.Close()

	requireFatal(t, func() { es.SetWhichEigenpairs(eigengo.Which(42)) })
	requireFatal(t, func() { es.SetSpectralTransformation(eigengo.Transform(42)) })
}

func TestEigenSolver_SolveWithoutOperatorIsFatal(t *testing.T) {
	c := comm.Self()
	es := eigengo.New(c, "noop_", eigengo.WithLogger(eigengo.NoopLogger()))
	defer es.Close()

	fe := requireFatal(t, func() { es.Solve() })
	assert.True(t, errors.Is(fe, engine.ErrNoOperators))
}
