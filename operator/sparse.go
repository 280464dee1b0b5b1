package operator

import (
	"fmt"
	"sync/atomic"
)

// Kind discriminates how a canonical matrix handle realizes its action.
type Kind int

const (
	// KindAssembled stores an explicit local CSR block.
	KindAssembled Kind = iota
	// KindShell forwards applications to a wrapped operator.
	KindShell
)

func (k Kind) String() string {
	switch k {
	case KindAssembled:
		return "assembled"
	case KindShell:
		return "shell"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// liveHandles counts canonical handles that have been created and not yet
// fully destroyed.
var liveHandles atomic.Int64

// LiveHandles reports the number of canonical matrix handles currently
// allocated. Intended for leak checking in tests.
func LiveHandles() int64 { return liveHandles.Load() }

// SparseMatrix is the canonical distributed sparse matrix handle the
// eigensolver engine accepts. Handles are reference counted: the engine
// retains registered operators with Retain, and every owner calls Destroy
// exactly once. The backing storage is dropped when the last reference goes.
type SparseMatrix struct {
	layout Layout
	kind   Kind
	csr    *CSRMatrix // kind == KindAssembled
	shell  Operator   // kind == KindShell
	refs   atomic.Int32
}

func newHandle(layout Layout, kind Kind) *SparseMatrix {
	m := &SparseMatrix{layout: layout, kind: kind}
	m.refs.Store(1)
	liveHandles.Add(1)
	return m
}

// NewAssembled wraps csr as a canonical assembled matrix. The CSR block is
// retained as-is; use FromCSR to convert with a copy.
func NewAssembled(csr *CSRMatrix) (*SparseMatrix, error) {
	if csr == nil {
		return nil, ErrNilOperator
	}
	m := newHandle(csr.layout, KindAssembled)
	m.csr = csr
	return m, nil
}

// NewShell wraps op matrix-free; applications of the handle forward to
// op.Apply and no explicit structure is stored.
func NewShell(op Operator) (*SparseMatrix, error) {
	if op == nil {
		return nil, ErrNilOperator
	}
	l := op.Layout()
	if l.isZero() {
		return nil, &ErrBadSparsity{Reason: "operator has no layout"}
	}
	m := newHandle(l, KindShell)
	m.shell = op
	return m, nil
}

// FromCSR converts the intermediate CSR representation into a new canonical
// handle the caller owns. PolicyAssemble deep-copies the sparse structure so
// the handle does not alias the source; PolicyShell forwards applications to
// the source matrix.
func FromCSR(src *CSRMatrix, policy Policy) (*SparseMatrix, error) {
	if src == nil {
		return nil, ErrNilOperator
	}
	switch policy {
	case PolicyAssemble:
		return NewAssembled(src.clone())
	case PolicyShell:
		return NewShell(src)
	default:
		return nil, fmt.Errorf("operator: unknown conversion policy %d", int(policy))
	}
}

// FromOperator builds a canonical handle from a generic operator using only
// its layout and apply interface. PolicyAssemble densifies the action one
// global unit vector at a time (collective over the layout's group) and
// compresses the result; PolicyShell wraps the operator directly.
func FromOperator(op Operator, policy Policy) (*SparseMatrix, error) {
	if op == nil {
		return nil, ErrNilOperator
	}
	switch policy {
	case PolicyShell:
		return NewShell(op)
	case PolicyAssemble:
		l := op.Layout()
		if l.isZero() {
			return nil, &ErrBadSparsity{Reason: "operator has no layout"}
		}
		csr, err := NewCSRFromDense(l, localDenseRows(op))
		if err != nil {
			return nil, err
		}
		return NewAssembled(csr)
	default:
		return nil, fmt.Errorf("operator: unknown conversion policy %d", int(policy))
	}
}

// localDenseRows materializes the calling rank's rows of op by applying it to
// every global unit vector. Collective.
func localDenseRows(op Operator) [][]float64 {
	l := op.Layout()
	n := l.GlobalSize()
	localN := l.LocalSize()
	start := l.Start()
	rows := make([][]float64, localN)
	for i := range rows {
		rows[i] = make([]float64, n)
	}
	x := make([]float64, localN)
	y := make([]float64, localN)
	for j := 0; j < n; j++ {
		owned := j >= start && j < start+localN
		if owned {
			x[j-start] = 1
		}
		op.Apply(x, y)
		if owned {
			x[j-start] = 0
		}
		for i := 0; i < localN; i++ {
			rows[i][j] = y[i]
		}
	}
	return rows
}

// Layout returns the row distribution.
func (m *SparseMatrix) Layout() Layout { return m.layout }

// Kind reports whether the handle is assembled or shell.
func (m *SparseMatrix) Kind() Kind { return m.kind }

// Retain adds a reference. Each Retain must be balanced by one Destroy.
func (m *SparseMatrix) Retain() {
	if m.refs.Add(1) <= 1 {
		panic("operator: Retain on destroyed matrix handle")
	}
}

// Destroy releases one reference; the handle is freed when the last
// reference is released. Destroying a freed handle panics: it indicates a
// double free in the caller's ownership accounting.
func (m *SparseMatrix) Destroy() {
	n := m.refs.Add(-1)
	switch {
	case n == 0:
		m.csr = nil
		m.shell = nil
		liveHandles.Add(-1)
	case n < 0:
		panic("operator: Destroy on already destroyed matrix handle")
	}
}

// destroyed reports whether the last reference is gone.
func (m *SparseMatrix) destroyed() bool { return m.refs.Load() <= 0 }

// Apply computes y = A·x, implementing Operator.
func (m *SparseMatrix) Apply(x, y []float64) {
	if m.destroyed() {
		panic("operator: Apply on destroyed matrix handle")
	}
	switch m.kind {
	case KindAssembled:
		m.csr.Apply(x, y)
	case KindShell:
		m.shell.Apply(x, y)
	}
}

// GatherDense returns the full global matrix in row-major order, replicated
// on every rank. Assembled handles expand their CSR rows; shell handles probe
// the wrapped operator with unit vectors. Collective.
func (m *SparseMatrix) GatherDense() []float64 {
	if m.destroyed() {
		panic("operator: GatherDense on destroyed matrix handle")
	}
	l := m.layout
	n := l.GlobalSize()
	localN := l.LocalSize()
	local := make([]float64, localN*n)
	switch m.kind {
	case KindAssembled:
		for i := 0; i < localN; i++ {
			cols, vals := m.csr.Row(i)
			row := local[i*n : (i+1)*n]
			for k, c := range cols {
				row[c] = vals[k]
			}
		}
	case KindShell:
		for i, row := range localDenseRows(m.shell) {
			copy(local[i*n:(i+1)*n], row)
		}
	}
	return l.Comm().Allgatherv(local)
}
