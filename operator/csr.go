package operator

import "fmt"

// CSRMatrix is a distributed sparse matrix in compressed sparse row form:
// each rank stores its contiguous block of rows, with global column indices.
// It is the assembled intermediate representation handed over by upstream
// system formation. The eigensolver engine does not accept it directly; it
// must be adapted to a SparseMatrix first.
type CSRMatrix struct {
	layout Layout
	rowPtr []int
	cols   []int
	vals   []float64
}

// NewCSRMatrix builds a matrix from raw CSR arrays describing the calling
// rank's rows. rowPtr has LocalSize+1 entries; cols holds global column
// indices in [0, GlobalSize). The arrays are retained, not copied.
func NewCSRMatrix(layout Layout, rowPtr, cols []int, vals []float64) (*CSRMatrix, error) {
	if layout.isZero() {
		return nil, &ErrBadSparsity{Reason: "zero layout"}
	}
	localN := layout.LocalSize()
	if len(rowPtr) != localN+1 {
		return nil, &ErrBadSparsity{Reason: fmt.Sprintf("rowPtr has %d entries, want %d", len(rowPtr), localN+1)}
	}
	if rowPtr[0] != 0 {
		return nil, &ErrBadSparsity{Reason: "rowPtr must start at 0"}
	}
	nnz := rowPtr[localN]
	if len(cols) != nnz || len(vals) != nnz {
		return nil, &ErrBadSparsity{Reason: fmt.Sprintf("cols/vals have %d/%d entries, want %d", len(cols), len(vals), nnz)}
	}
	for i := 0; i < localN; i++ {
		if rowPtr[i+1] < rowPtr[i] {
			return nil, &ErrBadSparsity{Reason: fmt.Sprintf("rowPtr decreases at row %d", i)}
		}
	}
	n := layout.GlobalSize()
	for _, c := range cols {
		if c < 0 || c >= n {
			return nil, &ErrBadSparsity{Reason: fmt.Sprintf("column index %d out of range [0, %d)", c, n)}
		}
	}
	return &CSRMatrix{layout: layout, rowPtr: rowPtr, cols: cols, vals: vals}, nil
}

// NewCSRFromDense compresses the calling rank's dense row block, dropping
// exact zeros. rows holds LocalSize rows of GlobalSize entries each.
func NewCSRFromDense(layout Layout, rows [][]float64) (*CSRMatrix, error) {
	if layout.isZero() {
		return nil, &ErrBadSparsity{Reason: "zero layout"}
	}
	if len(rows) != layout.LocalSize() {
		return nil, &ErrSizeMismatch{Expected: layout.LocalSize(), Actual: len(rows)}
	}
	n := layout.GlobalSize()
	rowPtr := make([]int, 1, len(rows)+1)
	var cols []int
	var vals []float64
	for _, row := range rows {
		if len(row) != n {
			return nil, &ErrSizeMismatch{Expected: n, Actual: len(row)}
		}
		for j, v := range row {
			if v != 0 {
				cols = append(cols, j)
				vals = append(vals, v)
			}
		}
		rowPtr = append(rowPtr, len(vals))
	}
	return &CSRMatrix{layout: layout, rowPtr: rowPtr, cols: cols, vals: vals}, nil
}

// Layout returns the row distribution.
func (m *CSRMatrix) Layout() Layout { return m.layout }

// NNZ returns the number of stored entries on the calling rank.
func (m *CSRMatrix) NNZ() int { return m.rowPtr[len(m.rowPtr)-1] }

// Row returns the column indices and values of local row i. The returned
// slices alias the matrix storage and must not be modified.
func (m *CSRMatrix) Row(i int) (cols []int, vals []float64) {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	return m.cols[lo:hi], m.vals[lo:hi]
}

// RowPtr returns the local row pointer array. Read-only.
func (m *CSRMatrix) RowPtr() []int { return m.rowPtr }

// Cols returns the global column indices of the stored entries. Read-only.
func (m *CSRMatrix) Cols() []int { return m.cols }

// Vals returns the stored values. Read-only.
func (m *CSRMatrix) Vals() []float64 { return m.vals }

// Apply computes y = A·x. Collective: the local blocks of x are gathered to
// the full vector before the local sparse rows are applied.
func (m *CSRMatrix) Apply(x, y []float64) {
	gx := m.layout.comm.Allgatherv(x)
	for i := 0; i < m.layout.LocalSize(); i++ {
		cols, vals := m.Row(i)
		var sum float64
		for k, c := range cols {
			sum += vals[k] * gx[c]
		}
		y[i] = sum
	}
}

// clone deep-copies the local block.
func (m *CSRMatrix) clone() *CSRMatrix {
	return &CSRMatrix{
		layout: m.layout,
		rowPtr: append([]int(nil), m.rowPtr...),
		cols:   append([]int(nil), m.cols...),
		vals:   append([]float64(nil), m.vals...),
	}
}
