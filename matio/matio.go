// Package matio persists assembled sparse matrices as compressed binary
// snapshots.
//
// A snapshot stores one rank's CSR block behind a magic/version header,
// gzip-compressed. Reading the snapshot back rebuilds the block over the
// communicator passed to ReadCSR; a whole matrix is typically checkpointed
// under a single-rank communicator.
//
// Snapshot format is a breaking-change boundary: bytes written by a
// different version may refuse to decode.
package matio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/hupe1980/eigengo/comm"
	"github.com/hupe1980/eigengo/operator"
)

const (
	magic   = "EIGM"
	version = uint16(1)
)

// ErrBadSnapshot is returned when snapshot bytes are malformed or carry an
// unsupported version.
var ErrBadSnapshot = errors.New("matio: malformed snapshot")

type header struct {
	LocalRows  uint64
	GlobalCols uint64
	NNZ        uint64
}

// WriteCSR writes the calling rank's block of m to w.
func WriteCSR(w io.Writer, m *operator.CSRMatrix) error {
	if m == nil {
		return operator.ErrNilOperator
	}
	zw := gzip.NewWriter(w)

	if _, err := zw.Write([]byte(magic)); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, version); err != nil {
		return err
	}
	layout := m.Layout()
	h := header{
		LocalRows:  uint64(layout.LocalSize()),
		GlobalCols: uint64(layout.GlobalSize()),
		NNZ:        uint64(m.NNZ()),
	}
	if err := binary.Write(zw, binary.LittleEndian, h); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, toInt64(m.RowPtr())); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, toInt64(m.Cols())); err != nil {
		return err
	}
	if err := binary.Write(zw, binary.LittleEndian, m.Vals()); err != nil {
		return err
	}
	return zw.Close()
}

// ReadCSR reads a snapshot written by WriteCSR and rebuilds the block over c.
// Collective over c: the row layout is reconstructed from the per-rank local
// row counts, so every rank must read the snapshot matching its rank.
func ReadCSR(r io.Reader, c *comm.Comm) (*operator.CSRMatrix, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	defer zr.Close()

	buf := make([]byte, len(magic))
	if _, err := io.ReadFull(zr, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if string(buf) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadSnapshot, buf)
	}
	var ver uint16
	if err := binary.Read(zr, binary.LittleEndian, &ver); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if ver != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, ver)
	}
	var h header
	if err := binary.Read(zr, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	rowPtr64 := make([]int64, h.LocalRows+1)
	if err := binary.Read(zr, binary.LittleEndian, rowPtr64); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	cols64 := make([]int64, h.NNZ)
	if err := binary.Read(zr, binary.LittleEndian, cols64); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	vals := make([]float64, h.NNZ)
	if err := binary.Read(zr, binary.LittleEndian, vals); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	layout := operator.NewLayout(c, int(h.LocalRows))
	if layout.GlobalSize() != int(h.GlobalCols) {
		return nil, fmt.Errorf("%w: snapshot describes %d global rows, group rebuilds %d",
			ErrBadSnapshot, h.GlobalCols, layout.GlobalSize())
	}
	m, err := operator.NewCSRMatrix(layout, toInt(rowPtr64), toInt(cols64), vals)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	return m, nil
}

func toInt64(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

func toInt(v []int64) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
