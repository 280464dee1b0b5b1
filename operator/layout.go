package operator

import (
	"fmt"

	"github.com/hupe1980/eigengo/comm"
)

// Layout describes a contiguous row-block distribution of a global index
// space over the ranks of a communicator. Rank r owns global rows
// [offsets[r], offsets[r+1]).
type Layout struct {
	comm    *comm.Comm
	counts  []int
	offsets []int
}

// NewLayout builds the distribution in which the calling rank owns localSize
// rows. Collective over c.
func NewLayout(c *comm.Comm, localSize int) Layout {
	if localSize < 0 {
		panic(fmt.Sprintf("operator: negative local size %d", localSize))
	}
	counts := c.AllgatherInt(localSize)
	offsets := make([]int, len(counts)+1)
	for i, n := range counts {
		offsets[i+1] = offsets[i] + n
	}
	return Layout{comm: c, counts: counts, offsets: offsets}
}

// SplitLayout distributes globalSize rows over the ranks of c in near-equal
// contiguous blocks, the leading ranks taking one extra row each when the
// division is uneven. Collective over c.
func SplitLayout(c *comm.Comm, globalSize int) Layout {
	if globalSize < 0 {
		panic(fmt.Sprintf("operator: negative global size %d", globalSize))
	}
	local := globalSize / c.Size()
	if c.Rank() < globalSize%c.Size() {
		local++
	}
	return NewLayout(c, local)
}

// Comm returns the communicator the layout is defined over.
func (l Layout) Comm() *comm.Comm { return l.comm }

// LocalSize returns the number of rows owned by the calling rank.
func (l Layout) LocalSize() int { return l.counts[l.comm.Rank()] }

// GlobalSize returns the total number of rows.
func (l Layout) GlobalSize() int { return l.offsets[len(l.offsets)-1] }

// Start returns the first global row owned by the calling rank.
func (l Layout) Start() int { return l.offsets[l.comm.Rank()] }

// End returns one past the last global row owned by the calling rank.
func (l Layout) End() int { return l.offsets[l.comm.Rank()+1] }

// Equal reports whether two layouts describe the same distribution over the
// same group.
func (l Layout) Equal(o Layout) bool {
	if l.comm != o.comm || len(l.counts) != len(o.counts) {
		return false
	}
	for i := range l.counts {
		if l.counts[i] != o.counts[i] {
			return false
		}
	}
	return true
}

// isZero reports whether the layout was never constructed.
func (l Layout) isZero() bool { return l.comm == nil }
