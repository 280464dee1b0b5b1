package comm

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelf(t *testing.T) {
	c := Self()
	assert.Equal(t, 0, c.Rank())
	assert.Equal(t, 1, c.Size())

	got := c.Allgatherv([]float64{1, 2, 3})
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestNewGroupInvalidSize(t *testing.T) {
	assert.Panics(t, func() { NewGroup(0) })
	assert.Panics(t, func() { NewGroup(-1) })
}

func TestAllgathervRankOrder(t *testing.T) {
	err := Run(3, func(c *Comm) error {
		// Rank r contributes r+1 values, all equal to float64(r).
		local := make([]float64, c.Rank()+1)
		for i := range local {
			local[i] = float64(c.Rank())
		}
		got := c.Allgatherv(local)
		want := []float64{0, 1, 1, 2, 2, 2}
		if len(got) != len(want) {
			return fmt.Errorf("rank %d: got %d values, want %d", c.Rank(), len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				return fmt.Errorf("rank %d: got[%d] = %g, want %g", c.Rank(), i, got[i], want[i])
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAllgathervRepeated(t *testing.T) {
	err := Run(4, func(c *Comm) error {
		for round := 0; round < 50; round++ {
			got := c.Allgatherv([]float64{float64(round*10 + c.Rank())})
			for r := 0; r < c.Size(); r++ {
				if got[r] != float64(round*10+r) {
					return fmt.Errorf("round %d rank %d: got %v", round, c.Rank(), got)
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAllgatherInt(t *testing.T) {
	err := Run(3, func(c *Comm) error {
		got := c.AllgatherInt(100 + c.Rank())
		for r, v := range got {
			if v != 100+r {
				return fmt.Errorf("rank %d: got %v", c.Rank(), got)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestBarrier(t *testing.T) {
	var before atomic.Int64
	err := Run(5, func(c *Comm) error {
		before.Add(1)
		c.Barrier()
		// After the barrier every rank must have passed the increment.
		if n := before.Load(); n != 5 {
			return fmt.Errorf("rank %d: saw %d ranks before barrier", c.Rank(), n)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAllgathervResultIsPrivate(t *testing.T) {
	err := Run(2, func(c *Comm) error {
		got := c.Allgatherv([]float64{float64(c.Rank())})
		got[0] = 99 // must not leak into the other rank's result
		again := c.Allgatherv([]float64{float64(c.Rank())})
		if again[0] != 0 || again[1] != 1 {
			return fmt.Errorf("rank %d: second gather corrupted: %v", c.Rank(), again)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRunPropagatesError(t *testing.T) {
	err := Run(2, func(c *Comm) error {
		if c.Rank() == 1 {
			return fmt.Errorf("rank 1 failed")
		}
		return nil
	})
	require.EqualError(t, err, "rank 1 failed")
}
