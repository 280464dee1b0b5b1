// Package comm provides the process-group communicator the solver stack is
// collective over.
//
// A group of n ranks lives inside one OS process, one goroutine per rank.
// Every collective operation must be entered by all ranks of the group in the
// same order; a rank that skips a collective deadlocks the group. Divergent
// call sequences are a programming error and are not detected here.
package comm

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Comm is one rank's handle on a process group.
type Comm struct {
	g    *group
	rank int
}

// group holds the rendezvous state shared by all ranks. A generation counter
// (phase) makes the rendezvous reusable: a rank re-entering the next
// collective cannot overwrite a result of the previous one before every rank
// has left it, because building a new result requires all ranks to arrive
// again.
type group struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	phase   uint64
	arrived int

	fparts [][]float64
	iparts []int
	fres   []float64
	ires   []int
}

func newGroup(size int) *group {
	g := &group{
		size:   size,
		fparts: make([][]float64, size),
		iparts: make([]int, size),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// NewGroup creates an in-process group of n ranks and returns one Comm per
// rank. Each Comm must be driven by its own goroutine.
func NewGroup(n int) []*Comm {
	if n < 1 {
		panic(fmt.Sprintf("comm: group size must be positive, got %d", n))
	}
	g := newGroup(n)
	comms := make([]*Comm, n)
	for i := range comms {
		comms[i] = &Comm{g: g, rank: i}
	}
	return comms
}

// Self returns a fresh single-rank communicator.
func Self() *Comm {
	return NewGroup(1)[0]
}

// Run executes fn on every rank of a fresh n-rank group, one goroutine per
// rank, and waits for all of them. The first non-nil error is returned.
// fn must drive the same collective sequence on every rank; returning early
// from one rank while others are inside a collective deadlocks the group.
func Run(n int, fn func(c *Comm) error) error {
	var eg errgroup.Group
	for _, c := range NewGroup(n) {
		c := c
		eg.Go(func() error { return fn(c) })
	}
	return eg.Wait()
}

// Rank returns this handle's rank in [0, Size).
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in the group.
func (c *Comm) Size() int { return c.g.size }

// awaitLocked blocks until every rank of the group has entered the current
// collective. build runs exactly once, on the last rank to arrive, while the
// group lock is held. The caller must hold g.mu.
func (c *Comm) awaitLocked(build func()) {
	g := c.g
	ph := g.phase
	g.arrived++
	if g.arrived == g.size {
		if build != nil {
			build()
		}
		g.arrived = 0
		g.phase++
		g.cond.Broadcast()
		return
	}
	for g.phase == ph {
		g.cond.Wait()
	}
}

// Barrier blocks until all ranks of the group have reached it.
func (c *Comm) Barrier() {
	g := c.g
	g.mu.Lock()
	defer g.mu.Unlock()
	c.awaitLocked(nil)
}

// Allgatherv concatenates the per-rank contributions in rank order and
// returns the full result to every rank. Contributions may differ in length.
func (c *Comm) Allgatherv(local []float64) []float64 {
	g := c.g
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fparts[c.rank] = local
	c.awaitLocked(func() {
		total := 0
		for _, p := range g.fparts {
			total += len(p)
		}
		res := make([]float64, 0, total)
		for _, p := range g.fparts {
			res = append(res, p...)
		}
		g.fres = res
	})
	out := make([]float64, len(g.fres))
	copy(out, g.fres)
	return out
}

// AllgatherInt gathers one int from every rank, in rank order.
func (c *Comm) AllgatherInt(v int) []int {
	g := c.g
	g.mu.Lock()
	defer g.mu.Unlock()
	g.iparts[c.rank] = v
	c.awaitLocked(func() {
		res := make([]int, g.size)
		copy(res, g.iparts)
		g.ires = res
	})
	out := make([]int, len(g.ires))
	copy(out, g.ires)
	return out
}
