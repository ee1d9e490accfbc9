// Package reduce provides the strategies that sum per-event contributions
// into an aggregate pack. Sequential accumulates strictly left to right;
// Parallel splits the index range into contiguous chunks reduced on separate
// goroutines and adds the chunk results in chunk order.
//
// Both strategies only call fn with distinct indices, and fn only receives the
// pack owned by the calling worker. Shared inputs must be treated as read-only
// by fn for the duration of a Reduce call.
package reduce

import (
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Pack is a fixed-width vector of running sums combined by addition.
type Pack []float64

// NewPack returns a zeroed pack of the given width.
func NewPack(width int) Pack {
	return make(Pack, width)
}

// Add accumulates q into p element-wise. Widths must match.
func (p Pack) Add(q Pack) {
	floats.Add(p, q)
}

// Strategy reduces fn over the indices [0, n) into a pack of the given width.
type Strategy interface {
	// Name identifies the strategy in logs ("sequential" or "parallel").
	Name() string
	// Reduce calls fn(i, acc) for every i in [0, n) and returns the sum of
	// all accumulators. fn adds its contribution into acc.
	Reduce(n, width int, fn func(i int, acc Pack)) Pack
}

// Sequential reduces on the calling goroutine in index order.
type Sequential struct{}

func (Sequential) Name() string { return "sequential" }

func (Sequential) Reduce(n, width int, fn func(i int, acc Pack)) Pack {
	acc := NewPack(width)
	for i := 0; i < n; i++ {
		fn(i, acc)
	}
	return acc
}

// Parallel partitions [0, n) into contiguous chunks reduced concurrently.
// The number of chunks is fixed at construction; the number of chunks in
// flight is bounded by the scheduler handle's limit.
type Parallel struct {
	chunks int
	handle *Handle
}

// NewParallel returns a Parallel strategy that splits work into chunks
// partitions and runs them under handle. chunks <= 0 uses handle.Threads().
func NewParallel(handle *Handle, chunks int) *Parallel {
	if chunks <= 0 {
		chunks = handle.Threads()
	}
	return &Parallel{chunks: chunks, handle: handle}
}

func (p *Parallel) Name() string { return "parallel" }

// Chunks returns the number of partitions each Reduce call uses.
func (p *Parallel) Chunks() int { return p.chunks }

func (p *Parallel) Reduce(n, width int, fn func(i int, acc Pack)) Pack {
	chunks := min(p.chunks, n)
	if chunks <= 1 {
		return Sequential{}.Reduce(n, width, fn)
	}

	partials := make([]Pack, chunks)
	size, remainder := n/chunks, n%chunks

	var g errgroup.Group
	g.SetLimit(p.handle.Limit())

	begin := 0
	for c := 0; c < chunks; c++ {
		end := begin + size
		if c < remainder {
			end++
		}
		c, first, last := c, begin, end
		g.Go(func() error {
			acc := NewPack(width)
			for i := first; i < last; i++ {
				fn(i, acc)
			}
			partials[c] = acc
			return nil
		})
		begin = end
	}
	_ = g.Wait() // workers never fail

	total := NewPack(width)
	for _, acc := range partials {
		total.Add(acc)
	}
	return total
}
