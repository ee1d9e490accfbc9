package hph

import "gonum.org/v1/gonum/mat"

// pairCache holds the symmetric N×N matrix of pairwise distances between the
// active locations. After a single-location update only that row is
// recomputed; until the row is mirrored into its column, reads involving the
// updated point are redirected to the row, so lookups stay correct while the
// stored matrix is temporarily asymmetric.
type pairCache struct {
	n    int
	dist *mat.Dense

	valid      bool // matrix filled for the current locations (modulo dirtyRow)
	referenced bool // column values match the last snapshot's locations
	dirtyRow   int  // row whose location changed and has not been recomputed, or -1
	pending    int  // row recomputed but not yet mirrored into its column, or -1
}

func newPairCache(n int) *pairCache {
	return &pairCache{
		n:        n,
		dist:     mat.NewDense(n, n, nil),
		dirtyRow: -1,
		pending:  -1,
	}
}

// invalidate forces a full recomputation on the next refresh.
func (c *pairCache) invalidate() {
	c.valid = false
	c.referenced = false
	c.dirtyRow, c.pending = -1, -1
}

// touch records that location k moved.
func (c *pairCache) touch(k int) {
	if !c.valid {
		return
	}
	switch {
	case c.dirtyRow == k:
	case c.dirtyRow == -1 && (c.pending == -1 || c.pending == k):
		c.dirtyRow, c.pending = k, -1
	case c.dirtyRow == -1:
		// A second point moved while another row is still unmirrored.
		c.mirror()
		c.referenced = false
		c.dirtyRow = k
	default:
		c.invalidate()
	}
}

// refresh brings the matrix up to date with the locations behind live.
func (c *pairCache) refresh(live liveDispatch) {
	if !c.valid {
		c.fill(live)
		return
	}
	if c.dirtyRow >= 0 {
		live.distances(c.dirtyRow, 0, c.dist.RawRowView(c.dirtyRow))
		c.pending, c.dirtyRow = c.dirtyRow, -1
	}
}

func (c *pairCache) fill(live liveDispatch) {
	row := make([]float64, c.n)
	for i := 0; i < c.n; i++ {
		upper := row[:c.n-i]
		live.distances(i, i, upper)
		for l, d := range upper {
			c.dist.Set(i, i+l, d)
			c.dist.Set(i+l, i, d)
		}
	}
	c.valid = true
	c.dirtyRow, c.pending = -1, -1
}

// mirror copies the pending row into its column, restoring symmetry.
func (c *pairCache) mirror() bool {
	if c.pending < 0 {
		return false
	}
	k := c.pending
	for j := 0; j < c.n; j++ {
		c.dist.Set(j, k, c.dist.At(k, j))
	}
	c.pending = -1
	return true
}

// markReference brings the matrix up to date and records that it now
// matches the snapshot. An unfilled matrix stays unreferenced.
func (c *pairCache) markReference(live liveDispatch) {
	if !c.valid {
		c.referenced = false
		return
	}
	c.refresh(live)
	c.mirror()
	c.referenced = true
}

// revertRow restores row k from its column, which still holds the distances
// for the snapshot's location of point k.
func (c *pairCache) revertRow(k int) {
	for j := 0; j < c.n; j++ {
		c.dist.Set(k, j, c.dist.At(j, k))
	}
	c.dirtyRow, c.pending = -1, -1
}

// distances fills out with dist(i, j+l) from the matrix. The caller must
// have called refresh since the last location change.
func (c *pairCache) distances(i, j int, out []float64) {
	row := c.dist.RawRowView(i)
	copy(out, row[j:j+len(out)])
	if p := c.pending; p >= 0 && p != i && p >= j && p < j+len(out) {
		out[p-j] = c.dist.At(p, i)
	}
}

// snapshotMatrix returns a copy of the stored matrix.
func (c *pairCache) snapshotMatrix() *mat.Dense {
	return mat.DenseCopyOf(c.dist)
}
