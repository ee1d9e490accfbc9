package hph

import "math"

// distanceDispatch produces Euclidean distances from one reference point to
// a run of consecutive points. The batched and the scalar call paths are the
// same method; only len(out) differs.
type distanceDispatch interface {
	// distances fills out[l] with dist(i, j+l) for l < len(out).
	distances(i, j int, out []float64)
}

// liveDispatch computes distances from the location array on every call.
type liveDispatch struct {
	locations []float64
	dim       int
}

func (d liveDispatch) distances(i, j int, out []float64) {
	ref := d.locations[i*d.dim : (i+1)*d.dim]
	for l := range out {
		offset := (j + l) * d.dim
		other := d.locations[offset : offset+d.dim]
		var sum float64
		for k, x := range ref {
			diff := x - other[k]
			sum += diff * diff
		}
		out[l] = math.Sqrt(sum)
	}
}

// cachedDispatch serves distances from the pairwise cache.
type cachedDispatch struct {
	cache *pairCache
}

func (d cachedDispatch) distances(i, j int, out []float64) {
	d.cache.distances(i, j, out)
}

// missing reports whether the pair (i, j) contributes nothing: a point is
// never paired with itself, and a NaN distance marks absent pairwise data.
func missing(i, j int, dist float64) bool {
	return i == j || math.IsNaN(dist)
}
