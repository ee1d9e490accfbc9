// Package vec selects the batch width used by the pairwise kernels and
// provides the iteration helper that walks an index range in batches.
//
// Go has no portable vector intrinsics, so a "batch" is a fixed-size array
// of lanes that every kernel processes with the same per-lane formula. The
// width mirrors the float64 lane count of the widest vector unit the CPU
// reports, which keeps the memory access pattern and the order of partial
// sums identical to a register-level implementation.
package vec

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// MaxWidth is the widest batch a Batch can hold (AVX-512, 8 float64 lanes).
const MaxWidth = 8

// Batch holds one value per lane. Only the first width lanes are meaningful.
type Batch [MaxWidth]float64

// Capability describes the vector unit a width was derived from.
type Capability struct {
	Name  string // "avx512", "avx", "sse2", "asimd" or "scalar"
	Width int    // float64 lanes
}

// Detect reports the widest float64 vector unit available on this CPU.
func Detect() Capability {
	switch runtime.GOARCH {
	case "amd64":
		switch {
		case cpu.X86.HasAVX512F:
			return Capability{Name: "avx512", Width: 8}
		case cpu.X86.HasAVX2, cpu.X86.HasAVX:
			return Capability{Name: "avx", Width: 4}
		case cpu.X86.HasSSE2:
			return Capability{Name: "sse2", Width: 2}
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return Capability{Name: "asimd", Width: 2}
		}
	}
	return Capability{Name: "scalar", Width: 1}
}

// DetectWidth returns Detect().Width.
func DetectWidth() int {
	return Detect().Width
}

// IsValidWidth returns true for the supported batch widths 1, 2, 4 and 8.
func IsValidWidth(width int) bool {
	switch width {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// ForEachBatch calls fn for consecutive batches covering [begin, end).
// Full batches are handed over with the requested width; the trailing
// elements that do not fill a batch are handed over one at a time with
// width 1, so callers write a single per-lane body for both cases.
func ForEachBatch(begin, end, width int, fn func(j, width int)) {
	j := begin
	if width > 1 {
		vectorEnd := end - (end-begin)%width
		for ; j < vectorEnd; j += width {
			fn(j, width)
		}
	}
	for ; j < end; j++ {
		fn(j, 1)
	}
}

// Sum adds the first width lanes of b.
func (b *Batch) Sum(width int) float64 {
	var total float64
	for l := 0; l < width; l++ {
		total += b[l]
	}
	return total
}
