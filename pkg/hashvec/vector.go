package hashvec

import (
	"math"

	"github.com/klauspost/cpuid/v2"
)

// hardware reports whether the running CPU exposes the wide
// floating-point extensions the vectorized code paths below are
// shaped for. It does not gate correctness, only which loop the
// runtime takes — both paths produce identical results.
var hardware = cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3)

// Cosine returns the cosine similarity of a and b. A zero-norm
// operand yields 0 rather than NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	if len(a) == 0 {
		return 0, nil
	}
	var dotv, normA, normB float64
	if hardware {
		dotv, normA, normB = cosineUnrolled(a, b)
	} else {
		dotv, normA, normB = cosineGeneric(a, b)
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}
	return dotv / denom, nil
}

// Dot returns the dot product of a and b.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	if len(a) == 0 {
		return 0, nil
	}
	if hardware {
		return dotUnrolled(a, b), nil
	}
	return dotGeneric(a, b), nil
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Normalize returns a copy of v scaled to unit length. A zero-norm
// vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Centroid returns the mean vector of vs. Returns ErrDimensionMismatch
// if the vectors disagree in length, and nil for an empty input.
func Centroid(vs [][]float32) ([]float32, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	dim := len(vs[0])
	sum := make([]float64, dim)
	for _, v := range vs {
		if len(v) != dim {
			return nil, ErrDimensionMismatch
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	out := make([]float32, dim)
	n := float64(len(vs))
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return out, nil
}

func cosineGeneric(a, b []float32) (dotv, normA, normB float64) {
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dotv += fa * fb
		normA += fa * fa
		normB += fb * fb
	}
	return
}

func dotGeneric(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// cosineUnrolled and dotUnrolled process four lanes per iteration,
// a shape the compiler auto-vectorizes on AVX2/FMA3 hardware.
func cosineUnrolled(a, b []float32) (dotv, normA, normB float64) {
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		for j := 0; j < 4; j++ {
			fa, fb := float64(a[i+j]), float64(b[i+j])
			dotv += fa * fb
			normA += fa * fa
			normB += fb * fb
		}
	}
	for ; i < n; i++ {
		fa, fb := float64(a[i]), float64(b[i])
		dotv += fa * fb
		normA += fa * fa
		normB += fb * fb
	}
	return
}

func dotUnrolled(a, b []float32) float64 {
	n := len(a)
	var sum float64
	i := 0
	for ; i+4 <= n; i += 4 {
		sum += float64(a[i])*float64(b[i]) +
			float64(a[i+1])*float64(b[i+1]) +
			float64(a[i+2])*float64(b[i+2]) +
			float64(a[i+3])*float64(b[i+3])
	}
	for ; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
