package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Normalize returns a unit-length copy of vec.
// Zero vectors (and empty input) are returned as zero copies.
func Normalize(vec []float64) []float64 {
	out := make([]float64, len(vec))
	copy(out, vec)
	if len(out) == 0 {
		return out
	}
	n := floats.Norm(out, 2)
	if n == 0 {
		return out
	}
	floats.Scale(1/n, out)
	return out
}

// IsUnit reports whether vec has L2 norm 1 within tol.
func IsUnit(vec []float64, tol float64) bool {
	if len(vec) == 0 {
		return false
	}
	n := floats.Norm(vec, 2)
	return n > 1-tol && n < 1+tol
}

// CosineSimilarity returns dot(a, b) / (|a| * |b|), clamped to [-1, 1].
// Mismatched lengths, empty, zero or non-finite vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	if math.IsNaN(sim) {
		return 0
	}
	// Clamp to [-1, 1] to handle floating point errors
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// IsFinite reports whether vec holds no NaN or infinite component.
func IsFinite(vec []float64) bool {
	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
