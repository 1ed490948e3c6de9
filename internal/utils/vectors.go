package utils

import (
	"fmt"
	"math"
)

// SquaredL2 returns the squared euclidean distance between two vectors.
func SquaredL2(vec1, vec2 []float32) (float32, error) {
	if len(vec1) != len(vec2) {
		return 0, fmt.Errorf("vectors must have the same dimension (%d != %d)", len(vec1), len(vec2))
	}
	var sum float32
	for i := range vec1 {
		d := vec1[i] - vec2[i]
		sum += d * d
	}
	return sum, nil
}

// magnitude calculates the L2 norm (magnitude) of a vector.
func magnitude(vec []float32) float32 {
	var sumOfSquares float32
	for _, val := range vec {
		sumOfSquares += val * val
	}
	return float32(math.Sqrt(float64(sumOfSquares)))
}

// Normalize scales vec to unit length in place. A zero vector is left unchanged.
func Normalize(vec []float32) {
	mag := magnitude(vec)
	if mag == 0 {
		return
	}
	for i := range vec {
		vec[i] /= mag
	}
}
