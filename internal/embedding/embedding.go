// Package embedding turns texts into fixed-length vectors.
//
// Every Embedder returns exactly one vector per input text, in input order.
package embedding

import (
	"context"
	"errors"
)

var ErrCountMismatch = errors.New("embedding: backend returned a different number of vectors than inputs")

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the vector length, or 0 when the backend only learns it from its first response.
	Dimensions() int
	ModelName() string
	Close() error
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}
