package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"chatmate.app/chatmate/internal/utils"
)

const DefaultHashDimensions = 256

var _ Embedder = (*HashEmbedder)(nil)

// HashEmbedder maps texts to vectors by hashing lower-cased word tokens into
// buckets. It needs no network and gives texts that share words nearby vectors.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, h.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))
		bucket := binary.BigEndian.Uint32(sum[:4]) % uint32(h.dim)
		if sum[4]&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	utils.Normalize(vec)
	return vec
}

func (h *HashEmbedder) Dimensions() int   { return h.dim }
func (h *HashEmbedder) ModelName() string { return "hash" }
func (h *HashEmbedder) Close() error      { return nil }
