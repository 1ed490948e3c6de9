package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatmate.app/chatmate/internal/embedding"
	"chatmate.app/chatmate/internal/index"
	"chatmate.app/chatmate/internal/segment"
)

// Retriever ranks passages of a text collection against a query through a
// single-use index.
type Retriever struct {
	embedder  embedding.Embedder
	segmenter *segment.Segmenter
	topK      int
	indexDir  string
}

func NewRetriever(e embedding.Embedder, seg *segment.Segmenter, topK int, indexDir string) *Retriever {
	if seg == nil {
		seg = segment.New()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{embedder: e, segmenter: seg, topK: topK, indexDir: indexDir}
}

// Retrieve returns up to topK passage texts closest to query, nearest first.
// Texts that yield no passages return nil without calling the embedder. A blank
// query is never sent to the embedder; the zero vector stands in for it.
func (r *Retriever) Retrieve(ctx context.Context, texts []string, query string) ([]string, error) {
	passages := r.segmenter.Split(texts)
	if len(passages) == 0 {
		return nil, nil
	}

	inputs := segment.Texts(passages)
	blankQuery := strings.TrimSpace(query) == ""
	if !blankQuery {
		inputs = append(inputs, query)
	}
	vectors, err := r.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailure, err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailure, len(vectors), len(inputs))
	}

	// A blank query ranks against the origin; hosted backends reject empty inputs.
	n := len(passages)
	queryVector := make([]float32, len(vectors[0]))
	if !blankQuery {
		queryVector = vectors[n]
	}
	hits, err := index.SearchEphemeral(r.indexDir, vectors[:n], queryVector, r.topK)
	if err != nil {
		if errors.Is(err, index.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailure, err)
		}
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = passages[h.Index].Text
	}
	return out, nil
}
