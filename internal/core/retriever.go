package core

import (
	"context"
	"fmt"
)

const (
	DefaultTopK = 4 // chunks of context per answer
	MinTopK     = 1
	MaxTopK     = 8
)

// Retriever embeds a query through the same embedding service the index was
// built with and returns the most relevant chunks.
type Retriever struct {
	embedder Embedder
}

func NewRetriever(embedder Embedder) *Retriever {
	return &Retriever{embedder: embedder}
}

// Retrieve returns the top-k chunks for the query, k clamped to [MinTopK,
// MaxTopK]. Too small starves the answer of context; too large dilutes the
// prompt.
func (r *Retriever) Retrieve(ctx context.Context, index *Index, query string, k int) ([]ScoredChunk, error) {
	if index.Size() == 0 {
		return nil, ErrNoDocumentIngested
	}
	if k < MinTopK {
		k = MinTopK
	}
	if k > MaxTopK {
		k = MaxTopK
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding: %v", ErrProviderFailure, err)
	}
	return index.Search(queryVec, k), nil
}
