package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
)

// embedBatchSize bounds how many chunk texts go to the embedding service in
// one request.
const embedBatchSize = 16

// Indexer builds a session's Index from its chunks. An optional EmbedCache
// lets re-ingestions of identical text skip the embedding service entirely.
type Indexer struct {
	embedder Embedder
	cache    EmbedCache // may be nil
}

func NewIndexer(embedder Embedder, cache EmbedCache) *Indexer {
	return &Indexer{embedder: embedder, cache: cache}
}

// BuildIndex embeds every chunk and assembles the index. Any embedding
// failure fails the whole build: a partially embedded index is never
// returned, matching the all-or-nothing replacement invariant.
func (ix *Indexer) BuildIndex(ctx context.Context, chunks []DocumentChunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", ErrIngestionFailure)
	}

	vectors := make([][]float32, len(chunks))
	var missing []int

	for i, chunk := range chunks {
		if vec := ix.cachedEmbedding(chunk.Text); vec != nil {
			vectors[i] = vec
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = chunks[idx].Text
		}
		embedded, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding chunks %d-%d: %v", ErrIngestionFailure, batch[0], batch[len(batch)-1], err)
		}
		if len(embedded) != len(batch) {
			return nil, fmt.Errorf("%w: embedding service returned %d vectors for %d chunks", ErrIngestionFailure, len(embedded), len(batch))
		}
		for j, idx := range batch {
			if len(embedded[j]) == 0 {
				return nil, fmt.Errorf("%w: empty embedding for chunk %d", ErrIngestionFailure, idx)
			}
			vectors[idx] = embedded[j]
			ix.storeEmbedding(chunks[idx].Text, embedded[j])
		}
	}

	index, err := newIndex(chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return index, nil
}

func (ix *Indexer) cachedEmbedding(text string) []float32 {
	if ix.cache == nil {
		return nil
	}
	vec, err := ix.cache.Lookup(contentHash(text))
	if err != nil {
		log.Printf("Embedding cache lookup failed, falling through to provider: %v", err)
		return nil
	}
	return vec
}

// storeEmbedding is best-effort; a cache write failure never fails the build.
func (ix *Indexer) storeEmbedding(text string, vec []float32) {
	if ix.cache == nil {
		return
	}
	if err := ix.cache.Store(contentHash(text), vec); err != nil {
		log.Printf("Embedding cache store failed: %v", err)
	}
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
