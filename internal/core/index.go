package core

import (
	"fmt"
	"log"
	"sort"

	"github.com/docqa/doc-qa-service/internal/utils"
)

// Index is a per-session in-memory vector index: chunks and their embeddings
// in parallel slices. It is immutable after construction; a re-ingestion
// builds a fresh Index and swaps the session's pointer whole. At the scale of
// a single document a brute-force cosine scan beats maintaining any
// approximate structure.
type Index struct {
	chunks  []DocumentChunk
	vectors [][]float32
}

func newIndex(chunks []DocumentChunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	return &Index{chunks: chunks, vectors: vectors}, nil
}

func (ix *Index) Size() int {
	if ix == nil {
		return 0
	}
	return len(ix.chunks)
}

// Chunks returns the indexed chunk set in document order.
func (ix *Index) Chunks() []DocumentChunk {
	if ix == nil {
		return nil
	}
	return ix.chunks
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk DocumentChunk
	Score float32
}

// Search returns the top-k chunks by descending cosine similarity to the
// query vector. Ties break toward the earlier chunk so results are
// deterministic.
func (ix *Index) Search(queryVec []float32, k int) []ScoredChunk {
	if ix.Size() == 0 || k <= 0 {
		return nil
	}

	scored := make([]ScoredChunk, 0, len(ix.chunks))
	for i, chunk := range ix.chunks {
		score, err := utils.CosineSimilarity(queryVec, ix.vectors[i])
		if err != nil {
			log.Printf("Skipping chunk %d during search: %v", chunk.Position, err)
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Position < scored[j].Chunk.Position
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
