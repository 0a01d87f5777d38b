package core

import (
	"context"
	"time"
)

// SessionState tracks a session's document lifecycle.
type SessionState string

const (
	StateEmpty   SessionState = "EMPTY"
	StateIndexed SessionState = "INDEXED"
	StateError   SessionState = "ERROR"
)

// Confidence is the coarse certainty label attached to an answer.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// DocumentMeta describes the document currently ingested into a session.
type DocumentMeta struct {
	Filename   string `json:"filename"`
	Pages      int    `json:"pages"`
	Characters int    `json:"characters"`
}

// DocumentChunk is one retrieval unit of the ingested document. Chunks are
// immutable once created; re-ingestion replaces the entire set.
type DocumentChunk struct {
	Position int    `json:"position"`
	Text     string `json:"text"`
	Page     int    `json:"page"`
}

// PageText is one page of extracted document text, as delivered by the
// PDF extraction collaborator.
type PageText struct {
	Number int
	Text   string
}

// SourceRef points at a chunk the answer was drawn from.
type SourceRef struct {
	ChunkID int    `json:"chunk_id"`
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

// AnswerResult is the outcome of a grounded question-answering call. It is
// returned to the caller, never stored on the session.
type AnswerResult struct {
	Answer      string      `json:"answer"`
	Sources     []SourceRef `json:"sources"`
	Confidence  Confidence  `json:"confidence"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// GeneratedQuestion is a comprehension question derived from document content.
type GeneratedQuestion struct {
	Text         string    `json:"text"`
	SourceChunks []int     `json:"source_chunks,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// SessionInfo is a read-only snapshot of a session.
type SessionInfo struct {
	ID            string        `json:"id"`
	State         SessionState  `json:"state"`
	Document      *DocumentMeta `json:"document,omitempty"`
	ChunkCount    int           `json:"chunk_count"`
	QuestionCount int           `json:"question_count"`
	CreatedAt     time.Time     `json:"created_at"`
	LastActivity  time.Time     `json:"last_activity"`
}

// Completer is the generative-model capability the engine depends on.
// Implementations must honor ctx cancellation and may retry internally.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// PageExtractor is the file/PDF extraction collaborator.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]PageText, error)
}

// EmbedCache is an optional persistent cache of chunk embeddings, keyed by
// content hash. Lookup returns (nil, nil) on a miss.
type EmbedCache interface {
	Lookup(contentHash string) ([]float32, error)
	Store(contentHash string, embedding []float32) error
}
