package core

import (
	"context"
	"strings"
	"sync"
)

// stubEmbedder produces deterministic bag-of-words vectors: every distinct
// term gets its own dimension, assigned on first sight, so texts sharing
// words score high cosine similarity and unrelated texts score zero.
type stubEmbedder struct {
	mu    sync.Mutex
	dims  map[string]int
	calls int
	err   error
}

const stubEmbedderDim = 512

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{dims: make(map[string]int)}
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vectorLocked(text), nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = e.vectorLocked(t)
	}
	return vecs, nil
}

func (e *stubEmbedder) vectorLocked(text string) []float32 {
	vec := make([]float32, stubEmbedderDim)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		term := strings.Trim(field, ".,;:!?'\"()")
		if term == "" {
			continue
		}
		dim, ok := e.dims[term]
		if !ok {
			dim = len(e.dims) % stubEmbedderDim
			e.dims[term] = dim
		}
		vec[dim]++
	}
	return vec
}

// stubCompleter returns fn(prompt), counting calls.
type stubCompleter struct {
	mu    sync.Mutex
	calls int
	fn    func(prompt string) (string, error)
}

func (c *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.fn == nil {
		return "", nil
	}
	return c.fn(prompt)
}

func (c *stubCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// stubExtractor serves canned pages regardless of the file path.
type stubExtractor struct {
	pages []PageText
	err   error
}

func (x *stubExtractor) ExtractPages(ctx context.Context, path string) ([]PageText, error) {
	if x.err != nil {
		return nil, x.err
	}
	return x.pages, nil
}

func numberedQuestions(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString("question ")
		b.WriteString(strings.Repeat("x", i)) // distinct bodies
		b.WriteString(" number? \n")
	}
	return b.String()
}
