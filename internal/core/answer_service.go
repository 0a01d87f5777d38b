package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Confidence thresholds over cosine similarity of retrieved chunks. These are
// policy, not law: they are named here and pinned by unit tests so the
// labeling stays reproducible.
const (
	highScoreThreshold   = 0.80 // best retrieved score for a "high" label
	mediumScoreThreshold = 0.60 // best retrieved score for at least "medium"
	echoOverlapRatio     = 0.5  // share of answer terms that must appear in context for "high"
	snippetRunes         = 160
)

const answerPromptTemplate = `Use ONLY the context below to answer the question. ` +
	`If the context does not contain the answer, reply exactly: "I cannot answer this from the document." ` +
	`Do not use outside knowledge and do not make up information.

--- CONTEXT START ---
%s--- CONTEXT END ---

Question: %s`

// declinePhrases are the uncertainty markers the model is instructed to use,
// plus common paraphrases of them.
var declinePhrases = []string{
	"cannot answer this from the document",
	"cannot answer",
	"not in the context",
	"not contain",
	"insufficient context",
	"don't have the information",
	"do not have the information",
	"unable to find",
}

// AnswerService turns a question plus retrieved chunks into a grounded
// answer with cited sources and a confidence label.
type AnswerService struct {
	retriever *Retriever
	completer Completer
	topK      int
}

func NewAnswerService(retriever *Retriever, completer Completer) *AnswerService {
	return &AnswerService{retriever: retriever, completer: completer, topK: DefaultTopK}
}

// Answer retrieves context for the question and synthesizes a grounded
// answer. The caller guarantees the index belongs to a live session; this
// method never calls the generative model when the index is empty.
func (s *AnswerService) Answer(ctx context.Context, index *Index, question string) (*AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidInput)
	}
	if index.Size() == 0 {
		return nil, ErrNoDocumentIngested
	}

	retrieved, err := s.retriever.Retrieve(ctx, index, question, s.topK)
	if err != nil {
		return nil, err
	}
	if len(retrieved) == 0 {
		// A populated index yields no results only when every chunk failed to
		// compare against the query vector, i.e. the provider returned a
		// malformed query embedding.
		return nil, fmt.Errorf("%w: query embedding not comparable to the index", ErrProviderFailure)
	}

	prompt := buildAnswerPrompt(retrieved, question)
	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		log.Printf("Answer completion failed: %v", err)
		return nil, fmt.Errorf("%w: answer generation: %v", ErrProviderFailure, err)
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrProviderFailure)
	}

	declined := isDecline(answer)
	confidence := labelConfidence(retrieved, answer, declined)

	var sources []SourceRef
	if !declined {
		sources = usedSources(retrieved, answer)
	}

	return &AnswerResult{
		Answer:      answer,
		Sources:     sources,
		Confidence:  confidence,
		GeneratedAt: time.Now(),
	}, nil
}

func buildAnswerPrompt(retrieved []ScoredChunk, question string) string {
	var ctxBuilder strings.Builder
	for _, sc := range retrieved {
		fmt.Fprintf(&ctxBuilder, "[Source %d, page %d]\n%s\n\n", sc.Chunk.Position, sc.Chunk.Page, sc.Chunk.Text)
	}
	return fmt.Sprintf(answerPromptTemplate, ctxBuilder.String(), question)
}

func isDecline(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range declinePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// labelConfidence maps retrieval scores and the answer's relation to the
// retrieved text onto {low, medium, high}. A decline or weak best score is
// low; a strong best score is high only when the answer visibly echoes the
// supplied context.
func labelConfidence(retrieved []ScoredChunk, answer string, declined bool) Confidence {
	if declined || len(retrieved) == 0 {
		return ConfidenceLow
	}
	best := retrieved[0].Score
	switch {
	case float64(best) >= highScoreThreshold && echoesContext(answer, retrieved):
		return ConfidenceHigh
	case float64(best) >= mediumScoreThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// echoesContext reports whether enough of the answer's content terms appear
// in the retrieved chunks for the answer to count as directly supported.
func echoesContext(answer string, retrieved []ScoredChunk) bool {
	terms := contentTerms(answer)
	if len(terms) == 0 {
		return false
	}
	var combined strings.Builder
	for _, sc := range retrieved {
		combined.WriteString(strings.ToLower(sc.Chunk.Text))
		combined.WriteString(" ")
	}
	haystack := combined.String()

	matched := 0
	for term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) >= echoOverlapRatio*float64(len(terms))
}

// usedSources keeps the retrieved chunks the answer actually draws on,
// judged by shared content terms, in retrieval order. If the overlap test
// matches nothing the best-scored chunk is cited alone.
func usedSources(retrieved []ScoredChunk, answer string) []SourceRef {
	terms := contentTerms(answer)

	var sources []SourceRef
	for _, sc := range retrieved {
		chunkLower := strings.ToLower(sc.Chunk.Text)
		for term := range terms {
			if strings.Contains(chunkLower, term) {
				sources = append(sources, sourceRef(sc.Chunk))
				break
			}
		}
	}
	if len(sources) == 0 {
		sources = append(sources, sourceRef(retrieved[0].Chunk))
	}
	return sources
}

func sourceRef(chunk DocumentChunk) SourceRef {
	snippet := chunk.Text
	if runes := []rune(snippet); len(runes) > snippetRunes {
		snippet = string(runes[:snippetRunes]) + "..."
	}
	return SourceRef{ChunkID: chunk.Position, Page: chunk.Page, Snippet: snippet}
}

// contentTerms extracts lowercase terms of four or more letters, stripping
// surrounding punctuation. Short function words carry no grounding signal.
func contentTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(text)) {
		term := strings.Trim(field, ".,;:!?'\"()[]{}")
		if len([]rune(term)) >= 4 {
			terms[term] = true
		}
	}
	return terms
}
