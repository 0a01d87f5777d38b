package core

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const (
	MinQuestions = 1
	MaxQuestions = 10

	// questionSampleChunks chunks are sampled evenly across the document so
	// questions are not biased toward its opening.
	questionSampleChunks = 6
)

const questionPromptTemplate = `You are given excerpts from a document. Write exactly %d distinct comprehension questions that can be answered from the excerpts alone.
Rules:
- One question per line, no numbering, no bullets, no answers.
- Every question must be answerable from the excerpts, not from general knowledge.
- No two questions may ask the same thing in different words.

--- EXCERPTS START ---
%s--- EXCERPTS END ---`

const questionTopUpTemplate = `You are given excerpts from a document. Write exactly %d more comprehension questions that can be answered from the excerpts alone, one per line, none of which repeat any of these:
%s

--- EXCERPTS START ---
%s--- EXCERPTS END ---`

// leadingListMarker strips numbering and bullet artifacts the model tends to
// emit despite instructions ("1.", "2)", "Q3:", "-", "*").
var leadingListMarker = regexp.MustCompile(`^\s*(?:[-*•]|\(?[Qq]?\d+[.):]?)\s*`)

// QuestionService generates comprehension questions from document chunks.
type QuestionService struct {
	completer Completer
}

func NewQuestionService(completer Completer) *QuestionService {
	return &QuestionService{completer: completer}
}

// Generate produces exactly count distinct, content-grounded questions.
// count is clamped to [MinQuestions, MaxQuestions] here as well as at the
// transport: this is a public contract, not an internal helper. If the model
// comes up short after filtering, one top-up request is made; still short is
// a provider failure, never a silently smaller batch.
func (s *QuestionService) Generate(ctx context.Context, chunks []DocumentChunk, count int) ([]GeneratedQuestion, error) {
	if len(chunks) == 0 {
		return nil, ErrNoDocumentIngested
	}
	if count < MinQuestions {
		count = MinQuestions
	}
	if count > MaxQuestions {
		count = MaxQuestions
	}

	sampled := sampleChunks(chunks, questionSampleChunks)
	prompt := buildQuestionPrompt(sampled, count)

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		log.Printf("Question generation failed: %v", err)
		return nil, fmt.Errorf("%w: question generation: %v", ErrProviderFailure, err)
	}

	texts := parseQuestionLines(raw)
	if len(texts) < count {
		texts = s.topUp(ctx, sampled, texts, count)
	}
	if len(texts) < count {
		return nil, fmt.Errorf("%w: model produced %d of %d requested questions", ErrProviderFailure, len(texts), count)
	}
	texts = texts[:count]

	sourceIDs := make([]int, len(sampled))
	for i, c := range sampled {
		sourceIDs[i] = c.Position
	}

	now := time.Now()
	questions := make([]GeneratedQuestion, len(texts))
	for i, text := range texts {
		questions[i] = GeneratedQuestion{
			Text:         text,
			SourceChunks: sourceIDs,
			GeneratedAt:  now,
		}
	}
	return questions, nil
}

// topUp asks once for the remainder. Completions are stateless single-turn
// calls, so the excerpts are sent again alongside the questions to exclude.
func (s *QuestionService) topUp(ctx context.Context, sampled []DocumentChunk, have []string, count int) []string {
	missing := count - len(have)
	prompt := fmt.Sprintf(questionTopUpTemplate, missing, strings.Join(have, "\n"), excerptBlock(sampled))

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		log.Printf("Question top-up failed: %v", err)
		return have
	}
	return mergeDistinct(have, parseQuestionLines(raw))
}

// sampleChunks picks up to n chunks spread across the whole document by
// stride, preserving document order.
func sampleChunks(chunks []DocumentChunk, n int) []DocumentChunk {
	if len(chunks) <= n {
		return chunks
	}
	sampled := make([]DocumentChunk, 0, n)
	stride := float64(len(chunks)) / float64(n)
	for i := 0; i < n; i++ {
		sampled = append(sampled, chunks[int(float64(i)*stride)])
	}
	return sampled
}

func buildQuestionPrompt(sampled []DocumentChunk, count int) string {
	return fmt.Sprintf(questionPromptTemplate, count, excerptBlock(sampled))
}

func excerptBlock(sampled []DocumentChunk) string {
	var excerpts strings.Builder
	for _, c := range sampled {
		fmt.Fprintf(&excerpts, "[Excerpt from page %d]\n%s\n\n", c.Page, c.Text)
	}
	return excerpts.String()
}

// parseQuestionLines turns raw model output into clean, distinct question
// strings: blank lines, list markers and near-duplicates are dropped.
func parseQuestionLines(raw string) []string {
	var questions []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(raw, "\n") {
		q := strings.TrimSpace(leadingListMarker.ReplaceAllString(line, ""))
		q = strings.Trim(q, "\"'")
		if q == "" || !strings.ContainsAny(q, "?？؟") {
			continue
		}
		key := normalizeQuestion(q)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		questions = append(questions, q)
	}
	return questions
}

func mergeDistinct(have, extra []string) []string {
	seen := make(map[string]bool, len(have))
	for _, q := range have {
		seen[normalizeQuestion(q)] = true
	}
	merged := have
	for _, q := range extra {
		key := normalizeQuestion(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, q)
	}
	return merged
}

// normalizeQuestion collapses case, punctuation and spacing so trivially
// rephrased duplicates ("What is X?" / "what is x ?") compare equal. Letters
// and digits of any script survive, so non-Latin questions keep a usable key.
func normalizeQuestion(q string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(q) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
