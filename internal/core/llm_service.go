package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/docqa/doc-qa-service/internal/config"
)

const (
	defaultChatModelName      = "gemini-1.5-flash-latest"
	defaultEmbeddingModelName = "text-embedding-004"

	answerSystemInstruction = "You are a document question-answering assistant. Answer questions strictly from the context " +
		"supplied in the prompt. If the answer is not found in the provided context, clearly state that you don't have the information. " +
		"Keep answers concise and directly related to the question and provided context. Do not make up information."

	maxProviderAttempts = 3
	retryBaseDelay      = 500 * time.Millisecond
)

// LLMService wraps the Gemini client behind the Completer and Embedder
// interfaces the engine depends on.
type LLMService struct {
	client *genai.Client
}

func NewLLMService() *LLMService {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &LLMService{client: client}
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

// Embed returns the embedding vector for a single text.
func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	var values []float32
	err := withRetry(ctx, func() error {
		em := s.client.EmbeddingModel(defaultEmbeddingModelName)
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return fmt.Errorf("gemini embedding request failed: %w", err)
		}
		if res.Embedding == nil || len(res.Embedding.Values) == 0 {
			return fmt.Errorf("no embedding data received from gemini")
		}
		values = res.Embedding.Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// EmbedBatch embeds several texts in one request.
func (s *LLMService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := withRetry(ctx, func() error {
		em := s.client.EmbeddingModel(defaultEmbeddingModelName)
		batch := em.NewBatch()
		for _, text := range texts {
			batch = batch.AddContent(genai.Text(text))
		}

		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return fmt.Errorf("gemini batch embedding request failed: %w", err)
		}
		if res == nil {
			return fmt.Errorf("no embedding data received from gemini")
		}
		if len(res.Embeddings) != len(texts) {
			return fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
		}

		vectors = make([][]float32, len(texts))
		for i, emb := range res.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return fmt.Errorf("no embedding data received from gemini for text %d", i)
			}
			vectors[i] = emb.Values
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// Complete sends a single-turn prompt and returns the flattened text
// response.
func (s *LLMService) Complete(ctx context.Context, prompt string) (string, error) {
	var text string
	err := withRetry(ctx, func() error {
		model := s.client.GenerativeModel(defaultChatModelName)
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(answerSystemInstruction)},
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return fmt.Errorf("gemini completion request failed: %w", err)
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return fmt.Errorf("gemini response was empty or had no valid candidates")
		}

		var responseText strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				responseText.WriteString(string(txt))
			} else {
				log.Printf("Gemini response part was not text: %T", part)
			}
		}
		if responseText.Len() == 0 {
			return fmt.Errorf("gemini response contained no text parts")
		}
		text = responseText.String()
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// withRetry runs op up to maxProviderAttempts times, backing off
// exponentially between attempts. Only transient provider failures are
// retried; malformed-input and auth errors surface immediately. A canceled
// ctx aborts the wait.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < maxProviderAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = op(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		log.Printf("Transient provider error (attempt %d/%d): %v", attempt+1, maxProviderAttempts, err)
	}
	return err
}

// isTransient matches rate-limit, quota and availability failures by the
// substrings the Gemini API is known to surface them with.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429",
		"resource_exhausted",
		"quota",
		"rate limit",
		"500",
		"503",
		"unavailable",
		"deadline exceeded",
		"connection reset",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
