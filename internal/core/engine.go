package core

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Engine is the session-scoped question-answering system the transport layer
// talks to. It owns no HTTP concepts: all inputs are plain values. The
// expensive work of an ingestion (extraction, chunking, embedding) happens
// outside any lock; only the final installation of the finished index takes
// the session's exclusive region, so concurrent requests for other sessions
// never contend and a query mid-re-ingestion sees either the old complete
// index or the new one, never a partial build.
type Engine struct {
	sessions    *SessionManager
	extractor   PageExtractor
	chunker     *Chunker
	indexer     *Indexer
	answers     *AnswerService
	questionGen *QuestionService
}

func NewEngine(sessions *SessionManager, extractor PageExtractor, completer Completer, embedder Embedder, cache EmbedCache) *Engine {
	retriever := NewRetriever(embedder)
	return &Engine{
		sessions:    sessions,
		extractor:   extractor,
		chunker:     NewChunker(DefaultChunkWords, DefaultOverlapWords),
		indexer:     NewIndexer(embedder, cache),
		answers:     NewAnswerService(retriever, completer),
		questionGen: NewQuestionService(completer),
	}
}

// CreateSession allocates a fresh empty session and returns its id.
func (e *Engine) CreateSession() (string, error) {
	return e.sessions.Create()
}

// ProcessPDF extracts, chunks, embeds and indexes the uploaded document,
// replacing any previously ingested one atomically. On failure the session
// moves to ERROR and the caller keeps ownership of the uploaded file (the
// transport deletes it); on success the engine owns the file until cleanup
// or replacement.
func (e *Engine) ProcessPDF(ctx context.Context, filePath, sessionID, originalFilename string) error {
	if strings.TrimSpace(filePath) == "" || strings.TrimSpace(originalFilename) == "" {
		return fmt.Errorf("%w: file path and filename are required", ErrInvalidInput)
	}
	if err := e.sessions.touch(sessionID); err != nil {
		return err
	}

	pages, err := e.extractor.ExtractPages(ctx, filePath)
	if err != nil {
		e.sessions.markError(sessionID, err)
		return fmt.Errorf("%w: text extraction: %v", ErrIngestionFailure, err)
	}

	chunks := e.chunker.Chunk(pages)
	if len(chunks) == 0 {
		err := fmt.Errorf("%w: document has no extractable text", ErrIngestionFailure)
		e.sessions.markError(sessionID, err)
		return err
	}

	index, err := e.indexer.BuildIndex(ctx, chunks)
	if err != nil {
		e.sessions.markError(sessionID, err)
		return err
	}

	characters := 0
	for _, p := range pages {
		characters += len(p.Text)
	}
	meta := &DocumentMeta{
		Filename:   originalFilename,
		Pages:      len(pages),
		Characters: characters,
	}

	if err := e.sessions.installDocument(sessionID, meta, chunks, index, filePath); err != nil {
		// Session was cleaned up mid-ingestion; nothing to install into.
		return err
	}
	log.Printf("Session %s indexed %q: %d pages, %d chunks", sessionID, originalFilename, len(pages), len(chunks))
	return nil
}

// GetAnswer answers a question strictly from the session's document. The
// session's read lock is held for the duration, so an answer never races a
// re-ingestion or cleanup of the same session; answers for different
// sessions and repeat answers for the same session run concurrently.
func (e *Engine) GetAnswer(ctx context.Context, sessionID, question string) (*AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidInput)
	}

	var result *AnswerResult
	err := e.sessions.withRead(sessionID, func(s *session) error {
		if s.state != StateIndexed || s.index.Size() == 0 {
			return ErrNoDocumentIngested
		}
		var answerErr error
		result, answerErr = e.answers.Answer(ctx, s.index, question)
		return answerErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateQuestions produces count fresh comprehension questions and caches
// them on the session, replacing any prior batch. Generation mutates the
// session's question cache, so it runs under the exclusive region.
func (e *Engine) GenerateQuestions(ctx context.Context, sessionID string, count int) ([]GeneratedQuestion, error) {
	var questions []GeneratedQuestion
	err := e.sessions.withWrite(sessionID, func(s *session) error {
		if s.state != StateIndexed || len(s.chunks) == 0 {
			return ErrNoDocumentIngested
		}
		var genErr error
		questions, genErr = e.questionGen.Generate(ctx, s.chunks, count)
		if genErr != nil {
			return genErr
		}
		s.questions = questions
		return nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// QuestionsForSession returns the session's cached question batch, oldest
// generation first. An empty slice means none have been generated yet.
func (e *Engine) QuestionsForSession(sessionID string) ([]GeneratedQuestion, error) {
	var questions []GeneratedQuestion
	err := e.sessions.withRead(sessionID, func(s *session) error {
		questions = make([]GeneratedQuestion, len(s.questions))
		copy(questions, s.questions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// SessionInfo returns a read-only snapshot of the session.
func (e *Engine) SessionInfo(sessionID string) (*SessionInfo, error) {
	return e.sessions.Info(sessionID)
}

// CleanupSession releases everything the session owns. Safe to call twice;
// the second call reports ErrSessionNotFound.
func (e *Engine) CleanupSession(sessionID string) error {
	return e.sessions.Cleanup(sessionID)
}

// ActiveSessions lists live session ids for health reporting.
func (e *Engine) ActiveSessions() []string {
	return e.sessions.ActiveSessions()
}
