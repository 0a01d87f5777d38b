package core

import "errors"

// Error kinds crossing the core boundary. Component-level failures
// (extraction, embedding, provider calls) are converted into these; raw
// provider errors never leave the engine. Callers match with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoDocumentIngested = errors.New("no document ingested")
	ErrIngestionFailure   = errors.New("ingestion failed")
	ErrProviderFailure    = errors.New("provider failure")
	ErrInternal           = errors.New("internal error")
)

// Reason maps an error to its stable, machine-checkable reason string.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrNoDocumentIngested):
		return "no_document_ingested"
	case errors.Is(err, ErrIngestionFailure):
		return "ingestion_failure"
	case errors.Is(err, ErrProviderFailure):
		return "provider_failure"
	default:
		return "internal_error"
	}
}
