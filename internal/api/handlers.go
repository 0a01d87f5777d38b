package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/docqa/doc-qa-service/internal/core"
)

const (
	sessionCookieName = "doc_qa_session"
	maxUploadBytes    = 16 << 20 // 16MB, matching the upload contract
)

type APIHandler struct {
	engine    *core.Engine
	uploadDir string
}

func NewAPIHandler(engine *core.Engine, uploadDir string) *APIHandler {
	return &APIHandler{engine: engine, uploadDir: uploadDir}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"active_sessions": len(h.engine.ActiveSessions()),
	})
}

func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErrorMessage(w, http.StatusRequestEntityTooLarge, "File too large. Max size is 16MB.")
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "No PDF file provided")
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "No PDF file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeErrorMessage(w, http.StatusBadRequest, "No file selected")
		return
	}
	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		writeErrorMessage(w, http.StatusBadRequest, "File must be a PDF")
		return
	}

	sessionID, err := h.getOrCreateSession(w, r)
	if err != nil {
		log.Printf("Failed to create session for upload: %v", err)
		writeError(w, err)
		return
	}

	path := filepath.Join(h.uploadDir, fmt.Sprintf("%s_%s", sessionID, filename))
	dst, err := os.Create(path)
	if err != nil {
		log.Printf("Failed to create upload file %s: %v", path, err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		log.Printf("Failed to save upload %s: %v", path, err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal_error")
		return
	}
	dst.Close()

	if err := h.engine.ProcessPDF(r.Context(), path, sessionID, filename); err != nil {
		// On ingestion failure the uploaded file stays ours to delete.
		os.Remove(path)
		log.Printf("ProcessPDF failed for session %s: %v", sessionID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "PDF processed successfully",
		"session_id": sessionID,
		"filename":   filename,
	})
}

type generateQuestionsRequest struct {
	NumQuestions int `json:"num_questions"`
}

func (h *APIHandler) GenerateQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromCookie(w, r)
	if !ok {
		return
	}

	req := generateQuestionsRequest{NumQuestions: 5}
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	// Transport-level clamp; the engine clamps again defensively.
	count := req.NumQuestions
	if count < core.MinQuestions {
		count = core.MinQuestions
	}
	if count > core.MaxQuestions {
		count = core.MaxQuestions
	}

	questions, err := h.engine.GenerateQuestions(r.Context(), sessionID, count)
	if err != nil {
		log.Printf("GenerateQuestions failed for session %s: %v", sessionID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"questions":  questions,
		"session_id": sessionID,
		"count":      len(questions),
	})
}

type getAnswerRequest struct {
	Question string `json:"question"`
}

func (h *APIHandler) GetAnswerHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromCookie(w, r)
	if !ok {
		return
	}

	var req getAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "No question provided")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Question cannot be empty")
		return
	}

	result, err := h.engine.GetAnswer(r.Context(), sessionID, question)
	if err != nil {
		log.Printf("GetAnswer failed for session %s: %v", sessionID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"question":   question,
		"answer":     result.Answer,
		"sources":    result.Sources,
		"confidence": result.Confidence,
		"session_id": sessionID,
	})
}

func (h *APIHandler) QuestionsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromCookie(w, r)
	if !ok {
		return
	}

	questions, err := h.engine.QuestionsForSession(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.engine.SessionInfo(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"questions":    questions,
		"session_id":   sessionID,
		"session_info": info,
		"count":        len(questions),
	})
}

func (h *APIHandler) SessionInfoHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromCookie(w, r)
	if !ok {
		return
	}

	info, err := h.engine.SessionInfo(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   sessionID,
		"session_info": info,
	})
}

func (h *APIHandler) CleanupSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionFromCookie(w, r)
	if !ok {
		return
	}

	if err := h.engine.CleanupSession(sessionID); err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Session cleaned up successfully"})
}

// getOrCreateSession resolves the caller's session from the cookie, minting
// a fresh session (and cookie) when there is none or the old one is gone.
func (h *APIHandler) getOrCreateSession(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.engine.SessionInfo(cookie.Value); err == nil {
			return cookie.Value, nil
		}
	}

	sessionID, err := h.engine.CreateSession()
	if err != nil {
		return "", err
	}
	log.Printf("New session created: %s", sessionID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID, nil
}

// sessionFromCookie requires an existing session cookie, writing the "no
// active session" error itself when absent.
func (h *APIHandler) sessionFromCookie(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeErrorMessage(w, http.StatusBadRequest, "No active session")
		return "", false
	}
	return cookie.Value, true
}

// sanitizeFilename reduces a client-supplied filename to a safe base name.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// writeError maps core error kinds onto stable status codes and reason
// strings. Provider and internal detail never reaches the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrNoDocumentIngested):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrIngestionFailure):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrProviderFailure):
		status = http.StatusBadGateway
	}
	writeErrorMessage(w, status, core.Reason(err))
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
