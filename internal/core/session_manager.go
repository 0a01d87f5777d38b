package core

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxSessions = 100
	DefaultIdleTTL     = 30 * time.Minute
)

// session is the unit of per-user state. All fields after id are guarded by
// mu. The index pointer is swapped whole under the write lock, never mutated
// in place, so a reader can never observe a half-built index.
type session struct {
	mu sync.RWMutex

	id           string
	released     bool
	state        SessionState
	doc          *DocumentMeta
	chunks       []DocumentChunk
	index        *Index
	questions    []GeneratedQuestion
	uploadPath   string
	createdAt    time.Time
	lastActivity time.Time
}

// SessionManager owns the session registry. It is constructed once at process
// start and passed to every component that needs it; nothing else holds
// session references. Sessions are in-memory only and do not survive a
// restart.
type SessionManager struct {
	mu          sync.Mutex // guards the registry map, never held across session work
	sessions    map[string]*session
	maxSessions int
	idleTTL     time.Duration
}

func NewSessionManager(maxSessions int, idleTTL time.Duration) *SessionManager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &SessionManager{
		sessions:    make(map[string]*session),
		maxSessions: maxSessions,
		idleTTL:     idleTTL,
	}
}

// Create allocates a fresh session in state EMPTY. When the registry is at
// capacity the least-recently-active session is evicted first. Ids are uuids
// and never reused.
func (m *SessionManager) Create() (string, error) {
	now := time.Now()

	m.mu.Lock()
	expired := m.collectIdleLocked(now)
	var evicted *session
	if len(m.sessions)-len(expired) >= m.maxSessions {
		evicted = m.idlestLocked(expired)
	}
	for _, s := range expired {
		delete(m.sessions, s.id)
	}
	if evicted != nil {
		delete(m.sessions, evicted.id)
	}

	s := &session{
		id:           uuid.NewString(),
		state:        StateEmpty,
		createdAt:    now,
		lastActivity: now,
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	for _, gone := range expired {
		m.release(gone)
	}
	if evicted != nil {
		log.Printf("Session registry at capacity (%d); evicting idle session %s", m.maxSessions, evicted.id)
		m.release(evicted)
	}

	return s.id, nil
}

// ActiveSessions lists sessions not yet cleaned up, sweeping out idle ones
// on the way. Used for health/monitoring only.
func (m *SessionManager) ActiveSessions() []string {
	now := time.Now()

	m.mu.Lock()
	expired := m.collectIdleLocked(now)
	for _, s := range expired {
		delete(m.sessions, s.id)
	}
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, gone := range expired {
		m.release(gone)
	}
	return ids
}

// Info returns a read-only snapshot of one session.
func (m *SessionManager) Info(id string) (*SessionInfo, error) {
	var info *SessionInfo
	err := m.withRead(id, func(s *session) error {
		info = &SessionInfo{
			ID:            s.id,
			State:         s.state,
			ChunkCount:    len(s.chunks),
			QuestionCount: len(s.questions),
			CreatedAt:     s.createdAt,
			LastActivity:  s.lastActivity,
		}
		if s.doc != nil {
			docCopy := *s.doc
			info.Document = &docCopy
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Cleanup releases the session's index, chunks, cached questions and uploaded
// file, then forgets the id. Calling it again on the same id reports
// ErrSessionNotFound, not a crash.
func (m *SessionManager) Cleanup(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("cleanup: %w", ErrSessionNotFound)
	}
	m.release(s)
	return nil
}

// release waits out in-flight readers, drops everything the session owns and
// marks the session released, so a lookup that raced the registry delete
// reports not-found instead of reading cleared state.
func (m *SessionManager) release(s *session) {
	s.mu.Lock()
	path := s.uploadPath
	s.released = true
	s.doc = nil
	s.chunks = nil
	s.index = nil
	s.questions = nil
	s.uploadPath = ""
	s.mu.Unlock()

	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove uploaded file %s for session %s: %v", path, s.id, err)
		}
	}
}

// lookup must be called with m.mu held by no one. It applies lazy idle
// expiry: an expired session is released and reported as not found.
func (m *SessionManager) lookup(id string) (*session, error) {
	now := time.Now()

	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		s.mu.RLock()
		idle := now.Sub(s.lastActivity)
		s.mu.RUnlock()
		if idle > m.idleTTL {
			delete(m.sessions, id)
			m.mu.Unlock()
			m.release(s)
			return nil, ErrSessionNotFound
		}
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// withRead runs fn holding the session's read lock. Reads of the same
// session run concurrently with each other but never with an installation
// or cleanup; different sessions never contend. A cleanup can land between
// the registry lookup and the read lock, so the released flag is re-checked
// under the lock before fn sees any state.
func (m *SessionManager) withRead(id string, fn func(*session) error) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	// Reads count as activity for idle expiry; last-activity needs the
	// write lock, taken briefly before the shared region.
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return ErrSessionNotFound
	}
	return fn(s)
}

// withWrite runs fn holding the session's write lock and bumps last-activity.
func (m *SessionManager) withWrite(id string, fn func(*session) error) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrSessionNotFound
	}
	s.lastActivity = time.Now()
	return fn(s)
}

// touch refreshes last-activity without holding the lock across caller work.
func (m *SessionManager) touch(id string) error {
	return m.withWrite(id, func(*session) error { return nil })
}

// installDocument atomically replaces the session's document set: metadata,
// chunks, index and upload path swap together and cached questions are
// invalidated. The previous uploaded file, if different, is removed.
func (m *SessionManager) installDocument(id string, doc *DocumentMeta, chunks []DocumentChunk, index *Index, uploadPath string) error {
	var oldPath string
	err := m.withWrite(id, func(s *session) error {
		oldPath = s.uploadPath
		s.state = StateIndexed
		s.doc = doc
		s.chunks = chunks
		s.index = index
		s.questions = nil
		s.uploadPath = uploadPath
		return nil
	})
	if err != nil {
		return err
	}
	if oldPath != "" && oldPath != uploadPath {
		if rmErr := os.Remove(oldPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("Failed to remove replaced upload %s for session %s: %v", oldPath, id, rmErr)
		}
	}
	return nil
}

// markError records a failed ingestion. The prior document, if any, is
// discarded along with it: the transport has already replaced or deleted the
// file it was built from, so answers served from the stale index would cite
// a document the user no longer sees.
func (m *SessionManager) markError(id string, cause error) {
	err := m.withWrite(id, func(s *session) error {
		s.state = StateError
		s.clearDocumentLocked()
		return nil
	})
	if err != nil {
		log.Printf("Could not mark session %s as errored (%v): %v", id, cause, err)
		return
	}
	log.Printf("Session %s moved to ERROR: %v", id, cause)
}

// clearDocument drops the document set ahead of a re-ingestion without
// touching the session's lifecycle timestamps.
func (m *SessionManager) clearDocument(id string) error {
	return m.withWrite(id, func(s *session) error {
		s.clearDocumentLocked()
		s.state = StateEmpty
		return nil
	})
}

func (s *session) clearDocumentLocked() {
	s.doc = nil
	s.chunks = nil
	s.index = nil
	s.questions = nil
}

// collectIdleLocked gathers sessions past the idle TTL. Caller holds m.mu.
func (m *SessionManager) collectIdleLocked(now time.Time) []*session {
	var expired []*session
	for _, s := range m.sessions {
		s.mu.RLock()
		idle := now.Sub(s.lastActivity)
		s.mu.RUnlock()
		if idle > m.idleTTL {
			expired = append(expired, s)
		}
	}
	return expired
}

// idlestLocked finds the least-recently-active session not already slated
// for expiry. Caller holds m.mu.
func (m *SessionManager) idlestLocked(excluded []*session) *session {
	skip := make(map[string]bool, len(excluded))
	for _, s := range excluded {
		skip[s.id] = true
	}
	var oldest *session
	var oldestAt time.Time
	for _, s := range m.sessions {
		if skip[s.id] {
			continue
		}
		s.mu.RLock()
		at := s.lastActivity
		s.mu.RUnlock()
		if oldest == nil || at.Before(oldestAt) {
			oldest = s
			oldestAt = at
		}
	}
	return oldest
}
