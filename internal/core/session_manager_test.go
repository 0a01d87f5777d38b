package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIdsAreUnique(t *testing.T) {
	m := NewSessionManager(10, time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		id, err := m.Create()
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, m.ActiveSessions(), 5)
}

func TestLookupUnknownSession(t *testing.T) {
	m := NewSessionManager(10, time.Hour)

	_, err := m.Info("never-created")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCapacityEvictsLeastRecentlyActive(t *testing.T) {
	m := NewSessionManager(2, time.Hour)

	first, _ := m.Create()
	time.Sleep(5 * time.Millisecond)
	second, _ := m.Create()
	time.Sleep(5 * time.Millisecond)

	// Touch the first so the second becomes the eviction candidate.
	require.NoError(t, m.touch(first))

	third, _ := m.Create()

	active := m.ActiveSessions()
	assert.Len(t, active, 2)
	assert.Contains(t, active, first)
	assert.Contains(t, active, third)
	assert.NotContains(t, active, second)

	_, err := m.Info(second)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIdleSessionsExpireLazily(t *testing.T) {
	m := NewSessionManager(10, 20*time.Millisecond)

	id, _ := m.Create()
	time.Sleep(40 * time.Millisecond)

	_, err := m.Info(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, m.ActiveSessions())
}

func TestActivityDefersExpiry(t *testing.T) {
	m := NewSessionManager(10, 50*time.Millisecond)

	id, _ := m.Create()
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		_, err := m.Info(id)
		require.NoError(t, err, "an active session must not expire")
	}
}

func TestInstallDocumentReplacesEverything(t *testing.T) {
	m := NewSessionManager(10, time.Hour)
	id, _ := m.Create()

	index, err := newIndex(
		[]DocumentChunk{{Position: 0, Text: "hello"}},
		[][]float32{{1}},
	)
	require.NoError(t, err)
	meta := &DocumentMeta{Filename: "doc.pdf", Pages: 1, Characters: 5}
	require.NoError(t, m.installDocument(id, meta, index.Chunks(), index, ""))

	info, err := m.Info(id)
	require.NoError(t, err)
	assert.Equal(t, StateIndexed, info.State)
	assert.Equal(t, 1, info.ChunkCount)
	require.NotNil(t, info.Document)
	assert.Equal(t, "doc.pdf", info.Document.Filename)

	m.markError(id, assert.AnError)
	info, err = m.Info(id)
	require.NoError(t, err)
	assert.Equal(t, StateError, info.State)
	assert.Zero(t, info.ChunkCount, "a failed re-ingestion discards the prior document")
	assert.Nil(t, info.Document)
}

func TestClearDocumentResetsToEmpty(t *testing.T) {
	m := NewSessionManager(10, time.Hour)
	id, _ := m.Create()

	index, err := newIndex(
		[]DocumentChunk{{Position: 0, Text: "hello"}},
		[][]float32{{1}},
	)
	require.NoError(t, err)
	require.NoError(t, m.installDocument(id, &DocumentMeta{Filename: "doc.pdf"}, index.Chunks(), index, ""))
	require.NoError(t, m.clearDocument(id))

	info, err := m.Info(id)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, info.State)
	assert.Nil(t, info.Document)
}

func TestReadRacingCleanupReportsNotFound(t *testing.T) {
	m := NewSessionManager(10, time.Hour)
	id, _ := m.Create()

	index, err := newIndex(
		[]DocumentChunk{{Position: 0, Text: "hello"}},
		[][]float32{{1}},
	)
	require.NoError(t, err)
	require.NoError(t, m.installDocument(id, &DocumentMeta{Filename: "doc.pdf"}, index.Chunks(), index, ""))

	// Cleanup can land between a reader's registry lookup and its read lock;
	// the released flag is what keeps that reader from seeing cleared state.
	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()
	require.NoError(t, m.Cleanup(id))

	s.mu.RLock()
	released := s.released
	s.mu.RUnlock()
	assert.True(t, released)

	// Hammer the same interleaving: a reader may see the full document or
	// not-found, never an indexed session with its artifacts gone.
	id2, _ := m.Create()
	require.NoError(t, m.installDocument(id2, &DocumentMeta{Filename: "doc.pdf"}, index.Chunks(), index, ""))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			info, err := m.Info(id2)
			if err != nil {
				assert.ErrorIs(t, err, ErrSessionNotFound)
				continue
			}
			if info.State == StateIndexed {
				assert.Positive(t, info.ChunkCount, "an indexed session must still hold its chunks")
			}
		}
	}()
	require.NoError(t, m.Cleanup(id2))
	<-done
}

func TestCleanupTwiceReportsNotFound(t *testing.T) {
	m := NewSessionManager(10, time.Hour)
	id, _ := m.Create()

	require.NoError(t, m.Cleanup(id))
	assert.ErrorIs(t, m.Cleanup(id), ErrSessionNotFound)
}
