package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// EmbeddingCache persists chunk embeddings keyed by content hash and model
// name, so re-ingesting identical text never pays for a second embedding
// call. Sessions themselves are deliberately not persisted; this cache is
// the only state that survives a restart.
type EmbeddingCache struct {
	db    *sql.DB
	model string
}

func NewEmbeddingCache(dataSourceName, embeddingModel string) (*EmbeddingCache, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cache := &EmbeddingCache{db: db, model: embeddingModel}
	if err = cache.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return cache, nil
}

func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}

func (c *EmbeddingCache) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS embeddings (
        content_hash TEXT NOT NULL,
        model TEXT NOT NULL,
        embedding_json TEXT NOT NULL, -- JSON-encoded []float32
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (content_hash, model)
    );
    `
	_, err := c.db.Exec(schema)
	return err
}

// Lookup returns the cached vector for a content hash, or (nil, nil) on a
// miss.
func (c *EmbeddingCache) Lookup(contentHash string) ([]float32, error) {
	var embeddingJSON string
	err := c.db.QueryRow(
		"SELECT embedding_json FROM embeddings WHERE content_hash = ? AND model = ?",
		contentHash, c.model,
	).Scan(&embeddingJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query embedding: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal([]byte(embeddingJSON), &embedding); err != nil {
		return nil, fmt.Errorf("failed to decode cached embedding: %w", err)
	}
	return embedding, nil
}

// Store writes or replaces the vector for a content hash.
func (c *EmbeddingCache) Store(contentHash string, embedding []float32) error {
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO embeddings (content_hash, model, embedding_json) VALUES (?, ?, ?)",
		contentHash, c.model, string(embeddingJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}
