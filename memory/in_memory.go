package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/promptmesh/core"
)

// StoredMemory is the internal representation persisted by InMemoryBackend.
type StoredMemory struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// InMemoryBackend is a naive process-local Backend. Search is a linear scan
// ranked by term overlap; swap for a vector index for semantic retrieval.
//
// Concurrency: protected by RWMutex.
type InMemoryBackend struct {
	mu      sync.RWMutex
	storage map[string][]StoredMemory // collection -> memories, oldest first
}

var _ Backend = (*InMemoryBackend)(nil)

// NewInMemoryBackend creates a new in-memory backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{storage: make(map[string][]StoredMemory)}
}

// Store appends a memory under a random id.
func (m *InMemoryBackend) Store(_ context.Context, collection, content string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.storage[collection] = append(m.storage[collection], StoredMemory{
		ID:       id,
		Content:  content,
		Metadata: copyMetadata(metadata),
	})

	return id, nil
}

// Search ranks the collection against query.
func (m *InMemoryBackend) Search(_ context.Context, collection, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	stored := m.storage[collection]
	candidates := make([]core.SearchResult, 0, len(stored))
	for _, s := range stored {
		candidates = append(candidates, core.SearchResult{ID: s.ID, Content: s.Content, Metadata: copyMetadata(s.Metadata)})
	}
	m.mu.RUnlock()

	return Rank(query, candidates, limit), nil
}

// Delete removes a stored memory entry by id.
func (m *InMemoryBackend) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.storage[collection]
	for i, s := range stored {
		if s.ID == id {
			m.storage[collection] = append(stored[:i:i], stored[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Len returns the number of chunks in collection.
func (m *InMemoryBackend) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.storage[collection])
}

func copyMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}

	return out
}
