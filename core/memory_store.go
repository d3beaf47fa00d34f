package core

import "context"

// MemoryStore is the long-term memory collaborator of an agent.
type MemoryStore interface {
	// ContextFor returns the topK most relevant memories for query rendered as text.
	ContextFor(ctx context.Context, query string, topK int) (string, error)

	// Store persists an interaction result for later retrieval.
	Store(ctx context.Context, input, result string) error

	// ReadLearningFile ingests the file at path into memory.
	ReadLearningFile(ctx context.Context, path string) error

	// FetchPage reads a web page into memory and returns its content and
	// outbound links.
	FetchPage(ctx context.Context, url string) (string, []string, error)
}
