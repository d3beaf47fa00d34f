package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
)

// ErrNoFetcher is returned by FetchPage when no page fetcher is configured.
var ErrNoFetcher = errors.New("no page fetcher configured")

// DefaultChunkWords is the default chunk size in words.
const DefaultChunkWords = 200

// Options configures Memories.
type Options struct {
	Backend Backend
	Fetcher core.PageFetcher
	// ChunkWords bounds the size of a stored chunk.
	ChunkWords int
	Logger     logging.Logger
}

// Memories is the core.MemoryStore of one agent. Every chunk is stored in
// the collection named after the agent.
type Memories struct {
	collection string
	opts       Options
	logger     logging.Logger
}

var _ core.MemoryStore = (*Memories)(nil)

// New creates the memory of the agent named collection.
func New(collection string, optFns ...func(o *Options)) *Memories {
	opts := Options{
		ChunkWords: DefaultChunkWords,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Backend == nil {
		opts.Backend = NewInMemoryBackend()
	}

	if opts.ChunkWords <= 0 {
		opts.ChunkWords = DefaultChunkWords
	}

	return &Memories{
		collection: collection,
		opts:       opts,
		logger:     logging.OrNoOp(opts.Logger),
	}
}

// Collection returns the backend collection name.
func (m *Memories) Collection() string { return m.collection }

// ContextFor returns the topK best matching chunks joined by newlines.
func (m *Memories) ContextFor(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		return "", nil
	}

	results, err := m.opts.Backend.Search(ctx, m.collection, query, topK)
	if err != nil {
		return "", fmt.Errorf("memory search: %w", err)
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}

	return strings.Join(parts, "\n"), nil
}

// Store saves an interaction result tagged with the input that produced it.
func (m *Memories) Store(ctx context.Context, input, result string) error {
	return m.storeText(ctx, result, map[string]any{"source": "interaction", "input": input})
}

// ReadLearningFile ingests a local text file.
func (m *Memories) ReadLearningFile(ctx context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read learning file: %w", err)
	}

	return m.storeText(ctx, string(b), map[string]any{"source": "file", "path": path})
}

// FetchPage reads url, stores its text and returns it with the page links.
func (m *Memories) FetchPage(ctx context.Context, url string) (string, []string, error) {
	if m.opts.Fetcher == nil {
		return "", nil, ErrNoFetcher
	}

	page, err := m.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		return "", nil, err
	}

	if err := m.storeText(ctx, page.Content, map[string]any{"source": "web", "url": url, "title": page.Title}); err != nil {
		return "", nil, err
	}

	return page.Content, page.Links, nil
}

func (m *Memories) storeText(ctx context.Context, text string, metadata map[string]any) error {
	chunks := Chunk(text, m.opts.ChunkWords)
	for i, c := range chunks {
		md := copyMetadata(metadata)
		md["chunk"] = i
		if _, err := m.opts.Backend.Store(ctx, m.collection, c, md); err != nil {
			return fmt.Errorf("memory store: %w", err)
		}
	}

	m.logger.Debug("memory.stored", "collection", m.collection, "chunks", len(chunks), "source", metadata["source"])

	return nil
}

// Chunk splits text into pieces of at most size words. Whitespace is
// normalised to single spaces.
func Chunk(text string, size int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	if size <= 0 {
		size = DefaultChunkWords
	}

	chunks := make([]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}

	return chunks
}
