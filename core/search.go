package core

import "context"

// SearchResult represents a retrieved memory item with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// Searcher queries an external web search service and returns result URLs in
// ranking order. A searcher without a configured endpoint returns no results
// and no error.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Page is the outcome of reading a single web page.
type Page struct {
	URL     string
	Title   string
	Content string
	Links   []string
}

// PageFetcher retrieves a page and extracts its readable text and links.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}
