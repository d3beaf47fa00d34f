package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/hupe1980/promptmesh/core"
)

// ErrNotFound is returned when deleting an unknown memory.
var ErrNotFound = errors.New("memory not found")

// Backend persists memory chunks grouped by collection.
type Backend interface {
	// Store saves content and returns the generated id.
	Store(ctx context.Context, collection, content string, metadata map[string]any) (string, error)
	// Search returns up to limit chunks ranked by relevance to query.
	Search(ctx context.Context, collection, query string, limit int) ([]core.SearchResult, error)
	// Delete removes a chunk by id.
	Delete(ctx context.Context, collection, id string) error
}

// Score rates content against query as the share of distinct query terms
// found in content. An empty query scores every chunk 1.
func Score(query, content string) float64 {
	terms := Terms(query)
	if len(terms) == 0 {
		return 1
	}

	have := make(map[string]struct{})
	for _, t := range Terms(content) {
		have[t] = struct{}{}
	}

	hits := 0
	for _, t := range terms {
		if _, ok := have[t]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(terms))
}

// Terms lower-cases text and returns its distinct alphanumeric words.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}

	return out
}

// Rank scores candidates, drops those without any hit and returns the best
// limit results. Ties keep the newest chunk first; candidates must be given
// oldest first.
func Rank(query string, candidates []core.SearchResult, limit int) []core.SearchResult {
	if limit <= 0 {
		return []core.SearchResult{}
	}

	ranked := make([]core.SearchResult, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		c.Score = Score(query, c.Content)
		if c.Score == 0 {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}
