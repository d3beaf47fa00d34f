package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/promptmesh/core"
)

// MapTemplates is a core.TemplateStore over a plain map.
type MapTemplates map[string]string

// Load implements core.TemplateStore.
func (m MapTemplates) Load(name, _ string) (string, error) {
	if t, ok := m[name]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
}

// MapSearcher is a core.Searcher returning canned results per query.
type MapSearcher struct {
	Results map[string][]string
	Err     error

	mu      sync.Mutex
	queries []string
}

// Search implements core.Searcher.
func (s *MapSearcher) Search(_ context.Context, query string) ([]string, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]string(nil), s.Results[query]...), nil
}

// Queries returns the queries received.
func (s *MapSearcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// CountingSteps is a core.StepStore over a map that counts reads.
type CountingSteps struct {
	Responses map[string]map[int]string

	mu    sync.Mutex
	reads int
}

// StepResponse implements core.StepStore.
func (c *CountingSteps) StepResponse(chainName string, step int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	r, ok := c.Responses[chainName][step]
	if !ok {
		return "", fmt.Errorf("no step %d in %s", step, chainName)
	}
	return r, nil
}

// SaveStepResponse implements core.StepStore.
func (c *CountingSteps) SaveStepResponse(chainName string, step int, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Responses == nil {
		c.Responses = map[string]map[int]string{}
	}
	if c.Responses[chainName] == nil {
		c.Responses[chainName] = map[int]string{}
	}
	c.Responses[chainName][step] = response
	return nil
}

// Reads returns the number of StepResponse calls.
func (c *CountingSteps) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
