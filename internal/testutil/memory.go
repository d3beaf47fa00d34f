package testutil

import (
	"context"
	"errors"
	"sync"
)

// PageNode is a page in a StubMemory link graph.
type PageNode struct {
	Content string
	Links   []string
	Err     error
}

// StubMemory is a core.MemoryStore with scripted context and an in-process
// link graph for page fetches.
type StubMemory struct {
	Context    string
	ContextErr error
	LearnErr   error
	StoreErr   error
	Pages      map[string]PageNode

	mu          sync.Mutex
	contextArgs []int
	stored      [][2]string
	learned     []string
	fetches     map[string]int
	fetchOrder  []string
}

// NewStubMemory creates an empty stub.
func NewStubMemory() *StubMemory {
	return &StubMemory{Pages: map[string]PageNode{}, fetches: map[string]int{}}
}

// ContextFor implements core.MemoryStore.
func (m *StubMemory) ContextFor(_ context.Context, _ string, topK int) (string, error) {
	m.mu.Lock()
	m.contextArgs = append(m.contextArgs, topK)
	m.mu.Unlock()
	return m.Context, m.ContextErr
}

// Store implements core.MemoryStore.
func (m *StubMemory) Store(_ context.Context, input, result string) error {
	if m.StoreErr != nil {
		return m.StoreErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, [2]string{input, result})
	return nil
}

// ReadLearningFile implements core.MemoryStore.
func (m *StubMemory) ReadLearningFile(_ context.Context, path string) error {
	if m.LearnErr != nil {
		return m.LearnErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learned = append(m.learned, path)
	return nil
}

// FetchPage implements core.MemoryStore using the Pages graph.
func (m *StubMemory) FetchPage(_ context.Context, url string) (string, []string, error) {
	m.mu.Lock()
	m.fetches[url]++
	m.fetchOrder = append(m.fetchOrder, url)
	node, ok := m.Pages[url]
	m.mu.Unlock()

	if !ok {
		return "", nil, errors.New("page not found: " + url)
	}
	return node.Content, node.Links, node.Err
}

// ContextDepths returns the topK values seen by ContextFor.
func (m *StubMemory) ContextDepths() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.contextArgs...)
}

// Stored returns the (input, result) pairs stored.
func (m *StubMemory) Stored() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]string(nil), m.stored...)
}

// Learned returns the learning files ingested.
func (m *StubMemory) Learned() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.learned...)
}

// FetchCount returns how often url was fetched.
func (m *StubMemory) FetchCount(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[url]
}

// FetchOrder returns fetched urls in call order.
func (m *StubMemory) FetchOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetchOrder...)
}
