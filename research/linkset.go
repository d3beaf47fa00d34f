package research

import "sync"

// LinkSet records visited URLs. It only grows until Reset.
type LinkSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewLinkSet creates an empty set.
func NewLinkSet() *LinkSet {
	return &LinkSet{seen: map[string]struct{}{}}
}

// Add inserts url and reports whether it was new.
func (s *LinkSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[url]; ok {
		return false
	}

	s.seen[url] = struct{}{}
	s.order = append(s.order, url)

	return true
}

// Contains reports whether url was visited.
func (s *LinkSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.seen[url]

	return ok
}

// Len returns the number of visited URLs.
func (s *LinkSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.order)
}

// List returns the visited URLs in visit order.
func (s *LinkSet) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}

// Reset empties the set.
func (s *LinkSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = map[string]struct{}{}
	s.order = nil
}
