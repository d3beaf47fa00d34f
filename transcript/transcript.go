package transcript

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/promptmesh/core"
)

// ErrMissingAgent is returned when an entry has no agent name.
var ErrMissingAgent = errors.New("transcript entry without agent")

// Prepare fills the id and timestamp of entry when they are unset.
func Prepare(entry core.TranscriptEntry, now func() time.Time) (core.TranscriptEntry, error) {
	if entry.Agent == "" {
		return entry, ErrMissingAgent
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now().UTC()
	}

	return entry, nil
}

// Options configures an InMemory store.
type Options struct {
	Now func() time.Time
}

// InMemory is a process-local core.TranscriptStore.
type InMemory struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string][]core.TranscriptEntry
}

var _ core.TranscriptStore = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory(optFns ...func(o *Options)) *InMemory {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemory{now: opts.Now, entries: make(map[string][]core.TranscriptEntry)}
}

// Append implements core.TranscriptStore.
func (s *InMemory) Append(_ context.Context, entry core.TranscriptEntry) error {
	entry, err := Prepare(entry, s.now)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[entry.Agent] = append(s.entries[entry.Agent], entry)
	s.mu.Unlock()

	return nil
}

// List implements core.TranscriptStore. A limit <= 0 returns everything.
func (s *InMemory) List(_ context.Context, agent string, limit int) ([]core.TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[agent]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	return append([]core.TranscriptEntry(nil), all...), nil
}
