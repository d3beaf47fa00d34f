package core

import (
	"fmt"
	"sync"
)

// FailureCounter counts provider failures across the lifetime of an engine
// instance. It is never reset by a successful call; only an explicit Reset
// (e.g. when a pooled engine is reused) clears it.
type FailureCounter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewFailureCounter creates a counter that reports exhaustion once max
// failures have been recorded. max <= 0 never exhausts.
func NewFailureCounter(max int) *FailureCounter {
	return &FailureCounter{max: max}
}

// Increment records a failure and returns an error once the limit is reached.
func (fc *FailureCounter) Increment() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.count++
	if fc.max > 0 && fc.count >= fc.max {
		return fmt.Errorf("reached max provider failures: %d", fc.max)
	}

	return nil
}

// Count returns the number of recorded failures.
func (fc *FailureCounter) Count() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return fc.count
}

// Remaining returns how many failures are left before exhaustion.
func (fc *FailureCounter) Remaining() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.max <= 0 {
		return -1 // unlimited
	}

	return fc.max - fc.count
}

// Reset clears the counter.
func (fc *FailureCounter) Reset() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.count = 0
}
