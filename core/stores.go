package core

import (
	"context"
	"errors"
	"time"
)

// ErrPathTraversal is returned when a chain name would resolve outside the
// step store's root directory.
var ErrPathTraversal = errors.New("invalid path, chain name must not contain path separators")

// ErrTemplateNotFound is returned by template stores for unknown names.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateStore loads prompt templates by name. Stores may keep model
// specific variants and fall back to a shared default.
type TemplateStore interface {
	Load(name, modelID string) (string, error)
}

// StepStore persists chain step responses keyed by chain name then step
// number. Writes are last-writer-wins.
type StepStore interface {
	StepResponse(chainName string, step int) (string, error)
	SaveStepResponse(chainName string, step int, response string) error
}

// TranscriptEntry is a single logged conversation turn.
type TranscriptEntry struct {
	ID        string
	Agent     string
	Role      string
	Message   string
	Timestamp time.Time
}

// TranscriptStore is an append-only conversation log scoped by agent name.
type TranscriptStore interface {
	Append(ctx context.Context, entry TranscriptEntry) error
	List(ctx context.Context, agent string, limit int) ([]TranscriptEntry, error)
}
