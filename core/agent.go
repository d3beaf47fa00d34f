package core

import "context"

// Capability describes an executable command exposed by an agent. Commands are
// matched by their display name with an exact string comparison.
type Capability struct {
	DisplayName string
	Description string
	Parameters  map[string]any
}

// Agent is the long-lived entity an interaction runs on behalf of. It is
// constructed once per name and owns the capability registry, the provider
// and the memory store.
type Agent interface {
	// Name returns the agent identity injected as {agent_name}.
	Name() string

	// ModelID identifies the configured model; used for per-model templates.
	ModelID() string

	// CommandListString renders the available commands for prompt injection.
	CommandListString() string

	// Capabilities returns the registry content in a stable order.
	Capabilities() []Capability

	// Execute runs the capability with the given display name.
	Execute(ctx context.Context, displayName string, args map[string]any) (string, error)

	// Provider returns the model backend used for generation.
	Provider() Provider

	// Memory returns the agent's memory store.
	Memory() MemoryStore

	// Setting returns a provider setting (e.g. SEARXNG_INSTANCE_URL) or "".
	Setting(key string) string

	// LogTurn appends a turn to the agent's transcript.
	LogTurn(ctx context.Context, role, message string) error
}
