package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
	"github.com/hupe1980/promptmesh/memory"
	"github.com/hupe1980/promptmesh/tool"
	"github.com/hupe1980/promptmesh/transcript"
)

// ErrMissingProvider is returned by New when no provider is configured.
var ErrMissingProvider = errors.New("agent requires a provider")

// Options configures an Agent.
type Options struct {
	// ModelID selects model specific templates.
	ModelID  string
	Provider core.Provider
	// Memory defaults to an in-memory store scoped to the agent name.
	Memory core.MemoryStore
	// Transcript defaults to an in-memory log.
	Transcript core.TranscriptStore
	// Settings are provider settings such as SEARXNG_INSTANCE_URL.
	Settings map[string]string
	Tools    []tool.Tool
	// ToolTimeout bounds a single command execution; zero disables it.
	ToolTimeout time.Duration
	Logger      logging.Logger
}

// Agent implements core.Agent.
type Agent struct {
	name        string
	modelID     string
	provider    core.Provider
	memory      core.MemoryStore
	transcript  core.TranscriptStore
	settings    map[string]string
	registry    *tool.Registry
	commands    string
	toolTimeout time.Duration
	logger      logging.Logger
}

var _ core.Agent = (*Agent)(nil)

// New creates an agent. The capability registry is fixed after New returns.
func New(name string, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		ToolTimeout: 15 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Provider == nil {
		return nil, ErrMissingProvider
	}

	if opts.Memory == nil {
		opts.Memory = memory.New(name, func(o *memory.Options) { o.Logger = opts.Logger })
	}

	if opts.Transcript == nil {
		opts.Transcript = transcript.NewInMemory()
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}

	settings := make(map[string]string, len(opts.Settings))
	for k, v := range opts.Settings {
		settings[k] = v
	}

	return &Agent{
		name:        name,
		modelID:     opts.ModelID,
		provider:    opts.Provider,
		memory:      opts.Memory,
		transcript:  opts.Transcript,
		settings:    settings,
		registry:    registry,
		commands:    registry.CommandListString(),
		toolTimeout: opts.ToolTimeout,
		logger:      logging.OrNoOp(opts.Logger),
	}, nil
}

// Name implements core.Agent.
func (a *Agent) Name() string { return a.name }

// ModelID implements core.Agent.
func (a *Agent) ModelID() string { return a.modelID }

// CommandListString implements core.Agent.
func (a *Agent) CommandListString() string { return a.commands }

// Capabilities implements core.Agent.
func (a *Agent) Capabilities() []core.Capability { return a.registry.Capabilities() }

// Execute implements core.Agent.
func (a *Agent) Execute(ctx context.Context, displayName string, args map[string]any) (string, error) {
	if timeout := a.registry.Timeout(displayName, a.toolTimeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := a.registry.Execute(ctx, displayName, args)

	if err != nil {
		a.logger.Warn("agent.command.failed", "agent", a.name, "command", displayName, "error", err.Error())
		return "", err
	}

	a.logger.Debug("agent.command.executed", "agent", a.name, "command", displayName,
		"duration_ms", time.Since(start).Milliseconds())

	return out, nil
}

// Provider implements core.Agent.
func (a *Agent) Provider() core.Provider { return a.provider }

// Memory implements core.Agent.
func (a *Agent) Memory() core.MemoryStore { return a.memory }

// Setting implements core.Agent.
func (a *Agent) Setting(key string) string { return a.settings[key] }

// Transcript returns the agent's transcript store.
func (a *Agent) Transcript() core.TranscriptStore { return a.transcript }

// LogTurn implements core.Agent.
func (a *Agent) LogTurn(ctx context.Context, role, message string) error {
	return a.transcript.Append(ctx, core.TranscriptEntry{
		Agent:   a.name,
		Role:    role,
		Message: message,
	})
}
