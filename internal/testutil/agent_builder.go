package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/promptmesh/core"
)

// CommandFunc is the implementation of a stub capability.
type CommandFunc func(ctx context.Context, args map[string]any) (string, error)

// Turn is a recorded transcript entry.
type Turn struct{ Role, Message string }

// StubAgent is a configurable core.Agent recording executions and turns.
type StubAgent struct {
	name     string
	modelID  string
	provider core.Provider
	memory   core.MemoryStore
	settings map[string]string
	commands map[string]CommandFunc
	order    []string

	mu         sync.Mutex
	executions []core.CommandInvocation
	turns      []Turn
	turnErr    error
}

// AgentBuilder helps construct stub agents with fluent chaining.
//
//	a := NewAgentBuilder("AGiXT").Provider(p).Command("Echo", fn).Build()
type AgentBuilder struct{ a *StubAgent }

// NewAgentBuilder starts a builder for an agent with the given name.
func NewAgentBuilder(name string) *AgentBuilder {
	return &AgentBuilder{a: &StubAgent{
		name:     name,
		modelID:  "mock-model",
		settings: map[string]string{},
		commands: map[string]CommandFunc{},
	}}
}

// Provider sets the provider (chainable).
func (b *AgentBuilder) Provider(p core.Provider) *AgentBuilder { b.a.provider = p; return b }

// Memory sets the memory store (chainable).
func (b *AgentBuilder) Memory(m core.MemoryStore) *AgentBuilder { b.a.memory = m; return b }

// ModelID sets the model id (chainable).
func (b *AgentBuilder) ModelID(id string) *AgentBuilder { b.a.modelID = id; return b }

// Setting sets a provider setting (chainable).
func (b *AgentBuilder) Setting(k, v string) *AgentBuilder { b.a.settings[k] = v; return b }

// TurnError makes LogTurn fail (chainable).
func (b *AgentBuilder) TurnError(err error) *AgentBuilder { b.a.turnErr = err; return b }

// Command registers a capability (chainable).
func (b *AgentBuilder) Command(name string, fn CommandFunc) *AgentBuilder {
	b.a.commands[name] = fn
	b.a.order = append(b.a.order, name)
	return b
}

// Build returns the configured agent.
func (b *AgentBuilder) Build() *StubAgent { return b.a }

// Name implements core.Agent.
func (a *StubAgent) Name() string { return a.name }

// ModelID implements core.Agent.
func (a *StubAgent) ModelID() string { return a.modelID }

// CommandListString implements core.Agent.
func (a *StubAgent) CommandListString() string {
	names := append([]string(nil), a.order...)
	sort.Strings(names)
	var sb strings.Builder
	for _, n := range names {
		fmt.Fprintf(&sb, "%s - {}\n", n)
	}
	return sb.String()
}

// Capabilities implements core.Agent.
func (a *StubAgent) Capabilities() []core.Capability {
	caps := make([]core.Capability, 0, len(a.order))
	for _, n := range a.order {
		caps = append(caps, core.Capability{DisplayName: n})
	}
	return caps
}

// Execute implements core.Agent.
func (a *StubAgent) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	a.mu.Lock()
	a.executions = append(a.executions, core.CommandInvocation{Name: name, Args: args})
	a.mu.Unlock()

	fn, ok := a.commands[name]
	if !ok {
		return "", fmt.Errorf("unknown command %q", name)
	}
	return fn(ctx, args)
}

// Provider implements core.Agent.
func (a *StubAgent) Provider() core.Provider { return a.provider }

// Memory implements core.Agent.
func (a *StubAgent) Memory() core.MemoryStore { return a.memory }

// Setting implements core.Agent.
func (a *StubAgent) Setting(key string) string { return a.settings[key] }

// LogTurn implements core.Agent.
func (a *StubAgent) LogTurn(_ context.Context, role, message string) error {
	if a.turnErr != nil {
		return a.turnErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.turns = append(a.turns, Turn{Role: role, Message: message})
	return nil
}

// Executions returns the recorded command executions.
func (a *StubAgent) Executions() []core.CommandInvocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.CommandInvocation(nil), a.executions...)
}

// Turns returns the recorded transcript turns.
func (a *StubAgent) Turns() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Turn(nil), a.turns...)
}
