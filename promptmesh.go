// Package promptmesh provides a high-level façade over the interaction engine
// enabling rapid construction of prompt driven agents. Most applications
// interact with this package by:
//  1. Creating a Mesh via New() or NewFromConfig()
//  2. Running interactions on an agent (RunAgent, SmartInstruct, SmartChat)
//  3. Running named chains (RunChain)
//
// Every agent is backed by an engine.Pool, so a Mesh may serve concurrent
// requests. Agents can call each other through the built-in capabilities of
// the extension package.
package promptmesh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/hupe1980/promptmesh/agent"
	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/engine"
	"github.com/hupe1980/promptmesh/extension"
	"github.com/hupe1980/promptmesh/logging"
	"github.com/hupe1980/promptmesh/templates"
)

var (
	// ErrUnknownAgent is returned for requests naming an unregistered agent.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnknownChain is returned for requests naming an unregistered chain.
	ErrUnknownChain = errors.New("unknown chain")
)

// AgentSpec describes one agent of a Mesh.
type AgentSpec struct {
	Name string
	// Options configure the agent. The extension capabilities are appended
	// to its tools.
	Options []func(o *agent.Options)
	// Engine options apply to this agent's engines only.
	Engine []func(o *engine.Options)
}

// ChainSpec is a named sequence of steps run by one agent.
type ChainSpec struct {
	Agent string
	Steps []engine.Step
}

// Options configures the Mesh instance.
type Options struct {
	Agents []AgentSpec
	Chains map[string]ChainSpec

	// Templates defaults to the embedded template set.
	Templates core.TemplateStore
	// Steps persists chain step responses; without it chains cannot run.
	Steps core.StepStore

	// PoolSize bounds the concurrent requests per agent.
	PoolSize int64
	// Engine options apply to every engine.
	Engine []func(o *engine.Options)

	// Closers are closed by Close in reverse order.
	Closers []io.Closer

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating agents, their engine pools and
// the named chains.
type Mesh struct {
	opts   Options
	agents map[string]*agent.Agent
	pools  map[string]*engine.Pool
	chains map[string]ChainSpec
	logger logging.Logger
}

var _ extension.Runner = (*Mesh)(nil)

// New creates a Mesh. Agents are created in the given order and every agent
// receives the extension capabilities for all agents and chains.
func New(optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{
		Templates: templates.Defaults(),
		PoolSize:  engine.DefaultPoolSize,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Mesh{
		opts:   opts,
		agents: make(map[string]*agent.Agent, len(opts.Agents)),
		pools:  make(map[string]*engine.Pool, len(opts.Agents)),
		chains: make(map[string]ChainSpec, len(opts.Chains)),
		logger: logging.OrNoOp(opts.Logger),
	}

	names := make([]string, 0, len(opts.Agents))
	for _, spec := range opts.Agents {
		if slices.Contains(names, spec.Name) {
			return nil, fmt.Errorf("duplicate agent: %s", spec.Name)
		}
		names = append(names, spec.Name)
	}

	chainNames := make([]string, 0, len(opts.Chains))
	for name, spec := range opts.Chains {
		if !slices.Contains(names, spec.Agent) {
			return nil, fmt.Errorf("chain %s: %w: %s", name, ErrUnknownAgent, spec.Agent)
		}
		m.chains[name] = spec
		chainNames = append(chainNames, name)
	}
	sort.Strings(chainNames)

	capabilities := extension.Tools(m, func(o *extension.Options) {
		o.Agents = names
		o.Chains = chainNames
		o.Logger = m.logger
	})

	for _, spec := range opts.Agents {
		agentOpts := append([]func(o *agent.Options){func(o *agent.Options) { o.Logger = m.logger }}, spec.Options...)
		agentOpts = append(agentOpts, func(o *agent.Options) {
			o.Tools = append(slices.Clone(o.Tools), capabilities...)
		})

		a, err := agent.New(spec.Name, agentOpts...)
		if err != nil {
			return nil, err
		}

		engineOpts := []func(o *engine.Options){func(o *engine.Options) {
			o.Templates = opts.Templates
			o.Steps = opts.Steps
		}}
		engineOpts = append(engineOpts, opts.Engine...)
		engineOpts = append(engineOpts, spec.Engine...)

		m.agents[spec.Name] = a
		m.pools[spec.Name] = engine.NewPool(a, func(o *engine.PoolOptions) {
			o.Size = opts.PoolSize
			o.Engine = engineOpts
			o.Logger = m.logger
		})
	}

	m.logger.Info("mesh.created", "agents", len(names), "chains", len(chainNames))

	return m, nil
}

// Agents returns the agent names in registration order.
func (m *Mesh) Agents() []string {
	names := make([]string, 0, len(m.opts.Agents))
	for _, spec := range m.opts.Agents {
		names = append(names, spec.Name)
	}

	return names
}

// Agent returns the named agent.
func (m *Mesh) Agent(name string) (*agent.Agent, bool) {
	a, ok := m.agents[name]
	return a, ok
}

// Chains returns the sorted chain names.
func (m *Mesh) Chains() []string {
	names := make([]string, 0, len(m.chains))
	for name := range m.chains {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Templates returns the template store shared by all engines.
func (m *Mesh) Templates() core.TemplateStore { return m.opts.Templates }

func (m *Mesh) pool(name string) (*engine.Pool, error) {
	p, ok := m.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}

	return p, nil
}

// RunAgent runs one interaction on the named agent.
func (m *Mesh) RunAgent(ctx context.Context, name string, req core.InteractionRequest) (string, error) {
	p, err := m.pool(name)
	if err != nil {
		return "", err
	}

	return p.Run(ctx, req)
}

// SmartInstruct runs the instruct consensus pipeline on the named agent.
func (m *Mesh) SmartInstruct(ctx context.Context, name string, req core.InteractionRequest) (string, error) {
	return m.do(ctx, name, func(e *engine.Engine) (string, error) { return e.SmartInstruct(ctx, req) })
}

// SmartChat runs the chat consensus pipeline on the named agent.
func (m *Mesh) SmartChat(ctx context.Context, name string, req core.InteractionRequest) (string, error) {
	return m.do(ctx, name, func(e *engine.Engine) (string, error) { return e.SmartChat(ctx, req) })
}

// RunChain runs the named chain on its agent and returns the step responses.
func (m *Mesh) RunChain(ctx context.Context, name, userInput string) ([]string, error) {
	spec, ok := m.chains[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, name)
	}

	p, err := m.pool(spec.Agent)
	if err != nil {
		return nil, err
	}

	var out []string

	err = p.Do(ctx, func(e *engine.Engine) error {
		var err error
		out, err = e.RunChain(ctx, name, userInput, spec.Steps)
		return err
	})

	return out, err
}

func (m *Mesh) do(ctx context.Context, name string, fn func(e *engine.Engine) (string, error)) (string, error) {
	p, err := m.pool(name)
	if err != nil {
		return "", err
	}

	var out string

	err = p.Do(ctx, func(e *engine.Engine) error {
		var err error
		out, err = fn(e)
		return err
	})

	return out, err
}

// WatchTemplates invalidates cached templates on file changes until ctx is
// done. It returns nil immediately when the template store cannot be watched.
func (m *Mesh) WatchTemplates(ctx context.Context) error {
	w, ok := m.opts.Templates.(interface{ Watch(context.Context) error })
	if !ok {
		return nil
	}

	return w.Watch(ctx)
}

// Close releases the resources registered in Options.Closers.
func (m *Mesh) Close() error {
	var errs []error
	for i := len(m.opts.Closers) - 1; i >= 0; i-- {
		if err := m.opts.Closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
