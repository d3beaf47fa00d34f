package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/promptmesh/command"
	"github.com/hupe1980/promptmesh/consensus"
	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/util"
	"github.com/hupe1980/promptmesh/logging"
	"github.com/hupe1980/promptmesh/prompt"
	"github.com/hupe1980/promptmesh/research"
	"github.com/hupe1980/promptmesh/retry"
	"github.com/hupe1980/promptmesh/search"
)

// ErrNoResult is returned when the provider failure budget is exhausted.
var ErrNoResult = retry.ErrNoResult

var (
	// ErrMissingProvider is returned when the agent has no provider.
	ErrMissingProvider = errors.New("agent has no provider")

	// ErrMissingMemory is returned when a learning file is requested for an
	// agent without memory.
	ErrMissingMemory = errors.New("agent has no memory store")
)

// LearnFileFailedNotice is returned as the response when a learning file
// cannot be ingested.
const LearnFileFailedNotice = "Failed to read file."

// RoleUser is the transcript role of user turns.
const RoleUser = "USER"

// Template and bindings of the corrective prompt sent after a failed command.
const (
	TemplateValidationFailed = "ValidationFailed"
	BindingCommandName       = "command_name"
	BindingCommandArgs       = "command_args"
	BindingCommandOutput     = "command_output"
)

// Options configures an Engine.
type Options struct {
	Templates core.TemplateStore
	Steps     core.StepStore
	// Searcher defaults to a SearXNG client for the agent's
	// SEARXNG_INSTANCE_URL setting; without one searching is disabled.
	Searcher  core.Searcher
	Tokenizer prompt.Tokenizer
	Now       func() time.Time

	MaxFailures int
	Backoff     time.Duration
	MaxLinks    int

	Callbacks *CallbackManager
	Logger    logging.Logger
}

// Engine runs interactions for one agent. It owns the failure counter and
// the browsed link set, so an Engine must not serve concurrent requests; use
// a Pool to share agents across goroutines.
//
// Both live as long as the Engine. A Pool calls Reset before handing an
// Engine out again, so pooled sessions start clean; an Engine used directly
// keeps its browsed links and failures until the caller resets it.
type Engine struct {
	id    string
	agent core.Agent
	opts  Options

	formatter  *prompt.Formatter
	retry      *retry.Controller
	links      *research.LinkSet
	researcher *research.Agent
	dispatcher *command.Dispatcher
	resolver   *consensus.Resolver
	logger     logging.Logger
}

// New creates an Engine for agent.
func New(agent core.Agent, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Tokenizer:   prompt.ApproxTokenizer{},
		Now:         time.Now,
		MaxFailures: retry.DefaultMaxFailures,
		Backoff:     retry.DefaultBackoff,
		MaxLinks:    research.DefaultMaxLinks,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	if opts.Searcher == nil {
		if u := agent.Setting(search.SettingInstanceURL); u != "" {
			opts.Searcher = search.NewSearXNG(u, func(o *search.Options) { o.Logger = logger })
		}
	}

	e := &Engine{
		id:     uuid.NewString(),
		agent:  agent,
		opts:   opts,
		links:  research.NewLinkSet(),
		logger: logger,
	}

	e.formatter = prompt.NewFormatter(agent, func(o *prompt.Options) {
		o.Templates = opts.Templates
		o.Steps = opts.Steps
		o.Tokenizer = opts.Tokenizer
		o.Now = opts.Now
		o.Logger = logger
	})

	e.retry = retry.New(func(o *retry.Options) {
		o.MaxFailures = opts.MaxFailures
		o.Backoff = opts.Backoff
		o.Logger = logger
	})

	e.researcher = research.New(research.GeneratorFunc(e.Run), agent.Memory(), e.links, func(o *research.Options) {
		o.Searcher = opts.Searcher
		o.MaxLinks = opts.MaxLinks
		o.Logger = logger
	})

	e.dispatcher = command.NewDispatcher(agent, func(o *command.DispatcherOptions) { o.Logger = logger })
	e.resolver = consensus.New(consensus.RunnerFunc(e.Run), func(o *consensus.Options) { o.Logger = logger })

	return e
}

// ID identifies the engine in logs and callbacks.
func (e *Engine) ID() string { return e.id }

// Agent returns the agent the engine runs for.
func (e *Engine) Agent() core.Agent { return e.agent }

// Failures returns the current consecutive provider failure count.
func (e *Engine) Failures() int { return e.retry.Failures() }

// Links returns the set of pages browsed by research sessions.
func (e *Engine) Links() *research.LinkSet { return e.links }

// Reset clears the failure counter and the browsed link set.
func (e *Engine) Reset() {
	e.retry.Reset()
	e.links.Reset()
}

// Run executes one interaction and returns the response text.
//
// The only errors returned are ErrNoResult when the provider failure budget
// runs out, a rejected chain name, and context cancellation. A learning
// file that cannot be read yields LearnFileFailedNotice.
func (e *Engine) Run(ctx context.Context, req core.InteractionRequest) (string, error) {
	req = req.Normalize()
	start := time.Now()
	mem := e.agent.Memory()

	if req.LearnFile != "" {
		if err := e.learn(ctx, mem, req.LearnFile); err != nil {
			e.logger.Warn("engine.learn_file.failed", "agent", e.agent.Name(), "file", req.LearnFile, "error", err.Error())
			return LearnFileFailedNotice, nil
		}
	}

	formatted, err := e.formatter.Format(ctx, req)
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}

	// Research runs after formatting, so its findings only reach later runs.
	if req.WebSearch && mem != nil {
		if err := e.researcher.Research(ctx, req.UserInput, req.WebSearchDepth); err != nil {
			e.logger.Warn("engine.research.failed", "agent", e.agent.Name(), "error", err.Error())
		}
	}

	gen := &generation{engine: e, req: req, depth: req.ContextDepth}

	reply, err := gen.invoke(ctx, req, &formatted)
	if err != nil {
		return "", err
	}

	if prompt.IsCommandCapable(formatted.Template) {
		outcome := command.NewHandler(e.dispatcher, gen, func(o *command.HandlerOptions) {
			o.Logger = e.logger
		}).Handle(ctx, reply)

		e.afterHook(ctx, CallbackAfterCommand, req, outcome.Summary)

		if outcome.Kind == command.Exhausted {
			return "", outcome.Err
		}

		reply = command.Rewrite(outcome.Reply, outcome.Structured, outcome.Summary)
	}

	if reply != "" {
		e.persist(ctx, mem, req.UserInput, reply)
	}

	e.afterHook(ctx, CallbackAfterRun, req, reply)

	e.logger.Info("engine.run.completed",
		"engine", e.id,
		"agent", e.agent.Name(),
		"template", req.Template,
		"failures", e.retry.Failures(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return reply, nil
}

// SmartInstruct runs the instruct consensus pipeline.
func (e *Engine) SmartInstruct(ctx context.Context, req core.InteractionRequest) (string, error) {
	return e.resolver.Instruct(ctx, req)
}

// SmartChat runs the chat consensus pipeline.
func (e *Engine) SmartChat(ctx context.Context, req core.InteractionRequest) (string, error) {
	return e.resolver.Chat(ctx, req)
}

func (e *Engine) learn(ctx context.Context, mem core.MemoryStore, path string) error {
	if mem == nil {
		return ErrMissingMemory
	}

	return mem.ReadLearningFile(ctx, path)
}

// persist stores the result and logs both turns. Failures are logged only.
func (e *Engine) persist(ctx context.Context, mem core.MemoryStore, input, reply string) {
	if mem != nil {
		if err := mem.Store(ctx, input, reply); err != nil {
			e.logger.Warn("engine.memory.store_failed", "agent", e.agent.Name(), "error", err.Error())
		}
	}

	if err := e.agent.LogTurn(ctx, RoleUser, input); err != nil {
		e.logger.Warn("engine.transcript.failed", "agent", e.agent.Name(), "role", RoleUser, "error", err.Error())
	}

	if err := e.agent.LogTurn(ctx, e.agent.Name(), reply); err != nil {
		e.logger.Warn("engine.transcript.failed", "agent", e.agent.Name(), "role", e.agent.Name(), "error", err.Error())
	}
}

// instruct sends one formatted prompt to the provider.
func (e *Engine) instruct(ctx context.Context, req core.InteractionRequest, res prompt.Result) (string, error) {
	cb := &CallbackContext{
		EngineID: e.id,
		Agent:    e.agent.Name(),
		Request:  req,
		Prompt:   res.Text,
		Tokens:   res.Tokens,
	}

	if err := e.opts.Callbacks.Execute(ctx, CallbackBeforeModel, cb); err != nil {
		return "", err
	}

	provider := e.agent.Provider()
	if provider == nil {
		return "", ErrMissingProvider
	}

	text, err := provider.Instruct(ctx, res.Text, res.Tokens)
	if err != nil {
		return "", err
	}

	cb.Response = text
	if err := e.opts.Callbacks.Execute(ctx, CallbackAfterModel, cb); err != nil {
		return "", err
	}

	return text, nil
}

func (e *Engine) afterHook(ctx context.Context, t CallbackType, req core.InteractionRequest, response string) {
	err := e.opts.Callbacks.Execute(ctx, t, &CallbackContext{
		EngineID: e.id,
		Agent:    e.agent.Name(),
		Request:  req,
		Response: response,
	})
	if err != nil {
		e.logger.Warn("engine.callback.failed", "type", string(t), "error", err.Error())
	}
}

// generation produces model replies for one run. It implements
// command.Generator and tracks the context depth across healing passes.
type generation struct {
	engine *Engine
	req    core.InteractionRequest
	depth  int
}

var _ command.Generator = (*generation)(nil)

// invoke generates a reply for req under the retry controller. The first
// attempt uses pre when set; later attempts reformat at the reduced depth.
func (g *generation) invoke(ctx context.Context, req core.InteractionRequest, pre *prompt.Result) (string, error) {
	text, depth, err := g.engine.retry.Invoke(ctx, g.depth, func(ctx context.Context, depth int) (string, error) {
		var res prompt.Result

		if pre != nil {
			res, pre = *pre, nil
		} else {
			r := req
			r.ContextDepth = depth

			var err error
			if res, err = g.engine.formatter.Format(ctx, r); err != nil {
				return "", err
			}
		}

		return g.engine.instruct(ctx, req, res)
	})

	g.depth = depth

	return text, err
}

// Regenerate implements command.Generator.
func (g *generation) Regenerate(ctx context.Context) (string, error) {
	if g.depth > 0 {
		g.depth--
	}

	return g.invoke(ctx, g.req, nil)
}

// Correct implements command.Generator.
func (g *generation) Correct(ctx context.Context, failed core.CommandInvocation, execErr error) (string, error) {
	req := g.req.
		WithBinding(BindingCommandName, failed.Name).
		WithBinding(BindingCommandArgs, util.Stringify(failed.Args)).
		WithBinding(BindingCommandOutput, execErr.Error())
	req.Template = TemplateValidationFailed

	return g.invoke(ctx, req, nil)
}
