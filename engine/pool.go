package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
)

// DefaultPoolSize bounds the concurrent requests of a Pool.
const DefaultPoolSize = 4

// PoolOptions configures a Pool.
type PoolOptions struct {
	// Size is the maximum number of engines in use at once.
	Size int64
	// Engine options are applied to every engine the pool creates.
	Engine []func(o *Options)
	Logger logging.Logger
}

// Pool hands out engines for one agent, one per concurrent request. Engines
// are reset before reuse.
type Pool struct {
	agent  core.Agent
	opts   PoolOptions
	sem    *semaphore.Weighted
	logger logging.Logger

	mu   sync.Mutex
	idle []*Engine
}

// NewPool creates a pool for agent.
func NewPool(agent core.Agent, optFns ...func(o *PoolOptions)) *Pool {
	opts := PoolOptions{
		Size:   DefaultPoolSize,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Size < 1 {
		opts.Size = 1
	}

	return &Pool{
		agent:  agent,
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.Size),
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Agent returns the pooled agent.
func (p *Pool) Agent() core.Agent { return p.agent }

// Acquire blocks until an engine is free or ctx is done. The engine must be
// returned with Release.
func (p *Pool) Acquire(ctx context.Context) (*Engine, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.idle); n > 0 {
		e := p.idle[n-1]
		p.idle = p.idle[:n-1]
		e.Reset()
		return e, nil
	}

	engineOpts := append([]func(o *Options){func(o *Options) { o.Logger = p.logger }}, p.opts.Engine...)
	e := New(p.agent, engineOpts...)

	p.logger.Debug("engine.pool.created", "agent", p.agent.Name(), "engine", e.ID())

	return e, nil
}

// Release returns e to the pool.
func (p *Pool) Release(e *Engine) {
	p.mu.Lock()
	p.idle = append(p.idle, e)
	p.mu.Unlock()

	p.sem.Release(1)
}

// Do runs fn with an engine from the pool.
func (p *Pool) Do(ctx context.Context, fn func(e *Engine) error) error {
	e, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(e)

	return fn(e)
}

// Run is a shortcut for Do with Engine.Run.
func (p *Pool) Run(ctx context.Context, req core.InteractionRequest) (string, error) {
	var out string

	err := p.Do(ctx, func(e *Engine) error {
		var err error
		out, err = e.Run(ctx, req)
		return err
	})

	return out, err
}

// RunAll runs reqs concurrently, bounded by the pool size, and returns the
// responses in request order. The first error cancels the remaining runs.
func (p *Pool) RunAll(ctx context.Context, reqs []core.InteractionRequest) ([]string, error) {
	out := make([]string, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			text, err := p.Run(gctx, req)
			out[i] = text
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
