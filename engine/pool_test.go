package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/testutil"
)

func poolEngineDefaults(o *Options) {
	o.Templates = testTemplates
	o.Backoff = 0
}

func TestPool_ResetsStateOnReuse(t *testing.T) {
	p := testutil.NewScriptedProvider().Fail(2, errBoom).Then("ok")
	a := testutil.NewAgentBuilder("AGiXT").Provider(p).Memory(testutil.NewStubMemory()).Build()

	pool := NewPool(a, func(o *PoolOptions) {
		o.Size = 1
		o.Engine = []func(o *Options){poolEngineDefaults}
	})

	ctx := context.Background()

	e, err := pool.Acquire(ctx)
	require.NoError(t, err)
	id := e.ID()

	_, err = e.Run(ctx, chatRequest("hi"))
	require.NoError(t, err)
	e.Links().Add("https://seen.example")
	require.Equal(t, 2, e.Failures())
	pool.Release(e)

	e, err = pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(e)

	assert.Equal(t, id, e.ID(), "engine reused")
	assert.Zero(t, e.Failures())
	assert.Zero(t, e.Links().Len())
}

func TestPool_AcquireHonorsContext(t *testing.T) {
	a := testutil.NewAgentBuilder("AGiXT").Provider(testutil.NewScriptedProvider()).Build()
	pool := NewPool(a, func(o *PoolOptions) { o.Size = 1 })

	e, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(e)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_RunAllBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	p := &testutil.ScriptedProvider{Respond: func(prompt string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return strings.ToUpper(prompt), nil
	}}
	a := testutil.NewAgentBuilder("AGiXT").Provider(p).Build()

	pool := NewPool(a, func(o *PoolOptions) {
		o.Size = 2
		o.Engine = []func(o *Options){poolEngineDefaults}
	})

	reqs := make([]core.InteractionRequest, 6)
	for i := range reqs {
		reqs[i] = core.NewRequest(fmt.Sprintf("req %d", i), func(r *core.InteractionRequest) { r.ContextDepth = 0 })
	}

	out, err := pool.RunAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, out, 6)
	for i, o := range out {
		assert.Equal(t, fmt.Sprintf("REQ %d", i), o)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_RunAllStopsOnError(t *testing.T) {
	a := testutil.NewAgentBuilder("AGiXT").Provider(testutil.NewScriptedProvider().Fail(100, errBoom)).Build()
	pool := NewPool(a, func(o *PoolOptions) {
		o.Size = 2
		o.Engine = []func(o *Options){poolEngineDefaults}
	})

	_, err := pool.RunAll(context.Background(), []core.InteractionRequest{chatRequest("a"), chatRequest("b")})
	assert.Error(t, err)
}

func TestPool_Run(t *testing.T) {
	a := testutil.NewAgentBuilder("AGiXT").Provider(testutil.NewScriptedProvider("pong")).Build()
	pool := NewPool(a, func(o *PoolOptions) { o.Engine = []func(o *Options){poolEngineDefaults} })

	out, err := pool.Run(context.Background(), chatRequest("ping"))
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Same(t, a, pool.Agent())
}
