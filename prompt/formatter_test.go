package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hupe1980/promptmesh/chain"
	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC) }

func newTestFormatter(t *testing.T, mem *testutil.StubMemory, optFns ...func(o *Options)) *Formatter {
	t.Helper()
	agent := testutil.NewAgentBuilder("AGiXT").
		Memory(mem).
		Command("Write Tests", nil).
		Build()

	base := func(o *Options) {
		o.Now = fixedNow
		o.Templates = testutil.MapTemplates{
			"instruct": "{agent_name} at {date}\nContext: {context}\nCommands:\n{COMMANDS}\nTask: {user_input}",
			"chat":     "Chat with {agent_name}: {user_input} {unknown}",
		}
	}

	return NewFormatter(agent, append([]func(o *Options){base}, optFns...)...)
}

func TestFormat_StandardBindings(t *testing.T) {
	mem := testutil.NewStubMemory()
	mem.Context = "remembered facts"
	f := newTestFormatter(t, mem)

	res, err := f.Format(context.Background(), core.NewRequest("write a haiku", func(r *core.InteractionRequest) {
		r.Template = "instruct"
	}))
	require.NoError(t, err)

	want := "AGiXT at March 05, 2024 02:07 PM\nContext: remembered facts\nCommands:\nWrite Tests - {}\n\nTask: write a haiku"
	if diff := cmp.Diff(want, res.Text); diff != "" {
		t.Fatalf("formatted prompt mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, IsCommandCapable(res.Template))
	assert.Greater(t, res.Tokens, 0)
	assert.Equal(t, []int{core.DefaultContextDepth}, mem.ContextDepths())
}

func TestFormat_Deterministic(t *testing.T) {
	f := newTestFormatter(t, testutil.NewStubMemory())
	req := core.NewRequest("x", func(r *core.InteractionRequest) { r.Template = "instruct" })

	first, err := f.Format(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := f.Format(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFormat_UnmatchedTokenKept(t *testing.T) {
	f := newTestFormatter(t, testutil.NewStubMemory())

	res, err := f.Format(context.Background(), core.NewRequest("hi", func(r *core.InteractionRequest) { r.Template = "chat" }))
	require.NoError(t, err)
	assert.Equal(t, "Chat with AGiXT: hi {unknown}", res.Text)
	assert.False(t, IsCommandCapable(res.Template))
}

func TestFormat_CallerBindingsOverride(t *testing.T) {
	f := newTestFormatter(t, testutil.NewStubMemory())

	res, err := f.Format(context.Background(), core.NewRequest("hi", func(r *core.InteractionRequest) {
		r.Template = "chat"
		r.Bindings["agent_name"] = "Override"
		r.Bindings["unknown"] = []string{"a", "b"}
	}))
	require.NoError(t, err)
	assert.Equal(t, "Chat with Override: hi ab", res.Text)
}

func TestFormat_TemplateFallbacks(t *testing.T) {
	f := newTestFormatter(t, testutil.NewStubMemory())

	// empty selector uses the user input as template
	res, err := f.Format(context.Background(), core.NewRequest("I am {agent_name}"))
	require.NoError(t, err)
	assert.Equal(t, "I am AGiXT", res.Text)

	// unknown selector is literal template text
	res, err = f.Format(context.Background(), core.NewRequest("q", func(r *core.InteractionRequest) {
		r.Template = "Answer {user_input} now"
	}))
	require.NoError(t, err)
	assert.Equal(t, "Answer q now", res.Text)
}

func TestFormat_ContextSentinels(t *testing.T) {
	mem := testutil.NewStubMemory()
	mem.ContextErr = errors.New("vector store down")
	f := newTestFormatter(t, mem)

	res, err := f.Format(context.Background(), core.NewRequest("q", func(r *core.InteractionRequest) {
		r.Template = "{context}"
		r.ContextDepth = 0
	}))
	require.NoError(t, err)
	assert.Equal(t, "None", res.Text)
	assert.Empty(t, mem.ContextDepths(), "depth 0 must not query memory")

	res, err = f.Format(context.Background(), core.NewRequest("q", func(r *core.InteractionRequest) {
		r.Template = "{context}"
		r.ContextDepth = 2
	}))
	require.NoError(t, err)
	assert.Equal(t, "None.", res.Text)
}

func TestFormat_ChainStepSubstitution(t *testing.T) {
	steps := &testutil.CountingSteps{Responses: map[string]map[int]string{"plan": {2: "step two output"}}}
	f := newTestFormatter(t, testutil.NewStubMemory(), func(o *Options) { o.Steps = steps })

	res, err := f.Format(context.Background(), core.NewRequest("use {STEP2}", func(r *core.InteractionRequest) {
		r.Template = "T: {STEP2} / {user_input} / {extra}"
		r.ChainName = "plan"
		r.StepNumber = 2
		r.ContextDepth = 0
		r.Bindings["extra"] = "E={STEP2}"
	}))
	require.NoError(t, err)
	assert.Equal(t, "T: step two output / use step two output / E=step two output", res.Text)
	assert.Equal(t, 1, steps.Reads(), "step response is read once per format")
}

func TestFormat_ChainStepMissingIsEmpty(t *testing.T) {
	steps := &testutil.CountingSteps{}
	f := newTestFormatter(t, testutil.NewStubMemory(), func(o *Options) { o.Steps = steps })

	res, err := f.Format(context.Background(), core.NewRequest("x", func(r *core.InteractionRequest) {
		r.Template = "[{STEP1}]"
		r.ChainName = "plan"
		r.StepNumber = 1
	}))
	require.NoError(t, err)
	assert.Equal(t, "[]", res.Text)
}

func TestFormat_OtherStepTokensUntouchedByStepPass(t *testing.T) {
	steps := &testutil.CountingSteps{Responses: map[string]map[int]string{"plan": {1: "one"}}}
	f := newTestFormatter(t, testutil.NewStubMemory(), func(o *Options) { o.Steps = steps })

	res, err := f.Format(context.Background(), core.NewRequest("x", func(r *core.InteractionRequest) {
		r.Template = "{STEP1} {STEP3}"
		r.ChainName = "plan"
		r.StepNumber = 1
	}))
	require.NoError(t, err)
	assert.Equal(t, "one {STEP3}", res.Text)
}

func TestFormat_RejectsTraversalBeforeFileAccess(t *testing.T) {
	root := t.TempDir()
	store, err := chain.NewStore(root)
	require.NoError(t, err)

	f := newTestFormatter(t, testutil.NewStubMemory(), func(o *Options) { o.Steps = store })

	_, err = f.Format(context.Background(), core.NewRequest("{STEP1}", func(r *core.InteractionRequest) {
		r.ChainName = "../../etc"
		r.StepNumber = 1
	}))
	assert.True(t, errors.Is(err, core.ErrPathTraversal))
}

func TestApproxTokenizer(t *testing.T) {
	assert.Equal(t, 0, ApproxTokenizer{}.Count(""))
	assert.Equal(t, 4, ApproxTokenizer{}.Count("Hello, world!"))
	assert.Equal(t, 3, TokenizerFunc(func(string) int { return 3 }).Count("anything"))
}
