package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/testutil"
	"github.com/hupe1980/promptmesh/internal/util"
	"github.com/hupe1980/promptmesh/tool"
	"github.com/hupe1980/promptmesh/transcript"
)

func echoTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, "echo", util.StringArgs("text"),
		func(_ context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		})
}

func TestNew_RequiresProvider(t *testing.T) {
	_, err := New("AGiXT")
	assert.ErrorIs(t, err, ErrMissingProvider)
}

func TestNew_RejectsDuplicateCommands(t *testing.T) {
	_, err := New("AGiXT", func(o *Options) {
		o.Provider = testutil.NewScriptedProvider()
		o.Tools = []tool.Tool{echoTool("Echo"), echoTool("Echo")}
	})
	assert.ErrorIs(t, err, tool.ErrDuplicateTool)
}

func TestAgent_Registry(t *testing.T) {
	a, err := New("AGiXT", func(o *Options) {
		o.ModelID = "gpt-4o"
		o.Provider = testutil.NewScriptedProvider()
		o.Tools = []tool.Tool{echoTool("Zeta"), echoTool("Alpha")}
		o.Settings = map[string]string{"SEARXNG_INSTANCE_URL": "http://searx"}
	})
	require.NoError(t, err)

	assert.Equal(t, "AGiXT", a.Name())
	assert.Equal(t, "gpt-4o", a.ModelID())
	assert.Equal(t, "http://searx", a.Setting("SEARXNG_INSTANCE_URL"))
	assert.Empty(t, a.Setting("missing"))
	assert.NotNil(t, a.Memory())

	caps := a.Capabilities()
	require.Len(t, caps, 2)
	assert.Equal(t, "Zeta", caps[0].DisplayName)
	assert.Equal(t, "Alpha - {\"text\":\"\"}\nZeta - {\"text\":\"\"}\n", a.CommandListString())

	out, err := a.Execute(context.Background(), "Alpha", map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = a.Execute(context.Background(), "Alpha", map[string]any{})
	var te *tool.ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tool.CodeValidation, te.Code)

	_, err = a.Execute(context.Background(), "Missing", nil)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, tool.CodeNotFound, te.Code)
}

func TestAgent_ToolTimeout(t *testing.T) {
	slow := tool.NewFunctionTool("Slow", "waits", nil, func(ctx context.Context, _ map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	a, err := New("AGiXT", func(o *Options) {
		o.Provider = testutil.NewScriptedProvider()
		o.Tools = []tool.Tool{slow}
		o.ToolTimeout = 20 * time.Millisecond
	})
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), "Slow", nil)
	assert.Error(t, err)
}

func TestAgent_ToolTimeoutOverride(t *testing.T) {
	long := tool.NewFunctionTool("Long", "waits", nil, func(ctx context.Context, _ map[string]any) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(80 * time.Millisecond):
			return "done", nil
		}
	}, tool.WithTimeout(0))

	a, err := New("AGiXT", func(o *Options) {
		o.Provider = testutil.NewScriptedProvider()
		o.Tools = []tool.Tool{long}
		o.ToolTimeout = 20 * time.Millisecond
	})
	require.NoError(t, err)

	out, err := a.Execute(context.Background(), "Long", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestAgent_LogTurn(t *testing.T) {
	log := transcript.NewInMemory()
	a, err := New("AGiXT", func(o *Options) {
		o.Provider = testutil.NewScriptedProvider()
		o.Transcript = log
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.LogTurn(ctx, "USER", "hello"))
	require.NoError(t, a.LogTurn(ctx, "AGiXT", "hi there"))

	entries, err := log.List(ctx, "AGiXT", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, core.TranscriptEntry{
		ID: entries[0].ID, Agent: "AGiXT", Role: "USER", Message: "hello", Timestamp: entries[0].Timestamp,
	}, entries[0])
	assert.Equal(t, "AGiXT", entries[1].Role)
	assert.Same(t, log, a.Transcript())
}
