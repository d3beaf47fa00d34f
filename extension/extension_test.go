package extension

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/tool"
)

type call struct {
	agent string
	req   core.InteractionRequest
}

type fakeRunner struct {
	calls  []call
	chains []string
	err    error
}

func (f *fakeRunner) RunAgent(_ context.Context, agent string, req core.InteractionRequest) (string, error) {
	f.calls = append(f.calls, call{agent: agent, req: req})
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("%s#%d", agent, len(f.calls)), nil
}

func (f *fakeRunner) RunChain(_ context.Context, chain, userInput string) ([]string, error) {
	f.chains = append(f.chains, chain+":"+userInput)
	if f.err != nil {
		return nil, f.err
	}
	return []string{"step one", "step two"}, nil
}

func registry(t *testing.T, r Runner) *tool.Registry {
	t.Helper()
	reg, err := tool.NewRegistry(Tools(r, func(o *Options) {
		o.Agents = []string{"Writer"}
		o.Chains = []string{"Smart Instruct"}
	})...)
	require.NoError(t, err)
	return reg
}

func TestTools_Names(t *testing.T) {
	var names []string
	for _, c := range registry(t, &fakeRunner{}).Capabilities() {
		names = append(names, c.DisplayName)
	}

	assert.Equal(t, []string{
		"Prompt AI Agent",
		"Execute Task List",
		"Evaluate Code",
		"Analyze Pull Request",
		"Perform Automated Testing",
		"Run CI-CD Pipeline",
		"Improve Code",
		"Write Tests",
		"Ask AI Agent Writer",
		"Instruct AI Agent Writer",
		"Prompt AI Agent Writer",
		"Run Chain: Smart Instruct",
	}, names)
}

func TestTools_NoCommandTimeoutByDefault(t *testing.T) {
	reg := registry(t, &fakeRunner{})

	for _, c := range reg.Capabilities() {
		assert.Zero(t, reg.Timeout(c.DisplayName, 15*time.Second), c.DisplayName)
	}
}

func TestTools_CustomTimeout(t *testing.T) {
	reg, err := tool.NewRegistry(Tools(&fakeRunner{}, func(o *Options) {
		o.Agents = []string{"Writer"}
		o.Timeout = time.Minute
	})...)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, reg.Timeout("Ask AI Agent Writer", 15*time.Second))
}

func TestCodeFunctions_DefaultAgent(t *testing.T) {
	r := &fakeRunner{}
	reg := registry(t, r)
	ctx := context.Background()

	out, err := reg.Execute(ctx, "Evaluate Code", map[string]any{"code": "x = 1"})
	require.NoError(t, err)
	assert.Equal(t, "Writer#1", out)

	_, err = reg.Execute(ctx, "Run CI-CD Pipeline", map[string]any{"agent": "Reviewer", "repo_url": "https://example.com/r"})
	require.NoError(t, err)

	require.Len(t, r.calls, 2)
	assert.Equal(t, "Writer", r.calls[0].agent)
	assert.Empty(t, r.calls[0].req.Template)
	assert.Equal(t, FunctionPrompt(
		"Analyzes the given code and returns a list of suggestions for improvements.",
		"def analyze_code(code: str) -> List[str]:",
		"x = 1",
	), r.calls[0].req.UserInput)
	assert.Equal(t, "Reviewer", r.calls[1].agent)
	assert.Contains(t, r.calls[1].req.UserInput, `Args: ["https://example.com/r"]`)
}

func TestCodeFunctions_Arguments(t *testing.T) {
	r := &fakeRunner{}
	reg := registry(t, r)
	ctx := context.Background()

	_, err := reg.Execute(ctx, "Improve Code", map[string]any{
		"suggestions": []any{"rename x"},
		"code":        "x = 1",
	})
	require.NoError(t, err)

	_, err = reg.Execute(ctx, "Write Tests", map[string]any{"code": "x = 1"})
	require.NoError(t, err)

	_, err = reg.Execute(ctx, "Improve Code", map[string]any{"code": "x = 1"})
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeValidation, te.Code)

	require.Len(t, r.calls, 2)
	assert.Contains(t, r.calls[0].req.UserInput, `Args: ["[\"rename x\"]", "x = 1"]`)
	assert.Contains(t, r.calls[1].req.UserInput, `Args: ["x = 1", "None"]`)
}

func TestFunctionPrompt(t *testing.T) {
	got := FunctionPrompt("Adds numbers.", "def add(a: int, b: int) -> int:", float64(1), "two")

	assert.Equal(t, "You are now the following python function: ```# Adds numbers.\ndef add(a: int, b: int) -> int:```\n\nOnly respond with your `return` value. Args: [\"1\", \"two\"]", got)
}

func TestPromptAgent_PerAgent(t *testing.T) {
	r := &fakeRunner{}
	reg := registry(t, r)
	ctx := context.Background()

	_, err := reg.Execute(ctx, "Prompt AI Agent Writer", map[string]any{"user_input": "x", "prompt_name": "chat"})
	require.NoError(t, err)

	_, err = reg.Execute(ctx, "Prompt AI Agent", map[string]any{"agent": "Editor", "user_input": "y", "prompt_name": "chat"})
	require.NoError(t, err)

	_, err = reg.Execute(ctx, "Prompt AI Agent Writer", map[string]any{"agent": "Editor", "user_input": "z", "prompt_name": "chat"})
	require.NoError(t, err)

	require.Len(t, r.calls, 3)
	assert.Equal(t, []string{"Writer", "Editor", "Writer"}, []string{r.calls[0].agent, r.calls[1].agent, r.calls[2].agent})
}

func TestAskAndInstruct(t *testing.T) {
	r := &fakeRunner{}
	reg := registry(t, r)
	ctx := context.Background()

	out, err := reg.Execute(ctx, "Ask AI Agent Writer", map[string]any{"user_input": "why?"})
	require.NoError(t, err)
	assert.Equal(t, "Writer#1", out)

	_, err = reg.Execute(ctx, "Instruct AI Agent Writer", map[string]any{"user_input": "do it"})
	require.NoError(t, err)

	require.Len(t, r.calls, 2)
	assert.Equal(t, TemplateAsk, r.calls[0].req.Template)
	assert.True(t, r.calls[0].req.WebSearch)
	assert.Equal(t, AskWebSearchDepth, r.calls[0].req.WebSearchDepth)
	assert.Equal(t, TemplateInstruct, r.calls[1].req.Template)
	assert.Equal(t, InstructWebSearchDepth, r.calls[1].req.WebSearchDepth)
}

func TestPromptAgent_Shots(t *testing.T) {
	r := &fakeRunner{}
	out, err := registry(t, r).Execute(context.Background(), "Prompt AI Agent", map[string]any{
		"agent":       "Writer",
		"user_input":  "tagline",
		"prompt_name": "instruct",
		"prompt_args": map[string]any{"tone": "dry"},
		"websearch":   true,
		"shots":       float64(3),
	})
	require.NoError(t, err)

	assert.Equal(t, "Response 1:\nWriter#1\nResponse 2:\nWriter#2\nResponse 3:\nWriter#3", out)
	require.Len(t, r.calls, 3)
	assert.True(t, r.calls[0].req.WebSearch)
	assert.False(t, r.calls[1].req.WebSearch)
	assert.Equal(t, "dry", r.calls[2].req.Bindings["tone"])
	assert.Equal(t, "instruct", r.calls[2].req.Template)
}

func TestPromptAgent_SingleShot(t *testing.T) {
	r := &fakeRunner{}
	out, err := registry(t, r).Execute(context.Background(), "Prompt AI Agent", map[string]any{
		"agent": "Writer", "user_input": "x", "prompt_name": "chat", "context_results": float64(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Writer#1", out)
	assert.Zero(t, r.calls[0].req.ContextDepth)
}

func TestExecuteTaskList(t *testing.T) {
	r := &fakeRunner{}
	out, err := registry(t, r).Execute(context.Background(), "Execute Task List", map[string]any{
		"agent":      "Writer",
		"tasks":      "Plan:\n1. research\n\n2. draft\n- skip me",
		"user_input": "write a post",
	})
	require.NoError(t, err)

	assert.Equal(t, "Writer#1\nWriter#2", out)
	require.Len(t, r.calls, 2)
	assert.Equal(t, "1. research", r.calls[0].req.Bindings[BindingTask])
	assert.Equal(t, TemplateTaskExecution, r.calls[1].req.Template)
	assert.Equal(t, "write a post", r.calls[1].req.UserInput)
}

func TestRunChain(t *testing.T) {
	r := &fakeRunner{}
	out, err := registry(t, r).Execute(context.Background(), "Run Chain: Smart Instruct", map[string]any{"user_input": "go"})
	require.NoError(t, err)
	assert.Equal(t, "step two", out)
	assert.Equal(t, []string{"Smart Instruct:go"}, r.chains)
}

func TestRunnerErrorsBecomeToolErrors(t *testing.T) {
	r := &fakeRunner{err: errors.New("down")}
	_, err := registry(t, r).Execute(context.Background(), "Ask AI Agent Writer", map[string]any{"user_input": "x"})

	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeExecution, te.Code)
}

func TestNumberedTasks(t *testing.T) {
	assert.Equal(t, []string{"1. a", "10) b"}, NumberedTasks(" 1. a\nnote\n10) b\n"))
	assert.Empty(t, NumberedTasks(""))
}
