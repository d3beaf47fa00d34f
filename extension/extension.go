package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/util"
	"github.com/hupe1980/promptmesh/logging"
	"github.com/hupe1980/promptmesh/tool"
)

// Templates used by the capabilities.
const (
	TemplateAsk           = "chat"
	TemplateInstruct      = "instruct"
	TemplateTaskExecution = "Task Execution"
)

// Research depths of the Ask and Instruct capabilities.
const (
	AskWebSearchDepth      = 4
	InstructWebSearchDepth = 8
)

// BindingTask carries one task into the Task Execution template.
const BindingTask = "task"

// Runner executes requests on behalf of the capabilities.
type Runner interface {
	// RunAgent runs req on the named agent.
	RunAgent(ctx context.Context, agent string, req core.InteractionRequest) (string, error)
	// RunChain runs the named chain and returns the step responses.
	RunChain(ctx context.Context, chain, userInput string) ([]string, error)
}

// Options configures the capability set.
type Options struct {
	// Agents get Ask/Instruct/Prompt capabilities each.
	Agents []string
	// Chains get one Run Chain capability each.
	Chains []string
	// DefaultAgent runs the code capabilities when the model names no
	// agent. It defaults to the first of Agents.
	DefaultAgent string
	// Timeout bounds one capability call. Every capability runs a full
	// interaction, so the agent's command timeout does not apply; zero
	// means no limit.
	Timeout time.Duration
	Logger  logging.Logger
}

// codeFunction is a capability answered by an agent impersonating a
// function with the given signature.
type codeFunction struct {
	name        string
	signature   string
	description string
	params      []string
	optional    string
}

var codeFunctions = []codeFunction{
	{
		name:        "Evaluate Code",
		signature:   "def analyze_code(code: str) -> List[str]:",
		description: "Analyzes the given code and returns a list of suggestions for improvements.",
		params:      []string{"code"},
	},
	{
		name:        "Analyze Pull Request",
		signature:   "def analyze_pr(pr_url: str) -> List[str]:",
		description: "Analyzes the given pull request and returns a list of suggestions for improvements.",
		params:      []string{"pr_url"},
	},
	{
		name:        "Perform Automated Testing",
		signature:   "def perform_testing(test_url: str) -> List[str]:",
		description: "Performs automated testing using AI-driven tools and returns a list of test results.",
		params:      []string{"test_url"},
	},
	{
		name:        "Run CI-CD Pipeline",
		signature:   "def run_pipeline(repo_url: str) -> str:",
		description: "Runs the entire CI/CD pipeline for the given repository URL.",
		params:      []string{"repo_url"},
	},
	{
		name:        "Improve Code",
		signature:   "def generate_improved_code(suggestions: List[str], code: str) -> str:",
		description: "Improves the provided code based on the suggestions provided, making no other changes.",
		params:      []string{"suggestions", "code"},
	},
	{
		name:        "Write Tests",
		signature:   "def create_test_cases(code: str, focus: Optional[List[str]] = None) -> str:",
		description: "Generates test cases for the existing code, focusing on specific areas if required.",
		params:      []string{"code", "focus"},
		optional:    "focus",
	},
}

// Tools returns the capabilities backed by runner.
func Tools(runner Runner, optFns ...func(o *Options)) []tool.Tool {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.DefaultAgent == "" && len(opts.Agents) > 0 {
		opts.DefaultAgent = opts.Agents[0]
	}

	logger := logging.OrNoOp(opts.Logger)
	timeout := tool.WithTimeout(opts.Timeout)
	withLogger := func(o *tool.FunctionOptions) {
		o.Logger = logger
		timeout(o)
	}

	tools := []tool.Tool{
		tool.NewFunctionTool("Prompt AI Agent",
			"Run a named prompt template on an agent, optionally several times.",
			promptSchema(true), promptAgent(runner, ""), withLogger),
		tool.NewFunctionTool("Execute Task List",
			"Run every numbered task of a list on an agent.",
			util.StringArgs("agent", "tasks", "user_input"), executeTaskList(runner), withLogger),
	}

	for _, fn := range codeFunctions {
		tools = append(tools, tool.NewFunctionTool(fn.name, fn.description,
			fn.schema(), fn.run(runner, opts.DefaultAgent), withLogger))
	}

	for _, name := range opts.Agents {
		tools = append(tools,
			tool.NewFunctionTool("Ask AI Agent "+name,
				fmt.Sprintf("Ask %s a question. It may search the web.", name),
				util.StringArgs("user_input"),
				delegate(runner, name, TemplateAsk, AskWebSearchDepth), withLogger),
			tool.NewFunctionTool("Instruct AI Agent "+name,
				fmt.Sprintf("Give %s an instruction to carry out. It may search the web.", name),
				util.StringArgs("user_input"),
				delegate(runner, name, TemplateInstruct, InstructWebSearchDepth), withLogger),
			tool.NewFunctionTool("Prompt AI Agent "+name,
				fmt.Sprintf("Run a named prompt template on %s, optionally several times.", name),
				promptSchema(false), promptAgent(runner, name), withLogger),
		)
	}

	for _, name := range opts.Chains {
		tools = append(tools, tool.NewFunctionTool("Run Chain: "+name,
			fmt.Sprintf("Run the %s chain.", name),
			util.StringArgs("user_input"), runChain(runner, name), withLogger))
	}

	return tools
}

func delegate(runner Runner, agent, template string, depth int) tool.Func {
	return func(ctx context.Context, args map[string]any) (string, error) {
		return runner.RunAgent(ctx, agent, core.NewRequest(stringArg(args, "user_input"), func(r *core.InteractionRequest) {
			r.Template = template
			r.WebSearch = true
			r.WebSearchDepth = depth
		}))
	}
}

func promptSchema(withAgent bool) map[string]any {
	required := []string{"user_input", "prompt_name"}
	if withAgent {
		required = append([]string{"agent"}, required...)
	}

	schema := util.StringArgs(required...)
	props := schema["properties"].(map[string]any)
	props["prompt_args"] = map[string]any{"type": "object"}
	props["websearch"] = map[string]any{"type": "boolean"}
	props["websearch_depth"] = map[string]any{"type": "integer"}
	props["context_results"] = map[string]any{"type": "integer"}
	props["shots"] = map[string]any{"type": "integer"}

	return schema
}

// promptAgent runs a named template. An empty fixed agent is taken from
// the arguments.
func promptAgent(runner Runner, fixed string) tool.Func {
	return func(ctx context.Context, args map[string]any) (string, error) {
		agent := fixed
		if agent == "" {
			agent = stringArg(args, "agent")
		}
		shots := max(intArg(args, "shots", 1), 1)

		base := core.NewRequest(stringArg(args, "user_input"), func(r *core.InteractionRequest) {
			r.Template = stringArg(args, "prompt_name")
			r.WebSearchDepth = intArg(args, "websearch_depth", core.DefaultWebSearchDepth)
			r.ContextDepth = intArg(args, "context_results", core.DefaultContextDepth)
			if pa, ok := args["prompt_args"].(map[string]any); ok {
				for k, v := range pa {
					r.Bindings[k] = v
				}
			}
		})

		responses := make([]string, 0, shots)
		for i := 0; i < shots; i++ {
			req := base.Normalize()
			req.WebSearch = i == 0 && boolArg(args, "websearch")

			out, err := runner.RunAgent(ctx, agent, req)
			if err != nil {
				return "", err
			}
			responses = append(responses, out)
		}

		if shots == 1 {
			return responses[0], nil
		}

		blocks := make([]string, len(responses))
		for i, r := range responses {
			blocks[i] = fmt.Sprintf("Response %d:\n%s", i+1, r)
		}

		return strings.Join(blocks, "\n"), nil
	}
}

func executeTaskList(runner Runner) tool.Func {
	return func(ctx context.Context, args map[string]any) (string, error) {
		agent := stringArg(args, "agent")
		input := stringArg(args, "user_input")

		var responses []string
		for _, task := range NumberedTasks(stringArg(args, "tasks")) {
			out, err := runner.RunAgent(ctx, agent, core.NewRequest(input, func(r *core.InteractionRequest) {
				r.Template = TemplateTaskExecution
				r.Bindings[BindingTask] = task
			}))
			if err != nil {
				return "", fmt.Errorf("task %q: %w", task, err)
			}
			responses = append(responses, out)
		}

		return strings.Join(responses, "\n"), nil
	}
}

func runChain(runner Runner, chain string) tool.Func {
	return func(ctx context.Context, args map[string]any) (string, error) {
		responses, err := runner.RunChain(ctx, chain, stringArg(args, "user_input"))
		if err != nil {
			return "", err
		}

		if len(responses) == 0 {
			return fmt.Sprintf("Chain %s has no steps.", chain), nil
		}

		return responses[len(responses)-1], nil
	}
}

func (fn codeFunction) schema() map[string]any {
	props := map[string]any{"agent": map[string]any{"type": "string"}}
	var required []string

	for _, p := range fn.params {
		props[p] = map[string]any{}
		if p != fn.optional {
			required = append(required, p)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (fn codeFunction) run(runner Runner, defaultAgent string) tool.Func {
	return func(ctx context.Context, args map[string]any) (string, error) {
		agent := stringArg(args, "agent")
		if agent == "" {
			agent = defaultAgent
		}

		values := make([]any, len(fn.params))
		for i, p := range fn.params {
			values[i] = args[p]
		}

		return runner.RunAgent(ctx, agent, core.NewRequest(FunctionPrompt(fn.description, fn.signature, values...)))
	}
}

// FunctionPrompt asks the model to act as the described function and answer
// with its return value for the given arguments. The prompt doubles as the
// template of the interaction.
func FunctionPrompt(description, signature string, args ...any) string {
	rendered := make([]string, len(args))
	for i, a := range args {
		rendered[i] = strconv.Quote(argText(a))
	}

	return fmt.Sprintf("You are now the following python function: ```# %s\n%s```\n\nOnly respond with your `return` value. Args: [%s]",
		description, signature, strings.Join(rendered, ", "))
}

func argText(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case string:
		if val == "" {
			return "None"
		}
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// NumberedTasks keeps the lines of tasks that start with a digit.
func NumberedTasks(tasks string) []string {
	var out []string
	for _, line := range strings.Split(tasks, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line[0] >= '0' && line[0] <= '9' {
			out = append(out, line)
		}
	}

	return out
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}

func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}

	return false
}
