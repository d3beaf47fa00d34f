package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/util"
	"github.com/hupe1980/promptmesh/logging"
)

// Standard binding names.
const (
	BindingUserInput   = "user_input"
	BindingAgentName   = "agent_name"
	BindingCommands    = "COMMANDS"
	BindingContext     = "context"
	BindingCommandList = "command_list"
	BindingDate        = "date"
)

// CommandsPlaceholder marks a template as command-capable.
const CommandsPlaceholder = "{" + BindingCommands + "}"

// DateLayout renders the {date} binding.
const DateLayout = "January 02, 2006 03:04 PM"

const (
	contextDisabled = "None"
	contextFailed   = "None."
)

// IsCommandCapable reports whether an unformatted template asks the model
// for executable commands.
func IsCommandCapable(rawTemplate string) bool {
	return strings.Contains(rawTemplate, CommandsPlaceholder)
}

// Result is the outcome of formatting a request.
type Result struct {
	// Text is the fully substituted prompt.
	Text string
	// Template is the unformatted template after chain step substitution.
	Template string
	// Tokens is the approximate token count of Text.
	Tokens int
}

// Options configures a Formatter.
type Options struct {
	Templates core.TemplateStore
	Steps     core.StepStore
	Tokenizer Tokenizer
	// Now supplies the {date} binding; fix it for deterministic output.
	Now    func() time.Time
	Logger logging.Logger
}

// Formatter renders prompts for a single agent.
type Formatter struct {
	agent    core.Agent
	commands string
	opts     Options
	logger   logging.Logger
}

// NewFormatter creates a formatter. The agent's command list is captured once
// for the {COMMANDS} binding; {command_list} is read on every call.
func NewFormatter(agent core.Agent, optFns ...func(o *Options)) *Formatter {
	opts := Options{
		Tokenizer: ApproxTokenizer{},
		Now:       time.Now,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Formatter{
		agent:    agent,
		commands: agent.CommandListString(),
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// validator is implemented by step stores that can check a chain name
// without file access.
type validator interface {
	Validate(chainName string) error
}

// Format renders req. It only fails when the chain name is rejected by the
// step store; every other problem degrades to a literal or empty value.
func (f *Formatter) Format(ctx context.Context, req core.InteractionRequest) (Result, error) {
	req = req.Normalize()

	template := f.resolveTemplate(req)
	userInput := req.UserInput
	bindings := req.Bindings

	if req.InChain() {
		var err error
		template, userInput, bindings, err = f.substituteStep(req, template, userInput, bindings)
		if err != nil {
			return Result{}, err
		}
	}

	values := map[string]any{
		BindingUserInput:   userInput,
		BindingAgentName:   f.agent.Name(),
		BindingCommands:    f.commands,
		BindingContext:     f.context(ctx, req.UserInput, req.ContextDepth),
		BindingCommandList: f.agent.CommandListString(),
		BindingDate:        f.opts.Now().Format(DateLayout),
	}
	for k, v := range bindings {
		values[k] = v
	}

	text := util.Substitute(template, values)
	tokens := f.opts.Tokenizer.Count(text)

	f.logger.Debug("prompt.formatted", "agent", f.agent.Name(), "tokens", tokens, "prompt", text)

	return Result{Text: text, Template: template, Tokens: tokens}, nil
}

func (f *Formatter) resolveTemplate(req core.InteractionRequest) string {
	if req.Template == "" {
		return req.UserInput
	}

	if f.opts.Templates == nil {
		return req.Template
	}

	t, err := f.opts.Templates.Load(req.Template, f.agent.ModelID())
	if err != nil {
		f.logger.Debug("prompt.template.literal", "template", req.Template, "error", err.Error())
		return req.Template
	}

	return t
}

func (f *Formatter) context(ctx context.Context, query string, depth int) string {
	if depth == 0 {
		return contextDisabled
	}

	mem := f.agent.Memory()
	if mem == nil {
		return contextFailed
	}

	text, err := mem.ContextFor(ctx, query, depth)
	if err != nil {
		f.logger.Warn("prompt.context.failed", "depth", depth, "error", err.Error())
		return contextFailed
	}

	return text
}

// substituteStep replaces the {STEP<n>} token of the request's step number in
// the template, the user input and every string binding.
func (f *Formatter) substituteStep(
	req core.InteractionRequest,
	template, userInput string,
	bindings map[string]any,
) (string, string, map[string]any, error) {
	if v, ok := f.opts.Steps.(validator); ok {
		if err := v.Validate(req.ChainName); err != nil {
			return "", "", nil, err
		}
	}

	token := fmt.Sprintf("{STEP%d}", req.StepNumber)

	var (
		loaded   bool
		response string
	)
	lookup := func() (string, error) {
		if loaded {
			return response, nil
		}
		loaded = true

		if f.opts.Steps == nil {
			return "", nil
		}

		r, err := f.opts.Steps.StepResponse(req.ChainName, req.StepNumber)
		if err != nil {
			if errors.Is(err, core.ErrPathTraversal) {
				return "", err
			}
			f.logger.Info("prompt.step.missing", "chain", req.ChainName, "step", req.StepNumber, "error", err.Error())
			return "", nil
		}
		response = r
		return response, nil
	}

	replace := func(s string) (string, error) {
		if !strings.Contains(s, token) {
			return s, nil
		}
		r, err := lookup()
		if err != nil {
			return "", err
		}
		return strings.ReplaceAll(s, token, r), nil
	}

	var err error
	if template, err = replace(template); err != nil {
		return "", "", nil, err
	}
	if userInput, err = replace(userInput); err != nil {
		return "", "", nil, err
	}

	out := make(map[string]any, len(bindings))
	for k, v := range bindings {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		if out[k], err = replace(s); err != nil {
			return "", "", nil, err
		}
	}

	return template, userInput, out, nil
}
