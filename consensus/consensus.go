package consensus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
	"github.com/hupe1980/promptmesh/retry"
)

// Template names.
const (
	TemplateInstructStepByStep = "SmartInstruct-StepByStep"
	TemplateInstructResearcher = "SmartInstruct-Researcher"
	TemplateInstructResolver   = "SmartInstruct-Resolver"
	TemplateChatStepByStep     = "SmartChat-StepByStep"
	TemplateChatResearcher     = "SmartChat-Researcher"
	TemplateChatResolver       = "SmartChat-Resolver"
	TemplateTaskStepByStep     = "SmartTask-StepByStep"
	TemplateAction             = "instruct"
)

// BindingObjective switches the instruct pipeline to the task template.
const BindingObjective = "objective"

// Context depths used by the pipeline stages.
const (
	ShotContextDepth   = 6
	ShotWebSearchDepth = 3
)

// DefaultShots is the sample count used when a request asks for one shot.
const DefaultShots = 3

// Runner runs a full interaction.
type Runner interface {
	Run(ctx context.Context, req core.InteractionRequest) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req core.InteractionRequest) (string, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, req core.InteractionRequest) (string, error) {
	return f(ctx, req)
}

// Pipeline names the templates of one consensus flavour.
type Pipeline struct {
	Name       string
	StepByStep string
	Researcher string
	Resolver   string
	// StageDepth is the context depth of the researcher and resolver
	// stages; zero keeps the request default.
	StageDepth int
	// Action, when set, runs a final generation on the resolved answer.
	Action string
}

// Built-in pipelines.
var (
	InstructPipeline = Pipeline{
		Name:       "smart_instruct",
		StepByStep: TemplateInstructStepByStep,
		Researcher: TemplateInstructResearcher,
		Resolver:   TemplateInstructResolver,
		Action:     TemplateAction,
	}
	ChatPipeline = Pipeline{
		Name:       "smart_chat",
		StepByStep: TemplateChatStepByStep,
		Researcher: TemplateChatResearcher,
		Resolver:   TemplateChatResolver,
		StageDepth: ShotContextDepth,
	}
)

// Options configures a Resolver.
type Options struct {
	Logger logging.Logger
}

// Resolver runs consensus pipelines on top of a Runner.
type Resolver struct {
	runner Runner
	logger logging.Logger
}

// New creates a Resolver.
func New(runner Runner, optFns ...func(o *Options)) *Resolver {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Resolver{runner: runner, logger: logging.OrNoOp(opts.Logger)}
}

// Instruct runs the instruct pipeline and returns the resolved answer
// followed by the action output. A non-empty "objective" binding selects
// the task step-by-step template.
func (r *Resolver) Instruct(ctx context.Context, req core.InteractionRequest) (string, error) {
	p := InstructPipeline
	if objective, ok := req.Bindings[BindingObjective]; ok && objective != nil && objective != "" {
		p.Name = "smart_task"
		p.StepByStep = TemplateTaskStepByStep
	}

	return r.Run(ctx, p, req)
}

// Chat runs the chat pipeline and returns the resolved answer.
func (r *Resolver) Chat(ctx context.Context, req core.InteractionRequest) (string, error) {
	return r.Run(ctx, ChatPipeline, req)
}

// Run executes pipeline p for req. Shots that produce no result are
// rendered as "None"; the other stages fail the pipeline.
func (r *Resolver) Run(ctx context.Context, p Pipeline, req core.InteractionRequest) (string, error) {
	req = req.Normalize()
	start := time.Now()

	answers, err := r.shots(ctx, p, req)
	if err != nil {
		return "", err
	}

	researcher, err := r.runner.Run(ctx, r.stage(req, p.Researcher, p.StageDepth, Bundle(answers)))
	if err != nil {
		return "", fmt.Errorf("%s researcher: %w", p.Name, err)
	}

	resolved, err := r.runner.Run(ctx, r.stage(req, p.Resolver, p.StageDepth, researcher))
	if err != nil {
		return "", fmt.Errorf("%s resolver: %w", p.Name, err)
	}

	result := resolved

	if p.Action != "" {
		action, err := r.runner.Run(ctx, r.stage(req, p.Action, 0, fmt.Sprintf("%s\nContext:\n%s", req.UserInput, resolved)))
		if err := noneOnNoResult(err); err != nil {
			return "", fmt.Errorf("%s action: %w", p.Name, err)
		}
		result = fmt.Sprintf("%s\n\n%s", resolved, renderAnswer(action, err))
	}

	r.logger.Info("pipeline.completed",
		"pipeline", p.Name,
		"shots", len(answers),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

func (r *Resolver) shots(ctx context.Context, p Pipeline, req core.InteractionRequest) ([]*string, error) {
	answers := make([]*string, 0, req.Shots)

	for i := 0; i < req.Shots; i++ {
		shot := req
		shot.Template = p.StepByStep
		shot.ContextDepth = ShotContextDepth
		shot.WebSearch = i == 0
		shot.WebSearchDepth = ShotWebSearchDepth
		if i > 0 {
			shot.LearnFile = ""
		}

		text, err := r.runner.Run(ctx, shot.Normalize())
		if err := noneOnNoResult(err); err != nil {
			return nil, fmt.Errorf("%s shot %d: %w", p.Name, i+1, err)
		}

		if err != nil {
			r.logger.Warn("pipeline.shot.empty", "pipeline", p.Name, "shot", i+1)
			answers = append(answers, nil)
			continue
		}

		answers = append(answers, &text)
	}

	return answers, nil
}

func (r *Resolver) stage(req core.InteractionRequest, template string, depth int, input string) core.InteractionRequest {
	stage := req
	stage.UserInput = input
	stage.Template = template
	stage.WebSearch = false
	stage.LearnFile = ""
	stage.ContextDepth = core.DefaultContextDepth
	if depth > 0 {
		stage.ContextDepth = depth
	}

	return stage.Normalize()
}

// noneOnNoResult swallows retry.ErrNoResult so the caller renders "None".
func noneOnNoResult(err error) error {
	if err == nil || errors.Is(err, retry.ErrNoResult) {
		return nil
	}

	return err
}

func renderAnswer(text string, err error) string {
	if err != nil {
		return "None"
	}

	return text
}

// Bundle renders answers as "Answer k:" blocks in order. Missing answers
// render as "None".
func Bundle(answers []*string) string {
	var sb strings.Builder
	for i, a := range answers {
		text := "None"
		if a != nil {
			text = *a
		}
		fmt.Fprintf(&sb, "Answer %d:\n%s\n\n", i+1, text)
	}

	return sb.String()
}
