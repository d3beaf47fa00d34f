package command

import (
	"context"
	"strings"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/logging"
)

// Kind classifies a handler pass.
type Kind int

const (
	// Success means the reply was parsed and dispatched.
	Success Kind = iota
	// ParseFailed means the reply held a malformed object.
	ParseFailed
	// ExecutionFailed means a capability returned an error.
	ExecutionFailed
	// Exhausted means generation gave up while healing.
	Exhausted
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ParseFailed:
		return "parse_failed"
	case ExecutionFailed:
		return "execution_failed"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Generator produces replacement replies while healing.
type Generator interface {
	// Regenerate re-runs the original request with the current context depth.
	Regenerate(ctx context.Context) (string, error)
	// Correct asks the model to fix a failed command.
	Correct(ctx context.Context, failed core.CommandInvocation, execErr error) (string, error)
}

// Outcome is the final result of Handle.
type Outcome struct {
	Kind Kind
	// Reply is the model output of the last pass.
	Reply      string
	Structured core.StructuredResponse
	Summary    string
	// Passes counts extraction attempts.
	Passes int
	Err    error
}

// Handler runs the extract, dispatch and heal loop.
type Handler struct {
	dispatcher *Dispatcher
	generator  Generator
	logger     logging.Logger
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Logger logging.Logger
}

// NewHandler creates a Handler.
func NewHandler(d *Dispatcher, g Generator, optFns ...func(o *HandlerOptions)) *Handler {
	opts := HandlerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Handler{dispatcher: d, generator: g, logger: logging.OrNoOp(opts.Logger)}
}

// Handle processes reply until a pass succeeds or the generator fails. The
// loop has no own bound; it ends when the generator's failure budget does or
// ctx is done.
func (h *Handler) Handle(ctx context.Context, reply string) Outcome {
	passes := 0

	for {
		if err := ctx.Err(); err != nil {
			return h.exhausted(Exhausted, reply, passes, err)
		}

		passes++

		sr, err := Extract(reply)
		if err != nil {
			h.logger.Info("command.reply.malformed", "pass", passes, "error", err.Error(), "reply", reply)

			next, genErr := h.generator.Regenerate(ctx)
			if genErr != nil {
				return h.exhausted(ParseFailed, reply, passes, genErr)
			}
			reply = next
			continue
		}

		res := h.dispatcher.Dispatch(ctx, sr)
		if res.Failed() {
			next, genErr := h.generator.Correct(ctx, res.Invocation, res.Err)
			if genErr != nil {
				return h.exhausted(ExecutionFailed, reply, passes, genErr)
			}
			reply = next
			continue
		}

		return Outcome{
			Kind:       Success,
			Reply:      reply,
			Structured: sr,
			Summary:    res.Summary,
			Passes:     passes,
		}
	}
}

func (h *Handler) exhausted(during Kind, reply string, passes int, err error) Outcome {
	h.logger.Warn("command.heal.exhausted", "during", during.String(), "passes", passes, "error", err.Error())
	return Outcome{Kind: Exhausted, Reply: reply, Passes: passes, Err: err}
}

// Rewrite folds the execution summary into the reply shown to the user.
// Replies without a structured object are returned unchanged.
func Rewrite(reply string, sr core.StructuredResponse, summary string) string {
	if !sr.Found() {
		return reply
	}

	var sb strings.Builder
	sb.WriteString(sr.Response)

	if len(sr.Commands) > 0 {
		sb.WriteString("\n\nCommands Executed:\n")
		sb.WriteString(sr.CommandsRaw)
	}

	if summary != "" {
		sb.WriteString("\n\nCommand Execution Response:\n")
		sb.WriteString(summary)
	}

	return sb.String()
}
