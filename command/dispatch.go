package command

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/internal/util"
	"github.com/hupe1980/promptmesh/logging"
)

// NoCommandsNotice is returned when a reply asked for no command.
const NoCommandsNotice = "\nNo commands were executed.\n"

// NotRecognizedNotice renders the notice for an unknown command name.
func NotRecognizedNotice(name string) string {
	return fmt.Sprintf("\nCommand not recognized: `%s`.", name)
}

// ExecutedSummary renders the summary of a successful command.
func ExecutedSummary(name string, args map[string]any, output string) string {
	return fmt.Sprintf("\nExecuted Command:%s with args %s.\nCommand Output: %s\n", name, util.Stringify(args), output)
}

// Executor runs named capabilities. core.Agent satisfies it.
type Executor interface {
	Capabilities() []core.Capability
	Execute(ctx context.Context, displayName string, args map[string]any) (string, error)
}

// DispatchResult is the outcome of a single dispatch pass.
type DispatchResult struct {
	Summary string
	// Invocation is the command that was looked at, if any.
	Invocation core.CommandInvocation
	// Err is the capability error of a failed execution.
	Err error
}

// Failed reports whether a capability returned an error.
func (r DispatchResult) Failed() bool { return r.Err != nil }

// Dispatcher resolves command names against a capability registry that is
// captured once at construction.
type Dispatcher struct {
	executor Executor
	registry map[string]core.Capability
	logger   logging.Logger
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Logger logging.Logger
}

// NewDispatcher indexes the executor's capabilities by display name.
func NewDispatcher(executor Executor, optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	caps := executor.Capabilities()
	registry := make(map[string]core.Capability, len(caps))
	for _, c := range caps {
		registry[c.DisplayName] = c
	}

	return &Dispatcher{
		executor: executor,
		registry: registry,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Dispatch executes the first command of sr. Later commands in the same
// reply are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, sr core.StructuredResponse) DispatchResult {
	if len(sr.Commands) == 0 {
		return DispatchResult{Summary: NoCommandsNotice}
	}

	inv := sr.Commands[0]
	if inv.Args == nil {
		inv.Args = map[string]any{}
	}

	if inv.Name == core.NoCommandSentinel {
		return DispatchResult{Summary: NoCommandsNotice, Invocation: inv}
	}

	if _, ok := d.registry[inv.Name]; !ok {
		d.logger.Info("command.unknown", "command", inv.Name)
		return DispatchResult{Summary: NotRecognizedNotice(inv.Name), Invocation: inv}
	}

	start := time.Now()
	out, err := d.executor.Execute(ctx, inv.Name, inv.Args)
	if err != nil {
		d.logger.Warn("command.failed", "command", inv.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		return DispatchResult{Invocation: inv, Err: err}
	}

	d.logger.Info("command.executed", "command", inv.Name, "duration_ms", time.Since(start).Milliseconds())

	return DispatchResult{Summary: ExecutedSummary(inv.Name, inv.Args, out), Invocation: inv}
}
