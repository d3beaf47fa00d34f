package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/promptmesh/internal/util"
	"github.com/hupe1980/promptmesh/logging"
)

// Func is the implementation of a FunctionTool.
type Func func(ctx context.Context, args map[string]any) (string, error)

// FunctionTool exposes a plain Go function as a Tool.
//
// Error semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	validation failure              -> *ToolError{Code: "VALIDATION_ERROR"}
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
	timeout     *time.Duration
	logger      logging.Logger
}

var _ Tool = (*FunctionTool)(nil)

// FunctionOptions configures a FunctionTool.
type FunctionOptions struct {
	Logger logging.Logger
	// Timeout overrides the executing agent's command timeout when set.
	// Zero disables the timeout for this tool.
	Timeout *time.Duration
}

// WithTimeout sets the command timeout of a FunctionTool.
func WithTimeout(d time.Duration) func(o *FunctionOptions) {
	return func(o *FunctionOptions) { o.Timeout = &d }
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	echo := NewFunctionTool(
//	  "Echo Text",
//	  "Repeat the given text",
//	  util.StringArgs("text"),
//	  func(ctx context.Context, args map[string]any) (string, error) {
//	    return args["text"].(string), nil
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Func, optFns ...func(o *FunctionOptions)) *FunctionTool {
	opts := FunctionOptions{Logger: logging.NoOpLogger{}}
	for _, f := range optFns {
		f(&opts)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		timeout:     opts.Timeout,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// Name returns the display name.
func (t *FunctionTool) Name() string { return t.name }

// Timeout reports the tool's own command timeout, if it has one.
func (t *FunctionTool) Timeout() (time.Duration, bool) {
	if t.timeout == nil {
		return 0, false
	}

	return *t.timeout, true
}

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the declared schema then invokes the function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()

	t.logger.Debug("tool.call.start", "tool", t.name)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			t.logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return "", toolErr
		}

		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	t.logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
