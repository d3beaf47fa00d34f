// Package tool implements the command capabilities an agent exposes to the
// model: schema validated arguments, consistent error handling and a
// registry keyed by display name.
package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/promptmesh/internal/util"
)

// Tool is a single executable command.
//
// Tool implementations should:
//   - Use a stable, human readable display name; the model addresses tools
//     by this exact string
//   - Define a parameter schema for argument validation
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the display name the model uses to call this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool. The returned text is shown to the model as
	// the command output.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// TimeoutOverrider is implemented by tools that bring their own command
// timeout instead of the executing agent's default.
type TimeoutOverrider interface {
	Timeout() (time.Duration, bool)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Error codes used by FunctionTool and Registry.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)
