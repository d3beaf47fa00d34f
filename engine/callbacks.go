package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/promptmesh/core"
)

// CallbackType names a hook point in a run.
type CallbackType string

const (
	// CallbackBeforeModel runs before each provider call. An error fails the
	// attempt and counts towards the failure budget.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel runs after each successful provider call. An error
	// fails the attempt.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackAfterCommand runs once the command loop settled. Errors are
	// logged.
	CallbackAfterCommand CallbackType = "after_command"

	// CallbackAfterRun runs when a run produced its final response. Errors
	// are logged.
	CallbackAfterRun CallbackType = "after_run"
)

// CallbackContext carries the state visible to a callback.
type CallbackContext struct {
	CallbackType CallbackType
	EngineID     string
	Agent        string
	Request      core.InteractionRequest

	// Prompt and Tokens are set for model callbacks.
	Prompt string
	Tokens int

	// Response is the model reply (after_model), the command summary
	// (after_command) or the final response (after_run).
	Response string

	Metadata map[string]any
}

// Callback is a hook executed at one CallbackType.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback creates a FunctionCallback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cbCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager holds callbacks by type. It is safe for concurrent use and
// may be shared by all engines of a pool.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds callbacks. They run in registration order.
func (cm *CallbackManager) Register(callbacks ...Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, cb := range callbacks {
		cm.callbacks[cb.Type()] = append(cm.callbacks[cb.Type()], cb)
	}
}

// Execute runs the callbacks of t and stops at the first error.
func (cm *CallbackManager) Execute(ctx context.Context, t CallbackType, cbCtx *CallbackContext) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[t]
	cm.mu.RUnlock()

	cbCtx.CallbackType = t

	for _, cb := range callbacks {
		if err := cb.Execute(ctx, cbCtx); err != nil {
			return fmt.Errorf("%s callback: %w", t, err)
		}
	}

	return nil
}

// LoggingCallback writes a one-line summary for every hook it is bound to.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a LoggingCallback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logger}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	if c.logger != nil {
		c.logger(fmt.Sprintf("[%s] agent=%s template=%q tokens=%d response_len=%d",
			c.callbackType, cbCtx.Agent, cbCtx.Request.Template, cbCtx.Tokens, len(cbCtx.Response)))
	}

	return nil
}
