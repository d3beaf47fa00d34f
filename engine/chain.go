package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/promptmesh/core"
)

// ErrMissingStepStore is returned by RunChain when no step store is set.
var ErrMissingStepStore = errors.New("chain requires a step store")

// Step is one step of a chain.
type Step struct {
	// Template selects the prompt template of the step.
	Template string `yaml:"template"`
	// UserInput replaces the chain input for this step when set.
	UserInput string         `yaml:"user_input,omitempty"`
	Bindings  map[string]any `yaml:"bindings,omitempty"`
	WebSearch bool           `yaml:"websearch,omitempty"`
}

// RunChain runs steps in order. Step n (counting from 1) sees the response
// of step n-1 through the {STEP<n-1>} token, and its own response is saved
// as step n. The responses collected so far are returned with any error.
func (e *Engine) RunChain(ctx context.Context, chainName, userInput string, steps []Step) ([]string, error) {
	if e.opts.Steps == nil {
		return nil, ErrMissingStepStore
	}

	if v, ok := e.opts.Steps.(interface{ Validate(string) error }); ok {
		if err := v.Validate(chainName); err != nil {
			return nil, err
		}
	}

	responses := make([]string, 0, len(steps))

	for i, step := range steps {
		n := i + 1

		input := userInput
		if step.UserInput != "" {
			input = step.UserInput
		}

		req := core.NewRequest(input, func(r *core.InteractionRequest) {
			r.Template = step.Template
			r.ChainName = chainName
			r.StepNumber = n - 1
			r.WebSearch = step.WebSearch
			for k, v := range step.Bindings {
				r.Bindings[k] = v
			}
		})

		out, err := e.Run(ctx, req)
		if err != nil {
			return responses, fmt.Errorf("chain %s step %d: %w", chainName, n, err)
		}

		if err := e.opts.Steps.SaveStepResponse(chainName, n, out); err != nil {
			return responses, fmt.Errorf("chain %s step %d: save response: %w", chainName, n, err)
		}

		e.logger.Info("engine.chain.step", "chain", chainName, "step", n, "agent", e.agent.Name())

		responses = append(responses, out)
	}

	return responses, nil
}
