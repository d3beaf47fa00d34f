package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/promptmesh/core"
)

// Request captures a single completion request. Instructions map to the
// provider's system prompt; Prompt is the fully formatted user prompt.
type Request struct {
	Instructions string `json:"instructions,omitempty"`
	Prompt       string `json:"prompt"`
	// MaxTokens caps the completion length. Zero keeps the adapter default.
	MaxTokens int  `json:"max_tokens,omitempty"`
	Stream    bool `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	// ContextWindow is the total token budget shared by prompt and
	// completion. Zero means unknown.
	ContextWindow int `json:"context_window,omitempty"`
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrEmptyCompletion is returned when a model finished without any text.
var ErrEmptyCompletion = errors.New("model returned no completion")

// ProviderOptions configures the core.Provider view of a Model.
type ProviderOptions struct {
	// Instructions is sent as the system prompt on every call.
	Instructions string
	// Stream requests incremental generation from the adapter.
	Stream bool
}

// Provider adapts a channel based Model to the synchronous core.Provider
// contract used by the engine.
type Provider struct {
	model Model
	opts  ProviderOptions
}

var _ core.Provider = (*Provider)(nil)

// NewProvider wraps m.
func NewProvider(m Model, optFns ...func(o *ProviderOptions)) *Provider {
	opts := ProviderOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{model: m, opts: opts}
}

// Model returns the wrapped model.
func (p *Provider) Model() Model { return p.model }

// Instruct implements core.Provider. tokens is the prompt's estimated size;
// when the model announces a context window the completion is capped to the
// remaining budget.
func (p *Provider) Instruct(ctx context.Context, prompt string, tokens int) (string, error) {
	req := Request{
		Instructions: p.opts.Instructions,
		Prompt:       prompt,
		Stream:       p.opts.Stream,
	}

	if window := p.model.Info().ContextWindow; window > 0 {
		if remaining := window - tokens; remaining > 0 {
			req.MaxTokens = remaining
		} else {
			return "", fmt.Errorf("prompt of %d tokens exceeds context window of %d", tokens, window)
		}
	}

	return Collect(ctx, p.model, req)
}

// Collect drains a generation and returns the final text. When the model
// only emitted partial chunks they are concatenated.
func Collect(ctx context.Context, m Model, req Request) (string, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		partial strings.Builder
		final   *Response
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		}
	}

	if final != nil {
		return final.Text, nil
	}

	if partial.Len() > 0 {
		return partial.String(), nil
	}

	return "", ErrEmptyCompletion
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	requests  []Request
}

var _ Model = (*MockModel)(nil)

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:     name,
			Provider: provider,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Requests returns every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	full := m.responses[req.Prompt]
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if req.Prompt == "" {
			errCh <- fmt.Errorf("no prompt provided")
			return
		}

		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", req.Prompt)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full, FinishReason: "stop"}:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
