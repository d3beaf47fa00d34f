package testutil

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned once a ScriptedProvider ran out of replies.
var ErrScriptExhausted = errors.New("scripted provider exhausted")

// Reply is a single scripted provider outcome.
type Reply struct {
	Text string
	Err  error
}

// ScriptedProvider replays replies in order and records every prompt. When
// Respond is set it takes precedence over the script.
type ScriptedProvider struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
	tokens  []int

	Respond func(prompt string) (string, error)
}

// NewScriptedProvider creates a provider replaying the given texts.
func NewScriptedProvider(texts ...string) *ScriptedProvider {
	p := &ScriptedProvider{}
	for _, t := range texts {
		p.replies = append(p.replies, Reply{Text: t})
	}
	return p
}

// Then appends a reply (chainable).
func (p *ScriptedProvider) Then(text string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, Reply{Text: text})
	return p
}

// Fail appends n failing replies (chainable).
func (p *ScriptedProvider) Fail(n int, err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		p.replies = append(p.replies, Reply{Err: err})
	}
	return p
}

// Instruct implements core.Provider.
func (p *ScriptedProvider) Instruct(_ context.Context, prompt string, tokens int) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.tokens = append(p.tokens, tokens)
	respond := p.Respond
	var next *Reply
	if respond == nil && len(p.replies) > 0 {
		r := p.replies[0]
		p.replies = p.replies[1:]
		next = &r
	}
	p.mu.Unlock()

	if respond != nil {
		return respond(prompt)
	}
	if next == nil {
		return "", ErrScriptExhausted
	}
	return next.Text, next.Err
}

// Prompts returns a copy of every prompt received so far.
func (p *ScriptedProvider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// Tokens returns the token estimates received so far.
func (p *ScriptedProvider) Tokens() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.tokens...)
}

// Calls returns the number of Instruct calls.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}
