package core

import "context"

// Provider is the single-operation contract of a model backend. The token
// estimate lets size-aware providers budget their completion.
//
// Asynchronous backends are adapted to this shape by model.Sync so the retry
// layer treats every provider the same way.
type Provider interface {
	Instruct(ctx context.Context, prompt string, tokens int) (string, error)
}

// ProviderFunc adapts an ordinary function to the Provider interface.
type ProviderFunc func(ctx context.Context, prompt string, tokens int) (string, error)

// Instruct implements Provider.
func (f ProviderFunc) Instruct(ctx context.Context, prompt string, tokens int) (string, error) {
	return f(ctx, prompt, tokens)
}
