package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_Defaults(t *testing.T) {
	r := NewRequest("hello")
	assert.Equal(t, "hello", r.UserInput)
	assert.Equal(t, DefaultContextDepth, r.ContextDepth)
	assert.Equal(t, DefaultWebSearchDepth, r.WebSearchDepth)
	assert.Equal(t, 1, r.Shots)
	assert.NotNil(t, r.Bindings)
	assert.False(t, r.InChain())
}

func TestNewRequest_ClampsNegativeDepth(t *testing.T) {
	r := NewRequest("x", func(r *InteractionRequest) {
		r.ContextDepth = -3
		r.WebSearchDepth = -1
		r.Shots = 0
	})
	assert.Equal(t, 0, r.ContextDepth)
	assert.Equal(t, 0, r.WebSearchDepth)
	assert.Equal(t, 1, r.Shots)
}

func TestInteractionRequest_WithBindingCopies(t *testing.T) {
	base := NewRequest("x", func(r *InteractionRequest) { r.Bindings["a"] = "1" })
	derived := base.WithBinding("b", "2")

	assert.Equal(t, "2", derived.Bindings["b"])
	_, leaked := base.Bindings["b"]
	assert.False(t, leaked, "binding must not leak into the original request")
}

func TestFailureCounter(t *testing.T) {
	fc := NewFailureCounter(3)
	require.NoError(t, fc.Increment())
	require.NoError(t, fc.Increment())
	assert.Equal(t, 1, fc.Remaining())
	assert.Error(t, fc.Increment())
	assert.Equal(t, 3, fc.Count())

	fc.Reset()
	assert.Equal(t, 0, fc.Count())
	assert.Equal(t, 3, fc.Remaining())
}

func TestFailureCounter_Unlimited(t *testing.T) {
	fc := NewFailureCounter(0)
	for i := 0; i < 10; i++ {
		require.NoError(t, fc.Increment())
	}
	assert.Equal(t, -1, fc.Remaining())
}

func TestStructuredResponse_Found(t *testing.T) {
	assert.False(t, StructuredResponse{}.Found())
	assert.True(t, StructuredResponse{Raw: "{}"}.Found())
}

func TestProviderFunc(t *testing.T) {
	p := ProviderFunc(func(_ context.Context, prompt string, tokens int) (string, error) {
		return prompt, nil
	})
	out, err := p.Instruct(context.Background(), "echo", 1)
	require.NoError(t, err)
	assert.Equal(t, "echo", out)
}
