// Package gemini provides a model.Model backed by the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"

	"github.com/hupe1980/promptmesh/model"
	"google.golang.org/genai"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model         string
	Temperature   float32
	MaxTokens     int32
	ContextWindow int
	APIKey        string
}

// Model wraps genai's Models service.
type Model struct {
	client *genai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

func defaultOptions() Options {
	return Options{
		Model:         "gemini-2.0-flash",
		Temperature:   0.7,
		MaxTokens:     4096,
		ContextWindow: 1048576,
	}
}

// NewModel creates a client for the Gemini API backend.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func (m *Model) config(req model.Request) *genai.GenerateContentConfig {
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens > 0 && int32(req.MaxTokens) < maxTokens {
		maxTokens = int32(req.MaxTokens)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(m.opts.Temperature),
		MaxOutputTokens: maxTokens,
	}

	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}

	return cfg
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := genai.Text(req.Prompt)
		cfg := m.config(req)

		if req.Stream {
			var text string
			for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, cfg) {
				if err != nil {
					errCh <- fmt.Errorf("gemini streaming error: %w", err)
					return
				}
				if t := chunk.Text(); t != "" {
					text += t
					out <- model.Response{ID: chunk.ResponseID, Partial: true, Text: t}
				}
			}
			out <- model.Response{Text: text, FinishReason: "stop"}
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, cfg)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}

		r := model.Response{ID: resp.ResponseID, Text: resp.Text(), FinishReason: "stop"}
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			r.FinishReason = string(resp.Candidates[0].FinishReason)
		}
		if u := resp.UsageMetadata; u != nil {
			r.Usage = &model.TokenUsage{
				PromptTokens:     int(u.PromptTokenCount),
				CompletionTokens: int(u.CandidatesTokenCount),
				TotalTokens:      int(u.TotalTokenCount),
			}
		}

		out <- r
	}()

	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		ContextWindow: m.opts.ContextWindow,
	}
}
