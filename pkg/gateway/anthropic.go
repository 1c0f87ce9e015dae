package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ErrEmbeddingsUnsupported is returned by providers that cannot vectorize
var ErrEmbeddingsUnsupported = errors.New("provider does not support embeddings")

// AnthropicProvider backs generation with the Anthropic Messages API.
// It declares no embeddings capability, so capability filtering keeps
// embedding tasks away from it.
type AnthropicProvider struct {
	client anthropic.Client
	meta   Metadata
}

// AnthropicConfig holds Anthropic provider construction parameters
type AnthropicConfig struct {
	APIKey       string
	ModelID      string
	Enabled      bool
	Cost         CostProfile
	PreferredFor []string
}

// NewAnthropicProvider creates an Anthropic-backed provider
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		meta: Metadata{
			Name:    "anthropic",
			ModelID: cfg.ModelID,
			Enabled: cfg.Enabled,
			Capabilities: []Capability{
				CapTextGeneration,
				CapVision,
				CapFunctionCalling,
				CapLongContext,
				CapJSONMode,
				CapStreaming,
			},
			Cost:         cfg.Cost,
			PreferredFor: cfg.PreferredFor,
		},
	}
}

// Metadata returns the provider description
func (p *AnthropicProvider) Metadata() Metadata {
	return p.meta
}

func (p *AnthropicProvider) params(prompt string, opts GenerateOptions) anthropic.MessageNewParams {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.meta.ModelID),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: opts.SystemPrompt},
		}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	return params
}

// Generate runs one blocking generation call
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	message, err := p.client.Messages.New(ctx, p.params(prompt, opts))
	if err != nil {
		return "", fmt.Errorf("anthropic message failed: %w", err)
	}

	var out string
	for _, block := range message.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

// GenerateStreaming streams generated text deltas
func (p *AnthropicProvider) GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(prompt, opts))

	out := make(chan string, 16)
	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					select {
					case out <- delta.Text:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

// Embed is unsupported by the Anthropic API
func (p *AnthropicProvider) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

// Health performs a minimal round-trip against the API
func (p *AnthropicProvider) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := p.Generate(ctx, "ping", GenerateOptions{MaxTokens: 1})
	return err
}
