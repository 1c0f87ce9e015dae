package gateway

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"time"
)

// LocalProvider is a deterministic heuristic provider. It keeps the
// pipeline functional with no API key configured, serves as the
// embeddings backend (hashing vectorizer), and backs tests.
type LocalProvider struct {
	meta Metadata
}

// embeddingDimensions is the fixed width of local embedding vectors
const embeddingDimensions = 256

// NewLocalProvider creates the local heuristic provider
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{
		meta: Metadata{
			Name:    "local",
			ModelID: "local-heuristic",
			Enabled: true,
			Capabilities: []Capability{
				CapTextGeneration,
				CapEmbeddings,
				CapFastInference,
				CapStreaming,
			},
			Cost: CostProfile{
				Tier:         TierFree,
				AvgLatency:   5 * time.Millisecond,
				MaxContext:   1 << 20,
				QualityScore: 0.2,
			},
		},
	}
}

// Metadata returns the provider description
func (p *LocalProvider) Metadata() Metadata {
	return p.meta
}

// Generate returns the head of the prompt's final text section. Tool
// prompts place the subject text last, so this yields a usable extract
// when no real model is reachable.
func (p *LocalProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := prompt
	if idx := strings.LastIndex(prompt, "\n\n"); idx >= 0 {
		text = prompt[idx+2:]
	}

	words := strings.Fields(text)
	limit := 60
	if opts.MaxTokens > 0 && opts.MaxTokens < limit {
		limit = opts.MaxTokens
	}
	if len(words) > limit {
		words = words[:limit]
	}
	return strings.Join(words, " "), nil
}

// GenerateStreaming streams the generated text word by word
func (p *LocalProvider) GenerateStreaming(ctx context.Context, prompt string, opts GenerateOptions) (<-chan string, error) {
	text, err := p.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		for _, word := range strings.Fields(text) {
			select {
			case out <- word + " ":
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Embed vectorizes text with a normalized feature-hashing scheme. The
// same text always produces the same vector.
func (p *LocalProvider) Embed(ctx context.Context, text, model string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, embeddingDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		sum := h.Sum32()
		idx := sum % embeddingDimensions
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Health always succeeds for the local provider
func (p *LocalProvider) Health(ctx context.Context) error {
	return nil
}
