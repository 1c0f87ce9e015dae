package tools

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/log"
)

// Embedder vectorizes text through an embeddings-capable provider
type Embedder struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewEmbedder creates the embedding tool
func NewEmbedder(gw *gateway.Gateway) *Embedder {
	return &Embedder{gw: gw, logger: log.WithComponent("tools.embed")}
}

// Metadata describes the tool
func (e *Embedder) Metadata() Metadata {
	return Metadata{
		Name:         "embed_text",
		Capabilities: []gateway.Capability{gateway.CapEmbeddings},
		InputSchema:  `{"text": "string"}`,
		OutputSchema: `{"embedding": ["float"]}`,
		MaxInputLen:  ChunkSize,
	}
}

// Embed returns the embedding vector for text, or nil when no
// embeddings provider is available
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	vec, err := e.gw.Embed(ctx, gateway.TaskRequirements{Task: "embed_text"}, truncate(text, ChunkSize))
	if err != nil {
		e.logger.Warn().Err(err).Msg("embedding failed")
		return nil
	}
	return vec
}

// Toolset bundles the tools the processor and submission service use
type Toolset struct {
	Summarizer *Summarizer
	Language   *LanguageDetector
	Markdown   *MarkdownFormatter
	Entities   *EntityExtractor
	Translator *Translator
	Classifier *Classifier
	Answerer   *Answerer
	Embedder   *Embedder
}

// NewToolset constructs every tool against one gateway and registers
// them in a fresh registry
func NewToolset(gw *gateway.Gateway) (*Toolset, *Registry) {
	ts := &Toolset{
		Summarizer: NewSummarizer(gw),
		Language:   NewLanguageDetector(gw),
		Markdown:   NewMarkdownFormatter(gw),
		Entities:   NewEntityExtractor(gw),
		Translator: NewTranslator(gw),
		Classifier: NewClassifier(gw),
		Answerer:   NewAnswerer(gw),
		Embedder:   NewEmbedder(gw),
	}

	registry := NewRegistry()
	registry.Register(ts.Summarizer)
	registry.Register(ts.Language)
	registry.Register(ts.Markdown)
	registry.Register(ts.Entities)
	registry.Register(ts.Translator)
	registry.Register(ts.Classifier)
	registry.Register(ts.Answerer)
	registry.Register(ts.Embedder)
	return ts, registry
}
