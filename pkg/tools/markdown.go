package tools

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
)

// MarkdownFormatter converts plain text into canonical Markdown. On any
// model failure the raw text is returned unchanged.
type MarkdownFormatter struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewMarkdownFormatter creates the text-to-markdown tool
func NewMarkdownFormatter(gw *gateway.Gateway) *MarkdownFormatter {
	return &MarkdownFormatter{gw: gw, logger: log.WithComponent("tools.markdown")}
}

// Metadata describes the tool
func (f *MarkdownFormatter) Metadata() Metadata {
	return Metadata{
		Name:              "format_markdown",
		Capabilities:      []gateway.Capability{gateway.CapTextGeneration},
		InputSchema:       `{"text": "string"}`,
		OutputSchema:      `{"markdown": "string"}`,
		MaxInputLen:       ChunkSize,
		SupportsStreaming: true,
	}
}

// Format returns a Markdown rendition of text
func (f *MarkdownFormatter) Format(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	prompt := "Convert the following plain text into well-structured Markdown. " +
		"Preserve all content; add headings, lists, and emphasis where the structure " +
		"calls for them. Reply with the Markdown only.\n\n" + truncate(text, ChunkSize)

	out, err := f.gw.Generate(ctx, gateway.TaskRequirements{Task: "format_markdown"}, prompt, gateway.GenerateOptions{
		MaxTokens: len(text)/2 + 512,
		Timeout:   MarkdownTimeout,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		f.logger.Warn().Err(err).Msg("markdown formatting failed, keeping raw text")
		metrics.ModelCallFallbacks.WithLabelValues("format_markdown").Inc()
		return text
	}
	return strings.TrimSpace(out)
}
