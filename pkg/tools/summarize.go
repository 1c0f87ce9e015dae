package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
)

// Summarizer produces bounded-length prose summaries. Model failures
// degrade to a head-of-document extract; the caller never sees an error
// for AI issues.
type Summarizer struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewSummarizer creates the summarization tool
func NewSummarizer(gw *gateway.Gateway) *Summarizer {
	return &Summarizer{gw: gw, logger: log.WithComponent("tools.summarize")}
}

// Metadata describes the tool
func (s *Summarizer) Metadata() Metadata {
	return Metadata{
		Name:              "summarization",
		Capabilities:      []gateway.Capability{gateway.CapTextGeneration},
		InputSchema:       `{"text": "string", "max_words": "int", "style": "string"}`,
		OutputSchema:      `{"summary": "string"}`,
		MaxInputLen:       ChunkSize,
		SupportsStreaming: true,
	}
}

// Summarize generates a concise summary of up to maxWords words
func (s *Summarizer) Summarize(ctx context.Context, text string, maxWords int) string {
	if maxWords <= 0 {
		maxWords = 100
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	prompt := fmt.Sprintf(
		"Summarize the following text in a concise style, using at most %d words. "+
			"Reply with the summary only.\n\n%s",
		maxWords, truncate(text, ChunkSize),
	)

	out, err := s.gw.Generate(ctx, gateway.TaskRequirements{Task: "summarization"}, prompt, gateway.GenerateOptions{
		MaxTokens: maxWords * 2,
		Timeout:   SummaryTimeout,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		s.logger.Warn().Err(err).Msg("summary generation failed, using fallback")
		metrics.ModelCallFallbacks.WithLabelValues("summarization").Inc()
		return fallbackSummary(text)
	}
	return strings.TrimSpace(out)
}

// fallbackSummary returns the first three non-empty lines, each
// truncated to 100 characters
func fallbackSummary(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, truncate(line, 100))
		if len(lines) == 3 {
			break
		}
	}
	return strings.Join(lines, " ")
}
