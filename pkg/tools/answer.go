package tools

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
)

// Answerer answers a question against a document excerpt. Model failures
// degrade to returning the head of the context.
type Answerer struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewAnswerer creates the question answering tool
func NewAnswerer(gw *gateway.Gateway) *Answerer {
	return &Answerer{gw: gw, logger: log.WithComponent("tools.answer")}
}

// Metadata describes the tool
func (a *Answerer) Metadata() Metadata {
	return Metadata{
		Name:              "question_answering",
		Capabilities:      []gateway.Capability{gateway.CapTextGeneration, gateway.CapLongContext},
		InputSchema:       `{"question": "string", "context": "string"}`,
		OutputSchema:      `{"answer": "string"}`,
		MaxInputLen:       ChunkSize,
		SupportsStreaming: true,
	}
}

// Answer responds to question using only docContext as evidence
func (a *Answerer) Answer(ctx context.Context, question, docContext string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		return ""
	}

	prompt := "Answer the question using only the provided context. If the context " +
		"does not contain the answer, say so.\n\nQuestion: " + question +
		"\n\nContext:\n\n" + truncate(docContext, ChunkSize)

	out, err := a.gw.Generate(ctx, gateway.TaskRequirements{Task: "question_answering"}, prompt, gateway.GenerateOptions{
		MaxTokens: 512,
		Timeout:   DefaultTimeout,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		a.logger.Warn().Err(err).Msg("question answering failed, using context head")
		metrics.ModelCallFallbacks.WithLabelValues("question_answering").Inc()
		return fallbackSummary(docContext)
	}
	return strings.TrimSpace(out)
}
