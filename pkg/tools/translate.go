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

// Translator translates long texts chunk by chunk, concatenating the
// translated windows in order separated by a single space.
type Translator struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewTranslator creates the translation tool
func NewTranslator(gw *gateway.Gateway) *Translator {
	return &Translator{gw: gw, logger: log.WithComponent("tools.translate")}
}

// Metadata describes the tool
func (t *Translator) Metadata() Metadata {
	return Metadata{
		Name:         "translation",
		Capabilities: []gateway.Capability{gateway.CapTextGeneration, gateway.CapLongContext},
		InputSchema:  `{"text": "string", "target_language": "string(2)"}`,
		OutputSchema: `{"translated": "string"}`,
		MaxInputLen:  ChunkSize,
	}
}

// Translate renders text into the target language. A chunk whose model
// call fails keeps its original text so the output stays complete.
func (t *Translator) Translate(ctx context.Context, text, targetLang string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var parts []string
	for _, chunk := range chunkText(text, ChunkSize, ChunkOverlap) {
		parts = append(parts, t.translateChunk(ctx, chunk, targetLang))
	}
	return strings.Join(parts, " ")
}

func (t *Translator) translateChunk(ctx context.Context, chunk, targetLang string) string {
	prompt := fmt.Sprintf(
		"Translate the following text into %s. Reply with the translation only.\n\n%s",
		targetLang, chunk,
	)

	out, err := t.gw.Generate(ctx, gateway.TaskRequirements{Task: "translation"}, prompt, gateway.GenerateOptions{
		MaxTokens: len(chunk)/2 + 256,
		Timeout:   DefaultTimeout,
	})
	if err != nil || strings.TrimSpace(out) == "" {
		t.logger.Warn().Err(err).Msg("translation failed, keeping original chunk")
		metrics.ModelCallFallbacks.WithLabelValues("translation").Inc()
		return chunk
	}
	return strings.TrimSpace(out)
}
