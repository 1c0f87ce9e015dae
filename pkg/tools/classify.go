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

// Classifier assigns one of a closed label set to a text. Model failures
// degrade to label keyword counting.
type Classifier struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewClassifier creates the classification tool
func NewClassifier(gw *gateway.Gateway) *Classifier {
	return &Classifier{gw: gw, logger: log.WithComponent("tools.classify")}
}

// Metadata describes the tool
func (c *Classifier) Metadata() Metadata {
	return Metadata{
		Name:         "classification",
		Capabilities: []gateway.Capability{gateway.CapTextGeneration, gateway.CapFastInference},
		InputSchema:  `{"text": "string", "labels": ["string"]}`,
		OutputSchema: `{"label": "string"}`,
		MaxInputLen:  ChunkSize,
	}
}

// Classify picks the best-matching label for text
func (c *Classifier) Classify(ctx context.Context, text string, labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return labels[0]
	}

	prompt := fmt.Sprintf(
		"Classify the following text as exactly one of these labels: %s. "+
			"Reply with the label only.\n\n%s",
		strings.Join(labels, ", "), truncate(text, ChunkSize),
	)

	out, err := c.gw.Generate(ctx, gateway.TaskRequirements{Task: "classification"}, prompt, gateway.GenerateOptions{
		MaxTokens: 16,
		Timeout:   DefaultTimeout,
	})
	if err == nil {
		answer := strings.ToLower(strings.TrimSpace(out))
		for _, label := range labels {
			if strings.ToLower(label) == answer {
				return label
			}
		}
	}

	c.logger.Warn().Err(err).Msg("classification failed, using keyword fallback")
	metrics.ModelCallFallbacks.WithLabelValues("classification").Inc()
	return keywordLabel(text, labels)
}

// keywordLabel counts label occurrences in the text, first label wins ties
func keywordLabel(text string, labels []string) string {
	lower := strings.ToLower(text)
	best, bestCount := labels[0], -1
	for _, label := range labels {
		count := strings.Count(lower, strings.ToLower(label))
		if count > bestCount {
			best, bestCount = label, count
		}
	}
	return best
}
