package tools

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
)

// LanguageDetector identifies the language of a text as a two-letter
// code. Model failures degrade to a keyword-frequency heuristic over a
// closed set of language profiles.
type LanguageDetector struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewLanguageDetector creates the language detection tool
func NewLanguageDetector(gw *gateway.Gateway) *LanguageDetector {
	return &LanguageDetector{gw: gw, logger: log.WithComponent("tools.language")}
}

// Metadata describes the tool
func (d *LanguageDetector) Metadata() Metadata {
	return Metadata{
		Name:         "language_detection",
		Capabilities: []gateway.Capability{gateway.CapTextGeneration, gateway.CapFastInference},
		InputSchema:  `{"text": "string"}`,
		OutputSchema: `{"language": "string(2)"}`,
		MaxInputLen:  1000,
	}
}

// Detect returns the two-letter language code for text
func (d *LanguageDetector) Detect(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "en"
	}

	prompt := "Identify the language of the following text. Reply with only the " +
		"two-letter ISO 639-1 code, nothing else.\n\n" + truncate(text, 1000)

	out, err := d.gw.Generate(ctx, gateway.TaskRequirements{Task: "language_detection"}, prompt, gateway.GenerateOptions{
		MaxTokens: 4,
		Timeout:   LanguageTimeout,
	})
	if err == nil {
		code := strings.ToLower(strings.TrimSpace(out))
		if len(code) == 2 && isAlpha(code) {
			return code
		}
	}

	d.logger.Warn().Err(err).Msg("language detection failed, using keyword heuristic")
	metrics.ModelCallFallbacks.WithLabelValues("language_detection").Inc()
	return heuristicLanguage(text)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// languageProfiles holds high-frequency function words per language.
// The closed set keeps the heuristic cheap and deterministic.
var languageProfiles = map[string][]string{
	"en": {"the", "and", "is", "of", "to", "in", "that", "it", "with", "for"},
	"es": {"el", "la", "de", "que", "y", "en", "los", "una", "por", "con"},
	"fr": {"le", "la", "de", "et", "les", "des", "un", "une", "dans", "est"},
	"de": {"der", "die", "und", "das", "ist", "von", "den", "mit", "nicht", "ein"},
	"pt": {"o", "a", "de", "que", "e", "do", "da", "em", "um", "para"},
}

// heuristicLanguage scores text against each language profile by word
// frequency and returns the best match, defaulting to English.
func heuristicLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[strings.Trim(w, ".,;:!?\"'()")]++
	}

	best, bestScore := "en", 0
	for lang, profile := range languageProfiles {
		score := 0
		for _, marker := range profile {
			score += counts[marker]
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	return best
}
