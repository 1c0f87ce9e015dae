package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
)

// Entity is one extracted named entity
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// EntityExtractor pulls named entities out of long texts. Inputs beyond
// one chunk are windowed with overlap and the per-chunk results merged.
type EntityExtractor struct {
	gw     *gateway.Gateway
	logger zerolog.Logger
}

// NewEntityExtractor creates the entity extraction tool
func NewEntityExtractor(gw *gateway.Gateway) *EntityExtractor {
	return &EntityExtractor{gw: gw, logger: log.WithComponent("tools.entities")}
}

// Metadata describes the tool
func (e *EntityExtractor) Metadata() Metadata {
	return Metadata{
		Name:         "entity_extraction",
		Capabilities: []gateway.Capability{gateway.CapTextGeneration, gateway.CapJSONMode},
		InputSchema:  `{"text": "string"}`,
		OutputSchema: `{"entities": [{"text": "string", "type": "string", "confidence": "float"}]}`,
		MaxInputLen:  ChunkSize,
	}
}

// Extract returns the deduplicated entity set for text
func (e *EntityExtractor) Extract(ctx context.Context, text string) []Entity {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var all []Entity
	for _, chunk := range chunkText(text, ChunkSize, ChunkOverlap) {
		all = append(all, e.extractChunk(ctx, chunk)...)
	}
	return mergeEntities(all)
}

func (e *EntityExtractor) extractChunk(ctx context.Context, chunk string) []Entity {
	prompt := "Extract the named entities (people, organizations, locations, dates, products) " +
		"from the following text. Reply with a JSON array of objects with fields " +
		`"text", "type", and "confidence" (0 to 1). Reply with the JSON only.` +
		"\n\n" + chunk

	out, err := e.gw.Generate(ctx, gateway.TaskRequirements{Task: "entity_extraction", NeedsJSONMode: true}, prompt, gateway.GenerateOptions{
		MaxTokens: 2048,
		JSONMode:  true,
		Timeout:   DefaultTimeout,
	})
	if err == nil {
		if entities, perr := parseEntities(out); perr == nil {
			return entities
		}
	}

	e.logger.Warn().Err(err).Msg("entity extraction failed, using capitalization heuristic")
	metrics.ModelCallFallbacks.WithLabelValues("entity_extraction").Inc()
	return heuristicEntities(chunk)
}

// parseEntities decodes the model's JSON array, tolerating a fenced
// code block wrapper
func parseEntities(out string) ([]Entity, error) {
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")

	var entities []Entity
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// mergeEntities deduplicates by (lowercased text, type), keeping the
// highest confidence seen for each pair
func mergeEntities(entities []Entity) []Entity {
	type key struct {
		text string
		typ  string
	}
	seen := make(map[key]int)
	var merged []Entity
	for _, entity := range entities {
		k := key{text: strings.ToLower(entity.Text), typ: entity.Type}
		if idx, ok := seen[k]; ok {
			if entity.Confidence > merged[idx].Confidence {
				merged[idx].Confidence = entity.Confidence
			}
			continue
		}
		seen[k] = len(merged)
		merged = append(merged, entity)
	}
	return merged
}

// heuristicEntities collects capitalized word runs as low-confidence
// candidates when the model is unreachable
func heuristicEntities(text string) []Entity {
	var entities []Entity
	var run []string

	flush := func() {
		if len(run) > 0 {
			entities = append(entities, Entity{
				Text:       strings.Join(run, " "),
				Type:       "unknown",
				Confidence: 0.1,
			})
			run = nil
		}
	}

	for _, word := range strings.Fields(text) {
		trimmed := strings.Trim(word, ".,;:!?\"'()")
		if len(trimmed) > 1 && trimmed[0] >= 'A' && trimmed[0] <= 'Z' {
			run = append(run, trimmed)
			continue
		}
		flush()
	}
	flush()
	return entities
}
