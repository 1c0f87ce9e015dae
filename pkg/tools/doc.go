/*
Package tools provides model-backed document operations with heuristic
fallbacks.

Each tool wraps the gateway for one task: summarization, language
detection, markdown formatting, entity extraction, translation,
classification, question answering, and embedding. Tools never propagate
model errors; every one degrades to a deterministic fallback so document
processing completes whether or not an external provider is reachable.

# Tools and Fallbacks

	Summarizer         first three non-empty lines, capped at 100 chars
	LanguageDetector   keyword-profile heuristic (en/es/fr/de/pt)
	MarkdownFormatter  raw text passes through unchanged
	EntityExtractor    capitalized word runs, type "unknown", confidence 0.1
	Translator         failed chunks keep their original text
	Classifier         label keyword counting
	Answerer           empty answer
	Embedder           nil vector (document saved without embedding)

# Chunking

Long inputs are split into 40000-byte chunks with 500 bytes of overlap
before translation and other whole-document passes. Chunk boundaries never
split a UTF-8 rune.

# Timeouts

Each call carries its own deadline: 20s for summaries, 10s for language
detection, 30s for markdown formatting and the rest. A timeout is treated
like any other model failure and triggers the fallback.

# Registry

NewToolset constructs every tool against one gateway and registers them in
a Registry keyed by task name, which serve exposes for capability
discovery.

	toolset, registry := tools.NewToolset(gw)
	summary := toolset.Summarizer.Summarize(ctx, text, 100)

# See Also

  - pkg/gateway - provider selection underneath every tool
  - pkg/processor - the enrichment pipeline that drives these tools
*/
package tools
