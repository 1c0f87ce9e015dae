package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/events"
	"github.com/cuemby/docstream/pkg/extractor"
	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
	"github.com/cuemby/docstream/pkg/queue"
	"github.com/cuemby/docstream/pkg/storage"
	"github.com/cuemby/docstream/pkg/tools"
	"github.com/cuemby/docstream/pkg/types"
)

const (
	languageSample = 1000
	summarySample  = 3000
	summaryWords   = 100
)

// Processor runs the extraction and enrichment pipeline for one
// dequeued document. Model failures degrade inside the tools; only
// infrastructural errors (store, extractor, cancellation) surface to
// the worker for retry accounting.
type Processor struct {
	store      storage.Store
	queue      queue.Queue
	extractors *extractor.Registry
	gw         *gateway.Gateway
	toolset    *tools.Toolset
	bus        *events.Bus
	logger     zerolog.Logger
}

// New creates a processor
func New(store storage.Store, q queue.Queue, extractors *extractor.Registry, gw *gateway.Gateway, toolset *tools.Toolset, bus *events.Bus) *Processor {
	return &Processor{
		store:      store,
		queue:      q,
		extractors: extractors,
		gw:         gw,
		toolset:    toolset,
		bus:        bus,
		logger:     log.WithComponent("processor"),
	}
}

// Process runs one document through extraction, enrichment, and the
// completed-state write. The document is mutated in place.
func (p *Processor) Process(ctx context.Context, doc *types.Document) error {
	timer := metrics.NewTimer()
	logger := log.WithDocumentID(p.logger, doc.ID).With().Str("kind", string(doc.Kind)).Logger()

	kind := doc.Kind
	if !types.IsValidKind(kind) {
		derived, ok := types.KindFromFilename(doc.Name)
		if !ok {
			return fmt.Errorf("%w: cannot determine kind for %q", types.ErrInvalidInput, doc.Name)
		}
		kind = derived
		doc.Kind = kind
	}

	p.progress(doc.ID, 10, "starting extraction")

	ext, err := p.extractors.Get(kind)
	if err != nil {
		return err
	}

	input, err := p.buildInput(ctx, doc)
	if err != nil {
		return err
	}

	result, err := ext.Extract(ctx, input)
	if err != nil {
		return fmt.Errorf("extract document %s: %w", doc.ID, err)
	}
	p.progress(doc.ID, 30, "content extracted")

	doc.RawContent = result.RawText
	doc.FormattedContent = result.FormattedMarkdown
	if result.StructuredData != nil {
		doc.StructuredData = result.StructuredData
	}
	if result.Summary != "" {
		doc.Summary = result.Summary
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if p.gw != nil && p.gw.Usable() {
		p.progress(doc.ID, 60, "detecting language")
		doc.Language = p.toolset.Language.Detect(ctx, head(doc.RawContent, languageSample))

		if doc.Summary == "" {
			p.progress(doc.ID, 70, "generating summary")
			doc.Summary = p.toolset.Summarizer.Summarize(ctx, head(doc.RawContent, summarySample), summaryWords)
		}

		if vec := p.toolset.Embedder.Embed(ctx, doc.RawContent); vec != nil {
			doc.Embedding = vec
		}
	} else {
		logger.Debug().Msg("no usable model provider, skipping enrichment")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	p.progress(doc.ID, 90, "saving document")

	now := time.Now()
	doc.State = types.StageCompleted
	doc.Version++
	doc.UpdatedAt = now
	if err := p.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	if err := p.store.SaveVersion(ctx, doc.ID, &types.DocumentVersion{
		Version:   doc.Version,
		Timestamp: now,
		UserID:    doc.UserID,
		Change:    "processing completed",
		Document:  doc,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to write version snapshot")
	}

	p.progress(doc.ID, 100, "processing complete")
	p.bus.Publish(types.EventDocumentUpdated, doc.ID, map[string]any{
		"state":   string(doc.State),
		"summary": doc.Summary,
		"version": doc.Version,
	})

	timer.ObserveDurationVec(metrics.ProcessingDuration, string(kind))
	logger.Info().Int("version", doc.Version).Dur("took", timer.Duration()).Msg("document processed")
	return nil
}

// buildInput resolves where the document content lives: the recorded
// upload path, the origin URL, or inline raw content from submission
func (p *Processor) buildInput(ctx context.Context, doc *types.Document) (extractor.Input, error) {
	if path, err := p.queue.FilePath(ctx, doc.ID); err == nil && path != "" {
		return extractor.Input{Path: path}, nil
	} else if err != nil {
		return extractor.Input{}, fmt.Errorf("resolve file path for %s: %w", doc.ID, err)
	}

	switch doc.Origin.Method {
	case types.OriginURL:
		return extractor.Input{URL: doc.Origin.Reference}, nil
	case types.OriginInline:
		return extractor.Input{Content: []byte(doc.RawContent)}, nil
	}
	return extractor.Input{}, fmt.Errorf("%w: document %s has no content source", types.ErrInvalidInput, doc.ID)
}

// progress publishes a processing:progress event for the document room
func (p *Processor) progress(docID string, pct int, message string) {
	p.bus.Publish(types.EventProcessingProgress, docID, types.ProgressPayload(pct, message))
}

// head returns the first n bytes of s without splitting a rune
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
