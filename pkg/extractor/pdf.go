package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/types"
)

// PDFParser produces layout-aware Markdown from a PDF file. Implemented
// by an external parsing service binding; nil when none is configured.
type PDFParser interface {
	ParseMarkdown(ctx context.Context, path string) (string, error)
}

// TextParser produces a flat text rendering of a binary document file.
// Used as the fallback when no layout parser is configured, and as the
// only path for spreadsheet files.
type TextParser interface {
	ParseText(ctx context.Context, path string) (string, error)
}

const parseTimeout = 120 * time.Second

// PDFExtractor extracts PDF documents. The layout parser is preferred,
// the flat-text parser is the fallback, and with neither configured the
// kind is unavailable.
type PDFExtractor struct {
	layout PDFParser
	flat   TextParser
	logger zerolog.Logger
}

// NewPDFExtractor creates a PDF extractor. Either parser may be nil.
func NewPDFExtractor(layout PDFParser, flat TextParser) *PDFExtractor {
	return &PDFExtractor{
		layout: layout,
		flat:   flat,
		logger: log.WithComponent("extractor.pdf"),
	}
}

// Extract parses a PDF file into text facets
func (e *PDFExtractor) Extract(ctx context.Context, input Input) (*Result, error) {
	if input.Path == "" {
		return nil, fmt.Errorf("%w: pdf extraction requires a file path", types.ErrInvalidInput)
	}
	if e.layout == nil && e.flat == nil {
		return nil, fmt.Errorf("%w: no pdf parser configured", types.ErrExtractorUnavailable)
	}

	parseCtx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()

	if e.layout != nil {
		markdown, err := e.layout.ParseMarkdown(parseCtx, input.Path)
		if err == nil && strings.TrimSpace(markdown) != "" {
			return &Result{
				RawText:           markdown,
				FormattedMarkdown: markdown,
			}, nil
		}
		e.logger.Warn().Err(err).Str("path", input.Path).Msg("layout parse failed, trying flat text")
	}

	if e.flat == nil {
		return nil, fmt.Errorf("%w: layout parse failed and no text parser configured", types.ErrExtractorFailed)
	}

	text, err := e.flat.ParseText(parseCtx, input.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtractorFailed, err)
	}
	text = strings.ToValidUTF8(text, "�")
	return &Result{
		RawText:           text,
		FormattedMarkdown: text,
	}, nil
}

// ExcelExtractor extracts spreadsheet files through a flat-text parser
type ExcelExtractor struct {
	flat   TextParser
	logger zerolog.Logger
}

// NewExcelExtractor creates a spreadsheet extractor. flat may be nil, in
// which case the kind is unavailable.
func NewExcelExtractor(flat TextParser) *ExcelExtractor {
	return &ExcelExtractor{flat: flat, logger: log.WithComponent("extractor.excel")}
}

// Extract parses a spreadsheet file into text facets
func (e *ExcelExtractor) Extract(ctx context.Context, input Input) (*Result, error) {
	if input.Path == "" {
		return nil, fmt.Errorf("%w: excel extraction requires a file path", types.ErrInvalidInput)
	}
	if e.flat == nil {
		return nil, fmt.Errorf("%w: no spreadsheet parser configured", types.ErrExtractorUnavailable)
	}

	parseCtx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()

	text, err := e.flat.ParseText(parseCtx, input.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtractorFailed, err)
	}
	text = strings.ToValidUTF8(text, "�")
	return &Result{
		RawText:           text,
		FormattedMarkdown: "```\n" + text + "\n```",
	}, nil
}
