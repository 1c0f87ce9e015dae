package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/types"
)

// MarkdownFormatter converts plain text to Markdown. Satisfied by the
// format_markdown tool; nil means raw text is kept as the formatted facet.
type MarkdownFormatter interface {
	Format(ctx context.Context, text string) string
}

// formatTimeout bounds the optional markdown formatting pass
const formatTimeout = 30 * time.Second

// TextExtractor handles text, markdown, and word documents: UTF-8 read
// with invalid bytes replaced, then an optional model formatting pass.
type TextExtractor struct {
	formatter MarkdownFormatter
	logger    zerolog.Logger
}

// NewTextExtractor creates a plain-text extractor. formatter may be nil.
func NewTextExtractor(formatter MarkdownFormatter) *TextExtractor {
	return &TextExtractor{
		formatter: formatter,
		logger:    log.WithComponent("extractor.text"),
	}
}

// Extract reads the input as UTF-8 text
func (e *TextExtractor) Extract(ctx context.Context, input Input) (*Result, error) {
	content, err := readInput(input)
	if err != nil {
		return nil, err
	}

	raw := strings.ToValidUTF8(string(content), "�")
	formatted := raw
	if e.formatter != nil {
		formatCtx, cancel := context.WithTimeout(ctx, formatTimeout)
		formatted = e.formatter.Format(formatCtx, raw)
		cancel()
		if strings.TrimSpace(formatted) == "" {
			formatted = raw
		}
	}

	return &Result{
		RawText:           raw,
		FormattedMarkdown: formatted,
	}, nil
}

// readInput loads bytes from inline content or a file path
func readInput(input Input) ([]byte, error) {
	if input.Content != nil {
		return input.Content, nil
	}
	if input.Path == "" {
		return nil, fmt.Errorf("%w: no content or path provided", types.ErrInvalidInput)
	}
	content, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtractorFailed, err)
	}
	return content, nil
}
