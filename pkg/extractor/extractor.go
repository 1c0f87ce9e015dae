package extractor

import (
	"context"
	"fmt"

	"github.com/cuemby/docstream/pkg/types"
)

// Input locates the content to extract: a local file path, a URL, or
// inline bytes. Exactly one is expected to be set.
type Input struct {
	Path    string
	URL     string
	Content []byte
}

// Result is the extracted content of one document
type Result struct {
	RawText           string
	FormattedMarkdown string
	StructuredData    map[string]any
	Summary           string
	Metadata          map[string]string
}

// Extractor converts one document format into text facets. Extractors
// are idempotent and share no mutable state.
type Extractor interface {
	Extract(ctx context.Context, input Input) (*Result, error)
}

// Registry is the dispatch table from document kind to extractor,
// populated at composition-root time
type Registry struct {
	extractors map[types.DocumentKind]Extractor
}

// NewRegistry creates an empty extractor registry
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[types.DocumentKind]Extractor)}
}

// Register binds an extractor to a document kind
func (r *Registry) Register(kind types.DocumentKind, e Extractor) {
	r.extractors[kind] = e
}

// Get returns the extractor for kind or ErrExtractorUnavailable
func (r *Registry) Get(kind types.DocumentKind) (Extractor, error) {
	e, ok := r.extractors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for kind %s", types.ErrExtractorUnavailable, kind)
	}
	return e, nil
}

// Kinds returns the registered kinds
func (r *Registry) Kinds() []types.DocumentKind {
	kinds := make([]types.DocumentKind, 0, len(r.extractors))
	for kind := range r.extractors {
		kinds = append(kinds, kind)
	}
	return kinds
}
