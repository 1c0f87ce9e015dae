package tools

import (
	"time"

	"github.com/cuemby/docstream/pkg/gateway"
)

// Chunking parameters for long-input tools. Windows overlap so entities
// spanning a boundary are seen whole in at least one chunk.
const (
	ChunkSize    = 40000
	ChunkOverlap = 500
)

// Per-tool call budgets
const (
	SummaryTimeout  = 20 * time.Second
	LanguageTimeout = 10 * time.Second
	MarkdownTimeout = 30 * time.Second
	DefaultTimeout  = 30 * time.Second
)

// Metadata describes one tool for registry introspection
type Metadata struct {
	Name              string
	Capabilities      []gateway.Capability
	InputSchema       string
	OutputSchema      string
	MaxInputLen       int
	SupportsStreaming bool
}

// Tool is a named, schema-bound unit of AI capability
type Tool interface {
	Metadata() Metadata
}

// Registry is the static tool registry, populated at composition time
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Call during composition only.
func (r *Registry) Register(t Tool) {
	name := t.Metadata().Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns the tool registered under name
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// chunkText splits text into overlapping windows. A text shorter than
// the window comes back as a single chunk.
func chunkText(text string, size, overlap int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

// truncate bounds text to n bytes without splitting the final rune
func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := text[:n]
	for len(cut) > 0 && !isRuneStart(text[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
