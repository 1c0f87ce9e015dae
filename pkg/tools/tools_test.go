package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cuemby/docstream/pkg/gateway"
)

// scriptedProvider returns a fixed reply or error for every call
type scriptedProvider struct {
	reply string
	err   error
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts gateway.GenerateOptions) (string, error) {
	return p.reply, p.err
}

func (p *scriptedProvider) GenerateStreaming(ctx context.Context, prompt string, opts gateway.GenerateOptions) (<-chan string, error) {
	ch := make(chan string, 1)
	ch <- p.reply
	close(ch)
	return ch, p.err
}

func (p *scriptedProvider) Embed(ctx context.Context, text, model string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []float32{1, 0, 0}, nil
}

func (p *scriptedProvider) Health(ctx context.Context) error { return p.err }

func (p *scriptedProvider) Metadata() gateway.Metadata {
	return gateway.Metadata{
		Name:    "scripted",
		Enabled: true,
		Capabilities: []gateway.Capability{
			gateway.CapTextGeneration,
			gateway.CapJSONMode,
			gateway.CapEmbeddings,
			gateway.CapLongContext,
		},
		Cost: gateway.CostProfile{QualityScore: 0.5, MaxContext: 1 << 20},
	}
}

func scriptedGateway(reply string, err error) *gateway.Gateway {
	gw := gateway.New(gateway.Config{Strategy: gateway.StrategyBalanced})
	gw.Register(&scriptedProvider{reply: reply, err: err})
	return gw
}

func TestChunkText(t *testing.T) {
	short := chunkText("hello", 100, 10)
	if len(short) != 1 || short[0] != "hello" {
		t.Errorf("chunkText(short) = %v", short)
	}

	text := strings.Repeat("a", 250)
	chunks := chunkText(text, 100, 20)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	// Consecutive chunks share the overlap region
	if chunks[0][80:] != chunks[1][:20] {
		t.Error("chunks do not overlap")
	}
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	if total < len(text) {
		t.Error("chunks lost content")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("hello world", 5); got != "hello" {
		t.Errorf("truncate = %q, want %q", got, "hello")
	}
	// Never splits a multi-byte rune
	got := truncate("héllo", 2)
	if !strings.HasPrefix("héllo", got) || len(got) > 2 {
		t.Errorf("truncate split a rune: %q", got)
	}
	for _, r := range got {
		if r == 0xFFFD {
			t.Errorf("truncate produced invalid UTF-8: %q", got)
		}
	}
}

func TestSummarize(t *testing.T) {
	s := NewSummarizer(scriptedGateway("A short summary.", nil))

	out := s.Summarize(context.Background(), "Long document body text.", 50)
	if out != "A short summary." {
		t.Errorf("Summarize() = %q", out)
	}

	if out := s.Summarize(context.Background(), "   ", 50); out != "" {
		t.Errorf("Summarize(blank) = %q, want empty", out)
	}
}

func TestSummarize_FallbackOnModelFailure(t *testing.T) {
	s := NewSummarizer(scriptedGateway("", errors.New("model down")))

	text := "First line of the document.\n\nSecond line here.\nThird line.\nFourth line is ignored."
	out := s.Summarize(context.Background(), text, 50)
	want := "First line of the document. Second line here. Third line."
	if out != want {
		t.Errorf("fallback summary = %q, want %q", out, want)
	}
}

func TestSummarize_FallbackTruncatesLongLines(t *testing.T) {
	s := NewSummarizer(scriptedGateway("", errors.New("down")))

	long := strings.Repeat("x", 300)
	out := s.Summarize(context.Background(), long, 50)
	if len(out) != 100 {
		t.Errorf("fallback line length = %d, want 100", len(out))
	}
}

func TestDetect(t *testing.T) {
	d := NewLanguageDetector(scriptedGateway("ES", nil))
	if got := d.Detect(context.Background(), "hola mundo"); got != "es" {
		t.Errorf("Detect() = %q, want es", got)
	}

	// Empty input defaults to English without a model call
	if got := d.Detect(context.Background(), ""); got != "en" {
		t.Errorf("Detect(empty) = %q, want en", got)
	}
}

func TestDetect_RejectsMalformedReply(t *testing.T) {
	// Reply is not a two-letter code, so the keyword heuristic decides
	d := NewLanguageDetector(scriptedGateway("I think this is Spanish", nil))
	got := d.Detect(context.Background(), "el perro y la casa de los vecinos en la calle")
	if got != "es" {
		t.Errorf("Detect() = %q, want es from heuristic", got)
	}
}

func TestHeuristicLanguage(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"the cat is on the roof and it is happy", "en"},
		{"el gato de la casa y los perros en el patio", "es"},
		{"le chien et les chats dans le jardin est grand", "fr"},
		{"der Hund und die Katze ist von den Nachbarn", "de"},
		{"o cachorro e a casa de um vizinho para o jantar", "pt"},
		{"zzz qqq xxx", "en"}, // nothing matches: default
	}
	for _, tt := range tests {
		if got := heuristicLanguage(tt.text); got != tt.want {
			t.Errorf("heuristicLanguage(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestEntityExtraction(t *testing.T) {
	reply := `[{"text": "Ada Lovelace", "type": "person", "confidence": 0.95},
	           {"text": "London", "type": "location", "confidence": 0.9}]`
	e := NewEntityExtractor(scriptedGateway(reply, nil))

	entities := e.Extract(context.Background(), "Ada Lovelace lived in London.")
	if len(entities) != 2 {
		t.Fatalf("len(entities) = %d, want 2", len(entities))
	}
	if entities[0].Text != "Ada Lovelace" || entities[0].Type != "person" {
		t.Errorf("entities[0] = %+v", entities[0])
	}
}

func TestEntityExtraction_ToleratesFencedReply(t *testing.T) {
	reply := "```json\n[{\"text\": \"Berlin\", \"type\": \"location\", \"confidence\": 0.8}]\n```"
	e := NewEntityExtractor(scriptedGateway(reply, nil))

	entities := e.Extract(context.Background(), "Berlin is a city.")
	if len(entities) != 1 || entities[0].Text != "Berlin" {
		t.Errorf("entities = %+v", entities)
	}
}

func TestEntityExtraction_HeuristicFallback(t *testing.T) {
	e := NewEntityExtractor(scriptedGateway("", errors.New("down")))

	entities := e.Extract(context.Background(), "yesterday Marie Curie visited Paris with her notes")
	if len(entities) != 2 {
		t.Fatalf("entities = %+v, want capitalized runs", entities)
	}
	if entities[0].Text != "Marie Curie" || entities[0].Type != "unknown" || entities[0].Confidence != 0.1 {
		t.Errorf("entities[0] = %+v", entities[0])
	}
	if entities[1].Text != "Paris" {
		t.Errorf("entities[1] = %+v", entities[1])
	}
}

func TestMergeEntities(t *testing.T) {
	merged := mergeEntities([]Entity{
		{Text: "Paris", Type: "location", Confidence: 0.5},
		{Text: "paris", Type: "location", Confidence: 0.9},
		{Text: "Paris", Type: "person", Confidence: 0.3},
	})
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	// Case-insensitive duplicate keeps the highest confidence
	if merged[0].Confidence != 0.9 {
		t.Errorf("merged confidence = %f, want 0.9", merged[0].Confidence)
	}
	// Same text with a different type is a distinct entity
	if merged[1].Type != "person" {
		t.Errorf("merged[1] = %+v", merged[1])
	}
}

func TestTranslate(t *testing.T) {
	tr := NewTranslator(scriptedGateway("bonjour le monde", nil))
	if got := tr.Translate(context.Background(), "hello world", "fr"); got != "bonjour le monde" {
		t.Errorf("Translate() = %q", got)
	}

	// A failed chunk keeps its original text
	broken := NewTranslator(scriptedGateway("", errors.New("down")))
	if got := broken.Translate(context.Background(), "hello world", "fr"); got != "hello world" {
		t.Errorf("failed Translate() = %q, want original", got)
	}
}

func TestClassify(t *testing.T) {
	labels := []string{"invoice", "contract", "memo"}

	c := NewClassifier(scriptedGateway("Contract", nil))
	if got := c.Classify(context.Background(), "This agreement is binding.", labels); got != "contract" {
		t.Errorf("Classify() = %q, want contract", got)
	}

	// Fallback counts label keywords in the text
	broken := NewClassifier(scriptedGateway("", errors.New("down")))
	got := broken.Classify(context.Background(), "Please pay this invoice. The invoice total is due.", labels)
	if got != "invoice" {
		t.Errorf("fallback Classify() = %q, want invoice", got)
	}
}

func TestAnswer(t *testing.T) {
	a := NewAnswerer(scriptedGateway("The answer is 42.", nil))
	got := a.Answer(context.Background(), "What is the answer?", "Deep context about everything.")
	if got != "The answer is 42." {
		t.Errorf("Answer() = %q", got)
	}

	if got := a.Answer(context.Background(), "  ", "context"); got != "" {
		t.Errorf("Answer(empty question) = %q, want empty", got)
	}
}

func TestEmbed(t *testing.T) {
	e := NewEmbedder(scriptedGateway("", nil))
	vec := e.Embed(context.Background(), "some text")
	if len(vec) == 0 {
		t.Error("Embed() returned nil for healthy provider")
	}

	broken := NewEmbedder(scriptedGateway("", errors.New("down")))
	if vec := broken.Embed(context.Background(), "some text"); vec != nil {
		t.Errorf("Embed() on failure = %v, want nil", vec)
	}
}

func TestNewToolset(t *testing.T) {
	ts, registry := NewToolset(scriptedGateway("ok", nil))
	if ts.Summarizer == nil || ts.Embedder == nil || ts.Translator == nil {
		t.Fatal("toolset has nil tools")
	}

	names := registry.Names()
	if len(names) != 8 {
		t.Errorf("registered %d tools, want 8", len(names))
	}
	if _, ok := registry.Get("summarization"); !ok {
		t.Error("summarization tool not registered")
	}
}
