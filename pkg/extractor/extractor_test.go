package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuemby/docstream/pkg/types"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(types.KindJSON, NewJSONExtractor())

	if _, err := registry.Get(types.KindJSON); err != nil {
		t.Errorf("Get(json) error = %v", err)
	}
	if _, err := registry.Get(types.KindPDF); !errors.Is(err, types.ErrExtractorUnavailable) {
		t.Errorf("Get(pdf) error = %v, want ErrExtractorUnavailable", err)
	}
	if kinds := registry.Kinds(); len(kinds) != 1 {
		t.Errorf("Kinds() = %v", kinds)
	}
}

func TestTextExtractor(t *testing.T) {
	e := NewTextExtractor(nil)

	result, err := e.Extract(context.Background(), Input{Content: []byte("plain text body")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.RawText != "plain text body" || result.FormattedMarkdown != "plain text body" {
		t.Errorf("result = %+v", result)
	}
}

func TestTextExtractor_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("file content"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	e := NewTextExtractor(nil)
	result, err := e.Extract(context.Background(), Input{Path: path})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.RawText != "file content" {
		t.Errorf("RawText = %q", result.RawText)
	}
}

func TestTextExtractor_SanitizesInvalidUTF8(t *testing.T) {
	e := NewTextExtractor(nil)
	result, err := e.Extract(context.Background(), Input{Content: []byte{'o', 'k', 0xff, '!'}})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.RawText != "ok�!" {
		t.Errorf("RawText = %q, want replacement character for invalid byte", result.RawText)
	}
}

func TestTextExtractor_NoInput(t *testing.T) {
	e := NewTextExtractor(nil)
	if _, err := e.Extract(context.Background(), Input{}); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Extract() error = %v, want ErrInvalidInput", err)
	}
}

type staticFormatter struct{ out string }

func (f staticFormatter) Format(ctx context.Context, text string) string { return f.out }

func TestTextExtractor_FormatterPass(t *testing.T) {
	e := NewTextExtractor(staticFormatter{out: "# Heading\n\nbody"})
	result, err := e.Extract(context.Background(), Input{Content: []byte("heading\nbody")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.FormattedMarkdown != "# Heading\n\nbody" {
		t.Errorf("FormattedMarkdown = %q", result.FormattedMarkdown)
	}
	if result.RawText != "heading\nbody" {
		t.Errorf("RawText = %q", result.RawText)
	}

	// A blank formatter result falls back to the raw text
	blank := NewTextExtractor(staticFormatter{out: "  "})
	result, _ = blank.Extract(context.Background(), Input{Content: []byte("kept")})
	if result.FormattedMarkdown != "kept" {
		t.Errorf("FormattedMarkdown = %q, want raw fallback", result.FormattedMarkdown)
	}
}

func TestJSONExtractor_Object(t *testing.T) {
	e := NewJSONExtractor()
	result, err := e.Extract(context.Background(), Input{Content: []byte(`{"b": 2, "a": 1, "c": {"d": 3}}`)})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if result.Summary != "JSON object with 3 root keys: a, b, c" {
		t.Errorf("Summary = %q", result.Summary)
	}
	if !strings.HasPrefix(result.FormattedMarkdown, "```json\n") || !strings.HasSuffix(result.FormattedMarkdown, "\n```") {
		t.Errorf("FormattedMarkdown not fenced: %q", result.FormattedMarkdown)
	}
	if result.StructuredData["a"] == nil {
		t.Error("StructuredData missing parsed keys")
	}
}

func TestJSONExtractor_Array(t *testing.T) {
	e := NewJSONExtractor()
	result, err := e.Extract(context.Background(), Input{Content: []byte(`[1, 2, 3, 4]`)})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Summary != "JSON array with 4 items" {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestJSONExtractor_Invalid(t *testing.T) {
	e := NewJSONExtractor()
	if _, err := e.Extract(context.Background(), Input{Content: []byte(`{broken`)}); !errors.Is(err, types.ErrExtractorFailed) {
		t.Errorf("Extract() error = %v, want ErrExtractorFailed", err)
	}
}

func TestXMLExtractor(t *testing.T) {
	e := NewXMLExtractor()
	result, err := e.Extract(context.Background(), Input{Content: []byte("<root><a>1</a></root>")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.FormattedMarkdown != "```xml\n<root><a>1</a></root>\n```" {
		t.Errorf("FormattedMarkdown = %q", result.FormattedMarkdown)
	}
}

func TestCSVExtractor(t *testing.T) {
	e := NewCSVExtractor()
	result, err := e.Extract(context.Background(), Input{Content: []byte("name,age\nalice,30\nbob,25")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Summary != "CSV with 3 rows and 2 columns" {
		t.Errorf("Summary = %q", result.Summary)
	}
	rows, ok := result.StructuredData["rows"].([]any)
	if !ok || len(rows) != 3 {
		t.Errorf("StructuredData rows = %v", result.StructuredData["rows"])
	}
}

func TestPDFExtractor_Unavailable(t *testing.T) {
	e := NewPDFExtractor(nil, nil)
	_, err := e.Extract(context.Background(), Input{Path: "/tmp/whatever.pdf"})
	if !errors.Is(err, types.ErrExtractorUnavailable) {
		t.Errorf("Extract() error = %v, want ErrExtractorUnavailable", err)
	}
}

type flatParser struct{ text string }

func (p flatParser) ParseText(ctx context.Context, path string) (string, error) {
	return p.text, nil
}

type failingLayout struct{}

func (failingLayout) ParseMarkdown(ctx context.Context, path string) (string, error) {
	return "", errors.New("parse failed")
}

func TestPDFExtractor_FlatTextFallback(t *testing.T) {
	e := NewPDFExtractor(failingLayout{}, flatParser{text: "extracted pdf text"})
	result, err := e.Extract(context.Background(), Input{Path: "/tmp/report.pdf"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.RawText != "extracted pdf text" {
		t.Errorf("RawText = %q", result.RawText)
	}
}

func TestExcelExtractor(t *testing.T) {
	unavailable := NewExcelExtractor(nil)
	if _, err := unavailable.Extract(context.Background(), Input{Path: "/tmp/s.xlsx"}); !errors.Is(err, types.ErrExtractorUnavailable) {
		t.Errorf("Extract() error = %v, want ErrExtractorUnavailable", err)
	}

	e := NewExcelExtractor(flatParser{text: "a\tb\n1\t2"})
	result, err := e.Extract(context.Background(), Input{Path: "/tmp/s.xlsx"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.RawText != "a\tb\n1\t2" {
		t.Errorf("RawText = %q", result.RawText)
	}
}

func TestMediaExtractor_Unavailable(t *testing.T) {
	e := NewMediaExtractor(nil, nil)
	_, err := e.Extract(context.Background(), Input{URL: "https://example.com/audio.mp3"})
	if !errors.Is(err, types.ErrExtractorUnavailable) {
		t.Errorf("Extract() error = %v, want ErrExtractorUnavailable", err)
	}
}

type stubDownloader struct{ path string }

func (d stubDownloader) Download(ctx context.Context, mediaURL, destDir string) (string, error) {
	return d.path, nil
}

type stubTranscriber struct{ text string }

func (s stubTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return s.text, nil
}

func TestMediaExtractor_Transcribes(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "a.mp3")
	os.WriteFile(audio, []byte("fake audio"), 0644)

	e := NewMediaExtractor(stubDownloader{path: audio}, stubTranscriber{text: "  hello from the podcast  "})
	result, err := e.Extract(context.Background(), Input{URL: "https://example.com/ep1.mp3"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.RawText != "hello from the podcast" {
		t.Errorf("RawText = %q", result.RawText)
	}
	if result.Metadata["url"] != "https://example.com/ep1.mp3" {
		t.Errorf("Metadata = %v", result.Metadata)
	}
}

func TestWebpageExtractor_RendersMarkdown(t *testing.T) {
	page := `<html><head>
	  <title>Test Page</title>
	  <meta name="description" content="A fixture page">
	  <meta property="og:type" content="article">
	  <script>secret()</script>
	</head><body>
	  <h1>Welcome</h1>
	  <p>Intro paragraph with a <a href="/docs">docs link</a>.</p>
	  <ul><li>item one</li><li>item two</li></ul>
	  <script>alert("nope")</script>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	e := NewWebpageExtractor()
	result, err := e.Extract(context.Background(), Input{URL: server.URL + "/page"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if result.Metadata["title"] != "Test Page" {
		t.Errorf("title = %q", result.Metadata["title"])
	}
	if result.Metadata["description"] != "A fixture page" {
		t.Errorf("description = %q", result.Metadata["description"])
	}
	if result.Metadata["og:type"] != "article" {
		t.Errorf("og:type = %q", result.Metadata["og:type"])
	}

	md := result.FormattedMarkdown
	if !strings.Contains(md, "# Welcome") {
		t.Errorf("markdown missing heading: %q", md)
	}
	if !strings.Contains(md, "- item one") {
		t.Errorf("markdown missing list item: %q", md)
	}
	// Relative href resolved against the page URL
	if !strings.Contains(md, "[docs link]("+server.URL+"/docs)") {
		t.Errorf("markdown missing resolved link: %q", md)
	}
	if strings.Contains(md, "secret") || strings.Contains(md, "alert") {
		t.Errorf("script content leaked into markdown: %q", md)
	}
	if strings.Contains(result.RawText, "](") {
		t.Errorf("raw text still carries link syntax: %q", result.RawText)
	}
}

func TestWebpageExtractor_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	e := NewWebpageExtractor()
	if _, err := e.Extract(context.Background(), Input{URL: server.URL}); !errors.Is(err, types.ErrExtractorFailed) {
		t.Errorf("Extract() error = %v, want ErrExtractorFailed", err)
	}
}

func TestWebpageExtractor_RequiresURL(t *testing.T) {
	e := NewWebpageExtractor()
	if _, err := e.Extract(context.Background(), Input{}); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Extract() error = %v, want ErrInvalidInput", err)
	}
	if _, err := e.Extract(context.Background(), Input{URL: "ftp://example.com"}); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Extract(ftp) error = %v, want ErrInvalidInput", err)
	}
}
