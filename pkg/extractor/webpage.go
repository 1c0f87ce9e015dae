package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/types"
)

const (
	fetchTimeout   = 30 * time.Second
	maxPageBytes   = 10 << 20
	fetchUserAgent = "docstream/1.0"
)

// WebpageExtractor fetches a URL and converts the page body to Markdown.
// Script and style subtrees are dropped, relative links are resolved
// against the page URL, and meta tags land in Result.Metadata.
type WebpageExtractor struct {
	client *http.Client
	logger zerolog.Logger
}

// NewWebpageExtractor creates a webpage extractor
func NewWebpageExtractor() *WebpageExtractor {
	return &WebpageExtractor{
		client: &http.Client{Timeout: fetchTimeout},
		logger: log.WithComponent("extractor.webpage"),
	}
}

// Extract fetches and converts a web page
func (e *WebpageExtractor) Extract(ctx context.Context, input Input) (*Result, error) {
	if input.URL == "" {
		return nil, fmt.Errorf("%w: webpage extraction requires a URL", types.ErrInvalidInput)
	}
	base, err := url.Parse(input.URL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid URL %q", types.ErrInvalidInput, input.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtractorFailed, err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", types.ErrExtractorFailed, input.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", types.ErrExtractorFailed, input.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrExtractorFailed, input.URL, err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", types.ErrExtractorFailed, input.URL, err)
	}

	meta := map[string]string{"url": input.URL}
	collectMeta(doc, meta)

	var md strings.Builder
	renderMarkdown(doc, base, &md)
	markdown := collapseBlankLines(md.String())

	raw := strings.TrimSpace(stripMarkdown(markdown))
	return &Result{
		RawText:           raw,
		FormattedMarkdown: strings.TrimSpace(markdown),
		Metadata:          meta,
	}, nil
}

// collectMeta gathers <title>, description, and og:* tags
func collectMeta(n *html.Node, meta map[string]string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if n.FirstChild != nil && meta["title"] == "" {
				meta["title"] = strings.TrimSpace(n.FirstChild.Data)
			}
		case "meta":
			name := attr(n, "name")
			if name == "" {
				name = attr(n, "property")
			}
			content := attr(n, "content")
			if content == "" {
				break
			}
			if name == "description" || name == "author" || strings.HasPrefix(name, "og:") {
				meta[name] = content
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMeta(c, meta)
	}
}

// renderMarkdown walks the parse tree emitting a Markdown rendering
func renderMarkdown(n *html.Node, base *url.URL, out *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		text := strings.Join(strings.Fields(n.Data), " ")
		if text != "" {
			out.WriteString(text)
			out.WriteString(" ")
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "head", "nav", "iframe":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			out.WriteString("\n\n")
			out.WriteString(strings.Repeat("#", int(n.Data[1]-'0')))
			out.WriteString(" ")
		case "p", "div", "section", "article", "tr", "blockquote":
			out.WriteString("\n\n")
		case "br":
			out.WriteString("\n")
		case "li":
			out.WriteString("\n- ")
		case "a":
			href := resolveURL(base, attr(n, "href"))
			if href != "" {
				out.WriteString("[")
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					renderMarkdown(c, base, out)
				}
				trimTrailingSpace(out)
				out.WriteString("](" + href + ") ")
				return
			}
		case "img":
			src := resolveURL(base, attr(n, "src"))
			if src != "" {
				out.WriteString("![" + attr(n, "alt") + "](" + src + ") ")
			}
			return
		case "code":
			out.WriteString("`")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				renderMarkdown(c, base, out)
			}
			trimTrailingSpace(out)
			out.WriteString("` ")
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderMarkdown(c, base, out)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// resolveURL makes relative references absolute against the page URL
func resolveURL(base *url.URL, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func trimTrailingSpace(out *strings.Builder) {
	s := out.String()
	trimmed := strings.TrimRight(s, " ")
	if len(trimmed) != len(s) {
		out.Reset()
		out.WriteString(trimmed)
	}
}

// collapseBlankLines squeezes runs of blank lines down to one
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var kept []string
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " ")
		if strings.TrimSpace(line) == "" {
			if !blank && len(kept) > 0 {
				kept = append(kept, "")
			}
			blank = true
			continue
		}
		blank = false
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// stripMarkdown removes heading and link markers to produce the raw facet
func stripMarkdown(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimLeft(line, "# ")
		line = strings.TrimPrefix(line, "- ")
		out = append(out, line)
	}
	s = strings.Join(out, "\n")
	// [text](url) -> text
	for {
		open := strings.Index(s, "[")
		if open < 0 {
			break
		}
		close := strings.Index(s[open:], "](")
		if close < 0 {
			break
		}
		end := strings.Index(s[open+close:], ")")
		if end < 0 {
			break
		}
		s = s[:open] + s[open+1:open+close] + s[open+close+end+1:]
	}
	return s
}
