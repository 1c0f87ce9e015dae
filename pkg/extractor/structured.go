package extractor

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/docstream/pkg/types"
)

// JSONExtractor parses JSON documents, pretty-prints them as a fenced
// code block, and summarizes the root shape.
type JSONExtractor struct{}

// NewJSONExtractor creates the JSON extractor
func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{}
}

// Extract parses and formats a JSON document
func (e *JSONExtractor) Extract(ctx context.Context, input Input) (*Result, error) {
	content, err := readInput(input)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", types.ErrExtractorFailed, err)
	}

	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtractorFailed, err)
	}

	result := &Result{
		RawText:           string(content),
		FormattedMarkdown: "```json\n" + string(pretty) + "\n```",
	}

	switch v := parsed.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		result.Summary = fmt.Sprintf("JSON object with %d root keys: %s", len(keys), strings.Join(keys, ", "))
		result.StructuredData = v
	case []any:
		result.Summary = fmt.Sprintf("JSON array with %d items", len(v))
		result.StructuredData = map[string]any{"items": v}
	default:
		result.Summary = "JSON scalar value"
	}
	return result, nil
}

// XMLExtractor wraps XML documents in a fenced code block
type XMLExtractor struct{}

// NewXMLExtractor creates the XML extractor
func NewXMLExtractor() *XMLExtractor {
	return &XMLExtractor{}
}

// Extract formats an XML document
func (e *XMLExtractor) Extract(ctx context.Context, input Input) (*Result, error) {
	content, err := readInput(input)
	if err != nil {
		return nil, err
	}

	raw := strings.ToValidUTF8(string(content), "�")
	return &Result{
		RawText:           raw,
		FormattedMarkdown: "```xml\n" + raw + "\n```",
	}, nil
}

// CSVExtractor wraps CSV documents in a fenced code block and counts
// rows and columns
type CSVExtractor struct{}

// NewCSVExtractor creates the CSV extractor
func NewCSVExtractor() *CSVExtractor {
	return &CSVExtractor{}
}

// Extract formats a CSV document
func (e *CSVExtractor) Extract(ctx context.Context, input Input) (*Result, error) {
	content, err := readInput(input)
	if err != nil {
		return nil, err
	}

	raw := strings.ToValidUTF8(string(content), "�")

	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CSV: %v", types.ErrExtractorFailed, err)
	}

	columns := 0
	if len(records) > 0 {
		columns = len(records[0])
	}

	rows := make([]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, record)
	}

	return &Result{
		RawText:           raw,
		FormattedMarkdown: "```csv\n" + raw + "\n```",
		Summary:           fmt.Sprintf("CSV with %d rows and %d columns", len(records), columns),
		StructuredData:    map[string]any{"rows": rows},
	}, nil
}
