/*
Package extractor converts submitted documents into text facets.

Each document kind has a dedicated extractor producing up to four facets:
raw text, formatted Markdown, structured data, and a structural summary.
Extractors are registered in a Registry at composition time; kinds without a
registered extractor fail submission with ErrExtractorUnavailable rather
than at processing time.

# Extractors

	TextExtractor      text, markdown, word  UTF-8 read + optional model
	                                         formatting pass
	JSONExtractor      json                  parse, pretty-print, root shape
	XMLExtractor       xml                   fenced code block
	CSVExtractor       csv                   fenced block + row/column count
	PDFExtractor       pdf                   layout parser with flat-text
	                                         fallback
	ExcelExtractor     excel                 flat-text parser
	WebpageExtractor   webpage               fetch + HTML-to-Markdown
	MediaExtractor     youtube, podcast      download + transcription

# Input Resolution

Input carries exactly one content source: inline bytes, a local file path,
or a URL. The processor resolves which one applies before dispatch; the
extractor only validates that its required source is present.

# Pluggable Backends

PDF parsing, spreadsheet parsing, audio download, and transcription are
interfaces (PDFParser, TextParser, AudioDownloader, Transcriber) injected at
composition time. A nil backend makes the corresponding kind unavailable
instead of panicking, so a deployment without a transcription service simply
rejects podcast submissions up front.

# Webpage Conversion

The webpage extractor fetches with a 30s timeout and a 10MB body cap, drops
script/style/nav subtrees, renders headings, lists, links, and images to
Markdown, resolves relative URLs against the page URL, and collects title,
description, author, and og:* meta tags into the result metadata.

# See Also

  - pkg/processor - dispatches documents to extractors
  - pkg/types - document kinds and the error taxonomy
*/
package extractor
