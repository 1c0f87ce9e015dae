/*
Package types defines the shared data model for docstream.

All other packages depend on types and types depends on nothing, so the
document, event, and queue structures live here exactly once.

# Core Types

Document: the unit of ingestion, carrying identity, origin, content facets
(raw text, formatted markdown, structured data, embedding), enrichment
results, version counter, and soft-delete markers.

Projection: the lightweight metadata view used by listing operations.

DocumentVersion: one immutable snapshot in a document's history.

LifecycleEvent: one bus event with a per-document sequence number.

JobStatus / QueueStats / InFlightEntry: the queue-side views.

# Kinds and Stages

DocumentKind enumerates the supported formats (pdf, word, excel, text,
json, xml, csv, markdown, webpage, youtube, podcast); KindFromFilename
derives a kind from a file extension. ProcessingStage tracks the lifecycle
(pending → processing → completed | failed); completed and failed are
terminal.

# Error Taxonomy

The package-level sentinel errors (ErrNotFound, ErrInvalidInput,
ErrVersionConflict, ErrNotCancellable, ...) are the classification layer:
callers wrap with fmt.Errorf("%w") and classify with errors.Is.
ErrInvalidInput marks submissions that can never succeed and must not be
retried.
*/
package types
