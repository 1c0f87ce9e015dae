package types

import "errors"

// Error taxonomy for the pipeline. Callers classify with errors.Is;
// the worker alone decides queue disposition based on these.
var (
	// ErrNotFound indicates the document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrInvalidInput indicates a submission that can never succeed;
	// it is surfaced to the submitter and never re-queued
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates the persistence backend is unreachable
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrQueueUnavailable indicates the queue backend is unreachable
	ErrQueueUnavailable = errors.New("queue unavailable")

	// ErrExtractorUnavailable indicates no extractor is installed for the
	// document kind. Non-retryable; the job moves to dead-letter.
	ErrExtractorUnavailable = errors.New("extractor unavailable")

	// ErrExtractorFailed indicates malformed input to an extractor
	ErrExtractorFailed = errors.New("extraction failed")

	// ErrVersionConflict indicates a concurrent write bumped the version
	// first; callers reload and retry
	ErrVersionConflict = errors.New("version conflict")

	// ErrNotCancellable indicates a cancel request for a document that is
	// no longer pending
	ErrNotCancellable = errors.New("job not cancellable")

	// ErrUnsupportedExtension indicates an upload whose extension maps to
	// no document kind
	ErrUnsupportedExtension = errors.New("unsupported file extension")
)
