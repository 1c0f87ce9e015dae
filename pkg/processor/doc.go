/*
Package processor runs the per-document extraction and enrichment pipeline.

The processor takes one dequeued document, resolves its content source,
dispatches the matching extractor, optionally enriches the result through
the model gateway, and writes the completed document with a version
snapshot. Progress milestones publish to the event bus throughout.

# Pipeline

	 10%  starting extraction     kind resolution + input lookup
	 30%  content extracted       facets assigned
	 60%  detecting language      first 1000 bytes
	 70%  generating summary      first 3000 bytes, only when the
	                              extractor produced no summary
	 90%  saving document         version bump + snapshot
	100%  processing complete     document:updated published

Enrichment (60/70 and embedding) runs only when the gateway has a usable
provider; otherwise the document completes with extraction facets alone.

# Error Contract

Model failures never surface from this package; the tools degrade
internally. Errors returned to the worker are infrastructural - store
writes, extractor failures, missing content sources, context cancellation -
and feed the queue's retry accounting.
*/
package processor
