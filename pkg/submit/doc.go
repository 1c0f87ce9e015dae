/*
Package submit is the ingestion front door for docstream.

The service validates submissions, persists the initial document record,
and routes work: structured kinds with inline content (json, xml, csv,
markdown) complete synchronously, everything else is enqueued for the
worker pool. It also carries the read-side operations the outer surface
needs - get, list, search, job status - and the mutations: update with
version snapshots, soft/hard delete, and pending-job cancellation.

# Submission Routing

	Submit(inline json/xml/csv/markdown) ──▶ extract now, save completed
	Submit(anything else)                ──▶ save pending, enqueue
	Upload(file bytes)                   ──▶ temp file + path record, enqueue
	Submit(url)                          ──▶ kind defaults to webpage, enqueue

Upload derives the kind from the file extension and rejects unknown
extensions with ErrUnsupportedExtension before writing anything.

# Events

Every accepted submission publishes document:created; updates and cancels
publish document:updated; deletes publish document:deleted. Subscribers on
the event bus see the full lifecycle without polling.
*/
package submit
