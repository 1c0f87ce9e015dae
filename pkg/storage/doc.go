/*
Package storage provides versioned document persistence for docstream.

Documents are stored alongside a lightweight metadata projection and a full
version history. Two backends implement the Store interface: a bbolt-backed
filesystem store (the default, zero external dependencies) and a Redis store
for deployments that already run Redis for the queue.

# Architecture

	┌────────────────── DOCUMENT STORE ──────────────────┐
	│                                                     │
	│   Save(doc)                                         │
	│      │                                              │
	│      ▼                                              │
	│  ┌───────────────────────────────────────┐         │
	│  │  documents   full document record      │         │
	│  │  metadata    projection for listings   │         │
	│  │  versions    snapshot per version      │         │
	│  └───────────────────────────────────────┘         │
	│                                                     │
	│  Document + projection are written atomically.     │
	│  The first save also writes the version-1          │
	│  snapshot with change "created".                   │
	└────────────────────────────────────────────────────┘

# Versioning

Every mutation bumps Document.Version and the caller snapshots the new state
with SaveVersion. Save rejects writes whose version is lower than the stored
version with ErrVersionConflict; equal versions overwrite (last writer wins
within a version). RevertTo writes the content of an older snapshot as a new
current version, so history is append-only:

	v1 "created"
	v2 "updated raw content"
	v3 "reverted to version 1"   ← v1 content, new version number

# Deletion

Delete with soft=true marks the document deleted, bumps the version, and
snapshots the transition; soft-deleted documents are hidden from List unless
Filter.IncludeDeleted is set. Hard delete purges the record, the projection,
and the whole version history.

# Listing

List returns projections newest-first. Filter fields combine conjunctively:

	store.List(ctx, storage.Filter{
		UserID: "user-1",
		Kind:   types.KindPDF,
		Limit:  20,
		Offset: 40,
	})

# Backends

BoltStore keeps three buckets in a single docstream.db file and is safe for
concurrent use within one process. RedisStore keys documents with a 72h TTL
that refreshes on every Load, so actively-read documents persist and
abandoned ones age out.

# See Also

  - pkg/types - Document, Projection, DocumentVersion
  - pkg/submit - the write path
  - pkg/processor - completion writes and snapshots
*/
package storage
