package storage

import (
	"context"

	"github.com/cuemby/docstream/pkg/types"
)

// Filter narrows List results. Predicates are conjunctive; zero values
// match all documents.
type Filter struct {
	UserID         string
	Kind           types.DocumentKind
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// Store defines the interface for document persistence.
// Implemented by the bbolt-backed filesystem store and the Redis store.
type Store interface {
	// Save writes the document and its metadata projection atomically.
	// The first save (version 1) also writes the version-1 snapshot.
	Save(ctx context.Context, doc *types.Document) error

	// Load returns the document or types.ErrNotFound
	Load(ctx context.Context, id string) (*types.Document, error)

	// Delete removes a document. Soft deletion sets the deleted flag and
	// bumps the version; hard deletion purges document, metadata, and all
	// version snapshots.
	Delete(ctx context.Context, id string, soft bool, deletedBy string) error

	// Exists reports whether a document exists
	Exists(ctx context.Context, id string) (bool, error)

	// List returns metadata projections ordered by updated_at descending
	List(ctx context.Context, filter Filter) ([]*types.Projection, error)

	// SaveVersion writes an immutable version snapshot
	SaveVersion(ctx context.Context, id string, version *types.DocumentVersion) error

	// GetVersions returns all version snapshots ordered by version number
	GetVersions(ctx context.Context, id string) ([]*types.DocumentVersion, error)

	// RevertTo loads version n and writes its content as a new version
	// (current+1) with a change record noting the revert
	RevertTo(ctx context.Context, id string, version int, userID string) (*types.Document, error)

	// Close releases backend resources
	Close() error
}
