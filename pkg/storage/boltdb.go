package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/docstream/pkg/types"
)

var (
	// Bucket names
	bucketDocuments = []byte("documents")
	bucketMetadata  = []byte("metadata")
	bucketVersions  = []byte("versions")
)

// versionKey orders version snapshots lexicographically within a document
func versionKey(id string, version int) []byte {
	return []byte(fmt.Sprintf("%s/%010d", id, version))
}

// BoltStore implements Store using BoltDB on the local filesystem
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "docstream.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", types.ErrStoreUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{bucketDocuments, bucketMetadata, bucketVersions}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Save writes the document and its projection in a single transaction.
// Writers racing on the same version follow last-writer-wins; a write
// whose version lags the stored one fails with ErrVersionConflict.
func (s *BoltStore) Save(ctx context.Context, doc *types.Document) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		meta := tx.Bucket(bucketMetadata)

		if existing := docs.Get([]byte(doc.ID)); existing != nil {
			var current types.Document
			if err := json.Unmarshal(existing, &current); err != nil {
				return fmt.Errorf("failed to decode stored document: %w", err)
			}
			if doc.Version < current.Version {
				return fmt.Errorf("%w: version %d behind stored %d", types.ErrVersionConflict, doc.Version, current.Version)
			}
		}

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		if err := docs.Put([]byte(doc.ID), data); err != nil {
			return err
		}

		proj, err := json.Marshal(doc.Project())
		if err != nil {
			return fmt.Errorf("failed to marshal projection: %w", err)
		}
		if err := meta.Put([]byte(doc.ID), proj); err != nil {
			return err
		}

		if doc.Version == 1 {
			snapshot := &types.DocumentVersion{
				Version:   1,
				Timestamp: doc.CreatedAt,
				UserID:    doc.UserID,
				Change:    "created",
				Document:  doc,
			}
			snap, err := json.Marshal(snapshot)
			if err != nil {
				return fmt.Errorf("failed to marshal version snapshot: %w", err)
			}
			if err := tx.Bucket(bucketVersions).Put(versionKey(doc.ID, 1), snap); err != nil {
				return err
			}
		}

		return nil
	})
}

// Load returns the document or ErrNotFound
func (s *BoltStore) Load(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", types.ErrNotFound, id)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Exists reports whether a document exists
func (s *BoltStore) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketDocuments).Get([]byte(id)) != nil
		return nil
	})
	return found, err
}

// Delete soft-deletes (flag + version bump) or purges a document
func (s *BoltStore) Delete(ctx context.Context, id string, soft bool, deletedBy string) error {
	if soft {
		doc, err := s.Load(ctx, id)
		if err != nil {
			return err
		}
		now := time.Now()
		doc.Deleted = true
		doc.DeletedAt = &now
		doc.DeletedBy = deletedBy
		doc.Version++
		doc.UpdatedAt = now
		if err := s.Save(ctx, doc); err != nil {
			return err
		}
		return s.SaveVersion(ctx, id, &types.DocumentVersion{
			Version:   doc.Version,
			Timestamp: now,
			UserID:    deletedBy,
			Change:    "soft deleted",
			Document:  doc,
		})
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketDocuments).Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", types.ErrNotFound, id)
		}
		if err := tx.Bucket(bucketDocuments).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketMetadata).Delete([]byte(id)); err != nil {
			return err
		}

		// Purge all version snapshots under this id
		c := tx.Bucket(bucketVersions).Cursor()
		prefix := []byte(id + "/")
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns projections matching the filter, newest first
func (s *BoltStore) List(ctx context.Context, filter Filter) ([]*types.Projection, error) {
	var projections []*types.Projection
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMetadata).ForEach(func(k, v []byte) error {
			var proj types.Projection
			if err := json.Unmarshal(v, &proj); err != nil {
				return err
			}
			if matchFilter(&proj, filter) {
				projections = append(projections, &proj)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(projections, func(i, j int) bool {
		return projections[i].UpdatedAt.After(projections[j].UpdatedAt)
	})

	return paginate(projections, filter.Offset, filter.Limit), nil
}

// SaveVersion writes an immutable version snapshot
func (s *BoltStore) SaveVersion(ctx context.Context, id string, version *types.DocumentVersion) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(version)
		if err != nil {
			return fmt.Errorf("failed to marshal version snapshot: %w", err)
		}
		return tx.Bucket(bucketVersions).Put(versionKey(id, version.Version), data)
	})
}

// GetVersions returns all version snapshots for id ordered by version
func (s *BoltStore) GetVersions(ctx context.Context, id string) ([]*types.DocumentVersion, error) {
	var versions []*types.DocumentVersion
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketVersions).Cursor()
		prefix := []byte(id + "/")
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var version types.DocumentVersion
			if err := json.Unmarshal(v, &version); err != nil {
				return err
			}
			versions = append(versions, &version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// RevertTo writes the content of version n as a new current version
func (s *BoltStore) RevertTo(ctx context.Context, id string, version int, userID string) (*types.Document, error) {
	current, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	var target *types.DocumentVersion
	versions, err := s.GetVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.Version == version {
			target = v
			break
		}
	}
	if target == nil || target.Document == nil {
		return nil, fmt.Errorf("%w: version %d of %s", types.ErrNotFound, version, id)
	}

	now := time.Now()
	reverted := *target.Document
	reverted.Version = current.Version + 1
	reverted.UpdatedAt = now

	if err := s.Save(ctx, &reverted); err != nil {
		return nil, err
	}
	if err := s.SaveVersion(ctx, id, &types.DocumentVersion{
		Version:   reverted.Version,
		Timestamp: now,
		UserID:    userID,
		Change:    fmt.Sprintf("reverted to version %d", version),
		Document:  &reverted,
	}); err != nil {
		return nil, err
	}

	return &reverted, nil
}

// matchFilter applies conjunctive filter predicates to a projection
func matchFilter(proj *types.Projection, filter Filter) bool {
	if proj.Deleted && !filter.IncludeDeleted {
		return false
	}
	if filter.UserID != "" && proj.UserID != filter.UserID {
		return false
	}
	if filter.Kind != "" && proj.Kind != filter.Kind {
		return false
	}
	return true
}

// paginate applies offset and limit to a sorted result set
func paginate(projections []*types.Projection, offset, limit int) []*types.Projection {
	if offset >= len(projections) {
		return nil
	}
	projections = projections[offset:]
	if limit > 0 && limit < len(projections) {
		projections = projections[:limit]
	}
	return projections
}
