package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuemby/docstream/pkg/types"
)

const (
	docKeyPrefix      = "doc:"
	metaKeyPrefix     = "doc:meta:"
	versionsKeyPrefix = "doc:versions:"

	// documentTTL bounds how long inactive documents stay resident.
	// Reads refresh it so active documents are not evicted.
	documentTTL = 72 * time.Hour
)

// RedisStore implements Store on Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store around an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL connects to Redis and verifies the connection
func NewRedisStoreFromURL(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %v", types.ErrStoreUnavailable, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Save writes document, projection, and (for version 1) the first
// snapshot in one pipeline so readers never see a torn record.
func (s *RedisStore) Save(ctx context.Context, doc *types.Document) error {
	existing, err := s.client.Get(ctx, docKeyPrefix+doc.ID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	if err == nil {
		var current types.Document
		if uerr := json.Unmarshal([]byte(existing), &current); uerr == nil {
			if doc.Version < current.Version {
				return fmt.Errorf("%w: version %d behind stored %d", types.ErrVersionConflict, doc.Version, current.Version)
			}
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	proj, err := json.Marshal(doc.Project())
	if err != nil {
		return fmt.Errorf("failed to marshal projection: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, docKeyPrefix+doc.ID, data, documentTTL)
	pipe.Set(ctx, metaKeyPrefix+doc.ID, proj, documentTTL)
	if doc.Version == 1 {
		snapshot, merr := json.Marshal(&types.DocumentVersion{
			Version:   1,
			Timestamp: doc.CreatedAt,
			UserID:    doc.UserID,
			Change:    "created",
			Document:  doc,
		})
		if merr != nil {
			return fmt.Errorf("failed to marshal version snapshot: %w", merr)
		}
		pipe.HSet(ctx, versionsKeyPrefix+doc.ID, "1", snapshot)
		pipe.Expire(ctx, versionsKeyPrefix+doc.ID, documentTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	return nil
}

// Load returns the document and refreshes its TTL
func (s *RedisStore) Load(ctx context.Context, id string) (*types.Document, error) {
	data, err := s.client.Get(ctx, docKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	var doc types.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	// Keep active documents resident
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, docKeyPrefix+id, documentTTL)
	pipe.Expire(ctx, metaKeyPrefix+id, documentTTL)
	pipe.Expire(ctx, versionsKeyPrefix+id, documentTTL)
	_, _ = pipe.Exec(ctx)

	return &doc, nil
}

// Exists reports whether a document exists
func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, docKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// Delete soft-deletes (flag + version bump) or purges a document
func (s *RedisStore) Delete(ctx context.Context, id string, soft bool, deletedBy string) error {
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

	n, err := s.client.Exists(ctx, docKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, docKeyPrefix+id)
	pipe.Del(ctx, metaKeyPrefix+id)
	pipe.Del(ctx, versionsKeyPrefix+id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	return nil
}

// List scans metadata projections matching the filter, newest first
func (s *RedisStore) List(ctx context.Context, filter Filter) ([]*types.Projection, error) {
	var projections []*types.Projection

	iter := s.client.Scan(ctx, 0, metaKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
		}
		var proj types.Projection
		if err := json.Unmarshal([]byte(data), &proj); err != nil {
			continue
		}
		if matchFilter(&proj, filter) {
			projections = append(projections, &proj)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	sort.Slice(projections, func(i, j int) bool {
		return projections[i].UpdatedAt.After(projections[j].UpdatedAt)
	})

	return paginate(projections, filter.Offset, filter.Limit), nil
}

// SaveVersion writes an immutable version snapshot
func (s *RedisStore) SaveVersion(ctx context.Context, id string, version *types.DocumentVersion) error {
	data, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("failed to marshal version snapshot: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, versionsKeyPrefix+id, fmt.Sprintf("%d", version.Version), data)
	pipe.Expire(ctx, versionsKeyPrefix+id, documentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}
	return nil
}

// GetVersions returns all version snapshots for id ordered by version
func (s *RedisStore) GetVersions(ctx context.Context, id string) ([]*types.DocumentVersion, error) {
	fields, err := s.client.HGetAll(ctx, versionsKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	versions := make([]*types.DocumentVersion, 0, len(fields))
	for _, data := range fields {
		var version types.DocumentVersion
		if err := json.Unmarshal([]byte(data), &version); err != nil {
			continue
		}
		versions = append(versions, &version)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	return versions, nil
}

// RevertTo writes the content of version n as a new current version
func (s *RedisStore) RevertTo(ctx context.Context, id string, version int, userID string) (*types.Document, error) {
	current, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.client.HGet(ctx, versionsKeyPrefix+id, fmt.Sprintf("%d", version)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: version %d of %s", types.ErrNotFound, version, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreUnavailable, err)
	}

	var target types.DocumentVersion
	if err := json.Unmarshal([]byte(data), &target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal version snapshot: %w", err)
	}
	if target.Document == nil {
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
