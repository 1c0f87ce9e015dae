package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cuemby/docstream/pkg/types"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_SaveLoad(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	doc := testDocument("doc-1")
	doc.RawContent = "redis body"
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.RawContent != "redis body" || loaded.Kind != types.KindText {
		t.Errorf("Load() returned different document: %+v", loaded)
	}

	exists, err := store.Exists(ctx, "doc-1")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v; want true, nil", exists, err)
	}
}

func TestRedisStore_DocumentTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if mr.TTL("doc:doc-1") <= 0 {
		t.Error("document key has no TTL")
	}

	// A read refreshes the TTL so active documents stay resident
	mr.FastForward(documentTTL / 2)
	if _, err := store.Load(ctx, "doc-1"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if mr.TTL("doc:doc-1") != documentTTL {
		t.Errorf("TTL after read = %v, want %v", mr.TTL("doc:doc-1"), documentTTL)
	}
}

func TestRedisStore_VersionConflict(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	doc := testDocument("doc-1")
	doc.Version = 2
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	stale := testDocument("doc-1")
	stale.Version = 1
	if err := store.Save(ctx, stale); !errors.Is(err, types.ErrVersionConflict) {
		t.Errorf("Save() error = %v, want ErrVersionConflict", err)
	}
}

func TestRedisStore_SoftDeleteAndList(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, testDocument("doc-2")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "doc-1", true, "admin"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	projections, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(projections) != 1 || projections[0].ID != "doc-2" {
		t.Errorf("List() = %v, want only doc-2", projections)
	}

	all, _ := store.List(ctx, Filter{IncludeDeleted: true})
	if len(all) != 2 {
		t.Errorf("List(IncludeDeleted) = %d documents, want 2", len(all))
	}
}

func TestRedisStore_HardDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testDocument("doc-1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "doc-1", false, ""); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := store.Load(ctx, "doc-1"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Load() after hard delete error = %v, want ErrNotFound", err)
	}
	versions, _ := store.GetVersions(ctx, "doc-1")
	if len(versions) != 0 {
		t.Errorf("hard delete left %d version snapshots", len(versions))
	}
}

func TestRedisStore_VersionsAndRevert(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	doc := testDocument("doc-1")
	doc.RawContent = "original"
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	doc.RawContent = "edited"
	doc.Version = 2
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save() v2 error = %v", err)
	}
	if err := store.SaveVersion(ctx, "doc-1", &types.DocumentVersion{
		Version:  2,
		Change:   "edited",
		Document: doc,
	}); err != nil {
		t.Fatalf("SaveVersion() error = %v", err)
	}

	reverted, err := store.RevertTo(ctx, "doc-1", 1, "user-1")
	if err != nil {
		t.Fatalf("RevertTo() error = %v", err)
	}
	if reverted.RawContent != "original" || reverted.Version != 3 {
		t.Errorf("reverted = content %q version %d, want original/3", reverted.RawContent, reverted.Version)
	}

	versions, _ := store.GetVersions(ctx, "doc-1")
	if len(versions) != 3 {
		t.Fatalf("len(versions) = %d, want 3", len(versions))
	}
	for i, v := range versions {
		if v.Version != i+1 {
			t.Errorf("versions[%d].Version = %d, want %d", i, v.Version, i+1)
		}
	}
}
