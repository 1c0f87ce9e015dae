package submit

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cuemby/docstream/pkg/events"
	"github.com/cuemby/docstream/pkg/extractor"
	"github.com/cuemby/docstream/pkg/queue"
	"github.com/cuemby/docstream/pkg/storage"
	"github.com/cuemby/docstream/pkg/types"
)

func newTestService(t *testing.T) (*Service, storage.Store, queue.Queue, *events.Bus) {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	q := queue.NewMemoryQueue(queue.MemoryQueueConfig{Store: store, MaxRetries: 3})

	bus := events.NewBus()
	bus.Start()
	t.Cleanup(bus.Stop)

	registry := extractor.NewRegistry()
	registry.Register(types.KindJSON, extractor.NewJSONExtractor())
	registry.Register(types.KindCSV, extractor.NewCSVExtractor())
	registry.Register(types.KindMarkdown, extractor.NewTextExtractor(nil))

	return NewService(store, q, registry, bus), store, q, bus
}

func TestSubmit_AsyncGoesThroughQueue(t *testing.T) {
	svc, store, q, _ := newTestService(t)
	ctx := context.Background()

	doc, queued, err := svc.Submit(ctx, Request{
		Name:    "notes.txt",
		Kind:    types.KindText,
		Content: "plain text body",
		UserID:  "user-1",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !queued {
		t.Error("Submit() queued = false, want true for async kind")
	}
	if doc.State != types.StagePending {
		t.Errorf("state = %s, want pending", doc.State)
	}

	stored, err := store.Load(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stored.Version != 1 || stored.UserID != "user-1" {
		t.Errorf("stored = %+v", stored)
	}

	claimed, err := q.Dequeue(ctx, "w1", 1)
	if err != nil || len(claimed) != 1 || claimed[0].ID != doc.ID {
		t.Errorf("Dequeue() = %v, %v", claimed, err)
	}
}

func TestSubmit_DirectContentCompletesSynchronously(t *testing.T) {
	svc, store, q, _ := newTestService(t)
	ctx := context.Background()

	doc, queued, err := svc.Submit(ctx, Request{
		Name:    "data.json",
		Content: `{"b": 2, "a": 1}`,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if queued {
		t.Error("Submit() queued = true, want false for direct content")
	}
	if doc.Kind != types.KindJSON {
		t.Errorf("kind = %s, want json derived from filename", doc.Kind)
	}
	if doc.State != types.StageCompleted {
		t.Errorf("state = %s, want completed", doc.State)
	}
	if doc.Summary != "JSON object with 2 root keys: a, b" {
		t.Errorf("summary = %q", doc.Summary)
	}

	stored, _ := store.Load(ctx, doc.ID)
	if stored.State != types.StageCompleted {
		t.Errorf("stored state = %s", stored.State)
	}

	// Nothing was enqueued
	claimed, _ := q.Dequeue(ctx, "w1", 10)
	if len(claimed) != 0 {
		t.Errorf("Dequeue() returned %d jobs for a direct submission", len(claimed))
	}
}

func TestSubmit_PublishesCreatedEvent(t *testing.T) {
	svc, _, _, bus := newTestService(t)

	sub := bus.Subscribe(events.Filter{Topic: types.EventDocumentCreated})
	doc, _, err := svc.Submit(context.Background(), Request{Name: "a.txt", Kind: types.KindText, Content: "x"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case event := <-sub.C:
		if event.DocumentID != doc.ID {
			t.Errorf("event document = %s, want %s", event.DocumentID, doc.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no document:created event")
	}
}

func TestSubmit_URLDefaultsToWebpage(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	doc, queued, err := svc.Submit(context.Background(), Request{URL: "https://example.com/article"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !queued {
		t.Error("URL submission not queued")
	}
	if doc.Kind != types.KindWebpage {
		t.Errorf("kind = %s, want webpage", doc.Kind)
	}
	if doc.Name != "https://example.com/article" {
		t.Errorf("name = %q, want the URL", doc.Name)
	}
	if doc.Origin.Method != types.OriginURL {
		t.Errorf("origin = %+v", doc.Origin)
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"no name or url", Request{Content: "x"}, types.ErrInvalidInput},
		{"unknown extension", Request{Name: "archive.zip", Content: "x"}, types.ErrUnsupportedExtension},
		{"bad kind", Request{Name: "a", Kind: "hologram", Content: "x"}, types.ErrInvalidInput},
		{"inline without content", Request{Name: "a.txt", Kind: types.KindText}, types.ErrInvalidInput},
	}
	for _, tt := range tests {
		if _, _, err := svc.Submit(ctx, tt.req); !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestUpload(t *testing.T) {
	svc, store, q, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "report.txt", []byte("uploaded body"), "user-1")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Kind != types.KindText || doc.Origin.Method != types.OriginUpload {
		t.Errorf("doc = %+v", doc)
	}

	stored, err := store.Load(ctx, doc.ID)
	if err != nil || stored.State != types.StagePending {
		t.Errorf("stored = %+v, %v", stored, err)
	}

	path, err := q.FilePath(ctx, doc.ID)
	if err != nil || path == "" {
		t.Fatalf("FilePath() = %q, %v", path, err)
	}
	defer os.Remove(path)

	content, err := os.ReadFile(path)
	if err != nil || string(content) != "uploaded body" {
		t.Errorf("temp file = %q, %v", content, err)
	}

	claimed, _ := q.Dequeue(ctx, "w1", 1)
	if len(claimed) != 1 {
		t.Error("upload was not enqueued")
	}
}

func TestUpload_Rejections(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "archive.zip", []byte("x"), ""); !errors.Is(err, types.ErrUnsupportedExtension) {
		t.Errorf("Upload(zip) error = %v, want ErrUnsupportedExtension", err)
	}
	if _, err := svc.Upload(ctx, "empty.txt", nil, ""); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Upload(empty) error = %v, want ErrInvalidInput", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	doc, _, err := svc.Submit(ctx, Request{Name: "a.txt", Kind: types.KindText, Content: "original"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	newName := "renamed.txt"
	newSummary := "fresh summary"
	updated, err := svc.Update(ctx, doc.ID, "editor", UpdateRequest{
		Name:          &newName,
		Summary:       &newSummary,
		CommitMessage: "rename and summarize",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Version != 2 || updated.Name != "renamed.txt" || updated.Summary != "fresh summary" {
		t.Errorf("updated = %+v", updated)
	}

	versions, err := store.GetVersions(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	last := versions[len(versions)-1]
	if last.Version != 2 || last.Change != "updated name, summary" {
		t.Errorf("snapshot = %+v", last)
	}
	if last.CommitMessage != "rename and summarize" || last.UserID != "editor" {
		t.Errorf("snapshot attribution = %+v", last)
	}
}

func TestUpdate_NoChangesIsANoop(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	doc, _, _ := svc.Submit(ctx, Request{Name: "a.txt", Kind: types.KindText, Content: "x"})

	same := doc.Name
	updated, err := svc.Update(ctx, doc.ID, "editor", UpdateRequest{Name: &same})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Version != doc.Version {
		t.Errorf("version bumped to %d on a no-op update", updated.Version)
	}
}

func TestDelete(t *testing.T) {
	svc, store, _, bus := newTestService(t)
	ctx := context.Background()

	doc, _, _ := svc.Submit(ctx, Request{Name: "a.txt", Kind: types.KindText, Content: "x"})
	sub := bus.Subscribe(events.Filter{Topic: types.EventDocumentDeleted})

	if err := svc.Delete(ctx, doc.ID, true, "admin"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	stored, err := store.Load(ctx, doc.ID)
	if err != nil || !stored.Deleted || stored.DeletedBy != "admin" {
		t.Errorf("stored = %+v, %v", stored, err)
	}

	select {
	case event := <-sub.C:
		if event.DocumentID != doc.ID {
			t.Errorf("event document = %s", event.DocumentID)
		}
	case <-time.After(time.Second):
		t.Fatal("no document:deleted event")
	}
}

func TestCancel(t *testing.T) {
	svc, store, q, _ := newTestService(t)
	ctx := context.Background()

	doc, _, _ := svc.Submit(ctx, Request{Name: "a.txt", Kind: types.KindText, Content: "x"})
	if err := svc.Cancel(ctx, doc.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	stored, _ := store.Load(ctx, doc.ID)
	if stored.State != types.StageFailed {
		t.Errorf("state = %s, want failed", stored.State)
	}

	// A processing document cannot be cancelled
	doc2, _, _ := svc.Submit(ctx, Request{Name: "b.txt", Kind: types.KindText, Content: "y"})
	if _, err := q.Dequeue(ctx, "w1", 1); err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if err := svc.Cancel(ctx, doc2.ID); !errors.Is(err, types.ErrNotCancellable) {
		t.Errorf("Cancel(processing) error = %v, want ErrNotCancellable", err)
	}
}

func TestJobStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	doc, _, _ := svc.Submit(ctx, Request{Name: "a.txt", Kind: types.KindText, Content: "x"})
	status, err := svc.JobStatus(ctx, doc.ID)
	if err != nil {
		t.Fatalf("JobStatus() error = %v", err)
	}
	if status.State != types.StagePending || status.QueuePosition != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestSearch(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Submit(ctx, Request{Name: "quarterly-report.txt", Kind: types.KindText, Content: "revenue numbers"})
	svc.Submit(ctx, Request{Name: "notes.txt", Kind: types.KindText, Content: "the quarterly meeting minutes"})
	svc.Submit(ctx, Request{Name: "unrelated.txt", Kind: types.KindText, Content: "nothing here"})

	// Matches by name and by raw content, case-insensitively
	results, err := svc.Search(ctx, "QUARTERLY", storage.Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Search() returned %d results, want 2", len(results))
	}

	results, _ = svc.Search(ctx, "quarterly", storage.Filter{Limit: 1})
	if len(results) != 1 {
		t.Errorf("limited Search() returned %d results", len(results))
	}

	if _, err := svc.Search(ctx, "   ", storage.Filter{}); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("empty query error = %v, want ErrInvalidInput", err)
	}
}
