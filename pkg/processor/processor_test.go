package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/docstream/pkg/events"
	"github.com/cuemby/docstream/pkg/extractor"
	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/queue"
	"github.com/cuemby/docstream/pkg/storage"
	"github.com/cuemby/docstream/pkg/tools"
	"github.com/cuemby/docstream/pkg/types"
)

type env struct {
	store storage.Store
	queue queue.Queue
	bus   *events.Bus
	proc  *Processor
}

func newTestEnv(t *testing.T, gw *gateway.Gateway) *env {
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
	registry.Register(types.KindText, extractor.NewTextExtractor(nil))
	registry.Register(types.KindJSON, extractor.NewJSONExtractor())

	toolset, _ := tools.NewToolset(gw)

	return &env{
		store: store,
		queue: q,
		bus:   bus,
		proc:  New(store, q, registry, gw, toolset, bus),
	}
}

func localGateway() *gateway.Gateway {
	gw := gateway.New(gateway.Config{Strategy: gateway.StrategyBalanced})
	gw.Register(gateway.NewLocalProvider())
	return gw
}

func saveTestDoc(t *testing.T, e *env, doc *types.Document) {
	t.Helper()
	if doc.Version == 0 {
		doc.Version = 1
	}
	if err := e.store.Save(context.Background(), doc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestProcess_InlineText(t *testing.T) {
	e := newTestEnv(t, localGateway())
	ctx := context.Background()

	doc := &types.Document{
		ID:         "doc-1",
		Kind:       types.KindText,
		Name:       "essay.txt",
		Origin:     types.Origin{Method: types.OriginInline},
		RawContent: "The cat is on the roof and it is happy to be there in the sun.",
		State:      types.StagePending,
	}
	saveTestDoc(t, e, doc)

	sub := e.bus.Subscribe(events.Filter{Topic: types.EventProcessingProgress, DocumentID: "doc-1"})

	if err := e.proc.Process(ctx, doc); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if doc.State != types.StageCompleted {
		t.Errorf("state = %s, want completed", doc.State)
	}
	if doc.Version != 2 {
		t.Errorf("version = %d, want 2", doc.Version)
	}
	if doc.Language != "en" {
		t.Errorf("language = %q, want en", doc.Language)
	}
	if doc.Summary == "" {
		t.Error("summary not generated")
	}
	if len(doc.Embedding) == 0 {
		t.Error("embedding not generated")
	}

	stored, err := e.store.Load(ctx, "doc-1")
	if err != nil || stored.State != types.StageCompleted || stored.Version != 2 {
		t.Errorf("stored = %+v, %v", stored, err)
	}

	versions, err := e.store.GetVersions(ctx, "doc-1")
	if err != nil {
		t.Fatalf("GetVersions() error = %v", err)
	}
	last := versions[len(versions)-1]
	if last.Version != 2 || last.Change != "processing completed" {
		t.Errorf("snapshot = %+v", last)
	}

	// Progress milestones arrive in order and end at 100
	var milestones []int
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case event := <-sub.C:
			pct, _ := event.Payload["progress"].(int)
			milestones = append(milestones, pct)
			if pct == 100 {
				break collect
			}
		case <-deadline:
			t.Fatalf("progress stream stalled at %v", milestones)
		}
	}
	for i := 1; i < len(milestones); i++ {
		if milestones[i] <= milestones[i-1] {
			t.Fatalf("milestones regressed: %v", milestones)
		}
	}
	if milestones[0] != 10 {
		t.Errorf("first milestone = %d, want 10", milestones[0])
	}
}

func TestProcess_CompletionEventCarriesSummary(t *testing.T) {
	e := newTestEnv(t, localGateway())
	ctx := context.Background()

	doc := &types.Document{
		ID:         "doc-1",
		Kind:       types.KindText,
		Name:       "essay.txt",
		Origin:     types.Origin{Method: types.OriginInline},
		RawContent: "The cat is on the roof and it is happy to be there in the sun.",
		State:      types.StagePending,
	}
	saveTestDoc(t, e, doc)

	sub := e.bus.Subscribe(events.Filter{Topic: types.EventDocumentUpdated, DocumentID: "doc-1"})

	if err := e.proc.Process(ctx, doc); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	select {
	case event := <-sub.C:
		if got := event.Payload["state"]; got != string(types.StageCompleted) {
			t.Errorf("event state = %v, want %s", got, types.StageCompleted)
		}
		summary, _ := event.Payload["summary"].(string)
		if summary == "" {
			t.Error("terminal event payload missing summary")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no document:updated event after processing")
	}
}

func TestProcess_WithoutUsableGateway(t *testing.T) {
	// No registered providers: enrichment is skipped entirely
	e := newTestEnv(t, gateway.New(gateway.Config{}))
	ctx := context.Background()

	doc := &types.Document{
		ID:         "doc-1",
		Kind:       types.KindText,
		Name:       "plain.txt",
		Origin:     types.Origin{Method: types.OriginInline},
		RawContent: "body text",
		State:      types.StagePending,
	}
	saveTestDoc(t, e, doc)

	if err := e.proc.Process(ctx, doc); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if doc.State != types.StageCompleted {
		t.Errorf("state = %s", doc.State)
	}
	if doc.Language != "" || len(doc.Embedding) != 0 {
		t.Errorf("enrichment ran without a usable gateway: lang=%q embedding=%d", doc.Language, len(doc.Embedding))
	}
}

func TestProcess_UploadedFile(t *testing.T) {
	e := newTestEnv(t, localGateway())
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "upload.txt")
	if err := os.WriteFile(path, []byte("content from the uploaded file"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	doc := &types.Document{
		ID:     "doc-1",
		Kind:   types.KindText,
		Name:   "upload.txt",
		Origin: types.Origin{Method: types.OriginUpload, Reference: "upload.txt"},
		State:  types.StagePending,
	}
	saveTestDoc(t, e, doc)
	if err := e.queue.SetFilePath(ctx, "doc-1", path); err != nil {
		t.Fatalf("SetFilePath() error = %v", err)
	}

	if err := e.proc.Process(ctx, doc); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if doc.RawContent != "content from the uploaded file" {
		t.Errorf("RawContent = %q", doc.RawContent)
	}
}

func TestProcess_KindFromFilename(t *testing.T) {
	e := newTestEnv(t, localGateway())
	ctx := context.Background()

	doc := &types.Document{
		ID:         "doc-1",
		Name:       "data.json",
		Origin:     types.Origin{Method: types.OriginInline},
		RawContent: `{"a": 1}`,
		State:      types.StagePending,
	}
	saveTestDoc(t, e, doc)

	if err := e.proc.Process(ctx, doc); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if doc.Kind != types.KindJSON {
		t.Errorf("kind = %s, want json", doc.Kind)
	}
}

func TestProcess_UndeterminableKind(t *testing.T) {
	e := newTestEnv(t, localGateway())

	doc := &types.Document{
		ID:     "doc-1",
		Name:   "mystery",
		Origin: types.Origin{Method: types.OriginInline},
		State:  types.StagePending,
	}
	saveTestDoc(t, e, doc)

	err := e.proc.Process(context.Background(), doc)
	if !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Process() error = %v, want ErrInvalidInput", err)
	}
}

func TestProcess_NoContentSource(t *testing.T) {
	e := newTestEnv(t, localGateway())

	doc := &types.Document{
		ID:    "doc-1",
		Kind:  types.KindText,
		Name:  "a.txt",
		State: types.StagePending,
	}
	saveTestDoc(t, e, doc)

	err := e.proc.Process(context.Background(), doc)
	if !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Process() error = %v, want ErrInvalidInput", err)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	e := newTestEnv(t, localGateway())

	doc := &types.Document{
		ID:         "doc-1",
		Kind:       types.KindText,
		Name:       "a.txt",
		Origin:     types.Origin{Method: types.OriginInline},
		RawContent: "body",
		State:      types.StagePending,
	}
	saveTestDoc(t, e, doc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.proc.Process(ctx, doc); !errors.Is(err, context.Canceled) {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
	if doc.State == types.StageCompleted {
		t.Error("cancelled run still completed the document")
	}
}

func TestProcess_PreservesExtractorSummary(t *testing.T) {
	e := newTestEnv(t, localGateway())
	ctx := context.Background()

	doc := &types.Document{
		ID:         "doc-1",
		Kind:       types.KindJSON,
		Name:       "data.json",
		Origin:     types.Origin{Method: types.OriginInline},
		RawContent: `{"b": 2, "a": 1}`,
		State:      types.StagePending,
	}
	saveTestDoc(t, e, doc)

	if err := e.proc.Process(ctx, doc); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	// The structural summary from the extractor wins over the model pass
	if doc.Summary != "JSON object with 2 root keys: a, b" {
		t.Errorf("summary = %q", doc.Summary)
	}
}

func TestHead(t *testing.T) {
	if got := head("short", 100); got != "short" {
		t.Errorf("head(short) = %q", got)
	}
	if got := head("hello world", 5); got != "hello" {
		t.Errorf("head = %q", got)
	}
	// Multi-byte rune at the cut point is dropped whole
	got := head("aé", 2)
	if got != "a" {
		t.Errorf("head split a rune: %q", got)
	}
}
