package submit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/events"
	"github.com/cuemby/docstream/pkg/extractor"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
	"github.com/cuemby/docstream/pkg/queue"
	"github.com/cuemby/docstream/pkg/storage"
	"github.com/cuemby/docstream/pkg/types"
)

// Request describes one document submission
type Request struct {
	Name        string
	Kind        types.DocumentKind
	Content     string
	URL         string
	UserID      string
	AccessGroup string
	Permission  string
}

// UpdateRequest carries the mutable fields of an update. Nil pointers
// leave the field untouched.
type UpdateRequest struct {
	Name          *string
	RawContent    *string
	Formatted     *string
	Summary       *string
	CommitMessage string
}

// Service is the ingestion front door: it validates submissions,
// persists the initial document record, and routes work either through
// the synchronous direct-content path or onto the queue.
type Service struct {
	store      storage.Store
	queue      queue.Queue
	extractors *extractor.Registry
	bus        *events.Bus
	logger     zerolog.Logger
}

// NewService creates the submission service
func NewService(store storage.Store, q queue.Queue, extractors *extractor.Registry, bus *events.Bus) *Service {
	return &Service{
		store:      store,
		queue:      q,
		extractors: extractors,
		bus:        bus,
		logger:     log.WithComponent("submit"),
	}
}

// Submit ingests one document. Direct-content kinds (json, xml, csv,
// markdown) with inline content complete synchronously and return
// queued=false; everything else is persisted pending and enqueued.
func (s *Service) Submit(ctx context.Context, req Request) (*types.Document, bool, error) {
	doc, err := s.buildDocument(req)
	if err != nil {
		return nil, false, err
	}

	if types.DirectContent(doc.Kind) && req.Content != "" {
		if err := s.processDirect(ctx, doc, req.Content); err != nil {
			return nil, false, err
		}
		return doc, false, nil
	}

	doc.State = types.StagePending
	if err := s.store.Save(ctx, doc); err != nil {
		return nil, false, fmt.Errorf("save document: %w", err)
	}
	s.published(doc)

	if err := s.queue.Enqueue(ctx, doc.ID, time.Time{}); err != nil {
		return nil, false, fmt.Errorf("enqueue document %s: %w", doc.ID, err)
	}
	s.logger.Info().Str("document_id", doc.ID).Str("kind", string(doc.Kind)).Msg("document enqueued")
	return doc, true, nil
}

// Upload ingests a file body: the bytes go to a temp file whose path is
// recorded as a queue side key with a 1h TTL, and the job is enqueued
func (s *Service) Upload(ctx context.Context, filename string, content []byte, userID string) (*types.Document, error) {
	kind, ok := types.KindFromFilename(filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedExtension, filepath.Ext(filename))
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty upload", types.ErrInvalidInput)
	}

	f, err := os.CreateTemp("", "docstream-upload-*"+filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	f.Close()

	now := time.Now()
	doc := &types.Document{
		ID:   uuid.New().String(),
		Kind: kind,
		Name: filename,
		Origin: types.Origin{
			Method:    types.OriginUpload,
			Reference: filename,
		},
		UserID:    userID,
		State:     types.StagePending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Save(ctx, doc); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("save document: %w", err)
	}
	s.published(doc)

	if err := s.queue.SetFilePath(ctx, doc.ID, f.Name()); err != nil {
		return nil, fmt.Errorf("record file path for %s: %w", doc.ID, err)
	}
	if err := s.queue.Enqueue(ctx, doc.ID, time.Time{}); err != nil {
		return nil, fmt.Errorf("enqueue document %s: %w", doc.ID, err)
	}

	s.logger.Info().Str("document_id", doc.ID).Str("filename", filename).
		Int("bytes", len(content)).Msg("upload enqueued")
	return doc, nil
}

// Get returns a document by id
func (s *Service) Get(ctx context.Context, id string) (*types.Document, error) {
	return s.store.Load(ctx, id)
}

// Update applies an edit, bumps the version, snapshots it, and emits
// document:updated
func (s *Service) Update(ctx context.Context, id, userID string, req UpdateRequest) (*types.Document, error) {
	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := make([]string, 0, 4)
	if req.Name != nil && *req.Name != doc.Name {
		doc.Name = *req.Name
		changes = append(changes, "name")
	}
	if req.RawContent != nil {
		doc.RawContent = *req.RawContent
		changes = append(changes, "raw content")
	}
	if req.Formatted != nil {
		doc.FormattedContent = *req.Formatted
		changes = append(changes, "formatted content")
	}
	if req.Summary != nil {
		doc.Summary = *req.Summary
		changes = append(changes, "summary")
	}
	if len(changes) == 0 {
		return doc, nil
	}

	now := time.Now()
	doc.Version++
	doc.UpdatedAt = now
	if err := s.store.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document %s: %w", id, err)
	}
	if err := s.store.SaveVersion(ctx, id, &types.DocumentVersion{
		Version:       doc.Version,
		Timestamp:     now,
		UserID:        userID,
		Change:        "updated " + strings.Join(changes, ", "),
		CommitMessage: req.CommitMessage,
		Document:      doc,
	}); err != nil {
		s.logger.Warn().Err(err).Str("document_id", id).Msg("failed to write version snapshot")
	}

	s.bus.Publish(types.EventDocumentUpdated, id, map[string]any{
		"state":   string(doc.State),
		"summary": doc.Summary,
		"version": doc.Version,
	})
	return doc, nil
}

// Delete removes a document (soft by default) and emits document:deleted
func (s *Service) Delete(ctx context.Context, id string, soft bool, deletedBy string) error {
	if err := s.store.Delete(ctx, id, soft, deletedBy); err != nil {
		return err
	}
	s.bus.Publish(types.EventDocumentDeleted, id, map[string]any{
		"soft":       soft,
		"deleted_by": deletedBy,
	})
	return nil
}

// List returns metadata projections matching the filter
func (s *Service) List(ctx context.Context, filter storage.Filter) ([]*types.Projection, error) {
	return s.store.List(ctx, filter)
}

// JobStatus reports the queue-side view of a document's job
func (s *Service) JobStatus(ctx context.Context, id string) (*types.JobStatus, error) {
	return s.queue.JobStatus(ctx, id)
}

// Cancel withdraws a pending document from the queue. Documents already
// processing or finished return ErrNotCancellable.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.queue.Cancel(ctx, id); err != nil {
		return err
	}
	s.bus.Publish(types.EventDocumentUpdated, id, map[string]any{
		"state":     string(types.StageFailed),
		"cancelled": true,
	})
	return nil
}

// Search returns projections whose name or raw content contains the
// query, case-insensitively. Linear scan over the store; a dedicated
// index is out of scope.
func (s *Service) Search(ctx context.Context, query string, filter storage.Filter) ([]*types.Projection, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", types.ErrInvalidInput)
	}

	limit := filter.Limit
	scan := filter
	scan.Limit = 0
	scan.Offset = 0

	projections, err := s.store.List(ctx, scan)
	if err != nil {
		return nil, err
	}

	var matched []*types.Projection
	for _, proj := range projections {
		if strings.Contains(strings.ToLower(proj.Name), query) {
			matched = append(matched, proj)
			continue
		}
		doc, err := s.store.Load(ctx, proj.ID)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(doc.RawContent), query) {
			matched = append(matched, proj)
		}
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// buildDocument validates a request into a fresh pending document
func (s *Service) buildDocument(req Request) (*types.Document, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" && req.URL == "" {
		return nil, fmt.Errorf("%w: name or URL is required", types.ErrInvalidInput)
	}

	kind := req.Kind
	origin := types.Origin{Method: types.OriginInline}
	switch {
	case req.URL != "":
		origin = types.Origin{Method: types.OriginURL, Reference: req.URL}
		if kind == "" {
			kind = types.KindWebpage
		}
		if name == "" {
			name = req.URL
		}
	case kind == "":
		derived, ok := types.KindFromFilename(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedExtension, filepath.Ext(name))
		}
		kind = derived
	}
	if !types.IsValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown kind %q", types.ErrInvalidInput, kind)
	}
	if req.URL == "" && req.Content == "" {
		return nil, fmt.Errorf("%w: inline submission requires content", types.ErrInvalidInput)
	}

	now := time.Now()
	return &types.Document{
		ID:          uuid.New().String(),
		Kind:        kind,
		Name:        name,
		Origin:      origin,
		UserID:      req.UserID,
		AccessGroup: req.AccessGroup,
		Permission:  req.Permission,
		RawContent:  req.Content,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// processDirect completes a direct-content submission synchronously:
// the structured extractor runs inline and the document is saved
// already completed
func (s *Service) processDirect(ctx context.Context, doc *types.Document, content string) error {
	ext, err := s.extractors.Get(doc.Kind)
	if err != nil {
		return err
	}

	result, err := ext.Extract(ctx, extractor.Input{Content: []byte(content)})
	if err != nil {
		return err
	}

	doc.RawContent = result.RawText
	doc.FormattedContent = result.FormattedMarkdown
	doc.StructuredData = result.StructuredData
	doc.Summary = result.Summary
	if doc.Summary == "" {
		doc.Summary = minimalSummary(result.RawText)
	}
	doc.State = types.StageCompleted

	if err := s.store.Save(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	s.published(doc)
	s.logger.Info().Str("document_id", doc.ID).Str("kind", string(doc.Kind)).
		Msg("direct content completed")
	return nil
}

// published emits document:created and counts the submission
func (s *Service) published(doc *types.Document) {
	s.bus.Publish(types.EventDocumentCreated, doc.ID, map[string]any{
		"kind":  string(doc.Kind),
		"name":  doc.Name,
		"state": string(doc.State),
	})
	metrics.DocumentsSubmitted.WithLabelValues(string(doc.Kind)).Inc()
}

// minimalSummary is the no-model summary: the first three non-empty
// lines, each capped at 100 characters
func minimalSummary(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 100 {
			line = line[:100]
		}
		lines = append(lines, line)
		if len(lines) == 3 {
			break
		}
	}
	return strings.Join(lines, " ")
}
