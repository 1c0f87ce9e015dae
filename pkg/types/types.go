package types

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentKind identifies the format of a submitted document
type DocumentKind string

const (
	KindPDF      DocumentKind = "pdf"
	KindWord     DocumentKind = "word"
	KindExcel    DocumentKind = "excel"
	KindText     DocumentKind = "text"
	KindJSON     DocumentKind = "json"
	KindXML      DocumentKind = "xml"
	KindCSV      DocumentKind = "csv"
	KindMarkdown DocumentKind = "markdown"
	KindWebpage  DocumentKind = "webpage"
	KindYouTube  DocumentKind = "youtube"
	KindPodcast  DocumentKind = "podcast"
)

// extensionKinds maps file extensions to document kinds
var extensionKinds = map[string]DocumentKind{
	".pdf":  KindPDF,
	".doc":  KindWord,
	".docx": KindWord,
	".xls":  KindExcel,
	".xlsx": KindExcel,
	".txt":  KindText,
	".md":   KindMarkdown,
	".json": KindJSON,
	".xml":  KindXML,
	".csv":  KindCSV,
	".html": KindWebpage,
	".htm":  KindWebpage,
	".mp3":  KindPodcast,
	".wav":  KindPodcast,
	".mp4":  KindYouTube,
}

// KindFromFilename derives the document kind from a file extension.
// Returns false when the extension is not supported.
func KindFromFilename(name string) (DocumentKind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	kind, ok := extensionKinds[ext]
	return kind, ok
}

// IsValidKind reports whether k is one of the supported document kinds
func IsValidKind(k DocumentKind) bool {
	switch k {
	case KindPDF, KindWord, KindExcel, KindText, KindJSON, KindXML,
		KindCSV, KindMarkdown, KindWebpage, KindYouTube, KindPodcast:
		return true
	}
	return false
}

// DirectContent reports whether documents of kind k are completed
// synchronously at submission with no queued work
func DirectContent(k DocumentKind) bool {
	switch k {
	case KindJSON, KindXML, KindCSV, KindMarkdown:
		return true
	}
	return false
}

// ProcessingStage represents the lifecycle state of a document
type ProcessingStage string

const (
	StagePending    ProcessingStage = "pending"
	StageProcessing ProcessingStage = "processing"
	StageCompleted  ProcessingStage = "completed"
	StageFailed     ProcessingStage = "failed"
)

// Terminal reports whether the stage is a terminal state
func (s ProcessingStage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// OriginMethod describes how a document entered the system
type OriginMethod string

const (
	OriginUpload OriginMethod = "upload"
	OriginURL    OriginMethod = "url"
	OriginInline OriginMethod = "inline"
)

// Origin records the submission method and the original reference
// (source URL or uploaded filename)
type Origin struct {
	Method    OriginMethod `json:"method"`
	Reference string       `json:"reference,omitempty"`
}

// Document is the unit of ingestion. Owner fields are opaque labels;
// the pipeline does not enforce access control.
type Document struct {
	ID     string       `json:"id"`
	Kind   DocumentKind `json:"kind"`
	Name   string       `json:"name"`
	Origin Origin       `json:"origin"`

	UserID      string `json:"user_id,omitempty"`
	AccessGroup string `json:"access_group,omitempty"`
	Permission  string `json:"permission,omitempty"`

	State ProcessingStage `json:"state"`

	RawContent       string         `json:"raw_content,omitempty"`
	FormattedContent string         `json:"formatted_content,omitempty"`
	StructuredData   map[string]any `json:"structured_data,omitempty"`
	Embedding        []float32      `json:"embedding,omitempty"`

	Summary  string `json:"summary,omitempty"`
	Language string `json:"language,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
}

// Projection is the lightweight metadata view used by listing operations
type Projection struct {
	ID        string          `json:"id"`
	Kind      DocumentKind    `json:"kind"`
	Name      string          `json:"name"`
	UserID    string          `json:"user_id,omitempty"`
	State     ProcessingStage `json:"state"`
	Summary   string          `json:"summary,omitempty"`
	Language  string          `json:"language,omitempty"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Deleted   bool            `json:"deleted,omitempty"`
}

// Project returns the metadata projection of d
func (d *Document) Project() *Projection {
	return &Projection{
		ID:        d.ID,
		Kind:      d.Kind,
		Name:      d.Name,
		UserID:    d.UserID,
		State:     d.State,
		Summary:   d.Summary,
		Language:  d.Language,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Deleted:   d.Deleted,
	}
}

// DocumentVersion is an immutable snapshot of one mutation
type DocumentVersion struct {
	Version       int       `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        string    `json:"user_id,omitempty"`
	Change        string    `json:"change"`
	CommitMessage string    `json:"commit_message,omitempty"`
	Document      *Document `json:"document"`
}

// JobStatus is the queue-side view of a document's processing job.
// Retry counters and timestamps are side records keyed by document id;
// they are not persisted inside the document record.
type JobStatus struct {
	DocumentID    string          `json:"document_id"`
	State         ProcessingStage `json:"state"`
	QueuePosition int             `json:"queue_position"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error,omitempty"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// InFlightEntry records which worker holds a document and until when
type InFlightEntry struct {
	WorkerID  string    `json:"worker_id"`
	StartedAt time.Time `json:"started_at"`
	TimeoutAt time.Time `json:"timeout_at"`
}

// WorkerInfo is the ephemeral liveness record for one worker.
// Absence of the registry entry means the worker is dead.
type WorkerInfo struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// QueueStats reports partition lengths and live worker count
type QueueStats struct {
	Pending     int64 `json:"pending"`
	InFlight    int64 `json:"in_flight"`
	Failed      int64 `json:"failed"`
	LiveWorkers int   `json:"live_workers"`
}
