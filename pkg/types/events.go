package types

import "time"

// EventType identifies a lifecycle event topic
type EventType string

const (
	EventDocumentCreated    EventType = "document:created"
	EventDocumentUpdated    EventType = "document:updated"
	EventDocumentDeleted    EventType = "document:deleted"
	EventProcessingProgress EventType = "processing:progress"
	EventSystemNotification EventType = "system:notification"
)

// LifecycleEvent is the envelope delivered to subscribers. Sequence is
// per-document monotonic; delivery is at-least-once.
type LifecycleEvent struct {
	Type       EventType      `json:"type"`
	DocumentID string         `json:"document_id,omitempty"`
	Sequence   uint64         `json:"sequence"`
	EmittedAt  time.Time      `json:"emitted_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ProgressPayload builds the payload for a processing:progress event
func ProgressPayload(progress int, message string) map[string]any {
	return map[string]any{
		"progress": progress,
		"message":  message,
	}
}
