package queue

import (
	"context"
	"time"

	"github.com/cuemby/docstream/pkg/types"
)

const (
	// HeartbeatInterval is how often a worker refreshes its TTL key
	HeartbeatInterval = 30 * time.Second

	// StaleWorkerTimeout is the TTL on worker registry entries; a worker
	// whose entry has expired is considered dead
	StaleWorkerTimeout = 120 * time.Second

	// DefaultProcessingTimeout bounds one job end to end
	DefaultProcessingTimeout = 300 * time.Second

	// sideRecordTTL bounds retry counters and job timestamps
	sideRecordTTL = 24 * time.Hour

	// FilePathTTL bounds the ephemeral upload path record
	FilePathTTL = time.Hour
)

// Backoff returns the re-enqueue delay after n failed attempts:
// min(300s, 10s * 2^n)
func Backoff(n int) time.Duration {
	d := 10 * time.Second
	for i := 0; i < n; i++ {
		d *= 2
		if d >= 300*time.Second {
			return 300 * time.Second
		}
	}
	if d > 300*time.Second {
		d = 300 * time.Second
	}
	return d
}

// Queue coordinates at-most-one processing of each document across
// worker processes. A document id lives in at most one of pending,
// in-flight, or failed at any instant; all moves are atomic.
type Queue interface {
	// Enqueue sets state to PENDING and adds id to the pending partition
	// with the given scheduled time (zero value means now). Idempotent on
	// id; re-enqueueing updates the priority.
	Enqueue(ctx context.Context, id string, priority time.Time) error

	// Dequeue atomically pops up to n due ids for workerID, loads each
	// document, marks it PROCESSING, and records the in-flight entry.
	// Orphan ids with no loadable document are discarded silently.
	Dequeue(ctx context.Context, workerID string, n int) ([]*types.Document, error)

	// MarkCompleted removes id from in-flight, sets state COMPLETED, and
	// records the completion time
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed removes id from in-flight and records the error. With
	// retry true and budget remaining the id is re-enqueued with backoff;
	// otherwise it moves to the failed partition, state FAILED. The
	// returned bool reports the disposition: true when the id went back
	// to pending, false when it dead-lettered.
	MarkFailed(ctx context.Context, id string, errMsg string, retry bool) (bool, error)

	// Cancel removes a PENDING id from the queue. Returns
	// types.ErrNotCancellable when the id is not pending.
	Cancel(ctx context.Context, id string) error

	// RecoverStale re-enqueues in-flight entries whose deadline passed
	// and whose worker registry entry is gone. Returns the count moved.
	RecoverStale(ctx context.Context) (int, error)

	// Stats reports partition lengths and live worker count
	Stats(ctx context.Context) (*types.QueueStats, error)

	// JobStatus reports the queue-side view of a document's job
	JobStatus(ctx context.Context, id string) (*types.JobStatus, error)

	// RegisterWorker writes the TTL-bearing liveness entry for workerID
	RegisterWorker(ctx context.Context, workerID string) error

	// Heartbeat refreshes the liveness entry TTL
	Heartbeat(ctx context.Context, workerID string) error

	// DeregisterWorker removes the liveness entry
	DeregisterWorker(ctx context.Context, workerID string) error

	// SetFilePath records the ephemeral upload path for id (1h TTL)
	SetFilePath(ctx context.Context, id, path string) error

	// FilePath returns the recorded upload path, or "" when absent
	FilePath(ctx context.Context, id string) (string, error)

	// Close releases backend resources
	Close() error
}
