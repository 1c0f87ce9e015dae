package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/storage"
	"github.com/cuemby/docstream/pkg/types"
)

// MemoryQueue implements Queue in process memory. Used for the "memory"
// backend and in tests; the mutex stands in for Redis atomicity.
type MemoryQueue struct {
	mu sync.Mutex

	store             storage.Store
	maxRetries        int
	processingTimeout time.Duration
	logger            zerolog.Logger

	pending   map[string]time.Time
	inFlight  map[string]*types.InFlightEntry
	failed    map[string]time.Time
	workers   map[string]time.Time // worker id -> registry expiry
	retries   map[string]int
	lastError map[string]string
	started   map[string]time.Time
	completed map[string]time.Time
	filePaths map[string]string
}

// MemoryQueueConfig holds memory queue construction parameters
type MemoryQueueConfig struct {
	Store             storage.Store
	MaxRetries        int
	ProcessingTimeout time.Duration
}

// NewMemoryQueue creates an in-process queue
func NewMemoryQueue(cfg MemoryQueueConfig) *MemoryQueue {
	timeout := cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = DefaultProcessingTimeout
	}
	return &MemoryQueue{
		store:             cfg.Store,
		maxRetries:        cfg.MaxRetries,
		processingTimeout: timeout,
		logger:            log.WithComponent("queue"),
		pending:           make(map[string]time.Time),
		inFlight:          make(map[string]*types.InFlightEntry),
		failed:            make(map[string]time.Time),
		workers:           make(map[string]time.Time),
		retries:           make(map[string]int),
		lastError:         make(map[string]string),
		started:           make(map[string]time.Time),
		completed:         make(map[string]time.Time),
		filePaths:         make(map[string]string),
	}
}

// Close is a no-op for the memory backend
func (q *MemoryQueue) Close() error {
	return nil
}

// Enqueue sets state PENDING and adds id to pending
func (q *MemoryQueue) Enqueue(ctx context.Context, id string, priority time.Time) error {
	if priority.IsZero() {
		priority = time.Now()
	}

	doc, err := q.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if doc.State != types.StagePending {
		doc.State = types.StagePending
		doc.UpdatedAt = time.Now()
		if err := q.store.Save(ctx, doc); err != nil {
			return err
		}
	}

	q.mu.Lock()
	q.pending[id] = priority
	delete(q.failed, id)
	q.mu.Unlock()
	return nil
}

// popDue atomically claims up to n due ids for workerID
func (q *MemoryQueue) popDue(workerID string, n int) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var due []string
	for id, scheduled := range q.pending {
		if !scheduled.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return q.pending[due[i]].Before(q.pending[due[j]])
	})
	if len(due) > n {
		due = due[:n]
	}

	for _, id := range due {
		delete(q.pending, id)
		q.inFlight[id] = &types.InFlightEntry{
			WorkerID:  workerID,
			StartedAt: now,
			TimeoutAt: now.Add(q.processingTimeout),
		}
	}
	return due
}

// Dequeue atomically claims up to n due ids for workerID
func (q *MemoryQueue) Dequeue(ctx context.Context, workerID string, n int) ([]*types.Document, error) {
	ids := q.popDue(workerID, n)

	now := time.Now()
	docs := make([]*types.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := q.store.Load(ctx, id)
		if err != nil {
			q.mu.Lock()
			delete(q.inFlight, id)
			q.mu.Unlock()
			q.logger.Warn().Str("document_id", id).Err(err).Msg("discarding orphan queue entry")
			continue
		}

		doc.State = types.StageProcessing
		doc.UpdatedAt = now
		if err := q.store.Save(ctx, doc); err != nil {
			q.mu.Lock()
			delete(q.inFlight, id)
			q.pending[id] = now
			q.mu.Unlock()
			return docs, err
		}

		q.mu.Lock()
		q.started[id] = now
		q.mu.Unlock()
		docs = append(docs, doc)
	}
	return docs, nil
}

// MarkCompleted removes id from in-flight and sets state COMPLETED
func (q *MemoryQueue) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now()

	q.mu.Lock()
	delete(q.inFlight, id)
	q.completed[id] = now
	q.mu.Unlock()

	doc, err := q.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if doc.State != types.StageCompleted {
		doc.State = types.StageCompleted
		doc.UpdatedAt = now
		if err := q.store.Save(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// MarkFailed removes id from in-flight and either re-enqueues with
// backoff or moves it to the failed partition once the budget is spent.
// The returned bool is true when the id was re-enqueued.
func (q *MemoryQueue) MarkFailed(ctx context.Context, id string, errMsg string, retry bool) (bool, error) {
	q.mu.Lock()
	delete(q.inFlight, id)
	q.lastError[id] = truncateError(errMsg)
	q.retries[id]++
	retries := q.retries[id]
	q.mu.Unlock()

	if retry && retries <= q.maxRetries {
		next := time.Now().Add(Backoff(retries))
		q.logger.Info().Str("document_id", id).Int("retry", retries).
			Time("next_attempt", next).Msg("re-enqueueing failed job")
		return true, q.Enqueue(ctx, id, next)
	}

	now := time.Now()
	q.mu.Lock()
	q.failed[id] = now
	q.completed[id] = now
	q.mu.Unlock()

	doc, err := q.store.Load(ctx, id)
	if err != nil {
		return false, err
	}
	doc.State = types.StageFailed
	doc.UpdatedAt = now
	return false, q.store.Save(ctx, doc)
}

// Cancel removes a PENDING id from the queue
func (q *MemoryQueue) Cancel(ctx context.Context, id string) error {
	q.mu.Lock()
	_, pending := q.pending[id]
	if pending {
		delete(q.pending, id)
		q.lastError[id] = "cancelled by user"
	}
	q.mu.Unlock()

	if !pending {
		return fmt.Errorf("%w: %s", types.ErrNotCancellable, id)
	}

	doc, err := q.store.Load(ctx, id)
	if err != nil {
		return err
	}
	doc.State = types.StageFailed
	doc.UpdatedAt = time.Now()
	return q.store.Save(ctx, doc)
}

// RecoverStale re-enqueues in-flight jobs held by dead workers
func (q *MemoryQueue) RecoverStale(ctx context.Context) (int, error) {
	now := time.Now()

	type stale struct {
		id       string
		workerID string
		retries  int
	}
	var recoveredJobs []stale

	q.mu.Lock()
	for id, entry := range q.inFlight {
		if entry.TimeoutAt.After(now) {
			continue
		}
		if expiry, alive := q.workers[entry.WorkerID]; alive && expiry.After(now) {
			continue
		}
		delete(q.inFlight, id)
		q.lastError[id] = fmt.Sprintf("worker %s timed out", entry.WorkerID)
		q.retries[id]++
		if q.retries[id] > q.maxRetries {
			q.failed[id] = now
		} else {
			q.pending[id] = now
		}
		recoveredJobs = append(recoveredJobs, stale{id: id, workerID: entry.WorkerID, retries: q.retries[id]})
	}
	q.mu.Unlock()

	for _, job := range recoveredJobs {
		state := types.StagePending
		if job.retries > q.maxRetries {
			state = types.StageFailed
		}
		if doc, err := q.store.Load(ctx, job.id); err == nil {
			doc.State = state
			doc.UpdatedAt = now
			_ = q.store.Save(ctx, doc)
		}
		q.logger.Warn().Str("document_id", job.id).Str("worker_id", job.workerID).
			Msg("recovered stale job from dead worker")
	}
	return len(recoveredJobs), nil
}

// Stats reports partition lengths and live worker count
func (q *MemoryQueue) Stats(ctx context.Context) (*types.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	live := 0
	for _, expiry := range q.workers {
		if expiry.After(now) {
			live++
		}
	}
	return &types.QueueStats{
		Pending:     int64(len(q.pending)),
		InFlight:    int64(len(q.inFlight)),
		Failed:      int64(len(q.failed)),
		LiveWorkers: live,
	}, nil
}

// JobStatus reports the queue-side view of one job
func (q *MemoryQueue) JobStatus(ctx context.Context, id string) (*types.JobStatus, error) {
	doc, err := q.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	status := &types.JobStatus{
		DocumentID:    id,
		State:         doc.State,
		QueuePosition: -1,
		RetryCount:    q.retries[id],
		LastError:     q.lastError[id],
	}

	if scheduled, ok := q.pending[id]; ok {
		position := 0
		for other, otherTime := range q.pending {
			if other != id && otherTime.Before(scheduled) {
				position++
			}
		}
		status.QueuePosition = position
	}
	if started, ok := q.started[id]; ok {
		t := started
		status.StartedAt = &t
	}
	if completed, ok := q.completed[id]; ok {
		t := completed
		status.CompletedAt = &t
	}
	return status, nil
}

// RegisterWorker writes the liveness entry
func (q *MemoryQueue) RegisterWorker(ctx context.Context, workerID string) error {
	q.mu.Lock()
	q.workers[workerID] = time.Now().Add(StaleWorkerTimeout)
	q.mu.Unlock()
	return nil
}

// Heartbeat refreshes the liveness entry expiry
func (q *MemoryQueue) Heartbeat(ctx context.Context, workerID string) error {
	return q.RegisterWorker(ctx, workerID)
}

// DeregisterWorker removes the liveness entry
func (q *MemoryQueue) DeregisterWorker(ctx context.Context, workerID string) error {
	q.mu.Lock()
	delete(q.workers, workerID)
	q.mu.Unlock()
	return nil
}

// SetFilePath records the ephemeral upload path for id
func (q *MemoryQueue) SetFilePath(ctx context.Context, id, path string) error {
	q.mu.Lock()
	q.filePaths[id] = path
	q.mu.Unlock()
	return nil
}

// FilePath returns the recorded upload path, or "" when absent
func (q *MemoryQueue) FilePath(ctx context.Context, id string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.filePaths[id], nil
}
