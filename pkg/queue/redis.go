package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/storage"
	"github.com/cuemby/docstream/pkg/types"
)

const (
	keyPending  = "queue:pending"
	keyInFlight = "queue:in_flight"
	keyFailed   = "queue:failed"

	workerKeyPrefix              = "workers:"
	retryCountKeyPrefix          = "retry_count:"
	lastErrorKeyPrefix           = "last_error:"
	processingStartedKeyPrefix   = "processing_started:"
	processingCompletedKeyPrefix = "processing_completed:"
	filePathKeyPrefix            = "file_path:"
)

// dequeueScript pops up to ARGV[2] due ids (score <= ARGV[1]) from the
// pending zset and records them in the in-flight hash in one atomic step,
// so two workers can never pop the same id.
var dequeueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for i, id in ipairs(due) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('HSET', KEYS[2], id, ARGV[3])
end
return due
`)

// recoverScript moves one id from in-flight back to pending only if the
// entry is still present, guarding against a racing MarkCompleted.
var recoverScript = redis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 1 then
  redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
  return 1
end
return 0
`)

// RedisQueue implements Queue on Redis
type RedisQueue struct {
	client            *redis.Client
	store             storage.Store
	maxRetries        int
	processingTimeout time.Duration
	logger            zerolog.Logger
}

// RedisQueueConfig holds Redis queue construction parameters
type RedisQueueConfig struct {
	Client            *redis.Client
	Store             storage.Store
	MaxRetries        int
	ProcessingTimeout time.Duration
}

// NewRedisQueue creates a Redis-backed queue
func NewRedisQueue(cfg RedisQueueConfig) *RedisQueue {
	timeout := cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = DefaultProcessingTimeout
	}
	return &RedisQueue{
		client:            cfg.Client,
		store:             cfg.Store,
		maxRetries:        cfg.MaxRetries,
		processingTimeout: timeout,
		logger:            log.WithComponent("queue"),
	}
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Enqueue sets state PENDING and adds id to pending
func (q *RedisQueue) Enqueue(ctx context.Context, id string, priority time.Time) error {
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

	if err := q.client.ZAdd(ctx, keyPending, redis.Z{
		Score:  float64(priority.UnixMilli()),
		Member: id,
	}).Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	return nil
}

// Dequeue atomically claims up to n due ids for workerID
func (q *RedisQueue) Dequeue(ctx context.Context, workerID string, n int) ([]*types.Document, error) {
	now := time.Now()
	entry, err := json.Marshal(&types.InFlightEntry{
		WorkerID:  workerID,
		StartedAt: now,
		TimeoutAt: now.Add(q.processingTimeout),
	})
	if err != nil {
		return nil, err
	}

	raw, err := dequeueScript.Run(ctx, q.client,
		[]string{keyPending, keyInFlight},
		now.UnixMilli(), n, string(entry),
	).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}

	docs := make([]*types.Document, 0, len(raw))
	for _, id := range raw {
		doc, err := q.store.Load(ctx, id)
		if err != nil {
			// Orphan id: drop it and its claim
			q.client.HDel(ctx, keyInFlight, id)
			q.logger.Warn().Str("document_id", id).Err(err).Msg("discarding orphan queue entry")
			continue
		}

		doc.State = types.StageProcessing
		doc.UpdatedAt = now
		if err := q.store.Save(ctx, doc); err != nil {
			// Store write failed: release the claim so another worker retries
			q.client.HDel(ctx, keyInFlight, id)
			q.client.ZAdd(ctx, keyPending, redis.Z{Score: float64(now.UnixMilli()), Member: id})
			return docs, err
		}

		q.client.Set(ctx, processingStartedKeyPrefix+id, now.Format(time.RFC3339Nano), sideRecordTTL)
		docs = append(docs, doc)
	}
	return docs, nil
}

// MarkCompleted removes id from in-flight and sets state COMPLETED
func (q *RedisQueue) MarkCompleted(ctx context.Context, id string) error {
	if err := q.client.HDel(ctx, keyInFlight, id).Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}

	now := time.Now()
	q.client.Set(ctx, processingCompletedKeyPrefix+id, now.Format(time.RFC3339Nano), sideRecordTTL)

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
func (q *RedisQueue) MarkFailed(ctx context.Context, id string, errMsg string, retry bool) (bool, error) {
	if err := q.client.HDel(ctx, keyInFlight, id).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}

	q.client.Set(ctx, lastErrorKeyPrefix+id, truncateError(errMsg), sideRecordTTL)
	retries, err := q.client.Incr(ctx, retryCountKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	q.client.Expire(ctx, retryCountKeyPrefix+id, sideRecordTTL)

	if retry && int(retries) <= q.maxRetries {
		next := time.Now().Add(Backoff(int(retries)))
		q.logger.Info().Str("document_id", id).Int64("retry", retries).
			Time("next_attempt", next).Msg("re-enqueueing failed job")
		return true, q.Enqueue(ctx, id, next)
	}

	now := time.Now()
	if err := q.client.ZAdd(ctx, keyFailed, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: id,
	}).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	q.client.Set(ctx, processingCompletedKeyPrefix+id, now.Format(time.RFC3339Nano), sideRecordTTL)

	doc, err := q.store.Load(ctx, id)
	if err != nil {
		return false, err
	}
	doc.State = types.StageFailed
	doc.UpdatedAt = now
	return false, q.store.Save(ctx, doc)
}

// Cancel removes a PENDING id from the queue
func (q *RedisQueue) Cancel(ctx context.Context, id string) error {
	removed, err := q.client.ZRem(ctx, keyPending, id).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", types.ErrNotCancellable, id)
	}

	q.client.Set(ctx, lastErrorKeyPrefix+id, "cancelled by user", sideRecordTTL)

	doc, err := q.store.Load(ctx, id)
	if err != nil {
		return err
	}
	doc.State = types.StageFailed
	doc.UpdatedAt = time.Now()
	return q.store.Save(ctx, doc)
}

// RecoverStale re-enqueues in-flight jobs held by dead workers
func (q *RedisQueue) RecoverStale(ctx context.Context) (int, error) {
	entries, err := q.client.HGetAll(ctx, keyInFlight).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}

	now := time.Now()
	recovered := 0
	for id, raw := range entries {
		var entry types.InFlightEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if entry.TimeoutAt.After(now) {
			continue
		}

		alive, err := q.client.Exists(ctx, workerKeyPrefix+entry.WorkerID).Result()
		if err != nil {
			return recovered, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
		}
		if alive > 0 {
			continue
		}

		moved, err := recoverScript.Run(ctx, q.client,
			[]string{keyInFlight, keyPending},
			id, now.UnixMilli(),
		).Int()
		if err != nil || moved == 0 {
			continue
		}

		errMsg := fmt.Sprintf("worker %s timed out", entry.WorkerID)
		q.client.Set(ctx, lastErrorKeyPrefix+id, errMsg, sideRecordTTL)
		retries, _ := q.client.Incr(ctx, retryCountKeyPrefix+id).Result()
		q.client.Expire(ctx, retryCountKeyPrefix+id, sideRecordTTL)

		if int(retries) > q.maxRetries {
			// Budget exhausted while the worker was dead
			q.client.ZRem(ctx, keyPending, id)
			q.client.ZAdd(ctx, keyFailed, redis.Z{Score: float64(now.UnixMilli()), Member: id})
			if doc, lerr := q.store.Load(ctx, id); lerr == nil {
				doc.State = types.StageFailed
				doc.UpdatedAt = now
				_ = q.store.Save(ctx, doc)
			}
			recovered++
			continue
		}

		if doc, lerr := q.store.Load(ctx, id); lerr == nil {
			doc.State = types.StagePending
			doc.UpdatedAt = now
			_ = q.store.Save(ctx, doc)
		}

		q.logger.Warn().Str("document_id", id).Str("worker_id", entry.WorkerID).
			Msg("recovered stale job from dead worker")
		recovered++
	}
	return recovered, nil
}

// Stats reports partition lengths and live worker count
func (q *RedisQueue) Stats(ctx context.Context) (*types.QueueStats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.ZCard(ctx, keyPending)
	inFlight := pipe.HLen(ctx, keyInFlight)
	failed := pipe.ZCard(ctx, keyFailed)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}

	workers := 0
	iter := q.client.Scan(ctx, 0, workerKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		workers++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}

	return &types.QueueStats{
		Pending:     pending.Val(),
		InFlight:    inFlight.Val(),
		Failed:      failed.Val(),
		LiveWorkers: workers,
	}, nil
}

// JobStatus reports the queue-side view of one job
func (q *RedisQueue) JobStatus(ctx context.Context, id string) (*types.JobStatus, error) {
	doc, err := q.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	status := &types.JobStatus{
		DocumentID:    id,
		State:         doc.State,
		QueuePosition: -1,
	}

	if rank, err := q.client.ZRank(ctx, keyPending, id).Result(); err == nil {
		status.QueuePosition = int(rank)
	}
	if retries, err := q.client.Get(ctx, retryCountKeyPrefix+id).Result(); err == nil {
		status.RetryCount, _ = strconv.Atoi(retries)
	}
	if lastErr, err := q.client.Get(ctx, lastErrorKeyPrefix+id).Result(); err == nil {
		status.LastError = lastErr
	}
	if started, err := q.client.Get(ctx, processingStartedKeyPrefix+id).Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, started); perr == nil {
			status.StartedAt = &t
		}
	}
	if completed, err := q.client.Get(ctx, processingCompletedKeyPrefix+id).Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, completed); perr == nil {
			status.CompletedAt = &t
		}
	}
	return status, nil
}

// RegisterWorker writes the TTL-bearing liveness entry
func (q *RedisQueue) RegisterWorker(ctx context.Context, workerID string) error {
	return q.writeWorkerEntry(ctx, workerID)
}

// Heartbeat refreshes the liveness entry TTL
func (q *RedisQueue) Heartbeat(ctx context.Context, workerID string) error {
	return q.writeWorkerEntry(ctx, workerID)
}

// DeregisterWorker removes the liveness entry
func (q *RedisQueue) DeregisterWorker(ctx context.Context, workerID string) error {
	if err := q.client.Del(ctx, workerKeyPrefix+workerID).Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) writeWorkerEntry(ctx context.Context, workerID string) error {
	data, err := json.Marshal(&types.WorkerInfo{
		ID:            workerID,
		Status:        "active",
		LastHeartbeat: time.Now(),
	})
	if err != nil {
		return err
	}
	if err := q.client.Set(ctx, workerKeyPrefix+workerID, data, StaleWorkerTimeout).Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	return nil
}

// SetFilePath records the ephemeral upload path for id
func (q *RedisQueue) SetFilePath(ctx context.Context, id, path string) error {
	if err := q.client.Set(ctx, filePathKeyPrefix+id, path, FilePathTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	return nil
}

// FilePath returns the recorded upload path, or "" when absent
func (q *RedisQueue) FilePath(ctx context.Context, id string) (string, error) {
	path, err := q.client.Get(ctx, filePathKeyPrefix+id).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrQueueUnavailable, err)
	}
	return path, nil
}

// truncateError bounds the stored last_error string
func truncateError(msg string) string {
	const maxErrorLen = 500
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
