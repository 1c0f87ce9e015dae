/*
Package queue provides the document processing work queue for docstream.

The queue tracks every submitted document through three partitions (pending,
in-flight, failed), schedules retries with exponential backoff, and recovers
jobs abandoned by crashed workers. Two interchangeable backends implement the
same Queue interface: a Redis-backed queue for multi-process deployments and
an in-memory queue for single-process and test use.

# Architecture

	┌─────────────────────── WORK QUEUE ───────────────────────┐
	│                                                           │
	│   Enqueue                                                 │
	│      │                                                    │
	│      ▼                                                    │
	│  ┌─────────────┐   Dequeue    ┌──────────────┐           │
	│  │   Pending    │────────────▶│  In-Flight   │           │
	│  │ (sorted by   │   (atomic    │ (worker id + │           │
	│  │  scheduled   │    claim)    │  deadline)   │           │
	│  │  time)       │◀────────────│              │           │
	│  └─────────────┘  MarkFailed  └──────┬───────┘           │
	│         ▲         (with budget)      │                    │
	│         │                            │ MarkCompleted      │
	│         │ RecoverStale               ▼                    │
	│         │ (dead worker)       ┌──────────────┐           │
	│         └────────────────────│   Completed   │           │
	│                               └──────────────┘           │
	│  ┌─────────────┐                                         │
	│  │    Failed    │◀── retry budget exhausted              │
	│  │ (dead letter)│                                         │
	│  └─────────────┘                                         │
	└──────────────────────────────────────────────────────────┘

# Partitions

Pending: document ids ordered by scheduled time. A job scheduled in the
future (a backoff retry) is invisible to Dequeue until its time arrives.

In-Flight: ids claimed by a worker, each carrying the worker id, the claim
time, and a processing deadline. Exactly one worker holds a given id.

Failed: the dead-letter partition. Jobs land here when the retry budget is
exhausted or when they are cancelled.

# Retry Semantics

MarkFailed with retry=true consults the per-document retry counter:

	attempt 1 failure → re-enqueued at now + 10s
	attempt 2 failure → re-enqueued at now + 20s
	attempt 3 failure → re-enqueued at now + 40s
	...
	delay is capped at 5 minutes

Once the counter exceeds the configured maximum the job moves to the failed
partition and the document state becomes failed. MarkFailed with retry=false
skips the budget and dead-letters immediately.

# Stale Job Recovery

Workers register a TTL-bearing liveness entry and refresh it on a heartbeat
interval. RecoverStale scans the in-flight partition for entries whose
processing deadline has passed AND whose worker liveness entry is gone, and
re-enqueues them with a retry increment. A slow-but-alive worker keeps its
claim; only a dead worker's jobs are recovered.

	HeartbeatInterval    30s   worker TTL refresh cadence
	StaleWorkerTimeout   120s  liveness entry TTL
	ProcessingTimeout    300s  default in-flight deadline

# Usage

	q := queue.NewRedisQueue(queue.RedisQueueConfig{
		Client:     redisClient,
		Store:      store,
		MaxRetries: 3,
	})

	// Producer
	q.Enqueue(ctx, doc.ID, time.Time{}) // zero time = now

	// Consumer
	q.RegisterWorker(ctx, workerID)
	docs, _ := q.Dequeue(ctx, workerID, 1)
	for _, doc := range docs {
		if err := process(ctx, doc); err != nil {
			q.MarkFailed(ctx, doc.ID, err.Error(), true)
		} else {
			q.MarkCompleted(ctx, doc.ID)
		}
	}

# Backend Notes

The Redis backend claims jobs with a Lua script so the pop-and-claim is
atomic across competing workers. Side records (retry counts, last errors,
processing timestamps) carry a 24h TTL; the ephemeral upload-path record
carries 1h. The memory backend holds the same structures under one mutex
and is the default for tests and single-node deployments.

# See Also

  - pkg/worker - the pool that consumes this queue
  - pkg/storage - document persistence the queue reads through
  - pkg/submit - the producer side
*/
package queue
