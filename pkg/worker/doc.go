/*
Package worker runs the pool of goroutines that consume the processing
queue.

Each worker registers a liveness entry, heartbeats it on an interval, and
loops dequeue → process → finalize. A separate goroutine periodically
recovers jobs stranded by dead workers.

# Lifecycle

	pool := worker.NewPool(q, proc, bus, workers, processingTimeout, staleInterval)
	pool.Start()
	...
	pool.Stop()

Stop closes the dequeue path immediately and waits up to 30 seconds for
in-flight jobs to finish. Past the grace period the job contexts are
cancelled, which fails the jobs back onto the queue with a retry. Job
finalization (MarkCompleted / MarkFailed) always runs on a fresh background
context so shutdown cannot strand a claim.

# Failure handling

Errors that another attempt cannot fix (missing extractor backend, rejected
input, vanished document) are marked with retry disabled and dead-letter on
the first attempt; everything else re-enqueues with backoff until the retry
budget is spent. When a job dead-letters the pool publishes the terminal
document:updated event carrying the failed state and the document summary.

# Deadlines

Each job runs under the processing timeout minus a 5-second margin, so a
job that overruns fails and releases its claim before the queue's stale
deadline would hand it to another worker.
*/
package worker
