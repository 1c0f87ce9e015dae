package worker

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/docstream/pkg/events"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
	"github.com/cuemby/docstream/pkg/processor"
	"github.com/cuemby/docstream/pkg/queue"
	"github.com/cuemby/docstream/pkg/types"
)

const (
	idleSleep = time.Second

	// softDeadlineMargin is subtracted from the processing timeout so a
	// job gives up before the queue considers it stale
	softDeadlineMargin = 5 * time.Second

	shutdownGrace = 30 * time.Second
)

// Pool runs a fixed set of worker goroutines that pull documents off
// the queue and hand them to the processor. Each worker carries its own
// liveness entry and heartbeat; the pool as a whole runs one
// stale-recovery loop.
type Pool struct {
	queue     queue.Queue
	processor *processor.Processor
	bus       *events.Bus

	workers           int
	processingTimeout time.Duration
	staleInterval     time.Duration

	jobCtx    context.Context
	jobCancel context.CancelFunc
	stopCh    chan struct{}
	wg        sync.WaitGroup
	logger    zerolog.Logger
}

// NewPool creates a worker pool. workers must be at least 1;
// processingTimeout and staleInterval fall back to defaults when zero.
func NewPool(q queue.Queue, p *processor.Processor, bus *events.Bus, workers int, processingTimeout, staleInterval time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	if processingTimeout <= 0 {
		processingTimeout = queue.DefaultProcessingTimeout
	}
	if staleInterval <= 0 {
		staleInterval = time.Minute
	}
	jobCtx, jobCancel := context.WithCancel(context.Background())
	return &Pool{
		queue:             q,
		processor:         p,
		bus:               bus,
		workers:           workers,
		processingTimeout: processingTimeout,
		staleInterval:     staleInterval,
		jobCtx:            jobCtx,
		jobCancel:         jobCancel,
		stopCh:            make(chan struct{}),
		logger:            log.WithComponent("worker"),
	}
}

// Start launches the worker goroutines and the stale-recovery loop
func (p *Pool) Start() {
	p.logger.Info().Int("workers", p.workers).Msg("starting worker pool")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
	p.wg.Add(1)
	go p.staleRecoveryLoop()
}

// Stop drains the pool: dequeuing stops immediately, in-flight jobs get
// a grace period, and anything still running after that is cancelled so
// it fails with retry and is picked up again later.
func (p *Pool) Stop() {
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		p.logger.Warn().Msg("shutdown grace expired, cancelling in-flight jobs")
		p.jobCancel()
		<-done
	}
	p.jobCancel()
	p.logger.Info().Msg("worker pool stopped")
}

func (p *Pool) runWorker() {
	defer p.wg.Done()

	workerID := uuid.New().String()
	logger := log.WithWorkerID(p.logger, workerID)

	if err := p.queue.RegisterWorker(p.jobCtx, workerID); err != nil {
		logger.Error().Err(err).Msg("failed to register worker")
		return
	}
	metrics.WorkersLive.Inc()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.queue.DeregisterWorker(ctx, workerID); err != nil {
			logger.Warn().Err(err).Msg("failed to deregister worker")
		}
		cancel()
		metrics.WorkersLive.Dec()
	}()

	heartbeatDone := make(chan struct{})
	go p.heartbeatLoop(workerID, heartbeatDone)
	defer close(heartbeatDone)

	logger.Info().Msg("worker started")
	for {
		select {
		case <-p.stopCh:
			logger.Info().Msg("worker stopping")
			return
		default:
		}

		docs, err := p.queue.Dequeue(p.jobCtx, workerID, 1)
		if err != nil {
			logger.Error().Err(err).Msg("dequeue failed")
			p.sleep(idleSleep)
			continue
		}
		if len(docs) == 0 {
			p.sleep(idleSleep)
			continue
		}

		p.processOne(logger, docs[0])
	}
}

func (p *Pool) processOne(logger zerolog.Logger, doc *types.Document) {
	deadline := p.processingTimeout - softDeadlineMargin
	if deadline <= 0 {
		deadline = p.processingTimeout
	}
	ctx, cancel := context.WithTimeout(p.jobCtx, deadline)
	defer cancel()

	err := p.processor.Process(ctx, doc)
	defer p.cleanupTempFile(logger, doc.ID)

	// Finalization runs on a fresh context so shutdown cancellation
	// cannot strand the job in-flight
	finCtx, finCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer finCancel()

	if err != nil {
		logger.Warn().Err(err).Str("document_id", doc.ID).Msg("processing failed")
		metrics.JobsFailed.Inc()

		requeued, markErr := p.queue.MarkFailed(finCtx, doc.ID, err.Error(), !permanentFailure(err))
		if markErr != nil {
			logger.Error().Err(markErr).Str("document_id", doc.ID).Msg("failed to mark job failed")
			return
		}
		if !requeued {
			p.bus.Publish(types.EventDocumentUpdated, doc.ID, map[string]any{
				"state":   string(types.StageFailed),
				"summary": doc.Summary,
			})
		}
		return
	}

	metrics.JobsProcessed.Inc()
	if markErr := p.queue.MarkCompleted(finCtx, doc.ID); markErr != nil {
		logger.Error().Err(markErr).Str("document_id", doc.ID).Msg("failed to mark job completed")
	}
}

// permanentFailure reports whether another attempt can never succeed:
// a missing extractor backend, rejected input, or a vanished document
// dead-letters immediately instead of burning the retry budget
func permanentFailure(err error) bool {
	return errors.Is(err, types.ErrExtractorUnavailable) ||
		errors.Is(err, types.ErrInvalidInput) ||
		errors.Is(err, types.ErrNotFound)
}

// cleanupTempFile removes the uploaded temp file once processing ends,
// on both the success and the failure path
func (p *Pool) cleanupTempFile(logger zerolog.Logger, docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path, err := p.queue.FilePath(ctx, docID)
	if err != nil || path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("path", path).Msg("failed to remove temp file")
	}
}

func (p *Pool) heartbeatLoop(workerID string, done <-chan struct{}) {
	ticker := time.NewTicker(queue.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.queue.Heartbeat(ctx, workerID); err != nil {
				p.logger.Warn().Err(err).Str("worker_id", workerID).Msg("heartbeat failed")
			}
			cancel()
		case <-done:
			return
		}
	}
}

func (p *Pool) staleRecoveryLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.staleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := p.queue.RecoverStale(ctx)
			cancel()
			if err != nil {
				p.logger.Error().Err(err).Msg("stale job recovery failed")
				continue
			}
			if n > 0 {
				p.logger.Info().Int("recovered", n).Msg("re-enqueued stale jobs")
				metrics.JobsRecovered.Add(float64(n))
			}
			p.observeQueueDepth()
		case <-p.stopCh:
			return
		}
	}
}

// observeQueueDepth refreshes the partition-depth gauges on the stale
// recovery cadence
func (p *Pool) observeQueueDepth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := p.queue.Stats(ctx)
	if err != nil {
		return
	}
	metrics.QueueDepth.WithLabelValues("pending").Set(float64(stats.Pending))
	metrics.QueueDepth.WithLabelValues("in_flight").Set(float64(stats.InFlight))
	metrics.QueueDepth.WithLabelValues("failed").Set(float64(stats.Failed))
}

func (p *Pool) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-p.stopCh:
	}
}
