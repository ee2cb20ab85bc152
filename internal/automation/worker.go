package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/stretchops/studio-automation/internal/observability/metrics"
	"github.com/stretchops/studio-automation/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	defaultJobTimeout   = 10 * time.Minute
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeoutSecs   = 5
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	jobTimeout       time.Duration
	metrics          *metrics.AutomationMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithJobTimeout caps how long a single portal run may take. Fan-out
// batches burn most of this on retry rounds.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.jobTimeout = d
		}
	}
}

// WithMetrics records job outcomes and durations; nil is accepted.
func WithMetrics(m *metrics.AutomationMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// Worker consumes automation jobs from the queue and invokes the processor.
type Worker struct {
	processor Processor
	queue     queueClient
	jobs      JobUpdater
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker wires a queue consumer around the processor.
func NewWorker(processor Processor, queue queueClient, jobs JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("automation: processor cannot be nil")
	}
	if queue == nil {
		panic("automation: queue cannot be nil")
	}
	if jobs == nil {
		panic("automation: job updater cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		jobTimeout:       defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.receiveBatchSize > maxReceiveBatchSize {
		cfg.receiveBatchSize = maxReceiveBatchSize
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		jobs:      jobs,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches the consumer goroutines. They exit when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("automation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("automation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive automation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode automation payload", "error", err, "message_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	started := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.jobTimeout)
	result, err := w.process(jobCtx, payload)
	cancel()

	status := string(JobStatusSuccess)
	if err != nil {
		status = string(JobStatusError)
	}
	w.cfg.metrics.ObserveJob(string(payload.Kind), status, time.Since(started).Seconds())

	if err != nil {
		w.logger.Error("automation job failed",
			"job_id", payload.ID, "kind", payload.Kind, "error", err)
		if markErr := w.jobs.MarkFailed(context.Background(), payload.ID, err.Error()); markErr != nil {
			w.logger.Error("failed to mark job failed", "job_id", payload.ID, "error", markErr)
		}
	} else {
		if markErr := w.jobs.MarkCompleted(context.Background(), payload.ID, result); markErr != nil {
			w.logger.Error("failed to mark job completed", "job_id", payload.ID, "error", markErr)
		}
	}

	// The terminal state is recorded either way; redelivery would repeat
	// portal side effects, so the message is always deleted.
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) process(ctx context.Context, payload queuePayload) (*JobResult, error) {
	switch payload.Kind {
	case KindSyncBookings:
		if payload.Sync == nil {
			return nil, errors.New("automation: sync payload missing")
		}
		sync, err := w.processor.SyncBookings(ctx, *payload.Sync)
		if err != nil {
			return nil, err
		}
		return &JobResult{Sync: sync}, nil
	case KindSubmitNotes:
		if payload.Note == nil {
			return nil, errors.New("automation: note payload missing")
		}
		sub, err := w.processor.SubmitNotes(ctx, *payload.Note)
		if err != nil {
			return nil, err
		}
		return &JobResult{Submission: sub}, nil
	case KindLogOff:
		if payload.Note == nil {
			return nil, errors.New("automation: note payload missing")
		}
		sub, err := w.processor.LogOff(ctx, *payload.Note)
		if err != nil {
			return nil, err
		}
		return &JobResult{Submission: sub}, nil
	default:
		return nil, errors.New("automation: unknown job kind " + string(payload.Kind))
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSecs*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete automation message", "error", err)
	}
}
